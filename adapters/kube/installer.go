package kube

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Default add-on sources.
const (
	DefaultPodIdentityURL     = "https://raw.githubusercontent.com/Azure/aad-pod-identity/master/deploy/infra/deployment-rbac.yaml"
	DefaultCertManagerCRDsURL = "https://github.com/cert-manager/cert-manager/releases/download/v1.14.5/cert-manager.crds.yaml"
	DefaultIngressNginxURL    = "https://raw.githubusercontent.com/kubernetes/ingress-nginx/controller-v1.10.1/deploy/static/provider/cloud/deploy.yaml"
	DefaultCertManagerRepo    = "https://charts.jetstack.io"
	DefaultCertManagerVersion = "v1.14.5"

	certManagerNamespace = "cert-manager"
	certManagerRelease   = "cert-manager"
)

// AddonSources locates the third-party add-ons installed into the cluster.
type AddonSources struct {
	PodIdentityURL     string
	CertManagerCRDsURL string
	IngressNginxURL    string
	CertManagerRepo    string
	CertManagerVersion string
}

// DefaultAddonSources returns the pinned add-on sources.
func DefaultAddonSources() AddonSources {
	return AddonSources{
		PodIdentityURL:     DefaultPodIdentityURL,
		CertManagerCRDsURL: DefaultCertManagerCRDsURL,
		IngressNginxURL:    DefaultIngressNginxURL,
		CertManagerRepo:    DefaultCertManagerRepo,
		CertManagerVersion: DefaultCertManagerVersion,
	}
}

func (s AddonSources) manifests() []struct{ name, url string } {
	return []struct{ name, url string }{
		{"aad-pod-identity", s.PodIdentityURL},
		{"cert-manager-crds", s.CertManagerCRDsURL},
		{"ingress-nginx", s.IngressNginxURL},
	}
}

func (s AddonSources) certManagerChart() HelmChart {
	return HelmChart{
		RepoURL:   s.CertManagerRepo,
		Chart:     "cert-manager",
		Version:   s.CertManagerVersion,
		Release:   certManagerRelease,
		Namespace: certManagerNamespace,
		// CRDs come from the pinned manifest so that the chart never owns them.
		Values:  map[string]any{"installCRDs": false},
		Timeout: 10 * time.Minute,
	}
}

// applier is the subset of Client used by the installer.
type applier interface {
	ApplyYAML(ctx context.Context, data []byte, opts *ApplyOptions) error
	ApplyObjects(ctx context.Context, objs []*unstructured.Unstructured, opts *ApplyOptions) error
}

var _ model.ClusterInstaller = (*Installer)(nil)

// Installer implements model.ClusterInstaller.
type Installer struct {
	Sources   AddonSources
	UserAgent string

	httpClient *http.Client
	newClient  func(ctx context.Context, kubeconfig []byte) (applier, error)
	fetch      func(ctx context.Context, url string) ([]byte, error)
	helm       func(ctx context.Context, kubeconfig []byte, hc HelmChart) error
}

// NewInstaller returns an installer using the given sources.
func NewInstaller(sources AddonSources, userAgent string) *Installer {
	i := &Installer{Sources: sources, UserAgent: userAgent, httpClient: &http.Client{Timeout: 2 * time.Minute}}
	i.newClient = func(ctx context.Context, kubeconfig []byte) (applier, error) {
		return NewClientFromKubeconfig(ctx, kubeconfig, &Options{UserAgent: i.UserAgent})
	}
	i.fetch = func(ctx context.Context, url string) ([]byte, error) {
		return FetchManifest(ctx, i.httpClient, url)
	}
	i.helm = UpgradeOrInstall
	return i
}

// Install applies, in order: the add-on manifests (pod identity, cert-manager
// CRDs, ingress-nginx), the cert-manager controller chart, and the stack's own
// objects. Every step is idempotent.
func (i *Installer) Install(ctx context.Context, kubeconfig []byte, spec *model.ClusterSpec) (err error) {
	if spec == nil || spec.Settings == nil {
		return fmt.Errorf("cluster spec is nil")
	}
	ctx, finish := logging.Span(ctx, "KubeInstaller:Install", "namespace", spec.Settings.Namespace)
	defer func() { finish(err) }()

	kc, err := i.newClient(ctx, kubeconfig)
	if err != nil {
		return fmt.Errorf("new kube client: %w", err)
	}
	applyOpts := &ApplyOptions{ForceConflicts: true}

	for _, m := range i.Sources.manifests() {
		if m.url == "" {
			logging.FromContext(ctx).Info(ctx, "skipping add-on without source", "addon", m.name)
			continue
		}
		data, err := i.fetch(ctx, m.url)
		if err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
		if err := kc.ApplyYAML(ctx, data, applyOpts); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
		logging.FromContext(ctx).Info(ctx, "add-on applied", "addon", m.name, "source", m.url)
	}

	if err := i.helm(ctx, kubeconfig, i.Sources.certManagerChart()); err != nil {
		return fmt.Errorf("cert-manager: %w", err)
	}

	if err := kc.ApplyObjects(ctx, StackObjects(spec), applyOpts); err != nil {
		return fmt.Errorf("stack resources: %w", err)
	}
	return nil
}

// Render returns the stack's own objects as YAML with secret data masked,
// preceded by comments naming the add-on sources.
func (i *Installer) Render(spec *model.ClusterSpec) (string, error) {
	if spec == nil || spec.Settings == nil {
		return "", fmt.Errorf("cluster spec is nil")
	}
	var b strings.Builder
	for _, m := range i.Sources.manifests() {
		fmt.Fprintf(&b, "# add-on %s: %s\n", m.name, m.url)
	}
	hc := i.Sources.certManagerChart()
	fmt.Fprintf(&b, "# add-on cert-manager: helm chart %s %s from %s (namespace %s)\n", hc.Chart, hc.Version, hc.RepoURL, hc.Namespace)
	doc, err := BuildCleanManifest(StackObjects(spec), true)
	if err != nil {
		return "", err
	}
	b.WriteString(doc)
	return b.String(), nil
}
