package kube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kanebernetes/aksstack/internal/logging"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	helmdriver "helm.sh/helm/v3/pkg/storage/driver"
)

// HelmChart identifies a chart release.
type HelmChart struct {
	RepoURL   string
	Chart     string
	Version   string
	Release   string
	Namespace string
	Values    map[string]any
	Timeout   time.Duration
}

// tempfile writes kubeconfig bytes to a temporary file for the Helm SDK.
func tempfile(kubeconfig []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "aksstack-kubeconfig-*.yaml")
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp kubeconfig: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(kubeconfig); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", func() {}, fmt.Errorf("write temp kubeconfig: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", func() {}, fmt.Errorf("close temp kubeconfig: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

// UpgradeOrInstall upgrades the release, installing it when it does not exist yet.
func UpgradeOrInstall(ctx context.Context, kubeconfig []byte, hc HelmChart) (err error) {
	if len(kubeconfig) == 0 {
		return fmt.Errorf("kubeconfig is required for Helm operations")
	}
	logger := logging.FromContext(ctx).With("release", hc.Release, "chart", hc.Chart, "version", hc.Version)
	msgSym := "Helm:UpgradeOrInstall"
	logger.Info(ctx, msgSym+"/s")
	defer func() {
		if err == nil {
			logger.Info(ctx, msgSym+"/eok")
		} else {
			logger.Info(ctx, msgSym+"/efail", "err", err)
		}
	}()

	kubeconfigPath, cleanup, err := tempfile(kubeconfig)
	if err != nil {
		return err
	}
	defer cleanup()

	settings := cli.New()
	settings.KubeConfig = kubeconfigPath

	cfg := new(action.Configuration)
	debug := func(format string, v ...any) { logger.Debugf(ctx, format, v...) }
	if err := cfg.Init(settings.RESTClientGetter(), hc.Namespace, "secret", debug); err != nil {
		return fmt.Errorf("init helm configuration: %w", err)
	}
	timeout := hc.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	cpo := action.ChartPathOptions{RepoURL: hc.RepoURL, Version: hc.Version}
	chartPath, err := cpo.LocateChart(hc.Chart, settings)
	if err != nil {
		return fmt.Errorf("locate %s chart: %w", hc.Chart, err)
	}
	ch, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("load %s chart: %w", hc.Chart, err)
	}

	up := action.NewUpgrade(cfg)
	up.Namespace = hc.Namespace
	up.Version = hc.Version
	up.Atomic = true
	up.Wait = true
	up.Timeout = timeout
	if _, err := up.RunWithContext(ctx, hc.Release, ch, hc.Values); err != nil {
		if !errors.Is(err, helmdriver.ErrNoDeployedReleases) && !errors.Is(err, helmdriver.ErrReleaseNotFound) {
			return fmt.Errorf("helm upgrade %s: %w", hc.Release, err)
		}
		in := action.NewInstall(cfg)
		in.Namespace = hc.Namespace
		in.CreateNamespace = true
		in.ReleaseName = hc.Release
		in.Version = hc.Version
		in.Atomic = true
		in.Wait = true
		in.Timeout = timeout
		if _, ierr := in.RunWithContext(ctx, ch, hc.Values); ierr != nil {
			return fmt.Errorf("helm install %s: %w", hc.Release, ierr)
		}
	}
	return nil
}
