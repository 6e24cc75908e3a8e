package main

import (
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/kanebernetes/aksstack/adapters/azure"
	"github.com/kanebernetes/aksstack/adapters/azure/graph"
	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/adapters/store/rdb"
	"github.com/kanebernetes/aksstack/config/azureenv"
	"github.com/kanebernetes/aksstack/config/stackcfg"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Global flag names.
const (
	flagStack     = "stack"
	flagConfig    = "config"
	flagProject   = "project"
	flagStateURL  = "state-url"
	flagEnvFile   = "env-file"
	flagLogFormat = "log-format"
	flagLogLevel  = "log-level"
	flagLogOutput = "log-output"

	defaultProject  = stackcfg.DefaultProject
	defaultStateURL = rdb.DefaultURL
)

// findFlag recursively searches parents for a flag.
func findFlag(cmd *cobra.Command, name string) *pflag.Flag {
	for c := cmd; c != nil; c = c.Parent() {
		if f := c.Flags().Lookup(name); f != nil {
			return f
		}
		if f := c.PersistentFlags().Lookup(name); f != nil {
			return f
		}
	}
	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	if f := findFlag(cmd, name); f != nil {
		return f.Value.String()
	}
	return ""
}

func stackName(cmd *cobra.Command) string { return flagString(cmd, flagStack) }

// loadSettings reads and resolves the stack configuration file.
func loadSettings(cmd *cobra.Command) (*model.StackSettings, error) {
	name := stackName(cmd)
	path := flagString(cmd, flagConfig)
	if path == "" {
		path = stackcfg.DefaultPath(name)
	}
	f, err := stackcfg.Load(path, flagString(cmd, flagProject))
	if err != nil {
		return nil, err
	}
	return f.Settings(name)
}

func openState(cmd *cobra.Command) (*rdb.StateRepository, error) {
	db, err := rdb.OpenFromURL(flagString(cmd, flagStateURL))
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	if err := rdb.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate state: %w", err)
	}
	return rdb.NewStateRepository(db, os.Getenv(envPassphrase)), nil
}

func userAgent() string { return "aksstack/" + version }

// buildStackUseCase wires the Azure, Graph, Kubernetes and state adapters.
func buildStackUseCase(cmd *cobra.Command, sources kube.AddonSources) (*stack.UseCase, error) {
	state, err := openState(cmd)
	if err != nil {
		return nil, err
	}
	az, err := azureenv.Load(flagString(cmd, flagEnvFile), true)
	if err != nil {
		return nil, err
	}
	cred, err := az.Credential()
	if err != nil {
		return nil, err
	}
	telemetry := policy.TelemetryOptions{ApplicationID: userAgent()}
	driver, err := azure.New(az.SubscriptionID, cred, &arm.ClientOptions{ClientOptions: policy.ClientOptions{Telemetry: telemetry}})
	if err != nil {
		return nil, err
	}
	dir, err := graph.NewClient(cred, &graph.Options{ClientOptions: policy.ClientOptions{Telemetry: telemetry}})
	if err != nil {
		return nil, err
	}
	return &stack.UseCase{
		Provisioner: driver,
		Directory:   dir,
		Installer:   kube.NewInstaller(sources, userAgent()),
		State:       state,
	}, nil
}

// buildStateUseCase wires only local state and offline rendering.
func buildStateUseCase(cmd *cobra.Command, sources kube.AddonSources) (*stack.UseCase, error) {
	state, err := openState(cmd)
	if err != nil {
		return nil, err
	}
	return &stack.UseCase{
		Provisioner: azure.NewRenderer(),
		Installer:   kube.NewInstaller(sources, userAgent()),
		State:       state,
	}, nil
}

// addAddonFlags binds the add-on source overrides to sources.
func addAddonFlags(fs *pflag.FlagSet, sources *kube.AddonSources) {
	fs.StringVar(&sources.PodIdentityURL, "pod-identity-url", sources.PodIdentityURL, "aad-pod-identity manifest URL (empty skips)")
	fs.StringVar(&sources.CertManagerCRDsURL, "cert-manager-crds-url", sources.CertManagerCRDsURL, "cert-manager CRDs manifest URL (empty skips)")
	fs.StringVar(&sources.IngressNginxURL, "ingress-nginx-url", sources.IngressNginxURL, "ingress-nginx manifest URL (empty skips)")
	fs.StringVar(&sources.CertManagerRepo, "cert-manager-repo", sources.CertManagerRepo, "cert-manager Helm repository")
	fs.StringVar(&sources.CertManagerVersion, "cert-manager-version", sources.CertManagerVersion, "cert-manager Helm chart version")
}
