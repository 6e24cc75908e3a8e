// Package azureenv loads the operator's Azure access settings from a .env file
// and the process environment.
package azureenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Authentication methods accepted in AZURE_AUTH_METHOD.
const (
	AuthClientSecret      = "client_secret"
	AuthManagedIdentity   = "managed_identity"
	AuthWorkloadIdentity  = "workload_identity"
	AuthAzureCLI          = "azure_cli"
	AuthAzureDeveloperCLI = "azure_developer_cli"
	AuthDefault           = "default"
)

// Settings identifies the subscription and the principal that runs the deployment.
type Settings struct {
	SubscriptionID     string `env:"AZURE_SUBSCRIPTION_ID,required,notEmpty"`
	AuthMethod         string `env:"AZURE_AUTH_METHOD" envDefault:"azure_cli"`
	TenantID           string `env:"AZURE_TENANT_ID"`
	ClientID           string `env:"AZURE_CLIENT_ID"`
	ClientSecret       string `env:"AZURE_CLIENT_SECRET"`
	FederatedTokenFile string `env:"AZURE_FEDERATED_TOKEN_FILE"`
}

// Load reads envFile (missing file is fine when optional is true), overlays the
// process environment and decodes the result.
func Load(envFile string, optional bool) (*Settings, error) {
	vars := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			vars = m
		case optional && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return FromMap(vars)
}

// FromMap decodes settings from an explicit variable set.
func FromMap(vars map[string]string) (*Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("azure settings: %w", err)
	}
	s.AuthMethod = strings.TrimSpace(s.AuthMethod)
	return &s, nil
}

// Credential builds a token credential for the configured method.
func (s *Settings) Credential() (azcore.TokenCredential, error) {
	var cred azcore.TokenCredential
	var err error
	switch s.AuthMethod {
	case AuthClientSecret:
		if s.TenantID == "" || s.ClientID == "" || s.ClientSecret == "" {
			return nil, fmt.Errorf("client_secret auth requires AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET")
		}
		cred, err = azidentity.NewClientSecretCredential(s.TenantID, s.ClientID, s.ClientSecret, nil)
	case AuthManagedIdentity:
		opts := &azidentity.ManagedIdentityCredentialOptions{}
		if s.ClientID != "" {
			opts.ID = azidentity.ClientID(s.ClientID)
		}
		cred, err = azidentity.NewManagedIdentityCredential(opts)
	case AuthWorkloadIdentity:
		if s.TenantID == "" || s.ClientID == "" || s.FederatedTokenFile == "" {
			return nil, fmt.Errorf("workload_identity auth requires AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_FEDERATED_TOKEN_FILE")
		}
		cred, err = azidentity.NewWorkloadIdentityCredential(&azidentity.WorkloadIdentityCredentialOptions{
			TenantID:      s.TenantID,
			ClientID:      s.ClientID,
			TokenFilePath: s.FederatedTokenFile,
		})
	case AuthAzureCLI:
		cred, err = azidentity.NewAzureCLICredential(nil)
	case AuthAzureDeveloperCLI:
		cred, err = azidentity.NewAzureDeveloperCLICredential(nil)
	case AuthDefault:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	default:
		return nil, fmt.Errorf("unsupported AZURE_AUTH_METHOD: %s", s.AuthMethod)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure credential: %w", err)
	}
	return cred, nil
}
