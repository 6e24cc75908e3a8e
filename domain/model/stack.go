package model

import (
	"encoding/json"
	"log/slog"
)

// StackSettings is the resolved configuration of one stack instance.
type StackSettings struct {
	Project string // config key prefix, e.g. "aksstack"
	Stack   string // stack name, e.g. "dev"

	Location          string
	ResourceGroupName string
	Tags              Tags

	KubernetesVersion string
	NodeCount         int

	SQLUsername Secret
	SQLPassword Secret

	Domain              string
	Namespace           string
	AcmeEmail           string
	PodIdentitySelector string // optional; enables AzureIdentity + AzureIdentityBinding
}

// Tags are the Azure tags stamped on every resource of the stack.
type Tags struct {
	Environment string
	Owner       string
	CreatedBy   string
}

// Map returns the ARM tag object.
func (t Tags) Map() map[string]string {
	return map[string]string{
		"environment": t.Environment,
		"owner":       t.Owner,
		"createdby":   t.CreatedBy,
	}
}

const redacted = "[secret]"

// Secret holds a sensitive string. It never prints or marshals its value.
type Secret struct {
	value string
}

// NewSecret wraps v.
func NewSecret(v string) Secret { return Secret{value: v} }

// Reveal returns the plaintext value.
func (s Secret) Reveal() string { return s.value }

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool { return s.value == "" }

func (s Secret) String() string       { return redacted }
func (s Secret) GoString() string     { return redacted }
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }
