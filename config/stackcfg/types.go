// Package stackcfg defines the stack configuration file (aksstack.<stack>.yaml) and
// resolves it into model.StackSettings.
//
// The file holds a single "config" mapping. Keys may carry the project prefix
// ("aksstack:azure-location") or not ("azure-location"); the prefixed form wins.
// Secret keys must be declared as {secure: <ref>} where ref is "env:NAME",
// "file:PATH", or a literal value.
package stackcfg

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultProject is the key prefix used when none is configured.
const DefaultProject = "aksstack"

// Configuration keys.
const (
	KeyAzureLocation        = "azure-location"
	KeyTagsEnvironment      = "azure-tags-environment"
	KeyTagsOwner            = "azure-tags-owner"
	KeyTagsCreatedBy        = "azure-tags-createdby"
	KeyKubernetesVersion    = "kubernetes-version"
	KeyKubernetesNodeCount  = "kubernetes-scaling-nodecount"
	KeySQLServerUsername    = "azure-sqlserver-username"
	KeySQLServerPassword    = "azure-sqlserver-password"
	KeyDomain               = "domain"
	KeyKubernetesNamespace  = "kubernetes-namespace"
	KeyCertManagerAcmeEmail = "certmanager-acme-email"

	KeyResourceGroupName   = "azure-resource-group-name"
	KeyPodIdentitySelector = "kubernetes-podidentity-selector"
)

// RequiredKeys lists every key a stack must define.
var RequiredKeys = []string{
	KeyAzureLocation,
	KeyTagsEnvironment,
	KeyTagsOwner,
	KeyTagsCreatedBy,
	KeyKubernetesVersion,
	KeyKubernetesNodeCount,
	KeySQLServerUsername,
	KeySQLServerPassword,
	KeyDomain,
	KeyKubernetesNamespace,
	KeyCertManagerAcmeEmail,
}

// File is the root of a stack configuration file.
type File struct {
	Config map[string]Value `yaml:"config"`

	project   string
	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

// Value is a plain scalar or a {secure: ref} mapping.
type Value struct {
	Plain  string
	Secure string
	secure bool
}

// IsSecure reports whether the value was declared with "secure:".
func (v Value) IsSecure() bool { return v.secure }

// UnmarshalYAML accepts a scalar or a mapping with a single "secure" key.
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		v.Plain = n.Value
		return nil
	case yaml.MappingNode:
		var m struct {
			Secure *string `yaml:"secure"`
		}
		if err := n.Decode(&m); err != nil {
			return err
		}
		if m.Secure == nil {
			return fmt.Errorf("line %d: mapping value must have a \"secure\" key", n.Line)
		}
		v.Secure = *m.Secure
		v.secure = true
		return nil
	default:
		return fmt.Errorf("line %d: config value must be a scalar or {secure: ...}", n.Line)
	}
}
