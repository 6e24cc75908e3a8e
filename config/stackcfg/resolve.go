package stackcfg

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/kanebernetes/aksstack/domain/model"
	"k8s.io/apimachinery/pkg/util/validation"
)

const maxNodeCount = 100

var kubernetesVersionRE = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// lookup finds a key, preferring the project-prefixed form.
func (f *File) lookup(key string) (Value, bool) {
	if v, ok := f.Config[f.project+":"+key]; ok {
		return v, true
	}
	v, ok := f.Config[key]
	return v, ok
}

// Get returns a plain value and whether it is set.
func (f *File) Get(key string) (string, bool) {
	v, ok := f.lookup(key)
	if !ok || v.IsSecure() {
		return "", false
	}
	s := strings.TrimSpace(v.Plain)
	return s, s != ""
}

// Require returns a plain value or an error naming the key.
func (f *File) Require(key string) (string, error) {
	v, ok := f.lookup(key)
	if !ok {
		return "", fmt.Errorf("missing required configuration variable %q", key)
	}
	if v.IsSecure() {
		return "", fmt.Errorf("configuration variable %q is secure; it cannot be read as plain text", key)
	}
	s := strings.TrimSpace(v.Plain)
	if s == "" {
		return "", fmt.Errorf("configuration variable %q is empty", key)
	}
	return s, nil
}

// RequireInt returns an integer value or an error naming the key.
func (f *File) RequireInt(key string) (int, error) {
	s, err := f.Require(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("configuration variable %q is not an integer: %q", key, s)
	}
	return n, nil
}

// RequireSecret resolves a secure value. Plain values are rejected.
func (f *File) RequireSecret(key string) (model.Secret, error) {
	v, ok := f.lookup(key)
	if !ok {
		return model.Secret{}, fmt.Errorf("missing required configuration variable %q", key)
	}
	if !v.IsSecure() {
		return model.Secret{}, fmt.Errorf("configuration variable %q must be declared with secure:", key)
	}
	s, err := f.resolveRef(v.Secure)
	if err != nil {
		return model.Secret{}, fmt.Errorf("configuration variable %q: %w", key, err)
	}
	if s == "" {
		return model.Secret{}, fmt.Errorf("configuration variable %q resolved to an empty value", key)
	}
	return model.NewSecret(s), nil
}

func (f *File) resolveRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		v, ok := f.lookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	case strings.HasPrefix(ref, "file:"):
		b, err := f.readFile(strings.TrimPrefix(ref, "file:"))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return ref, nil
	}
}

// Settings resolves and validates the whole stack configuration. All problems are
// reported together, each naming its key.
func (f *File) Settings(stack string) (*model.StackSettings, error) {
	var errs []error
	unresolved := map[string]bool{}
	str := func(key string) string {
		s, err := f.Require(key)
		if err != nil {
			errs = append(errs, err)
			unresolved[key] = true
		}
		return s
	}
	secret := func(key string) model.Secret {
		s, err := f.RequireSecret(key)
		if err != nil {
			errs = append(errs, err)
			unresolved[key] = true
		}
		return s
	}

	st := &model.StackSettings{
		Project:  f.project,
		Stack:    stack,
		Location: str(KeyAzureLocation),
		Tags: model.Tags{
			Environment: str(KeyTagsEnvironment),
			Owner:       str(KeyTagsOwner),
			CreatedBy:   str(KeyTagsCreatedBy),
		},
		KubernetesVersion: str(KeyKubernetesVersion),
		SQLUsername:       secret(KeySQLServerUsername),
		SQLPassword:       secret(KeySQLServerPassword),
		Domain:            str(KeyDomain),
		Namespace:         str(KeyKubernetesNamespace),
		AcmeEmail:         str(KeyCertManagerAcmeEmail),
		ResourceGroupName: model.DefaultResourceGroupName,
	}
	if n, err := f.RequireInt(KeyKubernetesNodeCount); err != nil {
		errs = append(errs, err)
		unresolved[KeyKubernetesNodeCount] = true
	} else {
		st.NodeCount = n
	}
	if v, ok := f.Get(KeyResourceGroupName); ok {
		st.ResourceGroupName = v
	}
	if v, ok := f.Get(KeyPodIdentitySelector); ok {
		st.PodIdentitySelector = v
	}

	// Only validate values that resolved.
	errs = append(errs, validate(st, unresolved)...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", model.ErrConfigInvalid, errors.Join(errs...))
	}
	return st, nil
}

// Validate checks value formats of resolved settings.
func Validate(st *model.StackSettings) []error {
	return validate(st, nil)
}

// validate checks every key not listed in skip.
func validate(st *model.StackSettings, skip map[string]bool) []error {
	var errs []error
	if !skip[KeyKubernetesVersion] && !kubernetesVersionRE.MatchString(st.KubernetesVersion) {
		errs = append(errs, fmt.Errorf("%s: %q is not MAJOR.MINOR[.PATCH]", KeyKubernetesVersion, st.KubernetesVersion))
	}
	if !skip[KeyKubernetesNodeCount] && (st.NodeCount < 1 || st.NodeCount > maxNodeCount) {
		errs = append(errs, fmt.Errorf("%s: %d out of range 1..%d", KeyKubernetesNodeCount, st.NodeCount, maxNodeCount))
	}
	if msgs := validation.IsDNS1123Subdomain(st.Domain); !skip[KeyDomain] && len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("%s: %q: %s", KeyDomain, st.Domain, strings.Join(msgs, "; ")))
	}
	if msgs := validation.IsDNS1123Label(st.Namespace); !skip[KeyKubernetesNamespace] && len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("%s: %q: %s", KeyKubernetesNamespace, st.Namespace, strings.Join(msgs, "; ")))
	}
	if addr, err := mail.ParseAddress(st.AcmeEmail); !skip[KeyCertManagerAcmeEmail] && (err != nil || addr.Address != st.AcmeEmail) {
		errs = append(errs, fmt.Errorf("%s: %q is not a bare e-mail address", KeyCertManagerAcmeEmail, st.AcmeEmail))
	}
	if st.PodIdentitySelector != "" {
		if msgs := validation.IsValidLabelValue(st.PodIdentitySelector); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("%s: %q: %s", KeyPodIdentitySelector, st.PodIdentitySelector, strings.Join(msgs, "; ")))
		}
	}
	return errs
}
