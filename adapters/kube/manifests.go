package kube

import (
	"fmt"

	"github.com/kanebernetes/aksstack/domain/model"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

const (
	certManagerAPIVersion = "cert-manager.io/v1"
	podIdentityAPIVersion = "aadpodidentity.k8s.io/v1"

	// podIdentityTypeServicePrincipal selects service principal credentials
	// in an AzureIdentity.
	podIdentityTypeServicePrincipal = 1

	podIdentityClientSecretKey = "clientSecret"
	sqlUsernameKey             = "username"
	sqlPasswordKey             = "password"

	labelManagedBy = "app.kubernetes.io/managed-by"
)

func newObject(apiVersion, kind, namespace, name string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{Object: map[string]any{}}
	u.SetAPIVersion(apiVersion)
	u.SetKind(kind)
	u.SetName(name)
	if namespace != "" {
		u.SetNamespace(namespace)
	}
	u.SetLabels(map[string]string{labelManagedBy: FieldManager})
	return u
}

func objectMeta(namespace, name string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: map[string]string{labelManagedBy: FieldManager}}
}

// fromTyped converts a built-in object for apply, dropping the empty status and
// creation timestamp the converter emits.
func fromTyped(obj runtime.Object) *unstructured.Unstructured {
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		panic(fmt.Sprintf("convert %T: %v", obj, err))
	}
	u := &unstructured.Unstructured{Object: m}
	unstructured.RemoveNestedField(u.Object, "status")
	unstructured.RemoveNestedField(u.Object, "metadata", "creationTimestamp")
	if spec, ok := u.Object["spec"].(map[string]any); ok && len(spec) == 0 {
		delete(u.Object, "spec")
	}
	return u
}

// NamespaceObject returns the application namespace.
func NamespaceObject(name string) *unstructured.Unstructured {
	return fromTyped(&corev1.Namespace{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: objectMeta("", name),
	})
}

// ClusterIssuerObject returns the Let's Encrypt production ACME issuer solving
// HTTP-01 challenges through the nginx ingress class.
func ClusterIssuerObject(email string) *unstructured.Unstructured {
	u := newObject(certManagerAPIVersion, "ClusterIssuer", "", model.ClusterIssuerName)
	u.Object["spec"] = map[string]any{
		"acme": map[string]any{
			"server":              model.AcmeServerURL,
			"email":               email,
			"privateKeySecretRef": map[string]any{"name": model.ClusterIssuerSecretName},
			"solvers": []any{
				map[string]any{
					"http01": map[string]any{
						"ingress": map[string]any{"ingressClassName": model.IngressClassName},
					},
				},
			},
		},
	}
	return u
}

// CertificateObject returns the TLS certificate of the domain in namespace.
func CertificateObject(namespace, domain string) *unstructured.Unstructured {
	u := newObject(certManagerAPIVersion, "Certificate", namespace, model.CertificateName)
	u.Object["spec"] = map[string]any{
		"secretName": model.CertificateSecretName,
		"dnsNames":   []any{domain},
		"issuerRef": map[string]any{
			"name": model.ClusterIssuerName,
			"kind": "ClusterIssuer",
		},
	}
	return u
}

func secretObject(namespace, name string, data map[string]string) *unstructured.Unstructured {
	raw := make(map[string][]byte, len(data))
	for k, v := range data {
		raw[k] = []byte(v)
	}
	return fromTyped(&corev1.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: objectMeta(namespace, name),
		Type:       corev1.SecretTypeOpaque,
		Data:       raw,
	})
}

// SQLCredentialsSecret returns the secret exposing the SQL server login to workloads.
func SQLCredentialsSecret(namespace string, username, password model.Secret) *unstructured.Unstructured {
	return secretObject(namespace, model.SQLCredentialsSecret, map[string]string{
		sqlUsernameKey: username.Reveal(),
		sqlPasswordKey: password.Reveal(),
	})
}

// PodIdentityObjects returns the AzureIdentity, its binding and the secret
// holding the service principal password.
func PodIdentityObjects(namespace, selector, tenantID, clientID string, clientSecret model.Secret) []*unstructured.Unstructured {
	secret := secretObject(namespace, model.PodIdentitySecretName, map[string]string{
		podIdentityClientSecretKey: clientSecret.Reveal(),
	})

	identity := newObject(podIdentityAPIVersion, "AzureIdentity", namespace, model.PodIdentityName)
	identity.Object["spec"] = map[string]any{
		"type":     int64(podIdentityTypeServicePrincipal),
		"tenantID": tenantID,
		"clientID": clientID,
		"clientPassword": map[string]any{
			"name":      model.PodIdentitySecretName,
			"namespace": namespace,
			"key":       podIdentityClientSecretKey,
		},
	}

	binding := newObject(podIdentityAPIVersion, "AzureIdentityBinding", namespace, model.PodIdentityName+"-binding")
	binding.Object["spec"] = map[string]any{
		"azureIdentity": model.PodIdentityName,
		"selector":      selector,
	}
	return []*unstructured.Unstructured{secret, identity, binding}
}

// StackObjects returns the stack's own objects in apply order: namespace,
// issuer, certificate, SQL secret, then the optional pod identity.
func StackObjects(spec *model.ClusterSpec) []*unstructured.Unstructured {
	st := spec.Settings
	objs := []*unstructured.Unstructured{
		NamespaceObject(st.Namespace),
		ClusterIssuerObject(st.AcmeEmail),
		CertificateObject(st.Namespace, st.Domain),
		SQLCredentialsSecret(st.Namespace, st.SQLUsername, st.SQLPassword),
	}
	if st.PodIdentitySelector != "" {
		objs = append(objs, PodIdentityObjects(st.Namespace, st.PodIdentitySelector, spec.TenantID, spec.ClientID, spec.ClientSecret)...)
	}
	return objs
}
