package kube

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const maskedValue = "[secret]"

// BuildCleanManifest renders objects as a multi-document YAML string (each
// doc preceded by ---), pruning null values and empty maps. Secret data is
// masked when maskSecrets is true.
func BuildCleanManifest(objs []*unstructured.Unstructured, maskSecrets bool) (string, error) {
	var buf bytes.Buffer
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		m := obj.DeepCopy().Object
		pruneMap(m)
		if maskSecrets && obj.GetKind() == "Secret" && obj.GetAPIVersion() == "v1" {
			maskSecretData(m)
		}
		var ybuf bytes.Buffer
		enc := yaml.NewEncoder(&ybuf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return "", fmt.Errorf("encode %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
		_ = enc.Close()
		b := ybuf.Bytes()
		buf.WriteString("---\n")
		buf.Write(b)
		if len(b) == 0 || b[len(b)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

func maskSecretData(m map[string]any) {
	for _, field := range []string{"data", "stringData"} {
		if d, ok := m[field].(map[string]any); ok {
			for k := range d {
				d[k] = maskedValue
			}
		}
	}
}

// pruneMap recursively prunes nil values and empty maps from a structure (in-place), preserving empty slices.
func pruneMap(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			cleaned := pruneMap(val)
			switch cv := cleaned.(type) {
			case nil:
				delete(x, k)
			case map[string]any:
				if len(cv) == 0 {
					delete(x, k)
				} else {
					x[k] = cv
				}
			default:
				x[k] = cv
			}
		}
		return x
	case []any:
		for i, it := range x {
			x[i] = pruneMap(it)
		}
		return x
	default:
		return x
	}
}
