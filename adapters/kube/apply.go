package kube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kanebernetes/aksstack/internal/logging"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
)

// FieldManager is the server-side apply field manager of this tool.
const FieldManager = "aksstack"

// ApplyOptions configures server-side apply operations.
type ApplyOptions struct {
	// DefaultNamespace is used when a namespaced resource omits metadata.namespace.
	DefaultNamespace string
	// FieldManager defaults to FieldManager.
	FieldManager string
	// ForceConflicts takes ownership of fields held by other managers.
	ForceConflicts bool
	// Backoff bounds the retries while a kind is not yet served or a webhook
	// is not yet reachable. Zero value uses defaultBackoff.
	Backoff wait.Backoff
}

var defaultBackoff = wait.Backoff{Duration: 2 * time.Second, Factor: 1.5, Jitter: 0.1, Steps: 10, Cap: 30 * time.Second}

func (o *ApplyOptions) defaults() {
	if o.FieldManager == "" {
		o.FieldManager = FieldManager
	}
	if o.Backoff.Steps == 0 {
		o.Backoff = defaultBackoff
	}
}

// DecodeManifests splits a multi-document YAML or JSON stream into objects.
// Empty documents and documents without kind are skipped.
func DecodeManifests(data []byte) ([]*unstructured.Unstructured, error) {
	dec := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)
	var out []*unstructured.Unstructured
	for {
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		u := &unstructured.Unstructured{Object: raw}
		if u.GetKind() == "" || u.GetAPIVersion() == "" {
			continue
		}
		if u.IsList() {
			if err := u.EachListItem(func(o runtime.Object) error {
				if item, ok := o.(*unstructured.Unstructured); ok {
					out = append(out, item)
				}
				return nil
			}); err != nil {
				return nil, fmt.Errorf("expand list: %w", err)
			}
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// ApplyYAML server-side applies every object of a multi-document stream in order.
func (c *Client) ApplyYAML(ctx context.Context, data []byte, opts *ApplyOptions) error {
	objs, err := DecodeManifests(data)
	if err != nil {
		return err
	}
	return c.ApplyObjects(ctx, objs, opts)
}

// ApplyObjects server-side applies objects in order.
func (c *Client) ApplyObjects(ctx context.Context, objs []*unstructured.Unstructured, opts *ApplyOptions) (err error) {
	if c == nil || c.Dynamic == nil || c.Mapper == nil {
		return fmt.Errorf("kube client is not initialized")
	}
	if opts == nil {
		opts = &ApplyOptions{}
	}
	opts.defaults()

	logger := logging.FromContext(ctx)
	msgSym := "KubeClient:ApplyObjects"
	logger.Info(ctx, msgSym+"/s", "count", len(objs))
	count := 0
	defer func() {
		if err == nil {
			logger.Info(ctx, msgSym+"/eok", "applied", count)
		} else {
			logger.Info(ctx, msgSym+"/efail", "applied", count, "err", err)
		}
	}()

	for _, u := range objs {
		if u == nil {
			continue
		}
		if err := c.applyOne(ctx, u, opts); err != nil {
			return err
		}
		count++
	}
	return nil
}

func (c *Client) applyOne(ctx context.Context, u *unstructured.Unstructured, opts *ApplyOptions) error {
	gvk := schema.FromAPIVersionAndKind(u.GetAPIVersion(), u.GetKind())
	if u.GetName() == "" {
		return fmt.Errorf("object %s missing metadata.name", gvk.String())
	}

	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, opts.Backoff, func(ctx context.Context) (bool, error) {
		mapping, err := c.Mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		if err != nil {
			if meta.IsNoMatchError(err) {
				lastErr = err
				c.Mapper.Reset()
				return false, nil
			}
			return false, fmt.Errorf("rest mapping %s: %w", gvk.String(), err)
		}
		obj := u.DeepCopy()
		if mapping.Scope.Name() == meta.RESTScopeNameNamespace && obj.GetNamespace() == "" {
			ns := opts.DefaultNamespace
			if ns == "" {
				ns = "default"
			}
			obj.SetNamespace(ns)
		}
		body, err := json.Marshal(obj.Object)
		if err != nil {
			return false, fmt.Errorf("marshal %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
		ri := resourceInterfaceFor(c.Dynamic, mapping.Resource, mapping.Scope.Name(), obj.GetNamespace())
		force := opts.ForceConflicts
		_, err = ri.Patch(ctx, obj.GetName(), types.ApplyPatchType, body, metav1.PatchOptions{FieldManager: opts.FieldManager, Force: &force})
		if err != nil {
			if retriableApplyError(err) {
				lastErr = err
				return false, nil
			}
			return false, fmt.Errorf("apply %s %s: %w", obj.GetKind(), obj.GetName(), err)
		}
		logging.FromContext(ctx).Debug(ctx, "KubeClient:Apply/eok", "kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())
		return true, nil
	})
	if err != nil && lastErr != nil && wait.Interrupted(err) {
		return fmt.Errorf("apply %s %s: %w", u.GetKind(), u.GetName(), lastErr)
	}
	return err
}

// retriableApplyError reports errors expected while freshly installed
// controllers and admission webhooks come up.
func retriableApplyError(err error) bool {
	return apierrors.IsInternalError(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		meta.IsNoMatchError(err) ||
		apierrors.IsNotFound(err)
}

func resourceInterfaceFor(dy dynamic.Interface, gvr schema.GroupVersionResource, scope meta.RESTScopeName, namespace string) dynamic.ResourceInterface {
	if scope != meta.RESTScopeNameNamespace {
		return dy.Resource(gvr)
	}
	return dy.Resource(gvr).Namespace(namespace)
}
