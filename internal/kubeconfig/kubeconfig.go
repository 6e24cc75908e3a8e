// Package kubeconfig reshapes the cluster admin kubeconfig for local use.
package kubeconfig

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"sigs.k8s.io/yaml"
)

// MergeResult summarizes a merge into an existing file.
type MergeResult struct {
	Context string
	Current bool
}

// Normalize parses admin kubeconfig bytes and returns a config holding only the
// current context, with its cluster and user renamed to name when non-empty and
// its default namespace set to namespace when non-empty.
func Normalize(data []byte, name, namespace string) (*clientcmdapi.Config, error) {
	cfg, err := clientcmd.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parse kubeconfig: %w", err)
	}
	if cfg.CurrentContext == "" {
		if len(cfg.Contexts) != 1 {
			return nil, fmt.Errorf("kubeconfig has no current context")
		}
		for k := range cfg.Contexts {
			cfg.CurrentContext = k
		}
	} else if cfg.Contexts[cfg.CurrentContext] == nil {
		return nil, fmt.Errorf("context %q not found in kubeconfig", cfg.CurrentContext)
	}

	if err := clientcmdapi.MinifyConfig(cfg); err != nil {
		return nil, fmt.Errorf("minify kubeconfig: %w", err)
	}
	if err := clientcmdapi.FlattenConfig(cfg); err != nil {
		return nil, fmt.Errorf("flatten kubeconfig: %w", err)
	}

	ctxName := cfg.CurrentContext
	ctx := cfg.Contexts[ctxName]
	cluster, ok := cfg.Clusters[ctx.Cluster]
	if !ok {
		return nil, fmt.Errorf("referenced cluster %q not found", ctx.Cluster)
	}
	user, ok := cfg.AuthInfos[ctx.AuthInfo]
	if !ok {
		return nil, fmt.Errorf("referenced user %q not found", ctx.AuthInfo)
	}
	if namespace != "" {
		ctx.Namespace = namespace
	}
	if name == "" {
		return cfg, nil
	}

	out := clientcmdapi.NewConfig()
	ctx.Cluster = name
	ctx.AuthInfo = name
	out.Clusters[name] = cluster
	out.AuthInfos[name] = user
	out.Contexts[name] = ctx
	out.CurrentContext = name
	return out, nil
}

// Merge merges cfg into the kubeconfig file at path (missing file means empty)
// and returns the merged config. Without force, clashing names get a -1, -2...
// suffix; with force they are replaced. The new context becomes current when
// setCurrent is true or the file has no current context.
func Merge(cfg *clientcmdapi.Config, path string, force, setCurrent bool) (*clientcmdapi.Config, MergeResult, error) {
	if cfg == nil || cfg.CurrentContext == "" {
		return nil, MergeResult{}, fmt.Errorf("input kubeconfig has no current context")
	}
	src := cfg.Contexts[cfg.CurrentContext]
	if src == nil {
		return nil, MergeResult{}, fmt.Errorf("current context %q not found in kubeconfig", cfg.CurrentContext)
	}
	cluster, ok := cfg.Clusters[src.Cluster]
	if !ok {
		return nil, MergeResult{}, fmt.Errorf("referenced cluster %q not found", src.Cluster)
	}
	user, ok := cfg.AuthInfos[src.AuthInfo]
	if !ok {
		return nil, MergeResult{}, fmt.Errorf("referenced user %q not found", src.AuthInfo)
	}

	dst, err := clientcmd.LoadFromFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		dst = clientcmdapi.NewConfig()
	default:
		return nil, MergeResult{}, fmt.Errorf("load kubeconfig %s: %w", path, err)
	}

	ctxName, clusterName, userName := cfg.CurrentContext, src.Cluster, src.AuthInfo
	if force {
		delete(dst.Contexts, ctxName)
		delete(dst.Clusters, clusterName)
		delete(dst.AuthInfos, userName)
	} else {
		ctxName = uniqueName(ctxName, dst.Contexts)
		clusterName = uniqueName(clusterName, dst.Clusters)
		userName = uniqueName(userName, dst.AuthInfos)
	}

	dst.Clusters[clusterName] = cluster.DeepCopy()
	dst.AuthInfos[userName] = user.DeepCopy()
	ctx := src.DeepCopy()
	ctx.Cluster = clusterName
	ctx.AuthInfo = userName
	dst.Contexts[ctxName] = ctx

	res := MergeResult{Context: ctxName}
	if setCurrent || dst.CurrentContext == "" {
		dst.CurrentContext = ctxName
		res.Current = true
	}
	return dst, res, nil
}

// WriteFile writes cfg to path with owner-only permissions.
func WriteFile(cfg *clientcmdapi.Config, path string) error {
	return clientcmd.WriteToFile(*cfg, path)
}

// Print prints cfg to writer in yaml or json.
func Print(w io.Writer, cfg *clientcmdapi.Config, format string) error {
	data, err := clientcmd.Write(*cfg)
	if err != nil {
		return fmt.Errorf("serialize kubeconfig: %w", err)
	}
	if format == "json" {
		j, err := yaml.YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("convert to json: %w", err)
		}
		data = j
	}
	_, err = w.Write(data)
	return err
}

func uniqueName[T any](name string, m map[string]T) string {
	if _, ok := m[name]; !ok {
		return name
	}
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s-%d", name, i)
		if _, ok := m[cand]; !ok {
			return cand
		}
	}
}
