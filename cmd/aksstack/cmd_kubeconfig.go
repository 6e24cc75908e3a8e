package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/internal/kubeconfig"
	"github.com/kanebernetes/aksstack/internal/logging"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
	"k8s.io/client-go/tools/clientcmd"
)

func newCmdKubeconfig() *cobra.Command {
	var (
		outPath    string
		format     string
		merge      bool
		contextNm  string
		force      bool
		setCurrent bool
	)
	cmd := &cobra.Command{
		Use:   "kubeconfig",
		Short: "Fetch the cluster admin kubeconfig",
		Long: "Prints the admin kubeconfig of the stack's cluster, writes it to --out,\n" +
			"or merges it into the user's kubeconfig with --merge.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			uc, err := buildStackUseCase(cmd, kube.DefaultAddonSources())
			if err != nil {
				return err
			}
			raw, err := uc.Kubeconfig(ctx, &stack.KubeconfigInput{Settings: settings})
			if err != nil {
				return err
			}
			if contextNm == "" {
				contextNm = settings.Project + "-" + settings.Stack
			}
			cfg, err := kubeconfig.Normalize(raw, contextNm, settings.Namespace)
			if err != nil {
				return err
			}

			switch {
			case merge:
				path := outPath
				if path == "" {
					path = clientcmd.RecommendedHomeFile
				}
				merged, res, err := kubeconfig.Merge(cfg, path, force, setCurrent)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
					return err
				}
				if err := kubeconfig.WriteFile(merged, path); err != nil {
					return err
				}
				logging.FromContext(ctx).Info(ctx, "kubeconfig merged", "path", path, "context", res.Context, "current", res.Current)
				return nil
			case outPath != "":
				if err := kubeconfig.WriteFile(cfg, outPath); err != nil {
					return err
				}
				logging.FromContext(ctx).Info(ctx, "kubeconfig written", "path", outPath, "context", cfg.CurrentContext)
				return nil
			default:
				if format != "yaml" && format != "json" {
					return fmt.Errorf("unsupported format: %s", format)
				}
				return kubeconfig.Print(cmd.OutOrStdout(), cfg, format)
			}
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to this file (with --merge: file to merge into, default ~/.kube/config)")
	cmd.Flags().StringVar(&format, "format", "yaml", "Stdout format (yaml|json)")
	cmd.Flags().BoolVar(&merge, "merge", false, "Merge into an existing kubeconfig")
	cmd.Flags().StringVar(&contextNm, "context", "", "Context name (default <project>-<stack>)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace entries with the same names when merging")
	cmd.Flags().BoolVar(&setCurrent, "set-current", false, "Make the merged context current")
	return cmd
}
