package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kanebernetes/aksstack/adapters/azure"
	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newCmdOutputs() *cobra.Command {
	var refresh bool
	var format string
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the stack outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			build := buildStateUseCase
			if refresh {
				build = buildStackUseCase
			}
			uc, err := build(cmd, kube.DefaultAddonSources())
			if err != nil {
				return err
			}
			out, err := uc.Outputs(ctx, &stack.OutputsInput{Settings: settings, Refresh: refresh})
			if errors.Is(err, azure.ErrOffline) {
				return fmt.Errorf("no outputs stored for stack %s; use --refresh", settings.Stack)
			}
			if err != nil {
				return err
			}
			return printOutputs(cmd.OutOrStdout(), out, format)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Read outputs from the deployment stack instead of local state")
	cmd.Flags().StringVarP(&format, "output", "o", "text", "Output format (text|json|yaml)")
	return cmd
}

func printOutputs(w io.Writer, out *model.Outputs, format string) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case "yaml":
		b, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "", "text":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, row := range [][2]string{
			{"tenantId", out.TenantID},
			{"resourceGroupName", out.ResourceGroupName},
			{"clusterName", out.ClusterName},
			{"clusterId", out.ClusterID},
			{"subnetId", out.SubnetID},
			{"registryId", out.RegistryID},
			{"registryLoginServer", out.RegistryLoginServer},
			{"workspaceId", out.WorkspaceID},
			{"clientId", out.ClientID},
		} {
			fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
