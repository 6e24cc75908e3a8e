package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
)

func newCmdPreview() *cobra.Command {
	var offline bool
	sources := kube.DefaultAddonSources()
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what up would change",
		Long: "Runs an Azure what-if of the deployment and prints the in-cluster manifests.\n" +
			"With --offline the deployment document is rendered locally instead. Secrets are masked.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "preview", stackName(cmd))
			defer func() { cleanup(err) }()

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			build := buildStackUseCase
			if offline {
				build = buildStateUseCase
			}
			uc, err := build(cmd, sources)
			if err != nil {
				return err
			}
			out, err := uc.Preview(ctx, &stack.PreviewInput{Settings: settings, Offline: offline})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if offline {
				fmt.Fprintf(w, "%s\n", out.Template)
			} else if err := printChanges(w, out.Changes); err != nil {
				return err
			}
			fmt.Fprintf(w, "---\n%s", out.Manifests)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Render locally without contacting Azure")
	addAddonFlags(cmd.Flags(), &sources)
	return cmd
}

func printChanges(w io.Writer, changes []model.Change) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANGE\tRESOURCE")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\n", c.ChangeType, c.ResourceID)
		if c.Detail != "" {
			fmt.Fprintf(tw, "\t  %s\n", c.Detail)
		}
	}
	return tw.Flush()
}
