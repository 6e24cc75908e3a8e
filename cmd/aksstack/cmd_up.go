package main

import (
	"fmt"

	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/internal/terminal"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
)

func newCmdUp() *cobra.Command {
	var skipCluster, yes bool
	sources := kube.DefaultAddonSources()
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or update the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "up", stackName(cmd))
			defer func() { cleanup(err) }()

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := terminal.ConfirmStdin(fmt.Sprintf("Deploy stack %q to resource group %q?", settings.Stack, settings.ResourceGroupName), yes); err != nil {
				return err
			}
			uc, err := buildStackUseCase(cmd, sources)
			if err != nil {
				return err
			}
			out, err := uc.Up(ctx, &stack.UpInput{Settings: settings, SkipCluster: skipCluster})
			if err != nil {
				return err
			}
			return printOutputs(cmd.OutOrStdout(), out.Outputs, "text")
		},
	}
	cmd.Flags().BoolVar(&skipCluster, "skip-cluster", false, "Deploy Azure resources only; skip in-cluster add-ons")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not prompt for confirmation")
	addAddonFlags(cmd.Flags(), &sources)
	return cmd
}
