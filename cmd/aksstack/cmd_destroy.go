package main

import (
	"fmt"

	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/internal/terminal"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
)

func newCmdDestroy() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the stack, its Azure resources and AD application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "destroy", stackName(cmd))
			defer func() { cleanup(err) }()

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := terminal.ConfirmStdin(fmt.Sprintf("Destroy stack %q and delete resource group %q?", settings.Stack, settings.ResourceGroupName), yes); err != nil {
				return err
			}
			uc, err := buildStackUseCase(cmd, kube.DefaultAddonSources())
			if err != nil {
				return err
			}
			return uc.Destroy(ctx, &stack.DestroyInput{Settings: settings})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not prompt for confirmation")
	return cmd
}
