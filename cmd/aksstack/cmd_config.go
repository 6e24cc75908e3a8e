package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCmdConfig() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Stack configuration commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(newCmdConfigValidate())
	return c
}

// newCmdConfigValidate resolves every configuration key, secrets included, and
// prints a summary without secret values.
func newCmdConfigValidate() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Resolve and validate the stack configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			pi := "disabled"
			if st.PodIdentitySelector != "" {
				pi = "selector=" + st.PodIdentitySelector
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stack=%s location=%s resourceGroup=%s kubernetes=%s nodes=%d domain=%s namespace=%s podIdentity=%s\n",
				st.Stack, st.Location, st.ResourceGroupName, st.KubernetesVersion, st.NodeCount, st.Domain, st.Namespace, pi)
			return nil
		},
	}
}
