package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kanebernetes/aksstack/adapters/kube"
	"github.com/kanebernetes/aksstack/domain/model"
	"github.com/kanebernetes/aksstack/internal/logging"
	"github.com/kanebernetes/aksstack/usecase/stack"
	"github.com/spf13/cobra"
)

func newCmdHistory() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent operations on the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := buildStateUseCase(cmd, kube.DefaultAddonSources())
			if err != nil {
				return err
			}
			ops, err := uc.History(cmd.Context(), &stack.HistoryInput{Stack: stackName(cmd), Limit: limit})
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), ops)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of operations (0 for all)")
	return cmd
}

func printHistory(w io.Writer, ops []*model.Operation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tRESULT\tDURATION\tERROR")
	for _, op := range ops {
		result, duration := "running", "-"
		if op.FinishedAt != nil {
			result = op.Result
			duration = op.FinishedAt.Sub(op.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", op.StartedAt.Local().Format(time.DateTime), op.Kind, result, duration, logging.Truncate(op.Error, 60))
	}
	return tw.Flush()
}

func newCmdUnlock() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Release a lock left by an interrupted operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uc, err := buildStateUseCase(cmd, kube.DefaultAddonSources())
			if err != nil {
				return err
			}
			n, err := uc.Unlock(ctx, &stack.UnlockInput{Stack: stackName(cmd)})
			if err != nil {
				return err
			}
			logging.FromContext(ctx).Info(ctx, "stack unlocked", "stack", stackName(cmd), "operations", n)
			return nil
		},
	}
}
