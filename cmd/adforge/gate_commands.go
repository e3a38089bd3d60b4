package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var gate string

	cmd := &cobra.Command{
		Use:   "approve <project-id>",
		Short: "Approve the review gate the project is waiting at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			p, err := client.Approve(cmd.Context(), args[0], gate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s moved to %s\n", p.ID, p.StageLabel)
			return nil
		},
	}

	cmd.Flags().StringVar(&gate, "gate", "", "Specific gate to approve; duplicate approvals of a passed gate are no-ops")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <project-id>",
		Short: "Retry a failed project from the stage that failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			p, err := client.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s retrying at %s\n", p.ID, p.StageLabel)
			return nil
		},
	}
}

func newRollbackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <project-id>",
		Short: "Return an in-flight stage to the review gate before it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			p, err := client.Rollback(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s rolled back to %s\n", p.ID, p.StageLabel)
			return nil
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <project-id> <stage>",
		Short: "Restart the pipeline from an earlier processing stage",
		Long: "Restart jumps the project back to the named processing stage, discarding everything " +
			"produced after it. Stale callbacks from abandoned work are ignored.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			p, err := client.Restart(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s restarted at %s\n", p.ID, p.StageLabel)
			return nil
		},
	}
}
