package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	var fastMode bool
	var retryBudget int
	var values []string

	cmd := &cobra.Command{
		Use:   "settings <project-id>",
		Short: "Update project settings while halted at a review gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			parsed, err := parseKeyValues(values)
			if err != nil {
				return err
			}
			var fast *bool
			if cmd.Flags().Changed("fast") {
				fast = &fastMode
			}
			var budget *int
			if cmd.Flags().Changed("retry-budget") {
				budget = &retryBudget
			}
			if fast == nil && budget == nil && len(parsed) == 0 {
				return fmt.Errorf("nothing to update; pass --set, --fast, or --retry-budget")
			}
			p, err := client.UpdateSettings(cmd.Context(), args[0], fast, budget, parsed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings updated for project %s\n", p.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fastMode, "fast", false, "Enable or disable gate chaining")
	cmd.Flags().IntVar(&retryBudget, "retry-budget", 0, "Remaining automatic retry budget")
	cmd.Flags().StringArrayVar(&values, "set", nil, "Setting as key=value (repeatable)")
	return cmd
}

func newImpactCommand(ctx *commandContext) *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "impact <project-id> <target-stage>",
		Short: "Preview which stages a settings change would invalidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			report, err := client.Impact(cmd.Context(), args[0], args[1], keys)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !report.Destructive {
				fmt.Fprintln(out, "No completed work is affected.")
				return nil
			}
			fmt.Fprintf(out, "Changing %s invalidates %d stage(s): %s\n",
				report.TargetStage,
				len(report.AffectedStages),
				strings.Join(report.AffectedStages, ", "),
			)
			fmt.Fprintf(out, "Estimated regeneration cost: %s\n", formatCost(report.EstimatedCostMinor))
			if report.RestartFrom != "" {
				fmt.Fprintf(out, "Apply with: adforge restart %s %s\n", args[0], report.RestartFrom)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&keys, "key", nil, "Setting key being changed (repeatable)")
	return cmd
}
