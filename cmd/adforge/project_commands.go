package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"adforge/internal/api"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, list, inspect, and delete projects",
	}
	cmd.AddCommand(newProjectCreateCommand(ctx))
	cmd.AddCommand(newProjectListCommand(ctx))
	cmd.AddCommand(newProjectShowCommand(ctx))
	cmd.AddCommand(newProjectDeleteCommand(ctx))
	return cmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var fastMode bool
	var retryBudget int
	var settings []string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new project at the intake gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			values, err := parseKeyValues(settings)
			if err != nil {
				return err
			}
			var budget *int
			if cmd.Flags().Changed("retry-budget") {
				budget = &retryBudget
			}
			p, err := client.CreateProject(cmd.Context(), args[0], fastMode, budget, values)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.ID, p.StageLabel)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fastMode, "fast", false, "Chain review gate approvals automatically")
	cmd.Flags().IntVar(&retryBudget, "retry-budget", 0, "Automatic retry budget for generation stages")
	cmd.Flags().StringArrayVar(&settings, "set", nil, "Initial setting as key=value (repeatable)")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, optionally filtered by stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var stages []string
			if stageFilter != "" {
				stages = strings.Split(stageFilter, ",")
			}
			projects, err := client.ListProjects(cmd.Context(), stages...)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{
					p.ID,
					p.Title,
					p.StageLabel,
					formatCost(p.CostMinor),
					strconv.Itoa(p.RetryBudget),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Stage", "Cost", "Retries Left"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Comma-separated stage filter")
	return cmd
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's full state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			p, err := client.Project(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProject(cmd, p)
			return nil
		},
	}
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its generation units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := client.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	}
}

func printProject(cmd *cobra.Command, p *api.ProjectSnapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project %s\n", p.ID)
	fmt.Fprintf(out, "  Title:        %s\n", p.Title)
	fmt.Fprintf(out, "  Stage:        %s\n", p.StageLabel)
	if p.FailedAtStage != "" {
		fmt.Fprintf(out, "  Failed at:    %s\n", p.FailedAtStage)
	}
	if p.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:        %s\n", p.ErrorMessage)
	}
	fmt.Fprintf(out, "  Cost:         %s\n", formatCost(p.CostMinor))
	fmt.Fprintf(out, "  Retry budget: %d\n", p.RetryBudget)
	fmt.Fprintf(out, "  Fast mode:    %t\n", p.FastMode)
	fmt.Fprintf(out, "  Epoch:        %d\n", p.GenerationEpoch)
	if len(p.Settings) > 0 {
		keys := make([]string, 0, len(p.Settings))
		for k := range p.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "  Settings:")
		for _, k := range keys {
			fmt.Fprintf(out, "    %s = %s\n", k, p.Settings[k])
		}
	}
	fmt.Fprintf(out, "  Created:      %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Updated:      %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
}

func formatCost(minor int64) string {
	return fmt.Sprintf("$%d.%02d", minor/100, minor%100)
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", pair)
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values, nil
}
