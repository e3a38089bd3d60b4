package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"adforge/internal/api"
	"adforge/internal/logging"
	"adforge/internal/watch"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <project-id>",
		Short: "Show generation progress for the active stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			snap, err := client.Progress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatProgress(snap))
			return nil
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <project-id>",
		Short: "Poll a project until it reaches a review gate or finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			watcher := watch.FromConfig(cfg, client, args[0], logging.NewNop())
			out := cmd.OutOrStdout()
			interactive := isTerminal()

			var last *api.ProjectSnapshot
			for update := range watcher.Start(cmd.Context()) {
				switch {
				case update.Err != nil && update.Degraded:
					fmt.Fprintf(out, "daemon unreachable, retrying: %v\n", update.Err)
				case update.Err != nil:
					// transient miss, the next poll usually recovers
				default:
					last = update.Project
					line := formatUpdate(update)
					if interactive {
						fmt.Fprintf(out, "\r\033[K%s", line)
					} else {
						fmt.Fprintln(out, line)
					}
				}
			}
			if interactive {
				fmt.Fprintln(out)
			}
			if last != nil {
				fmt.Fprintf(out, "Project %s settled at %s\n", last.ID, last.StageLabel)
			}
			return cmd.Context().Err()
		},
	}
}

func formatUpdate(update watch.Update) string {
	p := update.Project
	if update.Progress == nil {
		return fmt.Sprintf("%s [%s]", p.Title, p.StageLabel)
	}
	return fmt.Sprintf("%s %s", p.Title, formatProgress(update.Progress))
}

func formatProgress(snap *api.ProgressSnapshot) string {
	if snap.Total == 0 {
		return fmt.Sprintf("[%s] %s", snap.Stage, snap.CurrentStep)
	}
	base := fmt.Sprintf("[%s] %d/%d units (%.0f%%)", snap.Stage, snap.Completed, snap.Total, snap.Percent)
	extras := make([]string, 0, 2)
	if snap.Generating > 0 {
		extras = append(extras, fmt.Sprintf("%d generating", snap.Generating))
	}
	if snap.Failed > 0 {
		extras = append(extras, fmt.Sprintf("%d failed", snap.Failed))
	}
	if len(extras) > 0 {
		base += " (" + strings.Join(extras, ", ") + ")"
	}
	return base
}

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
