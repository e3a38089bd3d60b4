package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline-wide project counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Processing", strconv.Itoa(status["processing"])},
				{"Awaiting review", strconv.Itoa(status["at_gate"])},
				{"Failed", strconv.Itoa(status["failed"])},
				{"Completed", strconv.Itoa(status["completed"])},
				{"Total", strconv.Itoa(status["total"])},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"State", "Projects"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
