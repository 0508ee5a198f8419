package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediaflow/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check binaries, directories, storage and AI providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, nil)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Check"},
				{Header: "Result"},
				{Header: "Detail", MaxWidth: 60},
			}, preflightRows(results)))
			if preflight.Failed(results) {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}
}

func preflightRows(results []preflight.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		label := "OK"
		switch {
		case r.Passed:
		case r.Optional:
			label = "WARN"
		default:
			label = "FAIL"
		}
		rows = append(rows, []string{r.Name, label, r.Detail})
	}
	return rows
}
