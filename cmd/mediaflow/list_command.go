package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				list, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return fmt.Errorf("list jobs: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, job := range list {
					progress, err := store.Progress(cmd.Context(), job.ID)
					if err != nil {
						return fmt.Errorf("load progress for %s: %w", job.ID, err)
					}
					rows = append(rows, []string{
						job.ID,
						job.OriginalFilename,
						job.OwnerID,
						string(job.Status),
						string(progress),
						humanize.Time(job.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "ID"},
					{Header: "File", MaxWidth: 40},
					{Header: "Owner"},
					{Header: "Status"},
					{Header: "Progress"},
					{Header: "Updated", Align: alignRight},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Only list jobs with these statuses (processing, completed, failed)")
	return cmd
}

func parseStatusFilters(values []string) ([]jobs.Status, error) {
	out := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			names := make([]string, 0, 3)
			for _, s := range jobs.AllStatuses() {
				names = append(names, strings.ToLower(string(s)))
			}
			return nil, fmt.Errorf("unknown status %q (expected one of %s)", value, strings.Join(names, ", "))
		}
		out = append(out, status)
	}
	return out, nil
}
