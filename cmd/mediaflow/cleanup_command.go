package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
	"mediaflow/internal/staging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var listOnly bool
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove scratch directories left behind by finished or deleted jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				out := cmd.OutOrStdout()
				scratch := cfg.Paths.ScratchDir

				if listOnly {
					dirs, err := staging.ListDirectories(scratch)
					if err != nil {
						return err
					}
					if len(dirs) == 0 {
						fmt.Fprintln(out, "No scratch directories")
						return nil
					}
					rows := make([][]string, 0, len(dirs))
					for _, dir := range dirs {
						rows = append(rows, []string{dir.Name, dir.JobID, humanize.Bytes(uint64(dir.Size)), humanize.Time(dir.ModTime)})
					}
					fmt.Fprintln(out, renderTable([]column{
						{Header: "Directory"},
						{Header: "Job"},
						{Header: "Size", Align: alignRight},
						{Header: "Modified", Align: alignRight},
					}, rows))
					return nil
				}

				resumable, err := store.ListResumable(cmd.Context())
				if err != nil {
					return fmt.Errorf("list resumable jobs: %w", err)
				}
				ids := make([]string, 0, len(resumable))
				for _, job := range resumable {
					ids = append(ids, job.ID)
				}
				active := staging.NewActiveSet(ids...)
				logger := ctx.cliLogger(cfg)

				result := staging.CleanOrphaned(cmd.Context(), scratch, active, logger)
				if !cmd.Flags().Changed("max-age") {
					maxAge = time.Duration(cfg.Workflow.ScratchMaxAgeHours) * time.Hour
				}
				if maxAge > 0 {
					stale := staging.CleanStale(cmd.Context(), scratch, maxAge, active, logger)
					result.Removed = append(result.Removed, stale.Removed...)
					result.Errors = append(result.Errors, stale.Errors...)
				}

				for _, path := range result.Removed {
					fmt.Fprintf(out, "Removed %s\n", path)
				}
				for _, failure := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", failure.Path, failure.Error)
				}
				fmt.Fprintf(out, "Removed %d scratch directories\n", len(result.Removed))
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d scratch directories could not be removed", len(result.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&listOnly, "list", "l", false, "List scratch directories without removing anything")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Also remove directories older than this (defaults to workflow.scratch_max_age_hours)")
	return cmd
}
