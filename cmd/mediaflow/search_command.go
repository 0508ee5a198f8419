package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/ai"
	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find jobs whose transcripts are closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				embedder, err := ai.NewEmbedder(cfg)
				if err != nil {
					return err
				}
				if embedder == nil {
					return errors.New("transcript indexing is off; set ai.embedder = \"openai\"")
				}
				query := strings.Join(args, " ")
				vector, err := embedder.Embed(cmd.Context(), query)
				if err != nil {
					return fmt.Errorf("embed query: %w", err)
				}
				matches, err := store.SearchVectors(cmd.Context(), vector, limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(matches) == 0 {
					fmt.Fprintln(out, "No indexed transcripts found")
					return nil
				}
				rows := make([][]string, 0, len(matches))
				for _, m := range matches {
					file, summary := "", ""
					if job, err := store.GetByID(cmd.Context(), m.JobID); err == nil && job != nil {
						file = job.OriginalFilename
						summary = job.Summary
					}
					rows = append(rows, []string{fmt.Sprintf("%.3f", m.Score), m.JobID, file, summary})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "Score", Align: alignRight},
					{Header: "Job"},
					{Header: "File"},
					{Header: "Summary", MaxWidth: 60},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of matches")
	return cmd
}
