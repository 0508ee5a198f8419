package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediaflow/internal/logging"
	"mediaflow/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var jobID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print daemon log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.LogPath(cfg)
			match := logs.JobFilter(jobID)
			out := cmd.OutOrStdout()
			emit := func(batch []string) {
				for _, line := range batch {
					fmt.Fprintln(out, line)
				}
			}

			if follow {
				signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
				return logs.Follow(signalCtx, path, lines, match, emit)
			}

			chunk, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: -1, Limit: lines, Match: match})
			if err != nil {
				return err
			}
			if len(chunk.Lines) == 0 {
				fmt.Fprintln(out, "No log entries available")
				return nil
			}
			emit(chunk.Lines)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for this job")
	return cmd
}
