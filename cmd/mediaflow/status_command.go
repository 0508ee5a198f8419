package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/jobs"
	"mediaflow/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon status, or the progress of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				if len(args) == 1 {
					id := strings.TrimSpace(args[0])
					controller := workflow.NewController(store, cfg.LockDir(), ctx.cliLogger(cfg))
					progress, err := controller.QueryProgress(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, renderStatusLine(id, progressKind(progress), string(progress), colorize))
					return nil
				}

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				running, err := daemon.IsRunning(cfg)
				switch {
				case err != nil:
					fmt.Fprintln(out, renderStatusLine("Daemon", statusError, err.Error(), colorize))
				case running:
					detail := "running"
					if pid, err := daemonrun.ReadPID(cfg); err == nil {
						detail += " (pid " + strconv.Itoa(pid) + ")"
					}
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, detail, colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				}
				fmt.Fprintln(out, renderField("Pipeline", cfg.Workflow.Pipeline))
				fmt.Fprintln(out, renderField("Database", store.Path()))

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("job stats: %w", err)
				}
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Jobs", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, status := range jobs.AllStatuses() {
					fmt.Fprintln(out, renderField(strings.ToLower(string(status)), strconv.Itoa(stats[status])))
				}
				return nil
			})
		},
	}
}
