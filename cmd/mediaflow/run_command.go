package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mediaflow/internal/daemonrun"
	"mediaflow/internal/logging"
	"mediaflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run or resume one job in the foreground",
		Long: "Run drives a single job through the pipeline without the daemon. " +
			"Interrupting it leaves the job resumable from its last checkpoint.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt, err := daemonrun.Build(signalCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			id := strings.TrimSpace(args[0])
			job, err := rt.Store.GetByID(signalCtx, id)
			if err != nil {
				return fmt.Errorf("load job: %w", err)
			}
			if job == nil {
				return fmt.Errorf("job %s not found", id)
			}

			res, err := rt.Orchestrator.Run(signalCtx, workflow.JobInput{JobID: job.ID, SourceKey: job.SourceKey})
			out := cmd.OutOrStdout()
			if err != nil {
				if signalCtx.Err() != nil {
					fmt.Fprintf(out, "Interrupted; job %s can be resumed\n", id)
				}
				return err
			}
			fmt.Fprintf(out, "Job %s finished with %s\n", id, res.Status)
			return nil
		},
	}
}
