package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
	"mediaflow/internal/submission"
	"mediaflow/internal/workflow"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Request cancellation of running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				controller := workflow.NewController(store, cfg.LockDir(), ctx.cliLogger(cfg))
				out := cmd.OutOrStdout()
				for _, arg := range args {
					id := strings.TrimSpace(arg)
					if err := controller.SignalCancel(cmd.Context(), id); err != nil {
						return fmt.Errorf("cancel %s: %w", id, err)
					}
					fmt.Fprintf(out, "Cancellation requested for %s\n", id)
				}
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <job-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete jobs together with their stored media",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				objects, err := ctx.objectStore(cmd.Context(), cfg)
				if err != nil {
					return fmt.Errorf("open object storage: %w", err)
				}
				logger := ctx.cliLogger(cfg)
				controller := workflow.NewController(store, cfg.LockDir(), logger)
				svc := submission.New(objects, store, logger)
				out := cmd.OutOrStdout()
				for _, arg := range args {
					id := strings.TrimSpace(arg)
					if err := controller.Forget(id); err != nil {
						if errors.Is(err, workflow.ErrJobBusy) {
							return fmt.Errorf("job %s is running; cancel it before removing", id)
						}
						return fmt.Errorf("release lock for %s: %w", id, err)
					}
					if err := svc.Remove(cmd.Context(), id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
					fmt.Fprintf(out, "Removed job %s\n", id)
				}
				return nil
			})
		},
	}
}
