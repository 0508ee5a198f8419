// Package guard protects terminal job state from duplicate or late writes.
package guard

import (
	"context"
	"fmt"
	"log/slog"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// TerminalStore performs the conditional terminal update.
type TerminalStore interface {
	ApplyTerminal(ctx context.Context, jobID string, status jobs.Status, fields jobs.TerminalFields) (jobs.TerminalResult, error)
}

// Guard applies terminal transitions at most once per job.
type Guard struct {
	store  TerminalStore
	logger *slog.Logger
}

// New constructs a guard around store.
func New(store TerminalStore, logger *slog.Logger) *Guard {
	return &Guard{store: store, logger: logging.NewComponentLogger(logger, "guard")}
}

// ApplyTerminal moves a PROCESSING job to status. A job that is already
// terminal or no longer exists is logged and treated as success, which makes
// finalize and mark-failed safe to replay.
func (g *Guard) ApplyTerminal(ctx context.Context, jobID string, status jobs.Status, fields jobs.TerminalFields) (jobs.Outcome, error) {
	if !status.IsTerminal() {
		return 0, services.Wrap(services.ErrValidation, "guard", "apply terminal",
			fmt.Sprintf("target status %q is not terminal", status), nil)
	}
	if jobID == "" {
		return 0, services.Wrap(services.ErrValidation, "guard", "apply terminal", "job id is required", nil)
	}

	result, err := g.store.ApplyTerminal(ctx, jobID, status, fields)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "guard", "apply terminal", "update job record", err)
	}

	logger := g.logger.With(
		logging.JobID(jobID),
		logging.String("target_status", string(status)),
	)
	switch result.Outcome {
	case jobs.OutcomeApplied:
		logger.Info("terminal status applied", logging.String(logging.FieldEventType, "terminal_applied"))
	case jobs.OutcomeAlreadyTerminal:
		logger.Info("job already terminal; skipping update",
			logging.String(logging.FieldEventType, "terminal_skipped"),
			logging.String("current_status", string(result.Current)),
		)
	case jobs.OutcomeMissing:
		logging.WarnWithContext(logger, "job record missing; terminal update skipped", "terminal_missing",
			logging.String(logging.FieldErrorHint, "the job was removed while its run was in flight"),
			logging.String(logging.FieldImpact, "no record to update"),
		)
	}
	return result.Outcome, nil
}
