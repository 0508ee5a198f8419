package workflow

import (
	"context"
	"log/slog"
	"strings"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// Controller answers control requests for jobs without running them. The CLI
// uses it directly; the Orchestrator embeds one.
type Controller struct {
	store  Store
	logger *slog.Logger
	locks  *jobLocks
}

// NewController builds a controller over store using lock files in lockDir.
func NewController(store Store, lockDir string, logger *slog.Logger) *Controller {
	return &Controller{
		store:  store,
		logger: logging.NewComponentLogger(logger, "orchestrator"),
		locks:  newJobLocks(lockDir),
	}
}

// SignalCancel requests cancellation. The running orchestrator observes it
// before the next stage starts. Terminal jobs are left untouched.
func (o *Controller) SignalCancel(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "cancel", "job "+jobID+" does not exist", nil)
	}
	progress, err := o.store.Progress(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() || progress.IsTerminal() {
		return nil
	}
	if err := o.store.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	logging.WithContext(services.WithJobID(ctx, jobID), o.logger).Info("cancellation requested",
		logging.String(logging.FieldEventType, "cancel_requested"))
	return nil
}

// QueryProgress returns the job's current progress. Jobs that have not
// started report STARTING.
func (o *Controller) QueryProgress(ctx context.Context, jobID string) (jobs.Progress, error) {
	jobID = strings.TrimSpace(jobID)
	progress, err := o.store.Progress(ctx, jobID)
	if err != nil {
		return "", err
	}
	if progress == "" {
		return "", services.Wrap(services.ErrNotFound, "workflow", "progress", "job "+jobID+" does not exist", nil)
	}
	return progress, nil
}
