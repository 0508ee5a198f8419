package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mediaflow/internal/activity"
	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/stages"
)

// Store is the persistence the orchestrator needs. *jobs.Store implements it.
type Store interface {
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	EnsureRun(ctx context.Context, jobID string) (*jobs.Run, error)
	SetProgress(ctx context.Context, jobID string, progress jobs.Progress) error
	RequestCancel(ctx context.Context, jobID string) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	Progress(ctx context.Context, jobID string) (jobs.Progress, error)
	SaveCheckpoint(ctx context.Context, jobID, stage string, payload []byte) ([]byte, error)
	LoadCheckpoint(ctx context.Context, jobID, stage string) ([]byte, bool, error)
}

var _ Store = (*jobs.Store)(nil)

// Options wires an Orchestrator.
type Options struct {
	Config     *config.Config
	Store      Store
	Executor   *activity.Executor
	Activities Activities
	Logger     *slog.Logger
}

// Orchestrator runs jobs through the pipeline. It embeds the Controller for
// cancel, progress and lock handling.
type Orchestrator struct {
	*Controller
	cfg      *config.Config
	executor *activity.Executor
	acts     Activities
	shape    string
	indexing bool
}

// NewOrchestrator validates opts and builds an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("workflow: config is required")
	case opts.Store == nil:
		return nil, errors.New("workflow: store is required")
	case opts.Executor == nil:
		return nil, errors.New("workflow: executor is required")
	case opts.Activities == nil:
		return nil, errors.New("workflow: activities are required")
	}
	shape := strings.ToLower(strings.TrimSpace(opts.Config.Workflow.Pipeline))
	switch shape {
	case "", ShapeSequential:
		shape = ShapeSequential
	case ShapeFanOut:
	default:
		return nil, fmt.Errorf("workflow: unknown pipeline shape %q", opts.Config.Workflow.Pipeline)
	}
	return &Orchestrator{
		Controller: NewController(opts.Store, opts.Config.LockDir(), opts.Logger),
		cfg:        opts.Config,
		executor:   opts.Executor,
		acts:       opts.Activities,
		shape:      shape,
		indexing:   opts.Config.IndexingEnabled(),
	}, nil
}

// Shape returns the pipeline shape in use.
func (o *Orchestrator) Shape() string { return o.shape }

func (o *Orchestrator) policy(stage string) activity.Policy {
	return activity.FromStagePolicy(o.cfg.StagePolicy(stage))
}

// Run drives one job until it completes, fails, is cancelled, or ctx ends.
// A cancelled parent context returns ctx.Err() and leaves the job resumable.
func (o *Orchestrator) Run(ctx context.Context, in JobInput) (Result, error) {
	jobID := strings.TrimSpace(in.JobID)
	if jobID == "" {
		return Result{}, services.Wrap(services.ErrValidation, "workflow", "run", "job id is required", nil)
	}
	res := Result{JobID: jobID}

	unlock, err := o.locks.acquire(jobID)
	if err != nil {
		return res, err
	}
	defer unlock()

	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, o.logger)

	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return res, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return res, services.Wrap(services.ErrNotFound, "workflow", "run", "job "+jobID+" does not exist", nil)
	}
	run, err := o.store.EnsureRun(ctx, jobID)
	if err != nil {
		return res, fmt.Errorf("ensure run: %w", err)
	}
	if job.Status.IsTerminal() || run.Progress == jobs.ProgressCancelled {
		res.Status = jobs.DeriveProgress(job, run)
		return res, nil
	}

	if failure, ok, err := loadCheckpoint[failureRecord](ctx, o.store, jobID, failureCheckpoint); err != nil {
		return res, err
	} else if ok {
		logger.Info("resuming compensation", logging.String(logging.FieldEventType, "compensation_resume"),
			logging.String("failed_stage", failure.Stage))
		return o.compensate(ctx, res, failure)
	}

	sourceKey := job.SourceKey
	if sourceKey == "" {
		sourceKey = strings.TrimSpace(in.SourceKey)
	}
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("pipeline", o.shape),
		logging.String("source_key", sourceKey),
	)

	err = o.pipeline(ctx, jobID, sourceKey)
	switch {
	case err == nil:
		if err := o.store.SetProgress(ctx, jobID, jobs.ProgressCompleted); err != nil {
			return res, fmt.Errorf("record completion: %w", err)
		}
		res.Status = jobs.ProgressCompleted
		logger.Info("job completed", logging.String(logging.FieldEventType, "job_complete"))
		return res, nil
	case errors.Is(err, errCancelled):
		if err := o.store.SetProgress(ctx, jobID, jobs.ProgressCancelled); err != nil {
			return res, fmt.Errorf("record cancellation: %w", err)
		}
		res.Status = jobs.ProgressCancelled
		logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
		return res, nil
	case ctx.Err() != nil:
		logger.Info("job interrupted; will resume",
			logging.String(logging.FieldEventType, "job_interrupted"),
			logging.Error(context.Cause(ctx)),
		)
		return res, ctx.Err()
	}

	execErr, ok := activity.AsExecutionError(err)
	if !ok {
		// Store or executor trouble, not a stage verdict. Leave the job resumable.
		return res, err
	}
	failure := failureRecord{Stage: execErr.Stage, Reason: execErr.Reason(), Kind: string(execErr.Kind)}
	if _, err := saveCheckpoint(ctx, o.store, jobID, failureCheckpoint, failure); err != nil {
		return res, err
	}
	logging.ErrorWithContext(logger, "stage failed; compensating", "job_failed",
		logging.String("failed_stage", execErr.Stage),
		logging.Int("attempts", execErr.Attempts),
		logging.String(logging.FieldErrorKind, string(execErr.Kind)),
		logging.Error(execErr.Cause),
		logging.String(logging.FieldErrorHint, "inspect the failure reason with 'mediaflow show "+jobID+"'"),
	)
	return o.compensate(ctx, res, failure)
}

// compensate marks the job FAILED. If mark-failed itself gives up, the error
// is returned and the failure checkpoint makes the next run retry it.
func (o *Orchestrator) compensate(ctx context.Context, res Result, failure failureRecord) (Result, error) {
	if err := o.store.SetProgress(ctx, res.JobID, jobs.ProgressFailed); err != nil {
		return res, fmt.Errorf("record failure: %w", err)
	}
	res.Status = jobs.ProgressFailed
	def := stepDef{jobID: res.JobID, name: stages.MarkFailed, ignoreCancel: true}
	_, err := step(ctx, o, def, func(ctx context.Context) (stages.MarkFailedResult, error) {
		return activity.Execute(ctx, o.executor, stages.MarkFailed, o.acts.MarkFailed, stages.MarkFailedRequest{
			JobID:  res.JobID,
			Reason: failure.Reason,
		}, o.policy(stages.MarkFailed))
	})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("mark job failed: %w", err)
	}
	return res, nil
}
