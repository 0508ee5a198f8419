package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const (
	defaultWorkers           = 4
	defaultHeartbeatInterval = 5 * time.Second
)

// Func is a stage function executed by the executor.
type Func[I, O any] func(ctx context.Context, input I) (O, error)

// Executor runs stage functions on a shared worker pool.
type Executor struct {
	pool              *pool
	sink              HeartbeatSink
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the number of concurrent attempts across all jobs.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.pool = newPool(n)
		}
	}
}

// WithHeartbeatSink forwards heartbeats to sink at most once per minInterval
// per attempt.
func WithHeartbeatSink(sink HeartbeatSink, minInterval time.Duration) Option {
	return func(e *Executor) {
		e.sink = sink
		if minInterval >= 0 {
			e.heartbeatInterval = minInterval
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logging.NewComponentLogger(logger, "activity")
	}
}

// NewExecutor starts the worker pool.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		heartbeatInterval: defaultHeartbeatInterval,
		logger:            logging.NewComponentLogger(nil, "activity"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = newPool(defaultWorkers)
	}
	return e
}

// Close stops accepting attempts. Running attempts finish on their own.
func (e *Executor) Close() {
	if e == nil || e.pool == nil {
		return
	}
	e.pool.close()
}

// Shutdown closes the executor and waits for idle workers to exit.
func (e *Executor) Shutdown(ctx context.Context) error {
	if e == nil || e.pool == nil {
		return nil
	}
	e.pool.close()
	return e.pool.wait(ctx)
}

// Execute runs fn(input) under policy, retrying transient failures. Terminal
// failures are returned as *ExecutionError. If ctx ends, its cause is returned
// as is.
func Execute[I, O any](ctx context.Context, ex *Executor, stage string, fn Func[I, O], input I, policy Policy) (O, error) {
	var zero O
	if ex == nil {
		return zero, errors.New("activity executor is nil")
	}
	if fn == nil {
		return zero, fmt.Errorf("activity %s has no function", stage)
	}
	policy = policy.withDefaults()
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, ex.logger)

	var attempts uint
	out, err := retry.DoWithData(
		func() (O, error) {
			attempts++
			return runAttempt(services.WithAttempt(ctx, int(attempts)), ex, stage, fn, input, policy)
		},
		retry.Context(ctx),
		retry.Attempts(uint(policy.MaxAttempts)),
		retry.Delay(policy.InitialInterval),
		retry.MaxDelay(policy.MaxInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil || errors.Is(err, ErrExecutorClosed) {
				return false
			}
			return services.IsTransient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("activity attempt failed",
				logging.String(logging.FieldEventType, "activity_attempt_failed"),
				logging.Attempt(int(n)+1),
				logging.Int("max_attempts", policy.MaxAttempts),
				logging.ErrorKind(err),
				logging.Error(err),
			)
		}),
	)
	if err == nil {
		if attempts > 1 {
			logger.Info("activity succeeded after retry",
				logging.String(logging.FieldEventType, "activity_recovered"),
				logging.Int("attempts", int(attempts)),
			)
		}
		return out, nil
	}
	if ctx.Err() != nil || errors.Is(err, ErrExecutorClosed) {
		return zero, err
	}

	execErr := &ExecutionError{
		Stage:    stage,
		Attempts: int(attempts),
		Kind:     services.Classify(err),
		Cause:    err,
	}
	logging.ErrorWithContext(logger, "activity failed", "activity_failed",
		logging.Int("attempts", execErr.Attempts),
		logging.String(logging.FieldErrorKind, string(execErr.Kind)),
		logging.String(logging.FieldErrorHint, "inspect the stage error; permanent failures are not retried"),
		logging.Error(err),
	)
	return zero, execErr
}

type attemptResult[O any] struct {
	out O
	err error
}

func runAttempt[I, O any](ctx context.Context, ex *Executor, stage string, fn Func[I, O], input I, policy Policy) (O, error) {
	var zero O
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobID, _ := services.JobIDFromContext(ctx)
	attempt, _ := services.AttemptFromContext(ctx)
	state := &attemptState{
		jobID:       jobID,
		stage:       stage,
		attempt:     attempt,
		sink:        ex.sink,
		minInterval: ex.heartbeatInterval,
		onSinkError: func(err error) {
			ex.logger.Debug("heartbeat sink failed", logging.Stage(stage), logging.Error(err))
		},
	}
	attemptCtx = context.WithValue(attemptCtx, heartbeatKey{}, state)

	done := make(chan attemptResult[O], 1)
	task := func() {
		state.touch(time.Now())
		timer := time.AfterFunc(policy.StartToClose, func() {
			cancel(ErrStartToCloseTimeout)
		})
		defer timer.Stop()
		if policy.HeartbeatTimeout > 0 {
			go state.watch(attemptCtx, policy.HeartbeatTimeout, cancel)
		}
		out, err := safeCall(attemptCtx, stage, fn, input)
		done <- attemptResult[O]{out: out, err: err}
	}
	if err := ex.pool.submit(ctx, task); err != nil {
		return zero, err
	}

	select {
	case res := <-done:
		if res.err == nil {
			return res.out, nil
		}
		if attemptCtx.Err() != nil {
			return zero, attemptInterrupted(ctx, attemptCtx, stage, res.err)
		}
		return zero, res.err
	case <-attemptCtx.Done():
		// The stage may keep running; its result is dropped into the buffered channel.
		return zero, attemptInterrupted(ctx, attemptCtx, stage, nil)
	}
}

func attemptInterrupted(parent, attemptCtx context.Context, stage string, stageErr error) error {
	if parent.Err() != nil {
		return context.Cause(parent)
	}
	cause := context.Cause(attemptCtx)
	if errors.Is(cause, ErrStartToCloseTimeout) || errors.Is(cause, ErrHeartbeatTimeout) {
		return services.Wrap(services.ErrTimeout, stage, "attempt", "", cause)
	}
	if stageErr != nil {
		return stageErr
	}
	return cause
}

func safeCall[I, O any](ctx context.Context, stage string, fn Func[I, O], input I) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrPermanent, stage, "panic", fmt.Sprint(r), nil)
		}
	}()
	return fn(ctx, input)
}
