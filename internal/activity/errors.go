package activity

import (
	"errors"
	"fmt"

	"mediaflow/internal/services"
)

var (
	// ErrHeartbeatTimeout cancels an attempt that stopped heartbeating.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
	// ErrStartToCloseTimeout cancels an attempt that ran past its deadline.
	ErrStartToCloseTimeout = errors.New("start-to-close timeout")
	// ErrExecutorClosed is returned once the worker pool has shut down.
	ErrExecutorClosed = errors.New("activity executor closed")
)

// ExecutionError reports a stage that failed permanently or ran out of
// attempts.
type ExecutionError struct {
	Stage    string
	Attempts int
	Kind     services.FailureKind
	Cause    error
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("stage %s failed after %d attempt(s) (%s): %v", e.Stage, e.Attempts, e.Kind, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Reason renders the failure for persistence on the job record.
func (e *ExecutionError) Reason() string {
	if e == nil {
		return ""
	}
	return services.FailureReason(e)
}

// AsExecutionError extracts an *ExecutionError from err.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr, true
	}
	return nil, false
}
