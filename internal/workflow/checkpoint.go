package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
)

// stepDef describes one checkpointed unit of work.
type stepDef struct {
	jobID string
	name  string
	// progress is recorded before the work runs; empty leaves it unchanged.
	progress jobs.Progress
	// ignoreCancel runs the step even when cancellation was requested.
	ignoreCancel bool
}

// step returns the committed result for def.name when one exists. Otherwise
// it checks for cancellation, records progress, runs produce and commits the
// result. Checkpoints are write-once: if a concurrent writer committed first,
// that result wins.
func step[O any](ctx context.Context, o *Orchestrator, def stepDef, produce func(context.Context) (O, error)) (O, error) {
	var zero O
	if out, ok, err := loadCheckpoint[O](ctx, o.store, def.jobID, def.name); err != nil || ok {
		if ok {
			logging.WithContext(ctx, o.logger).Debug("stage replayed from checkpoint",
				logging.String(logging.FieldEventType, "checkpoint_replay"),
				logging.Stage(def.name),
			)
		}
		return out, err
	}
	if !def.ignoreCancel {
		cancelled, err := o.store.CancelRequested(ctx, def.jobID)
		if err != nil {
			return zero, fmt.Errorf("read cancel flag: %w", err)
		}
		if cancelled {
			return zero, errCancelled
		}
	}
	if def.progress != "" {
		if err := o.store.SetProgress(ctx, def.jobID, def.progress); err != nil {
			return zero, fmt.Errorf("record progress: %w", err)
		}
	}
	out, err := produce(ctx)
	if err != nil {
		return zero, err
	}
	return saveCheckpoint(ctx, o.store, def.jobID, def.name, out)
}

func loadCheckpoint[T any](ctx context.Context, store Store, jobID, name string) (T, bool, error) {
	var out T
	payload, ok, err := store.LoadCheckpoint(ctx, jobID, name)
	if err != nil {
		return out, false, fmt.Errorf("load %s checkpoint: %w", name, err)
	}
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, false, fmt.Errorf("decode %s checkpoint: %w", name, err)
	}
	return out, true, nil
}

func saveCheckpoint[T any](ctx context.Context, store Store, jobID, name string, value T) (T, error) {
	var out T
	encoded, err := json.Marshal(value)
	if err != nil {
		return out, fmt.Errorf("encode %s checkpoint: %w", name, err)
	}
	stored, err := store.SaveCheckpoint(ctx, jobID, name, encoded)
	if err != nil {
		return out, fmt.Errorf("save %s checkpoint: %w", name, err)
	}
	if err := json.Unmarshal(stored, &out); err != nil {
		return out, fmt.Errorf("decode %s checkpoint: %w", name, err)
	}
	return out, nil
}
