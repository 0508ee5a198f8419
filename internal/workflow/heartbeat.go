package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
)

// HeartbeatStore persists the latest heartbeat per job.
type HeartbeatStore interface {
	UpdateHeartbeat(ctx context.Context, jobID string, at time.Time, detail string) error
}

// NewHeartbeatSink forwards executor heartbeats to the job store so operators
// can see which stage a job is in and when it last reported.
func NewHeartbeatSink(store HeartbeatStore, logger *slog.Logger) activity.HeartbeatSink {
	logger = logging.NewComponentLogger(logger, "workflow-heartbeat")
	return activity.HeartbeatSinkFunc(func(ctx context.Context, hb activity.Heartbeat) error {
		if strings.TrimSpace(hb.JobID) == "" {
			return nil
		}
		detail := fmt.Sprintf("%s#%d", hb.Stage, hb.Attempt)
		if d := strings.TrimSpace(hb.Detail); d != "" {
			detail += " " + d
		}
		if err := store.UpdateHeartbeat(context.WithoutCancel(ctx), hb.JobID, hb.At, detail); err != nil {
			logger.Warn("heartbeat update failed",
				logging.JobID(hb.JobID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_persist_failed"),
			)
			return err
		}
		return nil
	})
}
