package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat is a liveness report from a running stage.
type Heartbeat struct {
	JobID   string
	Stage   string
	Attempt int
	At      time.Time
	Detail  string
}

// HeartbeatSink persists heartbeats outside the executor.
type HeartbeatSink interface {
	RecordHeartbeat(ctx context.Context, hb Heartbeat) error
}

// HeartbeatSinkFunc adapts a function to HeartbeatSink.
type HeartbeatSinkFunc func(ctx context.Context, hb Heartbeat) error

func (f HeartbeatSinkFunc) RecordHeartbeat(ctx context.Context, hb Heartbeat) error {
	return f(ctx, hb)
}

type heartbeatKey struct{}

// attemptState tracks liveness for one attempt.
type attemptState struct {
	last atomic.Int64

	jobID   string
	stage   string
	attempt int

	sink        HeartbeatSink
	minInterval time.Duration
	onSinkError func(error)

	mu       sync.Mutex
	lastSent time.Time
}

func (s *attemptState) touch(now time.Time) {
	s.last.Store(now.UnixNano())
}

func (s *attemptState) lastBeat() time.Time {
	return time.Unix(0, s.last.Load())
}

func (s *attemptState) forward(ctx context.Context, now time.Time, detail string) {
	if s.sink == nil {
		return
	}
	s.mu.Lock()
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.minInterval {
		s.mu.Unlock()
		return
	}
	s.lastSent = now
	s.mu.Unlock()

	err := s.sink.RecordHeartbeat(context.WithoutCancel(ctx), Heartbeat{
		JobID:   s.jobID,
		Stage:   s.stage,
		Attempt: s.attempt,
		At:      now,
		Detail:  detail,
	})
	if err != nil && s.onSinkError != nil {
		s.onSinkError(err)
	}
}

// watch cancels the attempt once no heartbeat has arrived for timeout.
func (s *attemptState) watch(ctx context.Context, timeout time.Duration, cancel context.CancelCauseFunc) {
	interval := timeout / 4
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(s.lastBeat()) > timeout {
				cancel(ErrHeartbeatTimeout)
				return
			}
		}
	}
}

// RecordHeartbeat reports that the stage running under ctx is alive. Detail is
// free-form progress text. Calls outside an activity attempt are ignored.
func RecordHeartbeat(ctx context.Context, detail string) {
	if ctx == nil {
		return
	}
	state, ok := ctx.Value(heartbeatKey{}).(*attemptState)
	if !ok || state == nil {
		return
	}
	now := time.Now()
	state.touch(now)
	state.forward(ctx, now, detail)
}
