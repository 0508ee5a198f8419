package stages

import (
	"context"
	"strings"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
)

// TokenCount is the whitespace-separated word count stored with a transcript.
func TokenCount(transcript string) int {
	return len(strings.Fields(transcript))
}

// Finalize writes COMPLETED with every output in one guarded update and then
// removes the job's scratch, including the transcript sidecar. A job that is
// already terminal or missing is left alone.
func (s *Stages) Finalize(ctx context.Context, req FinalizeRequest) (FinalizeResult, error) {
	if err := req.Validate(); err != nil {
		return FinalizeResult{}, err
	}
	tokens := TokenCount(req.Transcript)
	outcome, err := s.guard.ApplyTerminal(ctx, req.JobID, jobs.StatusCompleted, jobs.TerminalFields{
		Transcript:      req.Transcript,
		TimedTranscript: req.Timed,
		Summary:         req.Summary,
		ThumbnailKey:    req.ThumbnailKey,
		VectorID:        req.VectorID,
		TokenCount:      &tokens,
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	s.sweep(ctx, req.JobID, "finished job scratch removed")
	return FinalizeResult{Outcome: outcome, TokenCount: tokens}, nil
}

// MarkFailed writes FAILED with the reason and sweeps any scratch the job
// left behind. It is the compensation step for a terminal stage failure.
func (s *Stages) MarkFailed(ctx context.Context, req MarkFailedRequest) (MarkFailedResult, error) {
	if err := req.Validate(); err != nil {
		return MarkFailedResult{}, err
	}
	outcome, err := s.guard.ApplyTerminal(ctx, req.JobID, jobs.StatusFailed, jobs.TerminalFields{
		FailureReason: req.Reason,
	})
	if err != nil {
		return MarkFailedResult{}, err
	}
	s.sweep(ctx, req.JobID, "failed job scratch removed")
	return MarkFailedResult{Outcome: outcome}, nil
}

func (s *Stages) sweep(ctx context.Context, jobID, msg string) {
	if removed := s.SweepJobScratch(ctx, jobID); len(removed) > 0 {
		logging.WithContext(ctx, s.logger).Info(msg,
			logging.String(logging.FieldEventType, "scratch_swept"),
			logging.Int("directories", len(removed)),
		)
	}
}
