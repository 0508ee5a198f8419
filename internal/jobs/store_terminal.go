package jobs

import (
	"context"
	"fmt"
	"time"
)

// ApplyTerminal moves a PROCESSING job to a terminal status in a single
// conditional update. When no row matches, a probe distinguishes a job that is
// already terminal from one that does not exist. Callers decide how to treat
// either outcome.
func (s *Store) ApplyTerminal(ctx context.Context, jobID string, status Status, fields TerminalFields) (TerminalResult, error) {
	if !status.IsTerminal() {
		return TerminalResult{}, fmt.Errorf("apply terminal: %q is not a terminal status", status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?,
             transcript = COALESCE(?, transcript),
             timed_transcript = COALESCE(?, timed_transcript),
             summary = COALESCE(?, summary),
             thumbnail_key = COALESCE(?, thumbnail_key),
             vector_id = COALESCE(?, vector_id),
             token_count = COALESCE(?, token_count),
             failure_reason = COALESCE(?, failure_reason),
             updated_at = ?
         WHERE id = ? AND status = ?`,
		status,
		nullableString(fields.Transcript),
		nullableString(fields.TimedTranscript),
		nullableString(fields.Summary),
		nullableString(fields.ThumbnailKey),
		nullableString(fields.VectorID),
		nullableInt(fields.TokenCount),
		nullableString(fields.FailureReason),
		formatTime(time.Now()),
		jobID,
		StatusProcessing,
	)
	if err != nil {
		return TerminalResult{}, fmt.Errorf("apply terminal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return TerminalResult{}, fmt.Errorf("apply terminal rows affected: %w", err)
	}
	if affected > 0 {
		return TerminalResult{Outcome: OutcomeApplied}, nil
	}

	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return TerminalResult{}, fmt.Errorf("apply terminal probe: %w", err)
	}
	if job == nil {
		return TerminalResult{Outcome: OutcomeMissing}, nil
	}
	return TerminalResult{Outcome: OutcomeAlreadyTerminal, Current: job.Status}, nil
}
