package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnsureRun creates the run row for a job if it does not exist yet and
// returns the stored run.
func (s *Store) EnsureRun(ctx context.Context, jobID string) (*Run, error) {
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO job_runs (job_id, progress, cancel_requested, updated_at)
         VALUES (?, ?, 0, ?)
         ON CONFLICT(job_id) DO NOTHING`,
		jobID,
		ProgressStarting,
		formatTime(time.Now()),
	); err != nil {
		return nil, fmt.Errorf("ensure run: %w", err)
	}
	run, err := s.GetRun(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("ensure run: run for %s vanished", jobID)
	}
	return run, nil
}

// GetRun fetches the run for a job. A missing run yields (nil, nil).
func (s *Store) GetRun(ctx context.Context, jobID string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM job_runs WHERE job_id = ?`, jobID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// SetProgress durably records the run's progress, creating the run if needed.
func (s *Store) SetProgress(ctx context.Context, jobID string, progress Progress) error {
	now := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO job_runs (job_id, progress, cancel_requested, updated_at)
         VALUES (?, ?, 0, ?)
         ON CONFLICT(job_id) DO UPDATE SET progress = excluded.progress, updated_at = excluded.updated_at`,
		jobID,
		progress,
		now,
	); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

// RequestCancel sets the cancel flag on the run, creating the run if needed.
func (s *Store) RequestCancel(ctx context.Context, jobID string) error {
	now := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO job_runs (job_id, progress, cancel_requested, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET cancel_requested = excluded.cancel_requested, updated_at = excluded.updated_at`,
		jobID,
		ProgressStarting,
		boolToInt(true),
		now,
	); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return nil
}

// CancelRequested reports whether a cancel was signalled for the job.
func (s *Store) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	run, err := s.GetRun(ctx, jobID)
	if err != nil {
		return false, err
	}
	return run != nil && run.CancelRequested, nil
}

// UpdateHeartbeat stores the latest activity heartbeat for the job. Jobs
// without a run row are ignored.
func (s *Store) UpdateHeartbeat(ctx context.Context, jobID string, at time.Time, detail string) error {
	detail = strings.TrimSpace(detail)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE job_runs SET last_heartbeat = ?, heartbeat_detail = ? WHERE job_id = ?`,
		formatTime(at),
		nullableString(detail),
		jobID,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Progress derives the progress for a job from its run and durable status.
// A job with neither returns ("", nil).
func (s *Store) Progress(ctx context.Context, jobID string) (Progress, error) {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	run, err := s.GetRun(ctx, jobID)
	if err != nil {
		return "", err
	}
	return DeriveProgress(job, run), nil
}
