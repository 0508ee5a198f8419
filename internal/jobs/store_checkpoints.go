package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveCheckpoint writes the payload for (jobID, stage) unless a checkpoint
// already exists, and returns whichever payload is stored afterwards. A
// racing duplicate write therefore observes the first committed value.
func (s *Store) SaveCheckpoint(ctx context.Context, jobID, stage string, payload []byte) ([]byte, error) {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(stage) == "" {
		return nil, errors.New("checkpoint requires job id and stage")
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO stage_checkpoints (job_id, stage, payload, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(job_id, stage) DO NOTHING`,
		jobID,
		stage,
		string(payload),
		formatTime(time.Now()),
	); err != nil {
		return nil, fmt.Errorf("save checkpoint %s: %w", stage, err)
	}
	stored, ok, err := s.LoadCheckpoint(ctx, jobID, stage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("save checkpoint %s: row missing after insert", stage)
	}
	return stored, nil
}

// LoadCheckpoint returns the stored payload for (jobID, stage).
func (s *Store) LoadCheckpoint(ctx context.Context, jobID, stage string) ([]byte, bool, error) {
	ctx = ensureContext(ctx)
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT payload FROM stage_checkpoints WHERE job_id = ? AND stage = ?`,
		jobID,
		stage,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint %s: %w", stage, err)
	}
	return []byte(payload), true, nil
}

// ListCheckpoints returns every checkpoint for a job in write order.
func (s *Store) ListCheckpoints(ctx context.Context, jobID string) ([]Checkpoint, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, stage, payload, created_at FROM stage_checkpoints WHERE job_id = ? ORDER BY rowid`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var (
			cp         Checkpoint
			payload    string
			createdRaw sql.NullString
		)
		if err := rows.Scan(&cp.JobID, &cp.Stage, &payload, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.Payload = []byte(payload)
		if created, err := parseTimeString(createdRaw.String); err == nil {
			cp.CreatedAt = created
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
