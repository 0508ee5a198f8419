package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_key, original_filename, owner_id, status, transcript, timed_transcript, summary, thumbnail_key, vector_id, token_count, failure_reason, created_at, updated_at"

const runColumns = "job_id, progress, cancel_requested, last_heartbeat, heartbeat_detail, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id               string
		sourceKey        string
		originalFilename sql.NullString
		ownerID          sql.NullString
		statusStr        string
		transcript       sql.NullString
		timedTranscript  sql.NullString
		summary          sql.NullString
		thumbnailKey     sql.NullString
		vectorID         sql.NullString
		tokenCount       sql.NullInt64
		failureReason    sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&sourceKey,
		&originalFilename,
		&ownerID,
		&statusStr,
		&transcript,
		&timedTranscript,
		&summary,
		&thumbnailKey,
		&vectorID,
		&tokenCount,
		&failureReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		SourceKey:        sourceKey,
		OriginalFilename: originalFilename.String,
		OwnerID:          ownerID.String,
		Status:           Status(statusStr),
		Transcript:       transcript.String,
		TimedTranscript:  timedTranscript.String,
		Summary:          summary.String,
		ThumbnailKey:     thumbnailKey.String,
		VectorID:         vectorID.String,
		FailureReason:    failureReason.String,
	}
	if tokenCount.Valid {
		count := int(tokenCount.Int64)
		job.TokenCount = &count
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func scanRun(scanner rowScanner) (*Run, error) {
	var (
		jobID        string
		progress     string
		cancel       sql.NullInt64
		heartbeatRaw sql.NullString
		detail       sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&jobID, &progress, &cancel, &heartbeatRaw, &detail, &updatedRaw); err != nil {
		return nil, err
	}
	run := &Run{
		JobID:           jobID,
		Progress:        Progress(progress),
		CancelRequested: cancel.Valid && cancel.Int64 != 0,
		HeartbeatDetail: detail.String,
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			run.LastHeartbeat = &heartbeat
		}
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

// timestampLayout keeps a fixed number of fractional digits so stored values
// sort lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
