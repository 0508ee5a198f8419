package jobs

import (
	"strings"
	"time"
)

// Status is the durable lifecycle state of a job record.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var allStatuses = []Status{StatusProcessing, StatusCompleted, StatusFailed}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus normalizes user input into a known status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Progress is the orchestrator's view of where a run currently is.
type Progress string

const (
	ProgressStarting      Progress = "STARTING"
	ProgressDownloading   Progress = "DOWNLOADING"
	ProgressPreprocessing Progress = "PREPROCESSING"
	ProgressTranscribing  Progress = "TRANSCRIBING"
	ProgressSummarizing   Progress = "SUMMARIZING"
	ProgressFinalizing    Progress = "FINALIZING"
	ProgressCompleted     Progress = "COMPLETED"
	ProgressFailed        Progress = "FAILED"
	ProgressCancelled     Progress = "CANCELLED"
)

// IsTerminal reports whether the run will make no further progress.
func (p Progress) IsTerminal() bool {
	switch p {
	case ProgressCompleted, ProgressFailed, ProgressCancelled:
		return true
	default:
		return false
	}
}

// Job is the durable media record.
type Job struct {
	ID               string
	SourceKey        string
	OriginalFilename string
	OwnerID          string
	Status           Status
	Transcript       string
	TimedTranscript  string
	Summary          string
	ThumbnailKey     string
	VectorID         string
	TokenCount       *int
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewJob describes a submission.
type NewJob struct {
	ID               string
	SourceKey        string
	OriginalFilename string
	OwnerID          string
}

// Run is the orchestrator state attached to a job.
type Run struct {
	JobID           string
	Progress        Progress
	CancelRequested bool
	LastHeartbeat   *time.Time
	HeartbeatDetail string
	UpdatedAt       time.Time
}

// Checkpoint is a committed stage result.
type Checkpoint struct {
	JobID     string
	Stage     string
	Payload   []byte
	CreatedAt time.Time
}

// TerminalFields carries the values written alongside a terminal status.
// Empty strings and a nil TokenCount leave the stored column untouched.
type TerminalFields struct {
	Transcript      string
	TimedTranscript string
	Summary         string
	ThumbnailKey    string
	VectorID        string
	TokenCount      *int
	FailureReason   string
}

// Outcome describes what a conditional terminal update did.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeAlreadyTerminal
	OutcomeMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyTerminal:
		return "already_terminal"
	case OutcomeMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// TerminalResult reports the outcome of ApplyTerminal together with the status
// that was stored before the call when the update did not apply.
type TerminalResult struct {
	Outcome Outcome
	Current Status
}

// DeriveProgress reports the progress for a job, preferring the run state
// when present and otherwise mapping the durable status.
func DeriveProgress(job *Job, run *Run) Progress {
	if run != nil && run.Progress != "" {
		if job != nil && job.Status.IsTerminal() && !run.Progress.IsTerminal() {
			return progressForStatus(job.Status)
		}
		return run.Progress
	}
	if job == nil {
		return ""
	}
	return progressForStatus(job.Status)
}

func progressForStatus(status Status) Progress {
	switch status {
	case StatusCompleted:
		return ProgressCompleted
	case StatusFailed:
		return ProgressFailed
	default:
		return ProgressStarting
	}
}
