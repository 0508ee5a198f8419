package workflow

import (
	"context"
	"errors"

	"mediaflow/internal/jobs"
	"mediaflow/internal/stages"
)

// Pipeline shapes.
const (
	ShapeSequential = "sequential"
	ShapeFanOut     = "fanout"
)

// Checkpoint names not tied to a stage function.
const (
	failureCheckpoint = "failure"
)

var (
	// ErrJobBusy reports that another process owns the job.
	ErrJobBusy = errors.New("job is being processed elsewhere")
	// errCancelled stops the pipeline between stages.
	errCancelled = errors.New("job cancelled")
)

// JobInput identifies the job to run.
type JobInput struct {
	JobID     string
	SourceKey string
}

// Result reports where a run ended.
type Result struct {
	JobID  string
	Status jobs.Progress
}

// Activities is the stage surface the orchestrator drives. *stages.Stages
// implements it.
type Activities interface {
	Download(context.Context, stages.DownloadRequest) (stages.DownloadResult, error)
	Preprocess(context.Context, stages.PreprocessRequest) (stages.PreprocessResult, error)
	Transcribe(context.Context, stages.TranscribeRequest) (stages.TranscribeResult, error)
	Summarize(context.Context, stages.SummarizeRequest) (stages.SummarizeResult, error)
	Finalize(context.Context, stages.FinalizeRequest) (stages.FinalizeResult, error)
	MarkFailed(context.Context, stages.MarkFailedRequest) (stages.MarkFailedResult, error)
	ExtractThumbnail(context.Context, stages.ThumbnailRequest) (stages.ThumbnailResult, error)
	IndexTranscript(context.Context, stages.IndexRequest) (stages.IndexResult, error)
}

var _ Activities = (*stages.Stages)(nil)

// failureRecord is the payload of the failure checkpoint.
type failureRecord struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}
