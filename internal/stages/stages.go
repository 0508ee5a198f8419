package stages

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mediaflow/internal/ai"
	"mediaflow/internal/config"
	"mediaflow/internal/guard"
	"mediaflow/internal/logging"
	"mediaflow/internal/media"
	"mediaflow/internal/objectstore"
)

// Stage names. They key checkpoints, retry policies and log fields.
const (
	Download         = "download"
	Preprocess       = "preprocess"
	Transcribe       = "transcribe"
	Summarize        = "summarize"
	Finalize         = "finalize"
	MarkFailed       = "mark_failed"
	ExtractThumbnail = "extract_thumbnail"
	IndexTranscript  = "index_transcript"
)

// VectorStore persists transcript embeddings. *jobs.Store implements it.
type VectorStore interface {
	SaveVector(ctx context.Context, jobID, model string, embedding []float64) (string, error)
}

// Deps bundles the collaborators stage functions need.
type Deps struct {
	Config      *config.Config
	Objects     objectstore.Store
	Transcriber ai.Transcriber
	Summarizer  ai.Summarizer
	Media       *media.FFmpeg
	Guard       *guard.Guard
	Logger      *slog.Logger
	// Embedder and Vectors are only needed when transcript indexing is on.
	Embedder ai.Embedder
	Vectors  VectorStore
}

// Stages holds the stage functions bound to their dependencies.
type Stages struct {
	objects     objectstore.Store
	transcriber ai.Transcriber
	summarizer  ai.Summarizer
	media       *media.FFmpeg
	guard       *guard.Guard
	embedder    ai.Embedder
	vectors     VectorStore
	logger      *slog.Logger

	scratchDir      string
	sampleRate      int
	thumbnailOffset time.Duration
}

// New validates deps and returns the stage set.
func New(deps Deps) (*Stages, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("stages: config is required")
	case deps.Objects == nil:
		return nil, errors.New("stages: object store is required")
	case deps.Transcriber == nil:
		return nil, errors.New("stages: transcriber is required")
	case deps.Summarizer == nil:
		return nil, errors.New("stages: summarizer is required")
	case deps.Guard == nil:
		return nil, errors.New("stages: guard is required")
	case deps.Embedder != nil && deps.Vectors == nil:
		return nil, errors.New("stages: vector store is required with an embedder")
	}
	scratch := strings.TrimSpace(deps.Config.Paths.ScratchDir)
	if scratch == "" {
		return nil, errors.New("stages: scratch directory is required")
	}
	ff := deps.Media
	if ff == nil {
		ff = media.New(deps.Config.FFmpegBinary())
	}
	return &Stages{
		objects:         deps.Objects,
		transcriber:     deps.Transcriber,
		summarizer:      deps.Summarizer,
		media:           ff,
		guard:           deps.Guard,
		embedder:        deps.Embedder,
		vectors:         deps.Vectors,
		logger:          logging.NewComponentLogger(deps.Logger, "stages"),
		scratchDir:      scratch,
		sampleRate:      deps.Config.Media.SampleRate,
		thumbnailOffset: time.Duration(deps.Config.Media.ThumbnailOffsetSeconds) * time.Second,
	}, nil
}

// ScratchDir returns the root under which per-job scratch directories live.
func (s *Stages) ScratchDir() string { return s.scratchDir }
