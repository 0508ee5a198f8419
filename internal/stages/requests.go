package stages

import (
	"strings"

	"mediaflow/internal/jobs"
	"mediaflow/internal/services"
)

// DownloadRequest names the uploaded object to fetch.
type DownloadRequest struct {
	JobID     string `json:"job_id"`
	SourceKey string `json:"source_key"`
}

// DownloadResult points at the local copy.
type DownloadResult struct {
	LocalPath string `json:"local_path"`
}

// PreprocessRequest names the downloaded file to normalize.
type PreprocessRequest struct {
	JobID     string `json:"job_id"`
	LocalPath string `json:"local_path"`
}

// PreprocessResult points at the normalized WAV.
type PreprocessResult struct {
	CleanedPath string `json:"cleaned_path"`
}

// TranscribeRequest carries both scratch files; both are removed after a
// successful transcription.
type TranscribeRequest struct {
	JobID        string `json:"job_id"`
	CleanedPath  string `json:"cleaned_path"`
	OriginalPath string `json:"original_path"`
}

// TranscribeResult holds the plain and timestamped transcripts.
type TranscribeResult struct {
	Text  string `json:"text"`
	Timed string `json:"timed,omitempty"`
}

// SummarizeRequest carries the transcript to condense.
type SummarizeRequest struct {
	JobID      string `json:"job_id"`
	Transcript string `json:"transcript"`
}

// SummarizeResult holds the summary text.
type SummarizeResult struct {
	Summary string `json:"summary"`
}

// FinalizeRequest carries every output written on completion.
type FinalizeRequest struct {
	JobID        string `json:"job_id"`
	Transcript   string `json:"transcript"`
	Timed        string `json:"timed,omitempty"`
	Summary      string `json:"summary"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
	VectorID     string `json:"vector_id,omitempty"`
}

// FinalizeResult reports what the guarded write did.
type FinalizeResult struct {
	Outcome    jobs.Outcome `json:"outcome"`
	TokenCount int          `json:"token_count"`
}

// MarkFailedRequest records why a job failed.
type MarkFailedRequest struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

// MarkFailedResult reports what the guarded write did.
type MarkFailedResult struct {
	Outcome jobs.Outcome `json:"outcome"`
}

// ThumbnailRequest names the uploaded object to grab a frame from.
type ThumbnailRequest struct {
	JobID     string `json:"job_id"`
	SourceKey string `json:"source_key"`
}

// ThumbnailResult holds the uploaded thumbnail key, empty when the input had
// no picture.
type ThumbnailResult struct {
	Key string `json:"key,omitempty"`
}

// IndexRequest carries the transcript to embed.
type IndexRequest struct {
	JobID      string `json:"job_id"`
	Transcript string `json:"transcript"`
}

// IndexResult holds the id of the stored vector.
type IndexResult struct {
	VectorID string `json:"vector_id"`
}

func (r DownloadRequest) Validate() error {
	return require(Download, map[string]string{"job id": r.JobID, "source key": r.SourceKey})
}

func (r PreprocessRequest) Validate() error {
	return require(Preprocess, map[string]string{"job id": r.JobID, "local path": r.LocalPath})
}

func (r TranscribeRequest) Validate() error {
	return require(Transcribe, map[string]string{"job id": r.JobID, "cleaned path": r.CleanedPath})
}

func (r SummarizeRequest) Validate() error {
	return require(Summarize, map[string]string{"job id": r.JobID, "transcript": r.Transcript})
}

func (r FinalizeRequest) Validate() error {
	return require(Finalize, map[string]string{"job id": r.JobID})
}

func (r MarkFailedRequest) Validate() error {
	return require(MarkFailed, map[string]string{"job id": r.JobID})
}

func (r ThumbnailRequest) Validate() error {
	return require(ExtractThumbnail, map[string]string{"job id": r.JobID, "source key": r.SourceKey})
}

func (r IndexRequest) Validate() error {
	return require(IndexTranscript, map[string]string{"job id": r.JobID, "transcript": r.Transcript})
}

// require reports the first blank field in a stable order.
func require(stage string, fields map[string]string) error {
	for _, name := range []string{"job id", "source key", "local path", "cleaned path", "transcript"} {
		value, ok := fields[name]
		if ok && strings.TrimSpace(value) == "" {
			return services.Wrap(services.ErrValidation, stage, "validate request", name+" is required", nil)
		}
	}
	return nil
}
