package stages

import (
	"context"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// IndexTranscript embeds the transcript and stores the vector for similarity
// search. The vector store keeps the first write per job, so a replay returns
// the same id.
func (s *Stages) IndexTranscript(ctx context.Context, req IndexRequest) (IndexResult, error) {
	if err := req.Validate(); err != nil {
		return IndexResult{}, err
	}
	if s.embedder == nil {
		return IndexResult{}, services.Wrap(services.ErrConfiguration, IndexTranscript, "embed", "no embedder configured", nil)
	}
	activity.RecordHeartbeat(ctx, "embedding transcript")
	embedding, err := s.embedder.Embed(ctx, req.Transcript)
	if err != nil {
		return IndexResult{}, err
	}
	id, err := s.vectors.SaveVector(ctx, req.JobID, s.embedder.Model(), embedding)
	if err != nil {
		return IndexResult{}, services.Wrap(services.ErrTransient, IndexTranscript, "save vector", req.JobID, err)
	}
	logging.WithContext(ctx, s.logger).Info("transcript indexed",
		logging.String(logging.FieldEventType, "transcript_indexed"),
		logging.String("vector_id", id),
		logging.Int("dimensions", len(embedding)),
	)
	return IndexResult{VectorID: id}, nil
}
