package stages

import (
	"context"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
)

// Summarize condenses the transcript with the configured summarizer.
func (s *Stages) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResult, error) {
	if err := req.Validate(); err != nil {
		return SummarizeResult{}, err
	}
	activity.RecordHeartbeat(ctx, "summarizing")
	summary, err := s.summarizer.Summarize(ctx, req.Transcript)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return SummarizeResult{}, ctxErr
		}
		return SummarizeResult{}, err
	}
	logging.WithContext(ctx, s.logger).Info("summary generated",
		logging.String(logging.FieldEventType, "summary_generated"),
		logging.Int("characters", len(summary)),
	)
	return SummarizeResult{Summary: summary}, nil
}
