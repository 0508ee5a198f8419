package workflow

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"mediaflow/internal/activity"
	"mediaflow/internal/coherence"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/stages"
)

func (o *Orchestrator) pipeline(ctx context.Context, jobID, sourceKey string) error {
	dl, err := o.download(ctx, jobID, sourceKey)
	if err != nil {
		return err
	}

	var (
		tr    stages.TranscribeResult
		thumb stages.ThumbnailResult
	)
	if o.shape == ShapeFanOut {
		tr, thumb, err = o.fanOut(ctx, jobID, sourceKey, dl)
	} else {
		tr, err = o.transcribe(ctx, jobID, dl)
	}
	if err != nil {
		return err
	}

	idx, err := o.index(ctx, jobID, tr)
	if err != nil {
		return err
	}

	sum, err := o.summarize(ctx, jobID, tr)
	if err != nil {
		return err
	}

	_, err = step(ctx, o, stepDef{jobID: jobID, name: stages.Finalize, progress: jobs.ProgressFinalizing},
		func(ctx context.Context) (stages.FinalizeResult, error) {
			return activity.Execute(ctx, o.executor, stages.Finalize, o.acts.Finalize, stages.FinalizeRequest{
				JobID:        jobID,
				Transcript:   tr.Text,
				Timed:        tr.Timed,
				Summary:      sum.Summary,
				ThumbnailKey: thumb.Key,
				VectorID:     idx.VectorID,
			}, o.policy(stages.Finalize))
		})
	return err
}

func (o *Orchestrator) download(ctx context.Context, jobID, sourceKey string) (stages.DownloadResult, error) {
	return step(ctx, o, stepDef{jobID: jobID, name: stages.Download, progress: jobs.ProgressDownloading},
		func(ctx context.Context) (stages.DownloadResult, error) {
			return activity.Execute(ctx, o.executor, stages.Download, o.acts.Download, stages.DownloadRequest{
				JobID:     jobID,
				SourceKey: sourceKey,
			}, o.policy(stages.Download))
		})
}

// transcribe runs preprocess then transcribe on the downloaded file.
func (o *Orchestrator) transcribe(ctx context.Context, jobID string, dl stages.DownloadResult) (stages.TranscribeResult, error) {
	pre, err := step(ctx, o, stepDef{jobID: jobID, name: stages.Preprocess, progress: jobs.ProgressPreprocessing},
		func(ctx context.Context) (stages.PreprocessResult, error) {
			return activity.Execute(ctx, o.executor, stages.Preprocess, o.acts.Preprocess, stages.PreprocessRequest{
				JobID:     jobID,
				LocalPath: dl.LocalPath,
			}, o.policy(stages.Preprocess))
		})
	if err != nil {
		return stages.TranscribeResult{}, err
	}
	return step(ctx, o, stepDef{jobID: jobID, name: stages.Transcribe, progress: jobs.ProgressTranscribing},
		func(ctx context.Context) (stages.TranscribeResult, error) {
			return activity.Execute(ctx, o.executor, stages.Transcribe, o.acts.Transcribe, stages.TranscribeRequest{
				JobID:        jobID,
				CleanedPath:  pre.CleanedPath,
				OriginalPath: dl.LocalPath,
			}, o.policy(stages.Transcribe))
		})
}

// fanOut runs the transcription branch and thumbnail extraction side by side.
// Both branches always run to completion; a failure in one does not cancel
// the other, and each commits its own checkpoints.
func (o *Orchestrator) fanOut(ctx context.Context, jobID, sourceKey string, dl stages.DownloadResult) (stages.TranscribeResult, stages.ThumbnailResult, error) {
	var (
		tr              stages.TranscribeResult
		thumb           stages.ThumbnailResult
		trErr, thumbErr error
		g               errgroup.Group
	)
	g.Go(func() error {
		tr, trErr = o.transcribe(ctx, jobID, dl)
		return trErr
	})
	g.Go(func() error {
		thumb, thumbErr = step(ctx, o, stepDef{jobID: jobID, name: stages.ExtractThumbnail},
			func(ctx context.Context) (stages.ThumbnailResult, error) {
				return activity.Execute(ctx, o.executor, stages.ExtractThumbnail, o.acts.ExtractThumbnail, stages.ThumbnailRequest{
					JobID:     jobID,
					SourceKey: sourceKey,
				}, o.policy(stages.ExtractThumbnail))
			})
		return thumbErr
	})
	_ = g.Wait()
	return tr, thumb, joinBranchErrors(trErr, thumbErr)
}

// joinBranchErrors picks the error that decides the job's fate. A stage
// verdict wins, then infrastructure errors, then cancellation.
func joinBranchErrors(errs ...error) error {
	var cancelled, other error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if _, ok := activity.AsExecutionError(err); ok {
			return err
		}
		if err == errCancelled {
			cancelled = err
		} else if other == nil {
			other = err
		}
	}
	if other != nil {
		return other
	}
	return cancelled
}

// index embeds the transcript after the fan-out join. It is skipped when
// indexing is off or the transcript is empty.
func (o *Orchestrator) index(ctx context.Context, jobID string, tr stages.TranscribeResult) (stages.IndexResult, error) {
	if !o.indexing || strings.TrimSpace(tr.Text) == "" {
		return stages.IndexResult{}, nil
	}
	return step(ctx, o, stepDef{jobID: jobID, name: stages.IndexTranscript},
		func(ctx context.Context) (stages.IndexResult, error) {
			return activity.Execute(ctx, o.executor, stages.IndexTranscript, o.acts.IndexTranscript, stages.IndexRequest{
				JobID:      jobID,
				Transcript: tr.Text,
			}, o.policy(stages.IndexTranscript))
		})
}

// summarize skips the summarizer for incoherent transcripts and commits the
// fixed marker instead, so replay sees the same value either way.
func (o *Orchestrator) summarize(ctx context.Context, jobID string, tr stages.TranscribeResult) (stages.SummarizeResult, error) {
	def := stepDef{jobID: jobID, name: stages.Summarize, progress: jobs.ProgressSummarizing}
	return step(ctx, o, def, func(ctx context.Context) (stages.SummarizeResult, error) {
		report := coherence.Evaluate(tr.Text)
		if !report.Coherent {
			logging.WithContext(ctx, o.logger).Info("transcript incoherent; summary skipped",
				logging.String(logging.FieldEventType, "coherence_rejected"),
				logging.String("reason", report.Reason),
				logging.Int("words", report.Words),
			)
			return stages.SummarizeResult{Summary: coherence.NoCoherentNarrative}, nil
		}
		return activity.Execute(ctx, o.executor, stages.Summarize, o.acts.Summarize, stages.SummarizeRequest{
			JobID:      jobID,
			Transcript: tr.Text,
		}, o.policy(stages.Summarize))
	})
}
