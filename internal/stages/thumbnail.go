package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
	"mediaflow/internal/media"
	"mediaflow/internal/services"
)

// ThumbnailKey returns the object key a job's thumbnail is stored under.
func ThumbnailKey(jobID string) string {
	return "thumbnails/" + jobID + ".jpg"
}

// ExtractThumbnail downloads its own copy of the source, grabs one frame and
// uploads it. Audio-only inputs produce an empty key. The scratch directory is
// always removed.
func (s *Stages) ExtractThumbnail(ctx context.Context, req ThumbnailRequest) (ThumbnailResult, error) {
	if err := req.Validate(); err != nil {
		return ThumbnailResult{}, err
	}
	dir, err := s.newScratchDir(ExtractThumbnail, req.JobID)
	if err != nil {
		return ThumbnailResult{}, err
	}
	defer s.removePath(ctx, dir)

	local, err := s.fetch(ctx, ExtractThumbnail, req.SourceKey, dir)
	if err != nil {
		return ThumbnailResult{}, err
	}
	frame := filepath.Join(dir, "thumbnail.jpg")
	activity.RecordHeartbeat(ctx, "extracting frame")
	if err := s.media.Thumbnail(ctx, local, frame, s.thumbnailOffset); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ThumbnailResult{}, ctxErr
		}
		if errors.Is(err, media.ErrNoVideo) {
			logging.WithContext(ctx, s.logger).Info("thumbnail skipped",
				logging.String(logging.FieldEventType, "thumbnail_skipped"),
				logging.String("reason", "no video stream"),
			)
			return ThumbnailResult{}, nil
		}
		return ThumbnailResult{}, services.Wrap(services.ErrExternalTool, ExtractThumbnail, "ffmpeg frame", "", err)
	}

	f, err := os.Open(frame)
	if err != nil {
		return ThumbnailResult{}, services.Wrap(services.ErrExternalTool, ExtractThumbnail, "open frame", "ffmpeg produced no image", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return ThumbnailResult{}, services.Wrap(services.ErrTransient, ExtractThumbnail, "stat frame", frame, err)
	}
	key := ThumbnailKey(req.JobID)
	if _, err := s.objects.Put(ctx, key, f, stat.Size(), "image/jpeg"); err != nil {
		return ThumbnailResult{}, err
	}
	logging.WithContext(ctx, s.logger).Info("thumbnail uploaded",
		logging.String(logging.FieldEventType, "thumbnail_uploaded"),
		logging.String("key", key),
		logging.Int64("bytes", stat.Size()),
	)
	return ThumbnailResult{Key: key}, nil
}
