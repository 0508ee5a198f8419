package stages

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
	"mediaflow/internal/media"
	"mediaflow/internal/services"
)

// Preprocess normalizes the download into 16 kHz mono PCM beside it. The
// input file is left in place for the transcribe stage to remove.
func (s *Stages) Preprocess(ctx context.Context, req PreprocessRequest) (PreprocessResult, error) {
	if err := req.Validate(); err != nil {
		return PreprocessResult{}, err
	}
	if _, err := os.Stat(req.LocalPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PreprocessResult{}, services.Wrap(services.ErrValidation, Preprocess, "stat input", "downloaded file is missing", err)
		}
		return PreprocessResult{}, services.Wrap(services.ErrTransient, Preprocess, "stat input", req.LocalPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(req.LocalPath), filepath.Ext(req.LocalPath))
	cleaned := filepath.Join(filepath.Dir(req.LocalPath), base+".16k.wav")

	err := s.media.Normalize(ctx, req.LocalPath, cleaned, s.sampleRate, func(p media.Progress) {
		activity.RecordHeartbeat(ctx, p.String())
	})
	if err != nil {
		s.removePath(ctx, cleaned)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PreprocessResult{}, ctxErr
		}
		if errors.Is(err, media.ErrNoAudio) {
			return PreprocessResult{}, services.Wrap(services.ErrValidation, Preprocess, "normalize", "input has no audio", err)
		}
		return PreprocessResult{}, services.Wrap(services.ErrExternalTool, Preprocess, "ffmpeg normalize", "", err)
	}
	logging.WithContext(ctx, s.logger).Info("audio normalized",
		logging.String(logging.FieldEventType, "audio_normalized"),
		logging.String("path", cleaned),
		logging.Int("sample_rate", s.sampleRate),
	)
	return PreprocessResult{CleanedPath: cleaned}, nil
}
