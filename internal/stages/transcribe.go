package stages

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// transcriptSidecar is written into the job's scratch directory before the
// inputs are removed. It outlives the inputs until finalize or mark-failed
// sweeps the directory.
const transcriptSidecar = "transcribe.json"

// Transcribe converts the normalized audio to text. The result is saved as a
// sidecar before the cleaned and original scratch files are removed, so an
// attempt replayed after the inputs are gone returns the same transcript.
func (s *Stages) Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResult, error) {
	if err := req.Validate(); err != nil {
		return TranscribeResult{}, err
	}
	sidecar := filepath.Join(filepath.Dir(req.CleanedPath), transcriptSidecar)
	if res, ok, err := s.readSidecar(ctx, sidecar); err != nil || ok {
		return res, err
	}
	activity.RecordHeartbeat(ctx, "transcribing "+filepath.Base(req.CleanedPath))

	transcript, err := s.transcriber.Transcribe(ctx, req.CleanedPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TranscribeResult{}, ctxErr
		}
		// An abandoned earlier attempt may have finished and removed the inputs.
		if res, ok, readErr := s.readSidecar(ctx, sidecar); readErr == nil && ok {
			return res, nil
		}
		return TranscribeResult{}, err
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		// Silence is a valid outcome; the coherence check handles it downstream.
		logging.WithContext(ctx, s.logger).Info("transcript empty",
			logging.String(logging.FieldEventType, "transcript_empty"),
		)
	}
	res := TranscribeResult{Text: text, Timed: transcript.Timed()}
	if err := writeSidecar(sidecar, res); err != nil {
		return TranscribeResult{}, services.Wrap(services.ErrTransient, Transcribe, "write sidecar", sidecar, err)
	}

	s.removePath(ctx, req.CleanedPath)
	s.removePath(ctx, req.OriginalPath)

	logging.WithContext(ctx, s.logger).Info("transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("characters", len(text)),
		logging.Int("segments", len(transcript.Segments)),
	)
	return res, nil
}

func (s *Stages) readSidecar(ctx context.Context, path string) (TranscribeResult, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TranscribeResult{}, false, nil
		}
		return TranscribeResult{}, false, services.Wrap(services.ErrTransient, Transcribe, "read sidecar", path, err)
	}
	var res TranscribeResult
	if err := json.Unmarshal(data, &res); err != nil {
		// A torn write; transcribe again if the inputs are still there.
		s.removePath(ctx, path)
		return TranscribeResult{}, false, nil
	}
	logging.WithContext(ctx, s.logger).Info("transcript restored from sidecar",
		logging.String(logging.FieldEventType, "transcript_sidecar_replay"),
		logging.String("path", path),
	)
	return res, true, nil
}

// writeSidecar writes res through a temp file and rename so readers never
// see a partial document.
func writeSidecar(path string, res TranscribeResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
