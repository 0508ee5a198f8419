package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/textutil"
)

// heartbeatEvery is how many bytes a copy moves between heartbeats.
const heartbeatEvery = 4 << 20

// Download streams the uploaded object into a fresh scratch directory. The
// directory is removed on any exit other than success, panics included.
func (s *Stages) Download(ctx context.Context, req DownloadRequest) (DownloadResult, error) {
	if err := req.Validate(); err != nil {
		return DownloadResult{}, err
	}
	dir, err := s.newScratchDir(Download, req.JobID)
	if err != nil {
		return DownloadResult{}, err
	}
	kept := false
	defer func() {
		if !kept {
			s.removePath(ctx, dir)
		}
	}()
	local, err := s.fetch(ctx, Download, req.SourceKey, dir)
	if err != nil {
		return DownloadResult{}, err
	}
	kept = true
	return DownloadResult{LocalPath: local}, nil
}

// fetch copies key into dir as <random>_<basename>.
func (s *Stages) fetch(ctx context.Context, stage, key, dir string) (string, error) {
	body, info, err := s.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	name := fmt.Sprintf("%s_%s", shortID(), textutil.SanitizeFileName(path.Base(key)))
	local := filepath.Join(dir, name)
	out, err := os.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stage, "create local file", local, err)
	}
	written, err := io.Copy(out, &heartbeatReader{ctx: ctx, r: body})
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrTransient, stage, "copy object", key, err)
	}
	if info.Size > 0 && written != info.Size {
		return "", services.Wrap(services.ErrTransient, stage, "copy object",
			fmt.Sprintf("short read: got %d of %d bytes", written, info.Size), nil)
	}
	logging.WithContext(ctx, s.logger).Info("object downloaded",
		logging.String(logging.FieldEventType, "object_downloaded"),
		logging.String("key", key),
		logging.String("path", local),
		logging.Int64("bytes", written),
	)
	return local, nil
}

// heartbeatReader records a heartbeat as bytes flow and stops on cancellation.
type heartbeatReader struct {
	ctx   context.Context
	r     io.Reader
	total int64
	since int64
}

func (h *heartbeatReader) Read(p []byte) (int, error) {
	if err := h.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := h.r.Read(p)
	h.total += int64(n)
	h.since += int64(n)
	if h.since >= heartbeatEvery || (err == io.EOF && h.total > 0) {
		h.since = 0
		activity.RecordHeartbeat(h.ctx, fmt.Sprintf("bytes=%d", h.total))
	}
	return n, err
}
