// Package submission turns a local media file into a PROCESSING job: the
// file is uploaded to object storage and the job record is inserted for the
// daemon to pick up.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/objectstore"
	"mediaflow/internal/services"
	"mediaflow/internal/textutil"
)

// DefaultOwner is used when a submission names no owner.
const DefaultOwner = "local"

// JobStore is the persistence submission needs. *jobs.Store implements it.
type JobStore interface {
	Insert(ctx context.Context, job jobs.NewJob) (*jobs.Job, error)
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Service uploads media and manages job records.
type Service struct {
	objects objectstore.Store
	store   JobStore
	logger  *slog.Logger
	newID   func() string
}

// New builds a submission service.
func New(objects objectstore.Store, store JobStore, logger *slog.Logger) *Service {
	return &Service{
		objects: objects,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "submission"),
		newID:   uuid.NewString,
	}
}

// Request describes a local file to submit.
type Request struct {
	Path  string
	Owner string
	// Filename overrides the name recorded on the job. Defaults to the base
	// name of Path.
	Filename string
}

// UploadKey returns uploads/<owner>/<id>-<name>.
func UploadKey(owner, id, filename string) string {
	return fmt.Sprintf("uploads/%s/%s-%s", textutil.SanitizeToken(owner), id, textutil.SanitizeFileName(filename))
}

// Submit validates the media type, uploads the file and inserts the job.
func (s *Service) Submit(ctx context.Context, req Request) (*jobs.Job, error) {
	const op = "submit"
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "submission", op, "source path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submission", op, "resolve source path", err)
	}
	file, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "submission", op, abs, err)
		}
		return nil, services.Wrap(services.ErrValidation, "submission", op, "open source file", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submission", op, "stat source file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "submission", op, fmt.Sprintf("source path %q is a directory", abs), nil)
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = filepath.Base(abs)
	}
	contentType, err := DetectContentType(filename, file)
	if err != nil {
		return nil, err
	}
	if !IsMediaType(contentType) {
		return nil, services.Wrap(services.ErrValidation, "submission", op,
			fmt.Sprintf("invalid media type %q for %s", contentType, filename), nil)
	}

	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		owner = DefaultOwner
	}
	id := s.newID()
	key := UploadKey(owner, id, filename)

	if _, err := s.objects.Put(ctx, key, file, info.Size(), contentType); err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	job, err := s.store.Insert(ctx, jobs.NewJob{
		ID:               id,
		SourceKey:        key,
		OriginalFilename: filename,
		OwnerID:          owner,
	})
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logging.WarnWithContext(s.logger, "orphaned upload after failed insert", "upload_orphaned",
				logging.String("key", key),
				logging.Error(delErr),
				logging.String(logging.FieldErrorHint, "delete the object manually"),
				logging.String(logging.FieldImpact, "storage holds an object with no job"),
			)
		}
		return nil, fmt.Errorf("record job for %s: %w", filename, err)
	}

	s.logger.Info("media submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.JobID(id),
		logging.String("key", key),
		logging.String("content_type", contentType),
		logging.Int64("size_bytes", info.Size()),
	)
	return job, nil
}

// Remove deletes the job's stored objects and then its record. Object
// deletion failures are logged and do not block removal.
func (s *Service) Remove(ctx context.Context, jobID string) error {
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "submission", "remove", "job "+jobID+" does not exist", nil)
	}
	for _, key := range []string{job.SourceKey, job.ThumbnailKey} {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			logging.WarnWithContext(s.logger, "object delete failed", "object_delete_failed",
				logging.JobID(jobID),
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "object left in storage"),
			)
		}
	}
	if _, err := s.store.Delete(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job removed",
		logging.String(logging.FieldEventType, "job_removed"),
		logging.JobID(jobID),
	)
	return nil
}

// mediaTypes covers common media extensions regardless of the host's
// mime.types files.
var mediaTypes = map[string]string{
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// DetectContentType resolves the MIME type from the extension, falling back
// to sniffing the first 512 bytes. r is rewound afterwards.
func DetectContentType(filename string, r io.ReadSeeker) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := mediaTypes[ext]; ok {
		return ct, nil
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return stripParams(ct), nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", services.Wrap(services.ErrValidation, "submission", "detect type", filename, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", services.Wrap(services.ErrValidation, "submission", "detect type", "rewind", err)
	}
	return stripParams(http.DetectContentType(head[:n])), nil
}

// IsMediaType reports whether ct is audio/* or video/*.
func IsMediaType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/")
}

func stripParams(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}
