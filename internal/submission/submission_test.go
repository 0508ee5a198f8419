package submission_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/jobs"
	"mediaflow/internal/objectstore"
	"mediaflow/internal/services"
	"mediaflow/internal/submission"
	"mediaflow/internal/testsupport"
)

func newService(t *testing.T) (*submission.Service, *objectstore.LocalStore, *jobs.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return submission.New(objects, store, nil), objects, store
}

func TestUploadKey(t *testing.T) {
	got := submission.UploadKey("Alice Smith", "abc", "../My Talk.mp3")
	if got != "uploads/alice_smith/abc-My_Talk.mp3" {
		t.Fatalf("UploadKey = %q", got)
	}
}

func TestSubmitUploadsAndInserts(t *testing.T) {
	svc, objects, store := newService(t)
	src := filepath.Join(t.TempDir(), "episode 12.mp3")
	testsupport.WriteFile(t, src, 2048)

	job, err := svc.Submit(context.Background(), submission.Request{Path: src, Owner: "alice"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != jobs.StatusProcessing {
		t.Fatalf("status = %s", job.Status)
	}
	wantKey := "uploads/alice/" + job.ID + "-episode_12.mp3"
	if job.SourceKey != wantKey || job.OriginalFilename != "episode 12.mp3" || job.OwnerID != "alice" {
		t.Fatalf("job = %+v", job)
	}
	info, err := objects.Stat(context.Background(), wantKey)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 2048 {
		t.Fatalf("stored size = %d", info.Size)
	}
	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID = %v, %v", stored, err)
	}
}

func TestSubmitDefaultsOwner(t *testing.T) {
	svc, _, _ := newService(t)
	src := filepath.Join(t.TempDir(), "clip.wav")
	testsupport.WriteFile(t, src, 16)

	job, err := svc.Submit(context.Background(), submission.Request{Path: src})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.OwnerID != submission.DefaultOwner || !strings.HasPrefix(job.SourceKey, "uploads/local/") {
		t.Fatalf("job = %+v", job)
	}
}

func TestSubmitRejectsNonMedia(t *testing.T) {
	svc, _, store := newService(t)
	src := filepath.Join(t.TempDir(), "notes.zzunknown")
	if err := os.WriteFile(src, []byte("just some plain text notes\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := svc.Submit(context.Background(), submission.Request{Path: src})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Submit error = %v, want ErrValidation", err)
	}
	all, err := store.List(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("jobs after rejection = %d, %v", len(all), err)
	}
}

func TestSubmitMissingAndDirectory(t *testing.T) {
	svc, _, _ := newService(t)
	dir := t.TempDir()
	if _, err := svc.Submit(context.Background(), submission.Request{Path: filepath.Join(dir, "gone.mp3")}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing file error = %v", err)
	}
	if _, err := svc.Submit(context.Background(), submission.Request{Path: dir}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("directory error = %v", err)
	}
	if _, err := svc.Submit(context.Background(), submission.Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty path error = %v", err)
	}
}

func TestDetectContentTypeSniffsUnknownExtension(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	r := bytes.NewReader(wav)
	ct, err := submission.DetectContentType("take.zzmedia", r)
	if err != nil {
		t.Fatalf("DetectContentType: %v", err)
	}
	if !submission.IsMediaType(ct) {
		t.Fatalf("content type = %q, want audio", ct)
	}
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
		t.Fatalf("reader not rewound: %d", pos)
	}
	if ct, _ := submission.DetectContentType("movie.MKV", bytes.NewReader(nil)); ct != "video/x-matroska" {
		t.Fatalf("mkv = %q", ct)
	}
}

func TestRemoveDeletesObjectsThenRecord(t *testing.T) {
	svc, objects, store := newService(t)
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "clip.mp3")
	testsupport.WriteFile(t, src, 64)
	job, err := svc.Submit(ctx, submission.Request{Path: src})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := svc.Remove(ctx, job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := objects.Stat(ctx, job.SourceKey); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("object still present: %v", err)
	}
	if got, _ := store.GetByID(ctx, job.ID); got != nil {
		t.Fatalf("record still present")
	}
	if err := svc.Remove(ctx, job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second Remove = %v", err)
	}
}
