package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewJob inserts a PROCESSING job with a fresh id and the given source key.
func NewJob(t testing.TB, store *jobs.Store, sourceKey string) *jobs.Job {
	t.Helper()

	id := uuid.NewString()
	if sourceKey == "" {
		sourceKey = "uploads/tester/" + id + "-clip.mp3"
	}
	job, err := store.Insert(context.Background(), jobs.NewJob{
		ID:               id,
		SourceKey:        sourceKey,
		OriginalFilename: "clip.mp3",
		OwnerID:          "tester",
	})
	if err != nil {
		t.Fatalf("insert job: %v", err)
	}
	return job
}
