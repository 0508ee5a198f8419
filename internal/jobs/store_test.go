package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediaflow/internal/jobs"
	"mediaflow/internal/testsupport"
)

func TestInsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "uploads/alice/abc-talk.mp3")
	if job.Status != jobs.StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if job.TokenCount != nil {
		t.Fatalf("expected nil token count before finalize, got %d", *job.TokenCount)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil || fetched.SourceKey != "uploads/alice/abc-talk.mp3" || fetched.OwnerID != "tester" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	missing, err := store.GetByID(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("expected nil,nil for missing job, got %#v, %v", missing, err)
	}
}

func TestInsertRequiresIDAndSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Insert(context.Background(), jobs.NewJob{SourceKey: "k"}); err == nil {
		t.Fatal("expected error without id")
	}
	if _, err := store.Insert(context.Background(), jobs.NewJob{ID: "x"}); err == nil {
		t.Fatal("expected error without source key")
	}
}

func TestApplyTerminalIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	tokens := 3
	res, err := store.ApplyTerminal(ctx, job.ID, jobs.StatusCompleted, jobs.TerminalFields{
		Transcript: "one two three",
		Summary:    "short",
		TokenCount: &tokens,
	})
	if err != nil {
		t.Fatalf("ApplyTerminal: %v", err)
	}
	if res.Outcome != jobs.OutcomeApplied {
		t.Fatalf("expected applied, got %s", res.Outcome)
	}

	other := 99
	res, err = store.ApplyTerminal(ctx, job.ID, jobs.StatusCompleted, jobs.TerminalFields{
		Transcript: "different text entirely",
		TokenCount: &other,
	})
	if err != nil {
		t.Fatalf("second ApplyTerminal: %v", err)
	}
	if res.Outcome != jobs.OutcomeAlreadyTerminal || res.Current != jobs.StatusCompleted {
		t.Fatalf("expected already terminal COMPLETED, got %+v", res)
	}

	res, err = store.ApplyTerminal(ctx, job.ID, jobs.StatusFailed, jobs.TerminalFields{FailureReason: "late"})
	if err != nil {
		t.Fatalf("failed ApplyTerminal: %v", err)
	}
	if res.Outcome != jobs.OutcomeAlreadyTerminal {
		t.Fatalf("expected FAILED write to be ignored, got %+v", res)
	}

	stored, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobs.StatusCompleted || stored.Transcript != "one two three" {
		t.Fatalf("terminal record changed: %#v", stored)
	}
	if stored.TokenCount == nil || *stored.TokenCount != 3 {
		t.Fatalf("expected token count 3, got %v", stored.TokenCount)
	}
	if stored.FailureReason != "" {
		t.Fatalf("expected no failure reason, got %q", stored.FailureReason)
	}
}

func TestApplyTerminalMissingAndInvalid(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	res, err := store.ApplyTerminal(ctx, "ghost", jobs.StatusFailed, jobs.TerminalFields{FailureReason: "x"})
	if err != nil {
		t.Fatalf("ApplyTerminal: %v", err)
	}
	if res.Outcome != jobs.OutcomeMissing {
		t.Fatalf("expected missing outcome, got %s", res.Outcome)
	}
	if _, err := store.ApplyTerminal(ctx, "ghost", jobs.StatusProcessing, jobs.TerminalFields{}); err == nil {
		t.Fatal("expected error for non-terminal target")
	}
}

func TestCheckpointsAreWriteOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	if _, ok, err := store.LoadCheckpoint(ctx, job.ID, "download"); err != nil || ok {
		t.Fatalf("expected no checkpoint, got ok=%v err=%v", ok, err)
	}

	first, err := store.SaveCheckpoint(ctx, job.ID, "download", []byte(`{"local_path":"/a"}`))
	if err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if string(first) != `{"local_path":"/a"}` {
		t.Fatalf("unexpected stored payload %s", first)
	}
	second, err := store.SaveCheckpoint(ctx, job.ID, "download", []byte(`{"local_path":"/b"}`))
	if err != nil {
		t.Fatalf("duplicate SaveCheckpoint: %v", err)
	}
	if string(second) != `{"local_path":"/a"}` {
		t.Fatalf("expected first payload to win, got %s", second)
	}

	if _, err := store.SaveCheckpoint(ctx, job.ID, "preprocess", []byte(`{}`)); err != nil {
		t.Fatalf("SaveCheckpoint preprocess: %v", err)
	}
	list, err := store.ListCheckpoints(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(list) != 2 || list[0].Stage != "download" || list[1].Stage != "preprocess" {
		t.Fatalf("unexpected checkpoints: %+v", list)
	}
}

func TestConcurrentCheckpointWritersObserveSameValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	const writers = 8
	results := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte('a' + i)}
			stored, err := store.SaveCheckpoint(ctx, job.ID, "summarize", payload)
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
				return
			}
			results[i] = string(stored)
		}(i)
	}
	wg.Wait()
	for i := 1; i < writers; i++ {
		if results[i] != results[0] {
			t.Fatalf("writers observed different payloads: %q vs %q", results[0], results[i])
		}
	}
}

func TestVectorsAreWriteOnceAndSearchable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	garden := testsupport.NewJob(t, store, "")
	cooking := testsupport.NewJob(t, store, "")

	id, err := store.SaveVector(ctx, garden.ID, "text-embedding-3-small", []float64{1, 0, 0})
	if err != nil || id == "" {
		t.Fatalf("SaveVector: %q %v", id, err)
	}
	again, err := store.SaveVector(ctx, garden.ID, "text-embedding-3-small", []float64{0, 1, 0})
	if err != nil || again != id {
		t.Fatalf("replayed SaveVector = %q %v, want %q", again, err, id)
	}
	vec, err := store.GetVector(ctx, garden.ID)
	if err != nil || vec == nil {
		t.Fatalf("GetVector: %+v %v", vec, err)
	}
	if len(vec.Embedding) != 3 || vec.Embedding[0] != 1 || vec.Embedding[1] != 0 {
		t.Fatalf("first embedding not kept: %v", vec.Embedding)
	}
	if _, err := store.SaveVector(ctx, cooking.ID, "text-embedding-3-small", []float64{0.6, 0.8, 0}); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}
	if _, err := store.SaveVector(ctx, "other-dims", "m", []float64{1, 0}); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	matches, err := store.SearchVectors(ctx, []float64{0, 1, 0}, 5)
	if err != nil {
		t.Fatalf("SearchVectors: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 same-dimension matches, got %+v", matches)
	}
	if matches[0].JobID != cooking.ID || matches[1].JobID != garden.ID {
		t.Fatalf("unexpected ranking %+v", matches)
	}
	if d := matches[0].Score - 0.8; d > 1e-6 || d < -1e-6 {
		t.Fatalf("score = %f, want 0.8", matches[0].Score)
	}
	if top, _ := store.SearchVectors(ctx, []float64{0, 1, 0}, 1); len(top) != 1 {
		t.Fatalf("limit ignored: %+v", top)
	}
	if _, err := store.SaveVector(ctx, garden.ID, "m", nil); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestApplyTerminalStoresVectorID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	if _, err := store.ApplyTerminal(ctx, job.ID, jobs.StatusCompleted, jobs.TerminalFields{Transcript: "x", VectorID: "7"}); err != nil {
		t.Fatalf("ApplyTerminal: %v", err)
	}
	stored, _ := store.GetByID(ctx, job.ID)
	if stored.VectorID != "7" {
		t.Fatalf("vector id = %q", stored.VectorID)
	}
}

func TestRunProgressAndCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	progress, err := store.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress != jobs.ProgressStarting {
		t.Fatalf("expected STARTING for fresh job, got %s", progress)
	}

	run, err := store.EnsureRun(ctx, job.ID)
	if err != nil {
		t.Fatalf("EnsureRun: %v", err)
	}
	if run.Progress != jobs.ProgressStarting || run.CancelRequested {
		t.Fatalf("unexpected new run: %+v", run)
	}
	if err := store.SetProgress(ctx, job.ID, jobs.ProgressTranscribing); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if err := store.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	run, err = store.EnsureRun(ctx, job.ID)
	if err != nil {
		t.Fatalf("EnsureRun again: %v", err)
	}
	if run.Progress != jobs.ProgressTranscribing || !run.CancelRequested {
		t.Fatalf("EnsureRun must not reset state: %+v", run)
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpdateHeartbeat(ctx, job.ID, at, "frame=120"); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}
	run, err = store.GetRun(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.LastHeartbeat == nil || !run.LastHeartbeat.Equal(at) || run.HeartbeatDetail != "frame=120" {
		t.Fatalf("unexpected heartbeat fields: %+v", run)
	}
}

func TestProgressPrefersTerminalStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	if err := store.SetProgress(ctx, job.ID, jobs.ProgressFinalizing); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if _, err := store.ApplyTerminal(ctx, job.ID, jobs.StatusCompleted, jobs.TerminalFields{Transcript: "x"}); err != nil {
		t.Fatalf("ApplyTerminal: %v", err)
	}
	progress, err := store.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress != jobs.ProgressCompleted {
		t.Fatalf("expected COMPLETED, got %s", progress)
	}
}

func TestListResumableSkipsCancelledAndTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	fresh := testsupport.NewJob(t, store, "")
	running := testsupport.NewJob(t, store, "")
	cancelled := testsupport.NewJob(t, store, "")
	done := testsupport.NewJob(t, store, "")

	if err := store.SetProgress(ctx, running.ID, jobs.ProgressDownloading); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if err := store.SetProgress(ctx, cancelled.ID, jobs.ProgressCancelled); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if _, err := store.ApplyTerminal(ctx, done.ID, jobs.StatusCompleted, jobs.TerminalFields{}); err != nil {
		t.Fatalf("ApplyTerminal: %v", err)
	}

	resumable, err := store.ListResumable(ctx)
	if err != nil {
		t.Fatalf("ListResumable: %v", err)
	}
	got := make(map[string]bool)
	for _, job := range resumable {
		got[job.ID] = true
	}
	if len(got) != 2 || !got[fresh.ID] || !got[running.ID] {
		t.Fatalf("unexpected resumable set: %v", got)
	}

	processing, err := store.List(ctx, jobs.StatusProcessing)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(processing) != 3 {
		t.Fatalf("expected 3 processing jobs, got %d", len(processing))
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StatusProcessing] != 3 || stats[jobs.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestDeleteRemovesRunAndCheckpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "")

	if _, err := store.EnsureRun(ctx, job.ID); err != nil {
		t.Fatalf("EnsureRun: %v", err)
	}
	if _, err := store.SaveCheckpoint(ctx, job.ID, "download", []byte(`{}`)); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if _, err := store.SaveVector(ctx, job.ID, "m", []float64{1, 0}); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}
	removed, err := store.Delete(ctx, job.ID)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	if run, _ := store.GetRun(ctx, job.ID); run != nil {
		t.Fatalf("expected run removed, got %+v", run)
	}
	if _, ok, _ := store.LoadCheckpoint(ctx, job.ID, "download"); ok {
		t.Fatal("expected checkpoint removed")
	}
	if vec, _ := store.GetVector(ctx, job.ID); vec != nil {
		t.Fatalf("expected vector removed, got %+v", vec)
	}
	removed, err = store.Delete(ctx, job.ID)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := jobs.OpenPath(filepath.Join(cfg.Paths.DataDir, "mediaflow.db"))
	if err != nil {
		if errors.Is(err, jobs.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch: %v", err)
		}
		t.Fatalf("OpenPath: %v", err)
	}
	defer reopened.Close()
	fetched, err := reopened.GetByID(context.Background(), job.ID)
	if err != nil || fetched == nil {
		t.Fatalf("expected job after reopen, got %#v err=%v", fetched, err)
	}
}
