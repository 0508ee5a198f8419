package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaflow/internal/daemon"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/workflow"
)

type noopRunner struct{}

func (noopRunner) Run(_ context.Context, in workflow.JobInput) (workflow.Result, error) {
	return workflow.Result{JobID: in.JobID, Status: jobs.ProgressStarting}, nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *jobs.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.ScratchMaxAgeHours = 1
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(store, noopRunner{}, 1, time.Hour, logging.NewNop())
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, store, cfg.Paths.ScratchDir
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() || status.LockFilePath == "" || status.DatabasePath == "" {
		t.Fatalf("status = %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first, err := daemon.New(cfg, store, nil, workflow.NewManager(store, noopRunner{}, 1, time.Hour, nil))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, store, nil, workflow.NewManager(store, noopRunner{}, 1, time.Hour, nil))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	if running, err := daemon.IsRunning(cfg); err != nil || !running {
		t.Fatalf("IsRunning = %v, %v", running, err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail")
	}
}

func TestIsRunningWithoutLockFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	running, err := daemon.IsRunning(cfg)
	if err != nil || running {
		t.Fatalf("IsRunning = %v, %v", running, err)
	}
}

func TestSweepScratchKeepsResumableJobs(t *testing.T) {
	d, store, scratch := newDaemon(t)
	job := testsupport.NewJob(t, store, "")

	keep := filepath.Join(scratch, job.ID+"-0a1b2c3d")
	orphan := filepath.Join(scratch, "00000000-0000-4000-8000-000000000000-0a1b2c3d")
	stale := filepath.Join(scratch, "leftover")
	for _, dir := range []string{keep, orphan, stale} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-3 * time.Hour)
	for _, dir := range []string{keep, stale} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := d.SweepScratch(context.Background())
	if len(result.Removed) != 2 {
		t.Fatalf("removed = %v", result.Removed)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("resumable job scratch removed: %v", err)
	}
	for _, gone := range []string{orphan, stale} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("%s should be removed", gone)
		}
	}
}
