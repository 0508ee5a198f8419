package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/staging"
	"mediaflow/internal/workflow"
)

// Daemon owns the process lock and the workflow manager.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// LockPath returns the process lock location for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.LockDir(), "mediaflowd.lock")
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, sweeps scratch and launches the workflow
// manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaflow daemon instance is already running")
	}

	d.SweepScratch(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("mediaflow daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. Jobs in
// flight keep their checkpoints and resume on the next start.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediaflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Wake asks the manager to poll immediately.
func (d *Daemon) Wake() {
	d.workflow.Wake()
}

// SweepScratch removes scratch directories that no resumable job owns, then
// anything older than the configured maximum age.
func (d *Daemon) SweepScratch(ctx context.Context) staging.CleanResult {
	resumable, err := d.store.ListResumable(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "scratch sweep skipped", "scratch_sweep_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"),
			logging.String(logging.FieldImpact, "orphaned scratch directories kept until next start"),
		)
		return staging.CleanResult{}
	}
	ids := make([]string, 0, len(resumable))
	for _, job := range resumable {
		ids = append(ids, job.ID)
	}
	active := staging.NewActiveSet(ids...)

	scratch := d.cfg.Paths.ScratchDir
	result := staging.CleanOrphaned(ctx, scratch, active, d.logger)
	if hours := d.cfg.Workflow.ScratchMaxAgeHours; hours > 0 {
		stale := staging.CleanStale(ctx, scratch, time.Duration(hours)*time.Hour, active, d.logger)
		result.Removed = append(result.Removed, stale.Removed...)
		result.Errors = append(result.Errors, stale.Errors...)
	}
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("scratch sweep finished",
			logging.String(logging.FieldEventType, "scratch_sweep"),
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
		)
	}
	return result
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// IsRunning reports whether another process holds the daemon lock for cfg.
func IsRunning(cfg *config.Config) (bool, error) {
	path := LockPath(cfg)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
