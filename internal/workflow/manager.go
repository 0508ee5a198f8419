package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
)

// JobSource lists jobs the manager should drive. *jobs.Store implements it.
type JobSource interface {
	ListResumable(ctx context.Context) ([]*jobs.Job, error)
	Stats(ctx context.Context) (map[jobs.Status]int, error)
}

// Runner runs a single job. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, in JobInput) (Result, error)
}

// Notifier receives job outcomes. notifications.Service implements it.
type Notifier interface {
	Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error
}

const notifyTimeout = 15 * time.Second

// Manager polls for resumable jobs and runs them with bounded concurrency.
type Manager struct {
	source       JobSource
	runner       Runner
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     Notifier
	slots        *semaphore.Weighted
	maxJobs      int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]time.Time
	lastErr error
	wake    chan struct{}
}

// NewManager builds a manager. maxJobs and pollInterval fall back to 1 and 5s.
func NewManager(source JobSource, runner Runner, maxJobs int, pollInterval time.Duration, logger *slog.Logger) *Manager {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Manager{
		source:       source,
		runner:       runner,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: pollInterval,
		slots:        semaphore.NewWeighted(int64(maxJobs)),
		maxJobs:      maxJobs,
		active:       make(map[string]time.Time),
		wake:         make(chan struct{}, 1),
	}
}

// SetNotifier publishes terminal outcomes of the jobs this manager runs.
// Call before Start.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.loop(runCtx)
	return nil
}

// Stop cancels in-flight jobs and waits for them to return. Interrupted jobs
// keep their checkpoints and resume on the next start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wake triggers an immediate poll, e.g. after a submission.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		m.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.wake:
		}
	}
}

func (m *Manager) poll(ctx context.Context) {
	pending, err := m.source.ListResumable(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "failed to list resumable jobs", "job_poll_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		return
	}
	for _, job := range pending {
		if ctx.Err() != nil {
			return
		}
		if !m.claim(job.ID) {
			continue
		}
		if !m.slots.TryAcquire(1) {
			m.release(job.ID)
			return
		}
		m.wg.Add(1)
		go m.runJob(ctx, job)
	}
}

func (m *Manager) runJob(ctx context.Context, job *jobs.Job) {
	defer m.wg.Done()
	defer m.slots.Release(1)
	defer m.release(job.ID)

	res, err := m.runner.Run(ctx, JobInput{JobID: job.ID, SourceKey: job.SourceKey})
	logger := m.logger.With(logging.JobID(job.ID))
	switch {
	case err == nil:
		logger.Info("job run finished",
			logging.String(logging.FieldEventType, "job_run_finished"),
			logging.String("progress", string(res.Status)),
		)
		m.notify(ctx, job, res.Status)
	case ctx.Err() != nil:
		logger.Info("job run interrupted by shutdown", logging.String(logging.FieldEventType, "job_run_interrupted"))
	case errors.Is(err, ErrJobBusy):
		logger.Debug("job owned by another process", logging.String(logging.FieldEventType, "job_busy"))
	default:
		m.setLastError(err)
		logging.WarnWithContext(logger, "job run returned error; will retry on next poll", "job_run_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect with 'mediaflow show "+job.ID+"'"),
			logging.String(logging.FieldImpact, "job stays PROCESSING until the next attempt"),
		)
	}
}

func (m *Manager) notify(ctx context.Context, job *jobs.Job, progress jobs.Progress) {
	if m.notifier == nil {
		return
	}
	var event notifications.Event
	switch progress {
	case jobs.ProgressCompleted:
		event = notifications.EventJobCompleted
	case jobs.ProgressFailed:
		event = notifications.EventJobFailed
	case jobs.ProgressCancelled:
		event = notifications.EventJobCancelled
	default:
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	err := m.notifier.Publish(notifyCtx, event, notifications.Payload{
		"jobID":    job.ID,
		"filename": job.OriginalFilename,
	})
	if err != nil {
		logging.WarnWithContext(m.logger, "notification failed", "notification_failed",
			logging.JobID(job.ID),
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "job outcome was not announced"),
		)
	}
}

func (m *Manager) claim(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[id]; busy {
		return false
	}
	m.active[id] = time.Now()
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
