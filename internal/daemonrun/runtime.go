package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediaflow/internal/activity"
	"mediaflow/internal/ai"
	"mediaflow/internal/config"
	"mediaflow/internal/guard"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/objectstore"
	"mediaflow/internal/stages"
	"mediaflow/internal/workflow"
)

const (
	heartbeatPersistInterval = 5 * time.Second
	executorDrainTimeout     = 10 * time.Second
)

// Runtime is the fully wired pipeline.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *jobs.Store
	Objects      objectstore.Store
	Executor     *activity.Executor
	Stages       *stages.Stages
	Orchestrator *workflow.Orchestrator
}

// Build opens the store and constructs every collaborator the orchestrator
// needs. Callers must Close the runtime.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	objects, err := objectstore.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	if ensurer, ok := objects.(interface{ EnsureBucket(context.Context) error }); ok {
		if err := ensurer.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
	}
	transcriber, err := ai.NewTranscriber(cfg)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}
	summarizer, err := ai.NewSummarizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}

	var embedder ai.Embedder
	if cfg.IndexingEnabled() {
		if embedder, err = ai.NewEmbedder(cfg); err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	st, err := stages.New(stages.Deps{
		Config:      cfg,
		Objects:     objects,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Guard:       guard.New(store, logger),
		Logger:      logger,
		Embedder:    embedder,
		Vectors:     store,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	executor := activity.NewExecutor(
		activity.WithWorkers(cfg.Workflow.WorkerCount),
		activity.WithHeartbeatSink(workflow.NewHeartbeatSink(store, logger), heartbeatPersistInterval),
		activity.WithLogger(logger),
	)
	orch, err := workflow.NewOrchestrator(workflow.Options{
		Config:     cfg,
		Store:      store,
		Executor:   executor,
		Activities: st,
		Logger:     logger,
	})
	if err != nil {
		executor.Close()
		_ = store.Close()
		return nil, err
	}

	return &Runtime{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Objects:      objects,
		Executor:     executor,
		Stages:       st,
		Orchestrator: orch,
	}, nil
}

// NewManager builds the polling manager over the runtime's orchestrator.
func (r *Runtime) NewManager() *workflow.Manager {
	poll := time.Duration(r.Config.Workflow.PollInterval) * time.Second
	mgr := workflow.NewManager(r.Store, r.Orchestrator, r.Config.Workflow.MaxConcurrentJobs, poll, r.Logger)
	mgr.SetNotifier(notifications.NewService(r.Config))
	return mgr
}

// Close drains idle workers and closes the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), executorDrainTimeout)
	defer cancel()
	if err := r.Executor.Shutdown(ctx); err != nil {
		r.Logger.Warn("executor shutdown incomplete", logging.Error(err))
	}
	return r.Store.Close()
}
