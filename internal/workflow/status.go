package workflow

import (
	"context"
	"sort"
	"time"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
)

// ActiveJob is a job currently being driven by the manager.
type ActiveJob struct {
	ID      string
	Started time.Time
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	MaxJobs   int
	Active    []ActiveJob
	LastError string
	JobStats  map[jobs.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{Running: m.running, MaxJobs: m.maxJobs}
	for id, started := range m.active {
		summary.Active = append(summary.Active, ActiveJob{ID: id, Started: started})
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()

	sort.Slice(summary.Active, func(i, j int) bool {
		return summary.Active[i].Started.Before(summary.Active[j].Started)
	})
	stats, err := m.source.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}
	summary.JobStats = stats
	return summary
}
