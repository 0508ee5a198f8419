package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediaflow/internal/logging"
)

const suffixLen = 8

// CleanResult contains the outcome of a sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// ActiveSet holds the ids of jobs whose scratch must be kept.
type ActiveSet map[string]struct{}

// NewActiveSet builds an ActiveSet from job ids.
func NewActiveSet(ids ...string) ActiveSet {
	set := make(ActiveSet, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (s ActiveSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// JobIDFromDir extracts the job id from a <jobID>-<8 hex> directory name.
func JobIDFromDir(name string) (string, bool) {
	idx := strings.LastIndexByte(name, '-')
	if idx <= 0 || len(name)-idx-1 != suffixLen {
		return "", false
	}
	for _, r := range name[idx+1:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	return name[:idx], true
}

// CleanStale removes scratch directories older than maxAge. Directories owned
// by an active job are kept regardless of age.
func CleanStale(ctx context.Context, scratchDir string, maxAge time.Duration, active ActiveSet, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, scratchDir, logger, "stale", func(name string, info os.FileInfo) bool {
		if id, ok := JobIDFromDir(name); ok && active.has(id) {
			return false
		}
		return info.ModTime().Before(cutoff)
	})
}

// CleanOrphaned removes job scratch directories whose job is not active.
// Directories that do not follow the job naming scheme are left for
// CleanStale.
func CleanOrphaned(ctx context.Context, scratchDir string, active ActiveSet, logger *slog.Logger) CleanResult {
	return sweep(ctx, scratchDir, logger, "orphaned", func(name string, _ os.FileInfo) bool {
		id, ok := JobIDFromDir(name)
		return ok && !active.has(id)
	})
}

func sweep(ctx context.Context, scratchDir string, logger *slog.Logger, kind string, remove func(string, os.FileInfo) bool) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return result
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: scratchDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(scratchDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !remove(entry.Name(), info) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove "+kind+" scratch directory", "scratch_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed "+kind+" scratch directory",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "scratch_cleanup"),
		)
	}

	return result
}

// DirInfo contains metadata about a scratch directory.
type DirInfo struct {
	Name    string
	Path    string
	JobID   string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns all directories in the scratch root, oldest first.
func ListDirectories(scratchDir string) ([]DirInfo, error) {
	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(scratchDir, entry.Name())
		size, _ := dirSize(dirPath)
		jobID, _ := JobIDFromDir(entry.Name())
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			JobID:   jobID,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ModTime.Before(dirs[j].ModTime) })
	return dirs, nil
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
