package stages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// shortID returns eight random hex characters.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// newScratchDir creates <scratch>/<jobID>-<random>.
func (s *Stages) newScratchDir(stage, jobID string) (string, error) {
	if err := os.MkdirAll(s.scratchDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, stage, "create scratch root", s.scratchDir, err)
	}
	dir := filepath.Join(s.scratchDir, fmt.Sprintf("%s-%s", jobID, shortID()))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, stage, "create scratch dir", dir, err)
	}
	return dir, nil
}

// removePath deletes a scratch file or directory. Failures are logged only.
func (s *Stages) removePath(ctx context.Context, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "scratch cleanup failed", "scratch_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed until the next sweep"),
		)
	}
}

// ownsPath reports whether path sits strictly inside the scratch root.
func (s *Stages) ownsPath(path string) bool {
	rel, err := filepath.Rel(s.scratchDir, path)
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// SweepJobScratch removes every <scratch>/<jobID>-* directory and returns the
// paths removed. Errors are logged.
func (s *Stages) SweepJobScratch(ctx context.Context, jobID string) []string {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.scratchDir, globEscape(jobID)+"-*"))
	if err != nil {
		return nil
	}
	removed := make([]string, 0, len(matches))
	for _, dir := range matches {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		s.removePath(ctx, dir)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			removed = append(removed, dir)
		}
	}
	return removed
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
