package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// jobLocks hands out per-job file locks under the data directory so two
// processes never drive the same job.
type jobLocks struct {
	dir string
}

func newJobLocks(dir string) *jobLocks {
	return &jobLocks{dir: dir}
}

// Forget deletes the lock file of a removed job. It fails with ErrJobBusy
// while a run still holds the lock.
func (o *Controller) Forget(jobID string) error {
	unlock, err := o.locks.acquire(jobID)
	if err != nil {
		return err
	}
	err = os.Remove(o.locks.path(jobID))
	unlock()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *jobLocks) path(jobID string) string {
	return filepath.Join(l.dir, jobID+".lock")
}

// acquire takes the job's lock without blocking. The returned func releases
// it; the file itself is kept until the job is removed.
func (l *jobLocks) acquire(jobID string) (func(), error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := l.path(jobID)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, jobID)
	}
	return func() {
		_ = lock.Unlock()
	}, nil
}
