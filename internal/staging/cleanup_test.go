package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaflow/internal/logging"
)

const jobA = "7d3f0c1e-5a4b-4c2d-9e8f-0a1b2c3d4e5f"

func mkdirAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(path, when, when); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
}

func TestJobIDFromDir(t *testing.T) {
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{jobA + "-0a1b2c3d", jobA, true},
		{jobA + "-0A1B2C3D", "", false},
		{jobA, "", false},
		{"tmp-123", "", false},
		{"-0a1b2c3d", "", false},
	}
	for _, tc := range cases {
		id, ok := JobIDFromDir(tc.name)
		if id != tc.id || ok != tc.ok {
			t.Errorf("JobIDFromDir(%q) = %q, %v; want %q, %v", tc.name, id, ok, tc.id, tc.ok)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldDirectoriesExceptActiveJobs(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "leftover")
	activeDir := filepath.Join(root, jobA+"-deadbeef")
	recentDir := filepath.Join(root, "recent")
	mkdirAged(t, oldDir, 2*time.Hour)
	mkdirAged(t, activeDir, 2*time.Hour)
	mkdirAged(t, recentDir, 0)

	result := CleanStale(context.Background(), root, time.Hour, NewActiveSet(jobA), logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("removed = %v, want [%s]", result.Removed, oldDir)
	}
	for _, keep := range []string{activeDir, recentDir} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should still exist: %v", keep, err)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	oldFile := filepath.Join(root, "old-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	when := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, when, when); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, nil, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals for files, got %v", result.Removed)
	}
}

func TestCleanOrphanedKeepsActiveAndForeignDirectories(t *testing.T) {
	root := t.TempDir()
	active := filepath.Join(root, jobA+"-0a1b2c3d")
	orphan := filepath.Join(root, "11111111-2222-3333-4444-555555555555-cafef00d")
	foreign := filepath.Join(root, "lost+found")
	for _, dir := range []string{active, orphan, foreign} {
		mkdirAged(t, dir, 0)
	}

	result := CleanOrphaned(context.Background(), root, NewActiveSet(jobA, " "), nil)

	if len(result.Removed) != 1 || result.Removed[0] != orphan {
		t.Fatalf("removed = %v, want [%s]", result.Removed, orphan)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("active dir removed: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("foreign dir removed: %v", err)
	}
}

func TestListDirectoriesReportsSizeAndJob(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, jobA+"-0a1b2c3d")
	newer := filepath.Join(root, "misc")
	mkdirAged(t, newer, 0)
	mkdirAged(t, older, time.Hour)
	if err := os.WriteFile(filepath.Join(older, "clip.wav"), make([]byte, 128), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Writing a file bumps the directory mtime.
	when := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, when, when); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("got %d dirs", len(dirs))
	}
	if dirs[0].Path != older || dirs[0].JobID != jobA || dirs[0].Size != 128 {
		t.Fatalf("first dir = %+v", dirs[0])
	}
	if dirs[1].JobID != "" {
		t.Fatalf("misc dir job id = %q", dirs[1].JobID)
	}

	missing, err := ListDirectories(filepath.Join(root, "absent"))
	if err != nil || missing != nil {
		t.Fatalf("missing root = %v, %v", missing, err)
	}
}
