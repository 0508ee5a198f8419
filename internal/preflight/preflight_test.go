package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/objectstore"
	"mediaflow/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary", Description: "Needed for things", Optional: true},
		{Name: "Empty"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Detail != present {
		t.Fatalf("present binary = %+v", results[0])
	}
	if results[1].Passed || !results[1].Optional {
		t.Fatalf("missing binary = %+v", results[1])
	}
	if results[1].Detail != `binary "clearly-not-present-binary" not found (needed for things)` {
		t.Fatalf("missing detail = %q", results[1].Detail)
	}
	if results[2].Passed || results[2].Detail != "command not configured" {
		t.Fatalf("empty command = %+v", results[2])
	}
	if !Failed(results) {
		t.Fatal("required empty command should fail the run")
	}
	if Failed(results[:2]) {
		t.Fatal("optional failures should not fail the run")
	}
}

func TestRequirementsIncludeUVXForWhisperX(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegBinary = "/opt/ff/bin/ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 2 || reqs[1].Command != "/opt/ff/bin/ffprobe" {
		t.Fatalf("requirements = %+v", reqs)
	}
	cfg.AI.Transcriber = config.TranscriberWhisperX
	reqs = Requirements(&cfg)
	if len(reqs) != 3 || reqs[2].Command != "uvx" {
		t.Fatalf("whisperx requirements = %+v", reqs)
	}
}

func TestCheckSummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"summary": "A fox jumps."})
	}))
	defer srv.Close()

	if result := CheckSummarizer(context.Background(), srv.URL); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckSummarizer(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestCheckSummarizerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckSummarizer(context.Background(), srv.URL)
	if result.Passed {
		t.Fatal("expected failure for 401")
	}
}

func TestCheckObjectStore(t *testing.T) {
	store, err := objectstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if result := CheckObjectStore(context.Background(), store); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestRunAllWithLocalBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg, nil)
	names := make(map[string]Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	for _, want := range []string{"Scratch directory", "Data directory", "FFmpeg", "FFprobe", "Object storage", "OpenAI API key"} {
		r, ok := names[want]
		if !ok {
			t.Fatalf("missing check %q in %+v", want, results)
		}
		if !r.Passed {
			t.Fatalf("check %q failed: %s", want, r.Detail)
		}
	}
	if Failed(results) {
		t.Fatalf("unexpected failure in %+v", results)
	}
}
