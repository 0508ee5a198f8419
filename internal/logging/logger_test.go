package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("hello from test")

	if _, err := os.Stat(logging.LogPath(&cfg)); err != nil {
		t.Fatalf("expected log file to be created: %v", err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerLiftsComponentAndJobFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "2f1c7a3e-0b7d-4d0c-9c55-6ad2b2f1e001")
	ctx = services.WithStage(ctx, "download")
	componentLogger := logging.NewComponentLogger(logger, "workflow")
	logger = logging.WithContext(ctx, componentLogger)
	logger.Info("stage started", logging.Int("bytes", 12))
	logger.Warn("activity attempt failed", logging.Attempt(2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{
		"INFO workflow: [2f1c7a3e download] stage started bytes=12",
		"WARN workflow: [2f1c7a3e download#2] activity attempt failed",
	} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	for _, key := range []string{"component=", "job_id=", "stage=", "attempt="} {
		if strings.Contains(line, key) {
			t.Fatalf("expected %s to be lifted out of key/values, got %q", key, line)
		}
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Level:   "debug",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("careful", logging.Error(errors.New("boom")))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["msg"] != "careful" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	src, _ := payload["source"].(string)
	if !strings.Contains(src, ".go:") {
		t.Fatalf("expected compact source in debug mode, got %q", src)
	}
}

func TestJSONLoggerPromotesJobFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json-job.log")
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	id := "2f1c7a3e-0b7d-4d0c-9c55-6ad2b2f1e001"
	ctx := services.WithJobID(context.Background(), id)
	ctx = services.WithStage(ctx, "download")
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "activity"))
	logger.Info("activity attempt failed", logging.Int("bytes", 12), logging.Stage("transcribe"), logging.Attempt(2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(bytes.TrimSpace(content))
	want := `"msg":"activity attempt failed","job_id":"` + id + `","stage":"transcribe","attempt":2,"component":"activity","bytes":12}`
	if !strings.HasSuffix(line, want) {
		t.Fatalf("expected promoted job fields after msg, got %s", line)
	}
	if n := strings.Count(line, `"stage"`); n != 1 {
		t.Fatalf("stage written %d times in %s", n, line)
	}
}

func TestJSONLoggerGroupKeepsBoundFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json-group.log")
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With(logging.JobID("job-1")).WithGroup("media").Info("media inspected", logging.Int("streams", 2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["job_id"] != "job-1" {
		t.Fatalf("expected bound job_id, got %v", payload)
	}
	group, _ := payload["media"].(map[string]any)
	if group["streams"] != float64(2) {
		t.Fatalf("expected grouped attr, got %v", payload)
	}
}

func TestErrorWithContextAddsErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	err := services.Wrap(services.ErrValidation, "download", "stat", "empty object", nil)
	logging.ErrorWithContext(logger, "download failed", "download_failed", logging.Error(err))
	logging.ErrorWithContext(logger, "upload failed", "upload_failed", logging.Error(errors.New("connection reset")))

	out := buf.String()
	for _, fragment := range []string{"error_kind=permanent", "error_kind=transient", "event_type=download_failed"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in %q", fragment, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logging.WarnWithContext(logger, "cleanup failed", "scratch_cleanup_failed", logging.String(logging.FieldImpact, "disk space not reclaimed"))

	out := buf.String()
	for _, fragment := range []string{"event_type=scratch_cleanup_failed", "error_hint=", `impact="disk space not reclaimed"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in %q", fragment, out)
		}
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected nop logger when base is nil")
	}
}
