package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediaflow/internal/ai"
	"mediaflow/internal/config"
	"mediaflow/internal/media/ffprobe"
	"mediaflow/internal/objectstore"
)

// Requirement defines an external binary mediaflow relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Requirements lists the binaries the configured pipeline needs.
func Requirements(cfg *config.Config) []Requirement {
	ffmpeg := cfg.FFmpegBinary()
	reqs := []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "Required for audio normalization"},
		{Name: "FFprobe", Command: ffprobe.SiblingBinary(ffmpeg), Description: "Inspects inputs before transforms", Optional: true},
	}
	if cfg.AI.Transcriber == config.TranscriberWhisperX {
		reqs = append(reqs, Requirement{Name: "uvx", Command: "uvx", Description: "Required for WhisperX transcription"})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements.
func CheckBinaries(reqs []Requirement) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, CheckBinary(req))
	}
	return results
}

// CheckBinary verifies that req.Command resolves to an executable.
func CheckBinary(req Requirement) Result {
	result := Result{Name: req.Name, Optional: req.Optional}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		result.Detail = "command not configured"
		return result
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", cmd)
		if desc := strings.TrimSpace(req.Description); desc != "" {
			result.Detail += " (" + strings.ToLower(desc[:1]) + desc[1:] + ")"
		}
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckObjectStore verifies the bucket or local root is reachable.
func CheckObjectStore(ctx context.Context, store objectstore.Store) Result {
	const name = "Object storage"
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err, "storage")}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckSummarizer sends a probe to the summarizer service. It uses a
// 30-second timeout and a single attempt.
func CheckSummarizer(ctx context.Context, url string) Result {
	const name = "Summarizer service"
	if strings.TrimSpace(url) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	client, err := ai.NewServiceSummarizer(ai.ServiceConfig{URL: url, Timeout: 30 * time.Second})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err, "summarizer")}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckAPIKey only verifies that a key is configured; it never calls the
// provider.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "API key missing (set ai.api_key or OPENAI_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

func summarizeError(err error, what string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (" + what + " unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (" + what + " unreachable)"
	}
	return err.Error()
}
