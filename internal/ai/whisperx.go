package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mediaflow/internal/activity"
	"mediaflow/internal/services"
)

// WhisperX invocation constants.
const (
	WhisperXDefaultModel = "large-v3"
	whisperXCUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	whisperXPypiIndexURL = "https://pypi.org/simple"
	uvxCommand           = "uvx"

	outputTailLines = 20
	maxDetailLen    = 120
	waitDelay       = 5 * time.Second
)

// decodeFailureMarkers are ffmpeg and whisperx messages for media that will
// never decode, however often it is retried.
var decodeFailureMarkers = []string{
	"failed to load audio",
	"invalid data found when processing input",
	"could not find codec parameters",
	"moov atom not found",
	"does not contain any stream",
}

// CommandRunner executes an external command and hands every line of its
// combined output to onLine. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args []string, onLine func(string)) error

// WhisperXConfig configures local WhisperX transcription.
type WhisperXConfig struct {
	Model       string
	CUDAEnabled bool
}

// WhisperXTranscriber runs WhisperX through uvx and reads its JSON output.
type WhisperXTranscriber struct {
	cfg    WhisperXConfig
	runner CommandRunner
}

// NewWhisperXTranscriber builds a transcriber that shells out to uvx.
func NewWhisperXTranscriber(cfg WhisperXConfig) *WhisperXTranscriber {
	return &WhisperXTranscriber{cfg: cfg, runner: runCommand}
}

// WithCommandRunner swaps the command runner.
func (w *WhisperXTranscriber) WithCommandRunner(runner CommandRunner) *WhisperXTranscriber {
	if runner != nil {
		w.runner = runner
	}
	return w
}

// Transcribe writes WhisperX output beside the audio in a "<base>.whisperx"
// directory and parses the JSON segments.
func (w *WhisperXTranscriber) Transcribe(ctx context.Context, path string) (Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Transcript{}, services.Wrap(services.ErrValidation, "transcribe", "whisperx", path, err)
		}
		return Transcript{}, services.Wrap(services.ErrTransient, "transcribe", "whisperx", path, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outputDir := filepath.Join(filepath.Dir(path), base+".whisperx")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Transcript{}, services.Wrap(services.ErrTransient, "transcribe", "whisperx", "ensure output dir", err)
	}
	defer os.RemoveAll(outputDir)

	activity.RecordHeartbeat(ctx, "whisperx starting")
	err := w.runner(ctx, uvxCommand, w.buildArgs(path, outputDir), func(line string) {
		activity.RecordHeartbeat(ctx, progressDetail(line))
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Transcript{}, ctxErr
		}
		if isDecodeFailure(err) {
			return Transcript{}, services.Wrap(services.ErrPermanent, "transcribe", "whisperx", "input could not be decoded", err)
		}
		return Transcript{}, services.Wrap(services.ErrTransient, "transcribe", "whisperx", "", err)
	}

	segments, err := loadWhisperXSegments(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrPermanent, "transcribe", "whisperx", "read output", err)
	}
	return Transcript{Text: joinSegments(segments), Segments: segments}, nil
}

func (w *WhisperXTranscriber) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)
	if w.cfg.CUDAEnabled {
		args = append(args, "--index-url", whisperXCUDAIndexURL, "--extra-index-url", whisperXPypiIndexURL)
	} else {
		args = append(args, "--index-url", whisperXPypiIndexURL)
	}
	model := strings.TrimSpace(w.cfg.Model)
	if model == "" {
		model = WhisperXDefaultModel
	}
	args = append(args,
		"whisperx",
		source,
		"--model", model,
		"--batch_size", "4",
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", "sentence",
		"--chunk_size", "15",
		"--vad_onset", "0.08",
		"--vad_offset", "0.07",
		"--beam_size", "10",
		"--best_of", "10",
		"--temperature", "0.0",
		"--patience", "1.0",
		"--vad_method", "silero",
		"--print_progress", "True",
	)
	if w.cfg.CUDAEnabled {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", "float32")
	}
	return args
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

func loadWhisperXSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// isDecodeFailure reports whether a failed run complained about the input
// media itself.
func isDecodeFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range decodeFailureMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// progressDetail trims a whisperx output line into heartbeat detail.
func progressDetail(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > maxDetailLen {
		line = line[:maxDetailLen]
	}
	return line
}

func runCommand(ctx context.Context, name string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 defaults torch.load to weights_only, which pyannote checkpoints reject.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	cmd.WaitDelay = waitDelay
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return fmt.Errorf("%s: %w", name, err)
	}

	tail := make([]string, 0, outputTailLines)
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		scanner.Split(scanLinesOrCR)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if len(tail) == outputTailLines {
				tail = tail[1:]
			}
			tail = append(tail, line)
			if onLine != nil {
				onLine(line)
			}
		}
		// Keep the writer unblocked if the scanner gave up on a huge line.
		_, _ = io.Copy(io.Discard, pr)
	}()

	err := cmd.Wait()
	_ = pw.Close()
	<-done
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.Join(tail, "\n"))
	}
	return nil
}

// scanLinesOrCR splits on \n and on the bare \r progress bars redraw with.
func scanLinesOrCR(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
