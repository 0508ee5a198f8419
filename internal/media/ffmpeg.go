package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"mediaflow/internal/media/ffprobe"
)

// DefaultSampleRate is the rate speech models expect.
const DefaultSampleRate = 16000

// FFmpeg runs media conversions through an ffmpeg binary.
type FFmpeg struct {
	binary      string
	probeBinary string
	runner      Runner
}

// Option customizes an FFmpeg.
type Option func(*FFmpeg)

// WithRunner overrides command execution.
func WithRunner(r Runner) Option {
	return func(f *FFmpeg) {
		if r != nil {
			f.runner = r
		}
	}
}

// WithProbeBinary sets the ffprobe used for duration lookups. An empty value
// disables probing.
func WithProbeBinary(binary string) Option {
	return func(f *FFmpeg) {
		f.probeBinary = strings.TrimSpace(binary)
	}
}

// New builds an FFmpeg for binary, defaulting to "ffmpeg" on PATH. The probe
// binary defaults to the ffprobe sitting next to it.
func New(binary string, opts ...Option) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	f := &FFmpeg{
		binary:      binary,
		probeBinary: ffprobe.SiblingBinary(binary),
		runner:      execRunner,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Binary returns the ffmpeg executable name or path.
func (f *FFmpeg) Binary() string { return f.binary }

var (
	// ErrNoAudio reports an input without any audio stream.
	ErrNoAudio = errors.New("input has no audio stream")
	// ErrNoVideo reports an input without a picture to grab.
	ErrNoVideo = errors.New("input has no video stream")
)

// Normalize converts src into a mono 16-bit PCM WAV at sampleRate. onProgress
// receives every progress block ffmpeg reports and may be nil.
func (f *FFmpeg) Normalize(ctx context.Context, src, dest string, sampleRate int, onProgress func(Progress)) error {
	if err := requireFile(src); err != nil {
		return err
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	var duration time.Duration
	if info, ok := f.probe(ctx, src); ok {
		if info.AudioStreamCount() == 0 {
			return fmt.Errorf("normalize %s: %w", src, ErrNoAudio)
		}
		duration = info.Duration()
	}
	args := NormalizeArgs(src, dest, sampleRate)
	return f.run(ctx, args, newProgressWriter(duration, onProgress))
}

// Thumbnail writes a single JPEG frame taken at offset into dest.
func (f *FFmpeg) Thumbnail(ctx context.Context, src, dest string, offset time.Duration) error {
	if err := requireFile(src); err != nil {
		return err
	}
	if info, ok := f.probe(ctx, src); ok {
		if info.VideoStreamCount() == 0 {
			return fmt.Errorf("thumbnail %s: %w", src, ErrNoVideo)
		}
		if d := info.Duration(); d > 0 && offset >= d {
			offset = d / 2
		}
	}
	return f.run(ctx, ThumbnailArgs(src, dest, offset), io.Discard)
}

// probe is best effort; a missing or failing ffprobe leaves checks to ffmpeg.
func (f *FFmpeg) probe(ctx context.Context, src string) (ffprobe.Result, bool) {
	if f.probeBinary == "" {
		return ffprobe.Result{}, false
	}
	info, err := ffprobe.Inspect(ctx, f.probeBinary, src)
	if err != nil {
		return ffprobe.Result{}, false
	}
	return info, true
}

func (f *FFmpeg) run(ctx context.Context, args []string, stdout io.Writer) error {
	if err := f.runner(ctx, f.binary, args, stdout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// NormalizeArgs returns the ffmpeg arguments for speech normalization.
func NormalizeArgs(src, dest string, sampleRate int) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-i", src,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-progress", "pipe:1",
		dest,
	}
}

// ThumbnailArgs returns the ffmpeg arguments for single-frame extraction.
func ThumbnailArgs(src, dest string, offset time.Duration) []string {
	if offset < 0 {
		offset = 0
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		dest,
	}
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
