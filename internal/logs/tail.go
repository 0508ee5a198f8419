package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"mediaflow/internal/logging"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Options controls a single Tail call.
type Options struct {
	// Offset is a byte position to read from. A negative offset returns the
	// last Limit lines instead.
	Offset int64
	Limit  int
	// Wait bounds how long Tail blocks for new lines when none are available.
	Wait  time.Duration
	Match func(line string) bool
}

// Chunk holds the lines read and the offset to resume from.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields an empty chunk at
// offset zero once Wait has elapsed.
func Tail(ctx context.Context, path string, opts Options) (Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if opts.Wait > 0 {
				return waitForLines(ctx, path, 0, opts.Wait, opts.Match)
			}
			return Chunk{}, nil
		}
		return Chunk{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if opts.Offset < 0 {
		chunk, err = readLast(path, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Truncated or rotated underneath us.
			offset = 0
		}
		chunk, err = readFrom(path, offset, opts.Match)
	}
	if err != nil || len(chunk.Lines) > 0 || opts.Wait <= 0 {
		return chunk, err
	}
	return waitForLines(ctx, path, chunk.Offset, opts.Wait, opts.Match)
}

// Follow emits existing lines and then new ones until ctx ends. The first
// call shows the last limit lines.
func Follow(ctx context.Context, path string, limit int, match func(string) bool, emit func([]string)) error {
	offset := int64(-1)
	for {
		chunk, err := Tail(ctx, path, Options{Offset: offset, Limit: limit, Wait: 2 * time.Second, Match: match})
		if len(chunk.Lines) > 0 {
			emit(chunk.Lines)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		offset = chunk.Offset
		if ctx.Err() != nil {
			return nil
		}
	}
}

// JobFilter matches lines carrying jobID in either log format.
func JobFilter(jobID string) func(string) bool {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil
	}
	// Console tags are "[short]" or "[short stage#attempt]".
	short := "[" + logging.ShortJobID(jobID)
	jsonField := `"` + logging.FieldJobID + `":"` + jobID + `"`
	return func(line string) bool {
		return strings.Contains(line, short+"]") ||
			strings.Contains(line, short+" ") ||
			strings.Contains(line, jsonField)
	}
}

func readLast(path string, limit int, match func(string) bool) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	end, err := scanLines(file, match, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return Chunk{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

func readFrom(path string, offset int64, match func(string) bool) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := scanLines(file, match, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Chunk{Offset: offset}, err
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

// scanLines feeds matching lines to fn and returns the offset after the last
// complete line.
func scanLines(file *os.File, match func(string) bool, fn func(string)) (int64, error) {
	start, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	consumed := start
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// Leave a partial trailing line for the next read.
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		text := strings.TrimRight(line, "\r\n")
		if len(text) > maxLineBytes {
			text = text[:maxLineBytes]
		}
		if match == nil || match(text) {
			fn(text)
		}
	}
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, match func(string) bool) (Chunk, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Chunk{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
		chunk, err := readFrom(path, offset, match)
		if err != nil {
			return chunk, err
		}
		offset = chunk.Offset
		if len(chunk.Lines) > 0 || time.Now().After(deadline) {
			return chunk, nil
		}
	}
}
