package media

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	OutTime  time.Duration
	Speed    string
	Duration time.Duration
	Done     bool
}

// Percent returns completion in [0, 100], or -1 when the duration is unknown.
func (p Progress) Percent() float64 {
	if p.Duration <= 0 {
		return -1
	}
	pct := float64(p.OutTime) / float64(p.Duration) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// String renders the update as a heartbeat detail.
func (p Progress) String() string {
	var b strings.Builder
	b.WriteString("out_time=")
	b.WriteString(p.OutTime.Truncate(time.Millisecond).String())
	if pct := p.Percent(); pct >= 0 {
		b.WriteString(" pct=")
		b.WriteString(strconv.FormatFloat(pct, 'f', 1, 64))
	}
	if p.Speed != "" {
		b.WriteString(" speed=")
		b.WriteString(p.Speed)
	}
	if p.Done {
		b.WriteString(" done")
	}
	return b.String()
}

// progressWriter parses key=value lines and emits a Progress at each
// "progress=" line, which ffmpeg writes at the end of every block.
type progressWriter struct {
	duration time.Duration
	onUpdate func(Progress)
	pending  []byte
	current  Progress
}

func newProgressWriter(duration time.Duration, onUpdate func(Progress)) *progressWriter {
	return &progressWriter{duration: duration, onUpdate: onUpdate}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		w.handleLine(string(w.pending[:idx]))
		w.pending = w.pending[idx+1:]
	}
	return len(p), nil
}

func (w *progressWriter) handleLine(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			w.current.OutTime = time.Duration(us) * time.Microsecond
		}
	case "speed":
		if value != "N/A" {
			w.current.Speed = value
		}
	case "progress":
		w.current.Duration = w.duration
		w.current.Done = value == "end"
		if w.onUpdate != nil {
			w.onUpdate(w.current)
		}
	}
}
