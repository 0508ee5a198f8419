package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// jobJSONHandler writes one JSON object per line with job_id, stage and
// attempt directly after msg, ahead of every other attr. Attrs bound with
// WithAttrs are held here rather than in the inner handler so they can be
// reordered and deduplicated against the record's own attrs.
type jobJSONHandler struct {
	inner slog.Handler
	bound []slog.Attr
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(jsonTimeLayout))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}
	return &jobJSONHandler{inner: slog.NewJSONHandler(w, &opts)}
}

func (h *jobJSONHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *jobJSONHandler) Handle(ctx context.Context, record slog.Record) error {
	var job jobFields
	rest := make([]slog.Attr, 0, len(h.bound)+record.NumAttrs())
	collect := func(attr slog.Attr) bool {
		if !job.take(attr.Key, attr.Value.Resolve()) {
			rest = append(rest, attr)
		}
		return true
	}
	for _, attr := range h.bound {
		collect(attr)
	}
	record.Attrs(collect)

	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	out.AddAttrs(job.attrs()...)
	out.AddAttrs(rest...)
	return h.inner.Handle(ctx, out)
}

func (h *jobJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	bound = append(bound, attrs...)
	return &jobJSONHandler{inner: h.inner, bound: bound}
}

// WithGroup hands the bound attrs to the inner handler. Lines from a grouped
// logger keep their fields in plain slog order.
func (h *jobJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.inner.WithAttrs(h.bound).WithGroup(name)
}
