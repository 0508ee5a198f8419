package logging

import (
	"log/slog"
	"strings"
)

// jobFields collects the job id, stage and attempt out of a record's attrs so
// handlers can print them at a fixed position. A later value for the same key
// replaces an earlier one, so a stage bound by WithContext can be narrowed by
// the call site without printing twice.
type jobFields struct {
	jobID   slog.Value
	stage   slog.Value
	attempt slog.Value
}

// take consumes key when it is one of the promoted fields.
func (f *jobFields) take(key string, v slog.Value) bool {
	switch key {
	case FieldJobID:
		f.jobID = v
	case FieldStage:
		f.stage = v
	case FieldAttempt:
		f.attempt = v
	default:
		return false
	}
	return true
}

func (f *jobFields) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 3)
	if present(f.jobID) {
		out = append(out, slog.Attr{Key: FieldJobID, Value: f.jobID})
	}
	if present(f.stage) {
		out = append(out, slog.Attr{Key: FieldStage, Value: f.stage})
	}
	if present(f.attempt) {
		out = append(out, slog.Attr{Key: FieldAttempt, Value: f.attempt})
	}
	return out
}

func present(v slog.Value) bool {
	return !v.Equal(slog.Value{}) && attrString(v) != ""
}

// consoleTag renders the fields as "2f1c7a3e download#2". Absent parts are
// left out.
func (f *jobFields) consoleTag() string {
	var parts []string
	if present(f.jobID) {
		parts = append(parts, ShortJobID(attrString(f.jobID)))
	}
	step := ""
	if present(f.stage) {
		step = attrString(f.stage)
	}
	if present(f.attempt) {
		step += "#" + attrString(f.attempt)
	}
	if step != "" {
		parts = append(parts, step)
	}
	return strings.Join(parts, " ")
}
