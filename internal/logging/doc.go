// Package logging builds the slog loggers mediaflow writes with.
//
// Both handlers treat job_id, stage and attempt as first-class: the console
// handler folds them into a "[2f1c7a3e transcribe#2]" tag ahead of the
// message, and the JSON handler writes them directly after msg. WithContext
// binds those fields from the context an activity runs under, which is what
// `mediaflow logs --job` filters on.
package logging
