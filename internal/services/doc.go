// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, attempt numbers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which
//     decides whether the activity executor retries a failure.
//
// Use these helpers when wiring new stage logic so failure handling stays
// uniform across the pipeline.
package services
