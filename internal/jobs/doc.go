// Package jobs persists media jobs, their run state and per-stage checkpoints
// in SQLite.
//
// Three tables back the package. jobs holds the durable record that operators
// submit and the idempotency guard finalizes. job_runs tracks orchestrator
// progress, cancellation requests and the most recent activity heartbeat.
// stage_checkpoints stores the JSON encoded result of each completed stage;
// rows are write-once so a replayed orchestrator always observes the first
// committed value.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt a new schema.
package jobs
