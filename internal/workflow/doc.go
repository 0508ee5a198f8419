// Package workflow drives media jobs through the pipeline durably.
//
// The Orchestrator runs one job: it replays committed stage checkpoints,
// invokes missing stages through the activity executor, gates summarization
// on transcript coherence, and compensates terminal failures by marking the
// job FAILED. Every effect goes through a stage function or the job store, so
// a crashed run resumes from its last checkpoint with identical results.
//
// The Manager is the daemon loop: it polls for resumable jobs and runs up to
// max_concurrent_jobs orchestrators at once. A per-job file lock keeps a
// foreground run and the daemon from owning the same job.
package workflow
