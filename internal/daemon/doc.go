// Package daemon coordinates the long-running mediaflow process.
//
// It wires configuration, the job store and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Startup sweeps scratch directories left behind by crashed or cancelled
// jobs before the manager begins polling.
//
// Keep orchestration logic here: stage behavior lives in internal/stages and
// job control in internal/workflow, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
