// Package activity executes stage functions under a retry, timeout and
// heartbeat policy.
//
// Execute runs each attempt on a bounded worker pool shared by every job. An
// attempt is bounded by the policy's start-to-close timeout, measured from the
// moment a worker picks it up, and optionally by a heartbeat timeout that
// cancels attempts which stop calling RecordHeartbeat. Failures are classified
// with services.Classify: transient failures are retried with exponential
// backoff, permanent failures and exhausted retries surface as
// *ExecutionError. Panics inside a stage function are recovered and treated as
// permanent.
//
// Cancelling the caller's context stops retries and returns the context's
// cause unchanged so callers can tell shutdown apart from stage failure.
package activity
