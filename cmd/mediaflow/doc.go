// Package main hosts the mediaflow CLI.
//
// Commands operate on the job database and object storage directly: submit
// uploads media and records a job, list/show/status read job and run state,
// cancel and remove act through the workflow controller, and run drives a
// single job in the foreground. The daemon command hosts the polling manager
// that resumes every unfinished job.
package main
