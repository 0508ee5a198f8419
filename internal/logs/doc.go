// Package logs reads the daemon log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, optionally
// waiting for new lines to arrive. Follow repeats Tail until the context ends.
// A Match filter narrows output to the lines of one job.
package logs
