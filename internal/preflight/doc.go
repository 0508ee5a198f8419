// Package preflight provides readiness checks for the filesystem paths,
// binaries and services mediaflow depends on.
//
// The daemon runs RunAll at startup and logs every failed check; the CLI
// "mediaflow preflight" command renders the same results as a table. Checks
// for optional backends only run when the configuration selects them.
package preflight
