// Package staging sweeps the scratch directory.
//
// Stage functions create one <jobID>-<suffix> directory per attempt and clean
// up after themselves, but crashes and cancelled jobs leave directories
// behind. The daemon calls CleanOrphaned and CleanStale at startup; the CLI
// exposes the same sweep through `mediaflow cleanup`.
package staging
