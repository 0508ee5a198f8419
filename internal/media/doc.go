// Package media wraps the ffmpeg invocations the pipeline relies on: audio
// normalization ahead of transcription and single-frame thumbnail extraction.
//
// Normalize asks ffmpeg for machine-readable progress (-progress pipe:1) and
// reports each update through a callback so long conversions can heartbeat.
// The ffprobe subpackage supplies duration and stream metadata used to turn
// progress into a percentage and to reject inputs without audio.
package media
