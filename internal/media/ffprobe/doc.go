// Package ffprobe reads container and stream metadata with ffprobe's JSON
// output. The media package uses it to size progress reporting and to tell
// audio-only inputs from video ones.
package ffprobe
