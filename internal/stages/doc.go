// Package stages implements the side-effecting steps of the media pipeline.
//
// Each stage takes a typed request and returns a typed result so the
// orchestrator can checkpoint outputs as JSON and replay them after a crash.
// Stages run under the activity executor, which owns timeouts and retries;
// the stages themselves only classify failures with services markers and
// clean up whatever scratch files they created on the way out.
//
// Stage set:
//   - Download: object storage -> scratch directory
//   - Preprocess: ffmpeg normalization to 16 kHz mono WAV
//   - Transcribe: speech to text, then removal of the scratch inputs
//   - Summarize: transcript summary
//   - Finalize / MarkFailed: guarded terminal writes
//   - ExtractThumbnail: fan-out branch producing thumbnails/<id>.jpg
package stages
