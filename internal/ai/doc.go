// Package ai adapts the transcription and summarization providers used by the
// pipeline to two narrow interfaces, Transcriber and Summarizer.
//
// Backends:
//   - OpenAI (github.com/openai/openai-go/v3) for Whisper transcription and
//     chat-completion summaries.
//   - WhisperX, run locally through uvx, for offline transcription.
//   - A summarizer microservice that accepts POST {"text"} and returns
//     {"summary"}.
//
// Every backend returns errors tagged with services markers so the activity
// executor can tell transient provider failures (429, 5xx, timeouts) from
// permanent ones (other 4xx, unreadable media). Requests are paced by a shared
// token-bucket limiter. Retries belong to the executor, so the SDK's own retry
// loop is disabled.
package ai
