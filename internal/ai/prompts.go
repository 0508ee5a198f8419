package ai

const (
	// SummarySystemPrompt frames the summarization chat.
	SummarySystemPrompt = "You are a helpful assistant that summarizes media transcripts."
	// SummaryUserPrefix precedes the transcript in the user message.
	SummaryUserPrefix = "Summarize this transcript concisely: "
)
