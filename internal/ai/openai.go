package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"mediaflow/internal/services"
)

// OpenAIConfig configures the OpenAI-backed transcriber and summarizer.
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	SummaryModel       string
	EmbeddingModel     string
	RequestsPerSecond  float64
	Timeout            time.Duration
}

// OpenAIOption customizes an OpenAI client.
type OpenAIOption func(*openAIClient)

// WithOpenAIHTTPClient overrides the HTTP client handed to the SDK.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openAIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

type openAIClient struct {
	client     openai.Client
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newOpenAIClient(cfg OpenAIConfig, opts ...OpenAIOption) (*openAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ai", "openai", "api key required", nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	c := &openAIClient{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RequestsPerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	// The activity executor owns retries; the SDK must surface the first failure.
	requestOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(base))
	}
	c.client = openai.NewClient(requestOpts...)
	return c, nil
}

// OpenAITranscriber transcribes audio with the Whisper API.
type OpenAITranscriber struct {
	*openAIClient
	model string
}

// NewOpenAITranscriber builds a transcriber. The model defaults to whisper-1.
func NewOpenAITranscriber(cfg OpenAIConfig, opts ...OpenAIOption) (*OpenAITranscriber, error) {
	c, err := newOpenAIClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.TranscriptionModel)
	if model == "" {
		model = openai.AudioModelWhisper1
	}
	return &OpenAITranscriber{openAIClient: c, model: model}, nil
}

// Transcribe uploads the audio file and returns its text with segment timings.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, path string) (Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Transcript{}, services.Wrap(services.ErrValidation, "transcribe", "open audio", path, err)
		}
		return Transcript{}, services.Wrap(services.ErrTransient, "transcribe", "open audio", path, err)
	}
	defer f.Close()

	if err := wait(ctx, t.limiter); err != nil {
		return Transcript{}, err
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:                   openai.File(f, filepath.Base(path), contentTypeFor(path)),
		Model:                  t.model,
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	})
	if err != nil {
		return Transcript{}, mapOpenAIError("transcribe", "openai transcription", err)
	}
	out := Transcript{Text: strings.TrimSpace(resp.Text)}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	if out.Text == "" {
		out.Text = joinSegments(out.Segments)
	}
	return out, nil
}

// OpenAISummarizer summarizes transcripts with a chat completion.
type OpenAISummarizer struct {
	*openAIClient
	model string
}

// NewOpenAISummarizer builds a summarizer. The model defaults to gpt-4o.
func NewOpenAISummarizer(cfg OpenAIConfig, opts ...OpenAIOption) (*OpenAISummarizer, error) {
	c, err := newOpenAIClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.SummaryModel)
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &OpenAISummarizer{openAIClient: c, model: model}, nil
}

// Summarize returns the model's summary of text.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrValidation, "summarize", "openai chat", "transcript is empty", nil)
	}
	if err := wait(ctx, s.limiter); err != nil {
		return "", err
	}
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SummarySystemPrompt),
			openai.UserMessage(SummaryUserPrefix + text),
		},
	})
	if err != nil {
		return "", mapOpenAIError("summarize", "openai chat", err)
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, "summarize", "openai chat", "response contained no choices", nil)
	}
	choice := completion.Choices[0]
	summary := strings.TrimSpace(choice.Message.Content)
	if summary == "" {
		detail := fmt.Sprintf("empty content (finish_reason=%q, refusal=%q)", choice.FinishReason, choice.Message.Refusal)
		return "", services.Wrap(services.ErrTransient, "summarize", "openai chat", detail, nil)
	}
	return summary, nil
}

// maxEmbeddingRunes keeps a long transcript inside the embedding model's
// input window.
const maxEmbeddingRunes = 24000

// OpenAIEmbedder embeds transcripts with the embeddings API.
type OpenAIEmbedder struct {
	*openAIClient
	model string
}

// NewOpenAIEmbedder builds an embedder. The model defaults to
// text-embedding-3-small.
func NewOpenAIEmbedder(cfg OpenAIConfig, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	c, err := newOpenAIClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	return &OpenAIEmbedder{openAIClient: c, model: model}, nil
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Embed returns the embedding of text, truncated to maxEmbeddingRunes.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "index_transcript", "openai embeddings", "text is empty", nil)
	}
	if runes := []rune(text); len(runes) > maxEmbeddingRunes {
		text = string(runes[:maxEmbeddingRunes])
	}
	if err := wait(ctx, e.limiter); err != nil {
		return nil, err
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, mapOpenAIError("index_transcript", "openai embeddings", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, services.Wrap(services.ErrTransient, "index_transcript", "openai embeddings", "response contained no embedding", nil)
	}
	return resp.Data[0].Embedding, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
