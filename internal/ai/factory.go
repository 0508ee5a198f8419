package ai

import (
	"fmt"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

// NewTranscriber returns the transcriber selected by ai.transcriber.
func NewTranscriber(cfg *config.Config) (Transcriber, error) {
	switch cfg.AI.Transcriber {
	case config.TranscriberWhisperX:
		return NewWhisperXTranscriber(WhisperXConfig{
			Model:       cfg.AI.WhisperXModel,
			CUDAEnabled: cfg.AI.WhisperXCUDA,
		}), nil
	case config.TranscriberOpenAI, "":
		t, err := NewOpenAITranscriber(openAIConfig(cfg))
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "ai", "transcriber", fmt.Sprintf("unsupported backend %q", cfg.AI.Transcriber), nil)
	}
}

// NewSummarizer returns the summarizer selected by ai.summarizer.
func NewSummarizer(cfg *config.Config) (Summarizer, error) {
	switch cfg.AI.Summarizer {
	case config.SummarizerService:
		s, err := NewServiceSummarizer(ServiceConfig{
			URL:               cfg.AI.SummarizerURL,
			RequestsPerSecond: cfg.AI.RequestsPerSecond,
			Timeout:           time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SummarizerOpenAI, "":
		s, err := NewOpenAISummarizer(openAIConfig(cfg))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "ai", "summarizer", fmt.Sprintf("unsupported backend %q", cfg.AI.Summarizer), nil)
	}
}

// NewEmbedder returns the embedder selected by ai.embedder, or nil when
// transcript indexing is off.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.AI.Embedder {
	case config.EmbedderNone, "":
		return nil, nil
	case config.EmbedderOpenAI:
		e, err := NewOpenAIEmbedder(openAIConfig(cfg))
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "ai", "embedder", fmt.Sprintf("unsupported backend %q", cfg.AI.Embedder), nil)
	}
}

func openAIConfig(cfg *config.Config) OpenAIConfig {
	return OpenAIConfig{
		APIKey:             cfg.AI.APIKey,
		BaseURL:            cfg.AI.BaseURL,
		TranscriptionModel: cfg.AI.TranscriptionModel,
		SummaryModel:       cfg.AI.SummaryModel,
		EmbeddingModel:     cfg.AI.EmbeddingModel,
		RequestsPerSecond:  cfg.AI.RequestsPerSecond,
		Timeout:            time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	}
}
