package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeAI()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if value, ok := lookupEnv("MINIO_ENDPOINT"); ok {
		c.Storage.Endpoint = value
	}
	if c.Storage.AccessKey == "" {
		if value, ok := lookupEnv("MINIO_ROOT_USER"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := lookupEnv("MINIO_ROOT_PASSWORD"); ok {
			c.Storage.SecretKey = value
		}
	}
	if value, ok := lookupEnv("MEDIA_BUCKET"); ok {
		c.Storage.Bucket = value
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultBucket
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultLocalStorageDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAI() {
	if c.AI.APIKey == "" {
		if value, ok := lookupEnv("OPENAI_API_KEY"); ok {
			c.AI.APIKey = value
		}
	}
	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	c.AI.BaseURL = strings.TrimSpace(c.AI.BaseURL)
	c.AI.Transcriber = strings.ToLower(strings.TrimSpace(c.AI.Transcriber))
	if c.AI.Transcriber == "" {
		c.AI.Transcriber = defaultTranscriber
	}
	c.AI.Summarizer = strings.ToLower(strings.TrimSpace(c.AI.Summarizer))
	if c.AI.Summarizer == "" {
		c.AI.Summarizer = defaultSummarizer
	}
	if strings.TrimSpace(c.AI.TranscriptionModel) == "" {
		c.AI.TranscriptionModel = defaultTranscriptionModel
	}
	if strings.TrimSpace(c.AI.SummaryModel) == "" {
		c.AI.SummaryModel = defaultSummaryModel
	}
	if value, ok := lookupEnv("SUMMARIZER_URL"); ok {
		c.AI.SummarizerURL = value
	}
	c.AI.SummarizerURL = strings.TrimSpace(c.AI.SummarizerURL)
	if c.AI.SummarizerURL == "" {
		c.AI.SummarizerURL = defaultSummarizerURL
	}
	if c.AI.RequestsPerSecond <= 0 {
		c.AI.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = defaultAITimeoutSeconds
	}
	if strings.TrimSpace(c.AI.WhisperXModel) == "" {
		c.AI.WhisperXModel = defaultWhisperXModel
	}
	c.AI.Embedder = strings.ToLower(strings.TrimSpace(c.AI.Embedder))
	if c.AI.Embedder == "" {
		c.AI.Embedder = defaultEmbedder
	}
	if strings.TrimSpace(c.AI.EmbeddingModel) == "" {
		c.AI.EmbeddingModel = defaultEmbeddingModel
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.Pipeline = strings.ToLower(strings.TrimSpace(c.Workflow.Pipeline))
	if c.Workflow.Pipeline == "" {
		c.Workflow.Pipeline = defaultPipeline
	}
	if c.Workflow.WorkerCount <= 0 {
		c.Workflow.WorkerCount = defaultWorkerCount
	}
	if c.Workflow.MaxConcurrentJobs <= 0 {
		c.Workflow.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.ScratchMaxAgeHours <= 0 {
		c.Workflow.ScratchMaxAgeHours = defaultScratchMaxAgeHours
	}
	if c.Media.SampleRate <= 0 {
		c.Media.SampleRate = defaultSampleRate
	}
	if c.Media.ThumbnailOffsetSeconds < 0 {
		c.Media.ThumbnailOffsetSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := lookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	if c.Notifications.TimeoutSeconds <= 0 {
		c.Notifications.TimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
