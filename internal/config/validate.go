package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is structurally usable. Credentials are
// checked separately by ValidateCredentials so read-only CLI commands work
// without API keys.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateCredentials checks that the configured providers have the secrets
// they need. The daemon and foreground runs call this before processing.
func (c *Config) ValidateCredentials() error {
	needsOpenAI := c.AI.Transcriber == TranscriberOpenAI || c.AI.Summarizer == SummarizerOpenAI || c.IndexingEnabled()
	if needsOpenAI && c.AI.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("ai.api_key is required for the openai provider. Set OPENAI_API_KEY env var or edit %s (create with 'mediaflow config init')", defaultPath)
	}
	if c.Storage.Backend == StorageBackendMinIO {
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return errors.New("storage.access_key and storage.secret_key are required for the minio backend (or set MINIO_ROOT_USER / MINIO_ROOT_PASSWORD)")
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendMinIO:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set for the minio backend")
		}
		if strings.Contains(c.Storage.Endpoint, "://") {
			return fmt.Errorf("storage.endpoint must be host:port without a scheme, got %q", c.Storage.Endpoint)
		}
	case StorageBackendLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set for the local backend")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want %q or %q)", c.Storage.Backend, StorageBackendMinIO, StorageBackendLocal)
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	return nil
}

func (c *Config) validateAI() error {
	switch c.AI.Transcriber {
	case TranscriberOpenAI, TranscriberWhisperX:
	default:
		return fmt.Errorf("ai.transcriber: unsupported value %q", c.AI.Transcriber)
	}
	switch c.AI.Summarizer {
	case SummarizerOpenAI:
	case SummarizerService:
		if !strings.HasPrefix(c.AI.SummarizerURL, "http://") && !strings.HasPrefix(c.AI.SummarizerURL, "https://") {
			return fmt.Errorf("ai.summarizer_url must be an http(s) URL, got %q", c.AI.SummarizerURL)
		}
	default:
		return fmt.Errorf("ai.summarizer: unsupported value %q", c.AI.Summarizer)
	}
	switch c.AI.Embedder {
	case EmbedderNone, EmbedderOpenAI:
	default:
		return fmt.Errorf("ai.embedder: unsupported value %q", c.AI.Embedder)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	switch c.Workflow.Pipeline {
	case PipelineSequential, PipelineFanOut:
	default:
		return fmt.Errorf("workflow.pipeline: unsupported value %q", c.Workflow.Pipeline)
	}
	if c.Workflow.WorkerCount < c.Workflow.MaxConcurrentJobs {
		return fmt.Errorf("workflow.worker_count (%d) must be at least workflow.max_concurrent_jobs (%d)", c.Workflow.WorkerCount, c.Workflow.MaxConcurrentJobs)
	}
	return nil
}

func (c *Config) validateStages() error {
	if err := validatePolicy("retry", c.Retry); err != nil {
		return err
	}
	for name, policy := range c.Stages {
		if _, ok := stageDefaults[name]; !ok {
			return fmt.Errorf("stages.%s: unknown stage (known: %s)", name, strings.Join(KnownStages(), ", "))
		}
		if err := validatePolicy("stages."+name, policy); err != nil {
			return err
		}
	}
	return nil
}

func validatePolicy(section string, p RetryPolicy) error {
	switch {
	case p.TimeoutSeconds < 0:
		return fmt.Errorf("%s.timeout_seconds must not be negative", section)
	case p.InitialIntervalMillis < 0:
		return fmt.Errorf("%s.initial_interval_ms must not be negative", section)
	case p.MaxIntervalSeconds < 0:
		return fmt.Errorf("%s.max_interval_seconds must not be negative", section)
	case p.MaxAttempts < 0:
		return fmt.Errorf("%s.max_attempts must not be negative", section)
	case p.HeartbeatTimeoutSeconds != nil && *p.HeartbeatTimeoutSeconds < 0:
		return fmt.Errorf("%s.heartbeat_timeout_seconds must not be negative", section)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
