package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// Storage selects and configures the object store holding uploaded media.
type Storage struct {
	Backend   string `toml:"backend"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	LocalDir  string `toml:"local_dir"`
}

// AI contains transcription and summarization provider settings.
type AI struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Transcriber        string  `toml:"transcriber"`
	TranscriptionModel string  `toml:"transcription_model"`
	Summarizer         string  `toml:"summarizer"`
	SummaryModel       string  `toml:"summary_model"`
	SummarizerURL      string  `toml:"summarizer_url"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	WhisperXModel      string  `toml:"whisperx_model"`
	WhisperXCUDA       bool    `toml:"whisperx_cuda"`
	Embedder           string  `toml:"embedder"`
	EmbeddingModel     string  `toml:"embedding_model"`
}

// Media contains ffmpeg settings for preprocessing and thumbnails.
type Media struct {
	FFmpegBinary           string `toml:"ffmpeg_binary"`
	SampleRate             int    `toml:"sample_rate"`
	ThumbnailOffsetSeconds int    `toml:"thumbnail_offset_seconds"`
}

// Workflow contains configuration for daemon scheduling.
type Workflow struct {
	Pipeline           string `toml:"pipeline"`
	WorkerCount        int    `toml:"worker_count"`
	MaxConcurrentJobs  int    `toml:"max_concurrent_jobs"`
	PollInterval       int    `toml:"poll_interval"`
	ScratchMaxAgeHours int    `toml:"scratch_max_age_hours"`
}

// RetryPolicy holds activity retry and timeout settings. Zero values inherit
// from the [retry] section, then from the built-in stage defaults.
//
// HeartbeatTimeoutSeconds is a pointer so a stage override can set it to 0 and
// turn the heartbeat timeout off. Under [retry] it only reaches stages that
// record heartbeats.
type RetryPolicy struct {
	TimeoutSeconds          int  `toml:"timeout_seconds"`
	InitialIntervalMillis   int  `toml:"initial_interval_ms"`
	MaxIntervalSeconds      int  `toml:"max_interval_seconds"`
	MaxAttempts             int  `toml:"max_attempts"`
	HeartbeatTimeoutSeconds *int `toml:"heartbeat_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications configures ntfy delivery of job outcomes. An empty topic
// disables notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	TimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for mediaflow.
//
// Configuration sections by subsystem:
//   - Paths: scratch, database, and log directories
//   - Storage: MinIO or local object storage for uploaded media
//   - AI: transcription and summarization providers
//   - Media: ffmpeg settings
//   - Workflow: pipeline shape, worker pool size, polling
//   - Retry / Stages: activity retry policy defaults and per-stage overrides
//   - Logging: log format and level
//   - Notifications: ntfy topic for job outcomes
type Config struct {
	Paths    Paths                  `toml:"paths"`
	Storage  Storage                `toml:"storage"`
	AI       AI                     `toml:"ai"`
	Media    Media                  `toml:"media"`
	Workflow Workflow               `toml:"workflow"`
	Retry    RetryPolicy            `toml:"retry"`
	Stages   map[string]RetryPolicy `toml:"stages"`
	Logging  Logging                `toml:"logging"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ScratchDir, c.Paths.DataDir, c.Paths.LogDir, c.LockDir()}
	if c.Storage.Backend == StorageBackendLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mediaflow.db")
}

// LockDir returns the directory holding daemon and per-job lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// IndexingEnabled reports whether the fan-out pipeline indexes transcripts
// after the join.
func (c *Config) IndexingEnabled() bool {
	return c.Workflow.Pipeline == PipelineFanOut && c.AI.Embedder == EmbedderOpenAI
}

// FFmpegBinary returns the ffmpeg executable name or path.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Media.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
