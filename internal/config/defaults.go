package config

const (
	defaultConfigPath          = "~/.config/mediaflow/config.toml"
	defaultScratchDir          = "~/.local/share/mediaflow/scratch"
	defaultDataDir             = "~/.local/share/mediaflow"
	defaultLogDir              = "~/.local/share/mediaflow/logs"
	defaultStorageBackend      = StorageBackendMinIO
	defaultMinIOEndpoint       = "localhost:9000"
	defaultBucket              = "media-vault"
	defaultLocalStorageDir     = "~/.local/share/mediaflow/objects"
	defaultTranscriber         = TranscriberOpenAI
	defaultTranscriptionModel  = "whisper-1"
	defaultSummarizer          = SummarizerOpenAI
	defaultSummaryModel        = "gpt-4o"
	defaultSummarizerURL       = "http://localhost:8000/summarize"
	defaultRequestsPerSecond   = 2.0
	defaultAITimeoutSeconds    = 600
	defaultWhisperXModel       = "large-v3"
	defaultEmbedder            = EmbedderNone
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultFFmpegBinary        = "ffmpeg"
	defaultSampleRate          = 16000
	defaultThumbnailOffset     = 1
	defaultPipeline            = PipelineSequential
	defaultWorkerCount         = 4
	defaultMaxConcurrentJobs   = 2
	defaultPollInterval        = 5
	defaultScratchMaxAgeHours  = 24
	defaultInitialIntervalMs   = 1000
	defaultMaxIntervalSeconds  = 60
	defaultMaxAttempts         = 3
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultNtfyTimeoutSeconds  = 10
	defaultActivityTimeoutSecs = 60
	defaultStageHeartbeatSecs  = 120
	// whisperx prints progress per 30 s audio chunk; model downloads and CPU
	// runs can go quiet for several minutes.
	defaultWhisperXHeartbeatSecs = 600
)

// Recognized option values.
const (
	StorageBackendMinIO = "minio"
	StorageBackendLocal = "local"

	TranscriberOpenAI   = "openai"
	TranscriberWhisperX = "whisperx"

	SummarizerOpenAI  = "openai"
	SummarizerService = "service"

	EmbedderNone   = "none"
	EmbedderOpenAI = "openai"

	PipelineSequential = "sequential"
	PipelineFanOut     = "fanout"
)

// stageDefaults holds the built-in start-to-close timeouts. Heartbeat
// timeouts come from heartbeatDefault.
var stageDefaults = map[string]RetryPolicy{
	"download":          {TimeoutSeconds: 5 * 60},
	"preprocess":        {TimeoutSeconds: 10 * 60},
	"transcribe":        {TimeoutSeconds: 20 * 60},
	"extract_thumbnail": {TimeoutSeconds: 5 * 60},
	"summarize":         {TimeoutSeconds: 2 * 60},
	"index_transcript":  {TimeoutSeconds: 2 * 60},
	"finalize":          {TimeoutSeconds: 30},
	"mark_failed":       {TimeoutSeconds: 30},
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Storage: Storage{
			Backend:  defaultStorageBackend,
			Endpoint: defaultMinIOEndpoint,
			Bucket:   defaultBucket,
			LocalDir: defaultLocalStorageDir,
		},
		AI: AI{
			Transcriber:        defaultTranscriber,
			TranscriptionModel: defaultTranscriptionModel,
			Summarizer:         defaultSummarizer,
			SummaryModel:       defaultSummaryModel,
			SummarizerURL:      defaultSummarizerURL,
			RequestsPerSecond:  defaultRequestsPerSecond,
			TimeoutSeconds:     defaultAITimeoutSeconds,
			WhisperXModel:      defaultWhisperXModel,
			Embedder:           defaultEmbedder,
			EmbeddingModel:     defaultEmbeddingModel,
		},
		Media: Media{
			FFmpegBinary:           defaultFFmpegBinary,
			SampleRate:             defaultSampleRate,
			ThumbnailOffsetSeconds: defaultThumbnailOffset,
		},
		Workflow: Workflow{
			Pipeline:           defaultPipeline,
			WorkerCount:        defaultWorkerCount,
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
			PollInterval:       defaultPollInterval,
			ScratchMaxAgeHours: defaultScratchMaxAgeHours,
		},
		Retry: RetryPolicy{
			InitialIntervalMillis: defaultInitialIntervalMs,
			MaxIntervalSeconds:    defaultMaxIntervalSeconds,
			MaxAttempts:           defaultMaxAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			TimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
	}
}
