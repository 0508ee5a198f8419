package config

import (
	"sort"
	"time"
)

// StagePolicy is the resolved retry and timeout policy for one stage.
type StagePolicy struct {
	Timeout          time.Duration
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	HeartbeatTimeout time.Duration
	MaxAttempts      int
}

// StagePolicy resolves the policy for stage: built-in stage defaults, then the
// [retry] section, then [stages.<stage>]. Later non-zero values win, except
// heartbeat_timeout_seconds, where any explicit stage value wins.
func (c *Config) StagePolicy(stage string) StagePolicy {
	merged := stageDefaults[stage]
	if secs, ok := c.heartbeatDefault(stage); ok {
		merged.HeartbeatTimeoutSeconds = &secs
	}
	global := c.Retry
	if !c.StageHeartbeats(stage) {
		global.HeartbeatTimeoutSeconds = nil
	}
	merged = overlay(merged, global)
	if override, ok := c.Stages[stage]; ok {
		merged = overlay(merged, override)
	}
	if merged.TimeoutSeconds <= 0 {
		merged.TimeoutSeconds = defaultActivityTimeoutSecs
	}
	if merged.MaxAttempts <= 0 {
		merged.MaxAttempts = defaultMaxAttempts
	}
	var heartbeat time.Duration
	if merged.HeartbeatTimeoutSeconds != nil {
		heartbeat = time.Duration(*merged.HeartbeatTimeoutSeconds) * time.Second
	}
	return StagePolicy{
		Timeout:          time.Duration(merged.TimeoutSeconds) * time.Second,
		InitialInterval:  time.Duration(merged.InitialIntervalMillis) * time.Millisecond,
		MaxInterval:      time.Duration(merged.MaxIntervalSeconds) * time.Second,
		HeartbeatTimeout: heartbeat,
		MaxAttempts:      merged.MaxAttempts,
	}
}

// StageHeartbeats reports whether stage records heartbeats while it runs.
// Transcription only does when whisperx streams its progress.
func (c *Config) StageHeartbeats(stage string) bool {
	switch stage {
	case "download", "preprocess", "extract_thumbnail":
		return true
	case "transcribe":
		return c.AI.Transcriber == TranscriberWhisperX
	default:
		return false
	}
}

func (c *Config) heartbeatDefault(stage string) (int, bool) {
	if !c.StageHeartbeats(stage) {
		return 0, false
	}
	if stage == "transcribe" {
		return defaultWhisperXHeartbeatSecs, true
	}
	return defaultStageHeartbeatSecs, true
}

// KnownStages lists the stage names accepted under [stages].
func KnownStages() []string {
	names := make([]string, 0, len(stageDefaults))
	for name := range stageDefaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func overlay(base, top RetryPolicy) RetryPolicy {
	if top.TimeoutSeconds > 0 {
		base.TimeoutSeconds = top.TimeoutSeconds
	}
	if top.InitialIntervalMillis > 0 {
		base.InitialIntervalMillis = top.InitialIntervalMillis
	}
	if top.MaxIntervalSeconds > 0 {
		base.MaxIntervalSeconds = top.MaxIntervalSeconds
	}
	if top.MaxAttempts > 0 {
		base.MaxAttempts = top.MaxAttempts
	}
	if top.HeartbeatTimeoutSeconds != nil {
		base.HeartbeatTimeoutSeconds = top.HeartbeatTimeoutSeconds
	}
	return base
}
