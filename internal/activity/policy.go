package activity

import (
	"time"

	"mediaflow/internal/config"
)

// Policy bounds a single Execute call.
type Policy struct {
	StartToClose     time.Duration
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	HeartbeatTimeout time.Duration
	MaxAttempts      int
}

// DefaultPolicy mirrors the pipeline's baseline: three attempts starting one
// second apart, one minute per attempt.
func DefaultPolicy() Policy {
	return Policy{
		StartToClose:    time.Minute,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		MaxAttempts:     3,
	}
}

// FromStagePolicy converts a resolved configuration policy.
func FromStagePolicy(sp config.StagePolicy) Policy {
	return Policy{
		StartToClose:     sp.Timeout,
		InitialInterval:  sp.InitialInterval,
		MaxInterval:      sp.MaxInterval,
		HeartbeatTimeout: sp.HeartbeatTimeout,
		MaxAttempts:      sp.MaxAttempts,
	}.withDefaults()
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.StartToClose <= 0 {
		p.StartToClose = def.StartToClose
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.HeartbeatTimeout < 0 {
		p.HeartbeatTimeout = 0
	}
	return p
}
