// Package notifications publishes job outcomes to ntfy.
//
// NewService returns a no-op service when no topic is configured, so callers
// publish unconditionally. Each Event maps to a fixed title, tag set and
// priority; the payload fills in the message.
package notifications
