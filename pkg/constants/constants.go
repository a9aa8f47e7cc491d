// Package constants collects the server's cross-package tunables that
// aren't tied to a single component's internal bound (those stay local,
// e.g. internal/h2frame.MaxReassembly): HTTP/2 concurrency and settings
// timing values referenced from internal/h2frame.
package constants

import "time"

// HTTP/2 concurrency and settings limits.
const (
	// MaxConcurrentStreams is the SETTINGS_MAX_CONCURRENT_STREAMS value
	// this server advertises and enforces: once a connection has this
	// many streams open, a HEADERS frame opening a new one is rejected
	// as a security limit rather than growing the stream tree without
	// bound.
	MaxConcurrentStreams = 100

	// DefaultHpackTableSize is the SETTINGS_HEADER_TABLE_SIZE this server
	// advertises, matching RFC 7540's default.
	DefaultHpackTableSize = 4096

	// SettingsAckTimeout is documented here for operators tuning a
	// reverse proxy in front of this server; the engine itself does not
	// enforce a timeout on a missing SETTINGS ack (spec.md's Non-goals
	// exclude flow control and backpressure accounting).
	SettingsAckTimeout = 10 * time.Second
)
