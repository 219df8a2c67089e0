// Package constants provides application-wide constants and timeouts.
package constants

import "time"

// Timeouts for process and task operations.
const (
	// TabNamingTimeout bounds an ephemeral tab-naming invocation.
	TabNamingTimeout = 30 * time.Second

	// KillGracePeriod is how long a SIGTERM'd process group gets before SIGKILL.
	KillGracePeriod = 2 * time.Second

	// AgentDetectionTTL is how long a resolved agent binary path is cached.
	AgentDetectionTTL = 5 * time.Minute

	// ShutdownTimeout bounds graceful daemon shutdown.
	ShutdownTimeout = 30 * time.Second
)

// Output handling limits.
const (
	// OutputBufferMaxBytes caps each accumulated stdout/stderr buffer.
	OutputBufferMaxBytes = 2 * 1024 * 1024

	// RawFlushInterval is the coalescing window for raw terminal output.
	RawFlushInterval = 50 * time.Millisecond

	// RawFlushBytes forces a raw-output flush once this many bytes are pending.
	RawFlushBytes = 8 * 1024
)
