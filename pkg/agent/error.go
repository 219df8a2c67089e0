package agent

import (
	"fmt"
	"time"
)

// ErrorType is the fixed failure taxonomy. New kinds are added by extending
// the pattern tables, never ad hoc.
type ErrorType string

const (
	ErrorAuthExpired      ErrorType = "auth_expired"
	ErrorRateLimited      ErrorType = "rate_limited"
	ErrorNetwork          ErrorType = "network_error"
	ErrorPermissionDenied ErrorType = "permission_denied"
	ErrorAgentCrashed     ErrorType = "agent_crashed"
)

// IsValid reports whether t belongs to the taxonomy.
func (t ErrorType) IsValid() bool {
	switch t {
	case ErrorAuthExpired, ErrorRateLimited, ErrorNetwork, ErrorPermissionDenied, ErrorAgentCrashed:
		return true
	default:
		return false
	}
}

// ErrorContext is the raw diagnostic payload attached to an AgentError.
type ErrorContext struct {
	ErrorLine string `json:"error_line,omitempty"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	Stdout    string `json:"stdout,omitempty"`
}

// AgentError is a classified agent failure. Message is suitable for direct
// display; Recoverable distinguishes "offer retry" from "session is dead".
type AgentError struct {
	Type        ErrorType     `json:"type"`
	Message     string        `json:"message"`
	Recoverable bool          `json:"recoverable"`
	AgentID     string        `json:"agent_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Raw         *ErrorContext `json:"raw,omitempty"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}
