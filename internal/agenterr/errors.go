// Package agenterr defines the agent's error taxonomy and the sanitization
// rules applied before an error crosses onto the wire.
package agenterr

import (
	"fmt"
	"regexp"
)

// Code identifies the kind of failure, mirroring the wire-level ErrorCode
// values in internal/protocol.
type Code string

const (
	CodeToolExecutionFailed   Code = "tool_execution_failed"
	CodeLLMError              Code = "llm_error"
	CodeInvalidInput          Code = "invalid_input"
	CodePipelineDepthExceeded Code = "pipeline_depth_exceeded"
	CodeInternalError         Code = "internal_error"

	// CodeNotConnected and CodePermanentDisconnect are raised to callers,
	// never published to a conversation topic.
	CodeNotConnected        Code = "not_connected"
	CodePermanentDisconnect Code = "permanent_disconnect"
)

// Error is the agent's single error type. Every failure that can surface
// from the nine-step processor, the orchestrator, or a router carries one
// of these.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func ToolExecutionFailed(format string, args ...interface{}) *Error {
	return &Error{Code: CodeToolExecutionFailed, Message: fmt.Sprintf(format, args...)}
}

func LLMError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeLLMError, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func PipelineDepthExceeded(current, max int) *Error {
	return &Error{
		Code:    CodePipelineDepthExceeded,
		Message: fmt.Sprintf("pipeline depth %d exceeds maximum %d", current, max),
	}
}

func InternalError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInternalError, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// NotConnected is raised by the transport to callers attempting a
// publish/subscribe from a non-Connected state. It is never published.
type NotConnected struct {
	State string
}

func (e *NotConnected) Error() string {
	return fmt.Sprintf("not connected: current state is %s", e.State)
}

// PermanentDisconnect is observable via the transport's connection-state
// query once reconnection attempts are exhausted.
type PermanentDisconnect struct {
	Reason string
}

func (e *PermanentDisconnect) Error() string {
	return fmt.Sprintf("permanently disconnected: %s", e.Reason)
}

var (
	secretPattern = regexp.MustCompile(`(?i)(password|token|key|secret)[=:]\s*\S+`)
	pathPattern   = regexp.MustCompile(`/[a-zA-Z0-9._/-]+/(secrets?|\.ssh|\.aws|\.config)/[a-zA-Z0-9._/-]+`)
)

const truncateSuffix = "...[truncated]"
const maxMessageLen = 500

// Sanitize redacts credential-like substrings and sensitive paths from an
// error message, then truncates it to at most 500 characters including the
// visible "...[truncated]" marker.
func Sanitize(message string) string {
	sanitized := secretPattern.ReplaceAllString(message, "${1}=***")
	sanitized = pathPattern.ReplaceAllString(sanitized, "/***REDACTED***/")

	if len(sanitized) > maxMessageLen {
		maxContentLen := maxMessageLen - len(truncateSuffix)
		sanitized = sanitized[:maxContentLen] + truncateSuffix
	}

	return sanitized
}
