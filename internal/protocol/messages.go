package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NextTask is the recursive static-routing continuation carried by a v1
// envelope. A nil Next terminates the chain.
type NextTask struct {
	Topic       string          `json:"topic"`
	Instruction string          `json:"instruction,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Next        *NextTask       `json:"next,omitempty"`
}

// TaskEnvelopeV1 is a unit of work addressed to a specific agent's input
// topic, carrying its entire static pipeline inline via Next.
type TaskEnvelopeV1 struct {
	TaskID         uuid.UUID       `json:"task_id"`
	ConversationID string          `json:"conversation_id"`
	Topic          string          `json:"topic"`
	Instruction    string          `json:"instruction,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Next           *NextTask       `json:"next,omitempty"`
}

// WorkflowStep records one hop of a v2 workflow's history.
type WorkflowStep struct {
	AgentID   string `json:"agent_id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// WorkflowContext accumulates across v2 hops: the original request, the
// history of steps taken, and a monotonically non-decreasing iteration
// counter capped by configuration.
type WorkflowContext struct {
	OriginalQuery   string         `json:"original_query"`
	StepsCompleted  []WorkflowStep `json:"steps_completed,omitempty"`
	IterationCount  int            `json:"iteration_count"`
}

// RoutingStep is one entry in a v2 envelope's routing trace.
type RoutingStep struct {
	FromAgent  string `json:"from_agent"`
	ToAgent    string `json:"to_agent"`
	Reason     string `json:"reason"`
	Timestamp  string `json:"timestamp"`
	StepNumber int    `json:"step_number"`
}

// TaskEnvelopeV2 carries all v1 fields plus dynamic-routing context and a
// routing trace. Version is always the literal "2.0".
type TaskEnvelopeV2 struct {
	TaskID         uuid.UUID       `json:"task_id"`
	ConversationID string          `json:"conversation_id"`
	Topic          string          `json:"topic"`
	Instruction    string          `json:"instruction,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Next           *NextTask       `json:"next,omitempty"`
	Version        string          `json:"version"`
	Context        *WorkflowContext `json:"context,omitempty"`
	RoutingTrace   []RoutingStep   `json:"routing_trace,omitempty"`
}

// EnvelopeWrapper is a discriminated union accepting either a v1 or v2
// envelope shape, selected by the untagged presence of a "version" field
// equal to "2.0" on the wire.
type EnvelopeWrapper struct {
	V1 *TaskEnvelopeV1
	V2 *TaskEnvelopeV2
}

// IsV2 reports whether the wrapper holds a v2 envelope.
func (w EnvelopeWrapper) IsV2() bool { return w.V2 != nil }

// TaskID returns the wrapped envelope's task ID regardless of version.
func (w EnvelopeWrapper) TaskID() uuid.UUID {
	if w.V2 != nil {
		return w.V2.TaskID
	}
	if w.V1 != nil {
		return w.V1.TaskID
	}
	return uuid.Nil
}

// ConversationID returns the wrapped envelope's conversation ID regardless
// of version.
func (w EnvelopeWrapper) ConversationID() string {
	if w.V2 != nil {
		return w.V2.ConversationID
	}
	if w.V1 != nil {
		return w.V1.ConversationID
	}
	return ""
}

// Topic returns the wrapped envelope's declared topic regardless of version.
func (w EnvelopeWrapper) Topic() string {
	if w.V2 != nil {
		return w.V2.Topic
	}
	if w.V1 != nil {
		return w.V1.Topic
	}
	return ""
}

// Instruction returns the wrapped envelope's instruction regardless of
// version.
func (w EnvelopeWrapper) Instruction() string {
	if w.V2 != nil {
		return w.V2.Instruction
	}
	if w.V1 != nil {
		return w.V1.Instruction
	}
	return ""
}

// Input returns the wrapped envelope's input payload regardless of version.
func (w EnvelopeWrapper) Input() json.RawMessage {
	if w.V2 != nil {
		return w.V2.Input
	}
	if w.V1 != nil {
		return w.V1.Input
	}
	return nil
}

// Next returns the wrapped envelope's static continuation regardless of
// version.
func (w EnvelopeWrapper) Next() *NextTask {
	if w.V2 != nil {
		return w.V2.Next
	}
	if w.V1 != nil {
		return w.V1.Next
	}
	return nil
}

// versionProbe is used only to detect the discriminant on unmarshal.
type versionProbe struct {
	Version string `json:"version"`
}

// UnmarshalJSON detects v2 by the untagged presence of a "version" field
// equal to "2.0"; absence (or any other value) selects v1.
func (w *EnvelopeWrapper) UnmarshalJSON(data []byte) error {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("protocol: detect envelope version: %w", err)
	}

	if probe.Version == "2.0" {
		var v2 TaskEnvelopeV2
		if err := json.Unmarshal(data, &v2); err != nil {
			return fmt.Errorf("protocol: parse v2 envelope: %w", err)
		}
		w.V2 = &v2
		w.V1 = nil
		return nil
	}

	var v1 TaskEnvelopeV1
	if err := json.Unmarshal(data, &v1); err != nil {
		return fmt.Errorf("protocol: parse v1 envelope: %w", err)
	}
	w.V1 = &v1
	w.V2 = nil
	return nil
}

// MarshalJSON serializes whichever variant is set, preserving version on
// forward.
func (w EnvelopeWrapper) MarshalJSON() ([]byte, error) {
	if w.V2 != nil {
		return json.Marshal(w.V2)
	}
	if w.V1 != nil {
		return json.Marshal(w.V1)
	}
	return nil, fmt.Errorf("protocol: empty envelope wrapper")
}

// AgentStatusType is the presence value published to an agent's status
// topic.
type AgentStatusType string

const (
	StatusAvailable   AgentStatusType = "available"
	StatusUnavailable AgentStatusType = "unavailable"
)

// AgentStatus is the retained message describing an agent's presence.
type AgentStatus struct {
	AgentID      string          `json:"agent_id"`
	Status       AgentStatusType `json:"status"`
	Timestamp    string          `json:"timestamp"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// ErrorCode enumerates the wire-serialized, snake_case error codes.
type ErrorCode string

const (
	ErrorToolExecutionFailed   ErrorCode = "tool_execution_failed"
	ErrorLLMError              ErrorCode = "llm_error"
	ErrorInvalidInput          ErrorCode = "invalid_input"
	ErrorPipelineDepthExceeded ErrorCode = "pipeline_depth_exceeded"
	ErrorInternalError         ErrorCode = "internal_error"
)

// ErrorDetails is the nested error payload of an ErrorMessage.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorMessage is the outbound conversation payload published when a step
// fails.
type ErrorMessage struct {
	Error  ErrorDetails `json:"error"`
	TaskID uuid.UUID    `json:"task_id"`
}

// ResponseMessage is the outbound conversation payload published when the
// pipeline completes successfully.
type ResponseMessage struct {
	Response string    `json:"response"`
	TaskID   uuid.UUID `json:"task_id"`
}
