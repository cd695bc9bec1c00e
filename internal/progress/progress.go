// Package progress implements the fire-and-forget progress reporting
// channel: step-level breadcrumbs published to /progress/{agent_id}/{task_id}
// so an operator watching that topic can see an agent's execute loop
// advance without waiting for the final response.
package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
)

// Category narrows an event to the subsystem that produced it.
type Category string

const (
	CategoryGeneral Category = "general"
	CategoryTool    Category = "tool"
	CategoryLLM     Category = "llm"
)

// EventType names the specific thing that happened.
type EventType string

const (
	EventTaskStart     EventType = "task_start"
	EventTaskComplete  EventType = "task_complete"
	EventTaskError     EventType = "task_error"
	EventToolCall      EventType = "tool_call"
	EventToolComplete  EventType = "tool_complete"
	EventLLMRequest    EventType = "llm_request"
	EventLLMResponse   EventType = "llm_response"
)

// Message is one progress breadcrumb, published non-retained at QoS 0:
// losing one is harmless, unlike a status or task message.
type Message struct {
	AgentID        string    `json:"agent_id"`
	TaskID         string    `json:"task_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Timestamp      string    `json:"timestamp"`
	Category       Category  `json:"category"`
	EventType      EventType `json:"event_type"`
	Text           string    `json:"message"`
}

// Reporter is the capability the processor uses to emit progress. NoOpReporter and MQTTReporter are the two implementations;
// callers hold a Reporter, never a concrete type.
type Reporter interface {
	ReportStep(ctx context.Context, taskID uuid.UUID, conversationID string, category Category, event EventType, message string)
	ReportError(ctx context.Context, taskID uuid.UUID, conversationID string, message string)
	ReportComplete(ctx context.Context, taskID uuid.UUID, conversationID string)
}

// NoOpReporter discards every event. The default for agents that don't
// configure progress reporting.
type NoOpReporter struct{}

func (NoOpReporter) ReportStep(context.Context, uuid.UUID, string, Category, EventType, string) {}
func (NoOpReporter) ReportError(context.Context, uuid.UUID, string, string)                     {}
func (NoOpReporter) ReportComplete(context.Context, uuid.UUID, string)                          {}

// publisher is the narrow slice of transport.Transport MQTTReporter needs,
// kept as a local interface so this package doesn't import transport just
// to publish one message type.
type publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error
}

// MQTTReporter publishes each event to the agent's progress topic. A
// publish failure is logged and dropped, never propagated, since progress
// is an observability aid, not part of the protocol contract.
type MQTTReporter struct {
	agentID string
	tp      publisher
	log     *logging.Logger
	now     func() time.Time
}

// NewMQTTReporter constructs an MQTTReporter for agentID.
func NewMQTTReporter(agentID string, tp publisher, log *logging.Logger) *MQTTReporter {
	return &MQTTReporter{agentID: agentID, tp: tp, log: log, now: time.Now}
}

func (r *MQTTReporter) publish(ctx context.Context, taskID uuid.UUID, conversationID string, category Category, event EventType, text string) {
	msg := Message{
		AgentID:        r.agentID,
		TaskID:         taskID.String(),
		ConversationID: conversationID,
		Timestamp:      r.now().UTC().Format(time.RFC3339),
		Category:       category,
		EventType:      event,
		Text:           text,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Warn("progress: marshal failed: %v", err)
		return
	}
	topic := protocol.ProgressTopic(r.agentID, taskID.String())
	if err := r.tp.Publish(ctx, topic, payload, 0, false); err != nil {
		r.log.Debug("progress: publish to %s failed: %v", topic, err)
	}
}

func (r *MQTTReporter) ReportStep(ctx context.Context, taskID uuid.UUID, conversationID string, category Category, event EventType, message string) {
	r.publish(ctx, taskID, conversationID, category, event, message)
}

func (r *MQTTReporter) ReportError(ctx context.Context, taskID uuid.UUID, conversationID string, message string) {
	r.publish(ctx, taskID, conversationID, CategoryGeneral, EventTaskError, message)
}

func (r *MQTTReporter) ReportComplete(ctx context.Context, taskID uuid.UUID, conversationID string) {
	r.publish(ctx, taskID, conversationID, CategoryGeneral, EventTaskComplete, "task complete")
}
