package transport

import (
	"context"

	"github.com/tenzoki/agen/mqttagent/internal/protocol"
)

// InboundTask is one intake message handed to the orchestrator: the topic
// it arrived on, its raw payload, and whether the broker marked it
// retained (the nine-step processor's retention check needs this).
type InboundTask struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// TaskSink receives every inbound message on any topic the supervisor has
// subscribed to, task intake and discovery alike; the installed sink is
// responsible for telling the two apart.
type TaskSink func(InboundTask)

// Transport is the capability the rest of the agent core needs from the
// MQTT connection: publish and subscribe, plus observation of the
// connection's lifecycle state. Concrete implementations own reconnection;
// callers never see a raw client handle.
type Transport interface {
	// Connect dials the broker and blocks until the first Connected or
	// PermanentlyDisconnected transition, then returns. Reconnection after
	// the initial connect happens in the background.
	Connect(ctx context.Context) error

	// Disconnect publishes the Unavailable status (unless already
	// permanently disconnected), sends MQTT DISCONNECT, and stops the
	// reconnect loop.
	Disconnect(ctx context.Context) error

	// SubscribeTasks subscribes to agentID's input topic and records it
	// for replay after reconnect. Messages arrive on the sink registered
	// with SetTaskSink.
	SubscribeTasks(ctx context.Context, agentID string) error

	// SubscribeDiscovery subscribes to the peer-discovery wildcard filter.
	SubscribeDiscovery(ctx context.Context) error

	// SetTaskSink installs the callback invoked for every message received
	// on a subscribed topic, whether task intake or discovery.
	SetTaskSink(sink TaskSink)

	Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error
	PublishStatus(ctx context.Context, status protocol.AgentStatus) error
	PublishTask(ctx context.Context, topic string, envelope []byte) error
	PublishResponse(ctx context.Context, conversationID, agentID string, resp protocol.ResponseMessage) error
	PublishError(ctx context.Context, conversationID, agentID string, errMsg protocol.ErrorMessage) error

	State() State
	IsPermanentlyDisconnected() bool
}
