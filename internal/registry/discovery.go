package registry

import (
	"encoding/json"

	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

// Discovery adapts inbound transport messages on the discovery wildcard
// filter into Registry updates. It is wired as (part of) a transport
// TaskSink so status messages never pass through the nine-step processor.
type Discovery struct {
	registry *Registry
	log      *logging.Logger
}

// NewDiscovery constructs a Discovery feeding reg.
func NewDiscovery(reg *Registry, log *logging.Logger) *Discovery {
	return &Discovery{registry: reg, log: log}
}

// HandleInbound consumes one inbound message if it is on
// /control/agents/+/status and reports true; for anything else it does
// nothing and reports false, so it can be composed with the task-intake
// sink behind a single transport.TaskSink dispatcher.
func (d *Discovery) HandleInbound(task transport.InboundTask) bool {
	agentID := protocol.AgentIDFromStatusTopic(task.Topic)
	if agentID == "" {
		return false
	}

	var status protocol.AgentStatus
	if err := json.Unmarshal(task.Payload, &status); err != nil {
		d.log.Warn("discovery: malformed status on %s: %v", task.Topic, err)
		return true
	}
	if status.AgentID == "" {
		status.AgentID = agentID
	}

	d.registry.Register(status)
	return true
}
