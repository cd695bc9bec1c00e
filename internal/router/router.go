// Package router implements the two dynamic (v2) routing strategies: an
// LLM-structured-output router that reads the routing decision out of the
// output the model already produced (it sends no prompt or completion
// request of its own), and an HTTP-backed Gatekeeper router that defers
// that decision to an external service.
package router

import (
	"context"

	"github.com/tenzoki/agen/mqttagent/internal/protocol"
)

// Decision is the outcome of a dynamic routing call: either the workflow
// is complete, or it continues to NextAgentID with NextInstruction.
type Decision struct {
	Complete        bool
	FinalOutput     string
	NextAgentID     string
	NextInstruction string
	Reason          string
}

// Router decides what happens next for a v2 envelope whose static Next
// field is empty, given the output the current agent's execute loop just
// produced.
type Router interface {
	Decide(ctx context.Context, env protocol.EnvelopeWrapper, output string) (Decision, error)
}

func decisionFromAgentDecision(decision AgentDecision, reason string) Decision {
	if decision.WorkflowComplete || decision.NextAgent == nil {
		return Decision{Complete: true, FinalOutput: ExtractResult(decision.Result), Reason: reason}
	}

	instruction := ""
	if decision.NextInstruction != nil {
		instruction = *decision.NextInstruction
	}
	return Decision{
		NextAgentID:     *decision.NextAgent,
		NextInstruction: instruction,
		Reason:          reason,
	}
}
