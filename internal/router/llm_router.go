package router

import (
	"context"
	"fmt"

	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/registry"
)

// LLMRouter extracts a routing decision from the same model output the
// execute loop already produced, rather than issuing a second completion
// request. Forwarding targets are validated against the peer registry so a
// hallucinated agent ID degrades to Complete instead of publishing into the
// void.
type LLMRouter struct {
	registry *registry.Registry
}

// NewLLMRouter constructs an LLMRouter backed by reg. reg may be nil, in
// which case every forward target is accepted without an existence check
// (useful in tests that don't exercise discovery).
func NewLLMRouter(reg *registry.Registry) *LLMRouter {
	return &LLMRouter{registry: reg}
}

func (r *LLMRouter) Decide(_ context.Context, _ protocol.EnvelopeWrapper, output string) (Decision, error) {
	decision, err := ParseAgentDecision(output)
	if err != nil {
		return Decision{}, fmt.Errorf("router: %w", err)
	}

	result := decisionFromAgentDecision(decision, "parsed from agent's structured output")
	if result.Complete || r.registry == nil {
		return result, nil
	}

	if _, ok := r.registry.Get(result.NextAgentID); !ok {
		return Decision{
			Complete:    true,
			FinalOutput: ExtractResult(decision.Result),
			Reason:      fmt.Sprintf("no unexpired agent %q in registry, completing instead", result.NextAgentID),
		}, nil
	}

	return result, nil
}
