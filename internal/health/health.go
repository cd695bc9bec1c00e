// Package health implements the one-shot startup readiness checks the
// lifecycle runner performs before subscribing to task intake: is the
// transport actually connected, and does the configured LLM provider
// respond. Neither check runs continuously and neither is exposed over an
// HTTP endpoint; both are plain functions a caller invokes and logs.
package health

import (
	"context"
	"fmt"

	"github.com/tenzoki/agen/mqttagent/internal/llm"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

// Checker groups the two readiness checks the lifecycle runner performs
// during startup.
type Checker struct {
	transport transport.Transport
	provider  llm.Provider
}

// New constructs a Checker against the given transport and LLM provider.
func New(tp transport.Transport, provider llm.Provider) *Checker {
	return &Checker{transport: tp, provider: provider}
}

// CheckTransport reports an error unless the transport's current state is
// connected. It does not attempt to connect; that is Connect's job.
func (c *Checker) CheckTransport(ctx context.Context) error {
	st := c.transport.State()
	if st.Phase != transport.PhaseConnected {
		return fmt.Errorf("health: transport not connected: %s", st)
	}
	return nil
}

// CheckLLM delegates to the provider's own health check.
func (c *Checker) CheckLLM(ctx context.Context) error {
	if err := c.provider.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health: llm provider: %w", err)
	}
	return nil
}
