// Package metrics implements the core's in-process counters: atomics for
// the scalar counts and a small mutex-guarded map for the keyed ones. None
// of this is exposed over the wire; tests assert on a Snapshot instead of
// scraping logs, and a supervising process that wants these numbers reads
// them by holding a reference to the same Counters the agent was built
// with.
package metrics

import "sync/atomic"

// Snapshot is a point-in-time copy of every counter, safe to log or assert
// on without holding any lock.
type Snapshot struct {
	EnvelopesProcessed int64
	ErrorsByCode       map[string]int64
	RoutingDecisions   map[string]int64
	ReconnectAttempts  int64
}

// Counters accumulates activity for one running agent. The zero value is
// ready to use. All fields are unexported; use the increment methods and
// Snapshot to read.
type Counters struct {
	envelopesProcessed atomic.Int64
	reconnectAttempts  atomic.Int64

	errorsByCode     sync64Map
	routingDecisions sync64Map
}

// New constructs an empty Counters.
func New() *Counters {
	return &Counters{
		errorsByCode:     newSync64Map(),
		routingDecisions: newSync64Map(),
	}
}

// IncEnvelopeProcessed records one envelope the processor accepted rather
// than dropped, regardless of whether it then succeeded or failed.
func (c *Counters) IncEnvelopeProcessed() {
	c.envelopesProcessed.Add(1)
}

// IncError records one published error by its wire error code, e.g.
// "tool_execution_failed".
func (c *Counters) IncError(code string) {
	c.errorsByCode.inc(code)
}

// IncRoutingDecision records one step-8 outcome by kind: "static",
// "dynamic_forward", or "complete".
func (c *Counters) IncRoutingDecision(kind string) {
	c.routingDecisions.inc(kind)
}

// IncReconnectAttempt records one transport reconnect attempt, successful
// or not.
func (c *Counters) IncReconnectAttempt() {
	c.reconnectAttempts.Add(1)
}

// Snapshot copies every counter's current value.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		EnvelopesProcessed: c.envelopesProcessed.Load(),
		ErrorsByCode:       c.errorsByCode.copy(),
		RoutingDecisions:   c.routingDecisions.copy(),
		ReconnectAttempts:  c.reconnectAttempts.Load(),
	}
}
