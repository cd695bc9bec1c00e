// Package transport owns the MQTT v5 connection lifecycle: dialing,
// CONNACK, the Last-Will-Testament, reconnection with backoff, subscription
// replay, and publish/subscribe plumbing for the rest of the agent core.
package transport

import (
	"fmt"
	"sync"
)

// Phase names one of the five connection states the transport supervisor
// can be in.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseConnected
	PhaseDisconnected
	PhaseReconnecting
	PhasePermanentlyDisconnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseReconnecting:
		return "reconnecting"
	case PhasePermanentlyDisconnected:
		return "permanently_disconnected"
	default:
		return "unknown"
	}
}

// State is one snapshot of the connection state machine: a phase plus the
// data that phase carries (a disconnect reason, or a reconnect attempt
// count).
type State struct {
	Phase   Phase
	Reason  string // set for Disconnected and PermanentlyDisconnected
	Attempt int    // set for Reconnecting
}

func (s State) String() string {
	switch s.Phase {
	case PhaseDisconnected, PhasePermanentlyDisconnected:
		return fmt.Sprintf("%s(%s)", s.Phase, s.Reason)
	case PhaseReconnecting:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Attempt)
	default:
		return s.Phase.String()
	}
}

// stateBox holds the current State behind a mutex and notifies watchers of
// every transition through a fanned-out set of channels, mirroring the
// watch/broadcast shape the original connection state machine uses to let
// callers block on "is it connected yet" without polling.
type stateBox struct {
	mu       sync.Mutex
	current  State
	watchers []chan State
}

func newStateBox(initial State) *stateBox {
	return &stateBox{current: initial}
}

func (b *stateBox) get() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *stateBox) set(s State) {
	b.mu.Lock()
	b.current = s
	watchers := b.watchers
	b.watchers = nil
	b.mu.Unlock()

	for _, ch := range watchers {
		ch <- s
		close(ch)
	}
}

// watch returns a channel that receives exactly the next state transition,
// then closes. Used by Connect to block until the first Connected or
// PermanentlyDisconnected transition.
func (b *stateBox) watch() <-chan State {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan State, 1)
	b.watchers = append(b.watchers, ch)
	return ch
}
