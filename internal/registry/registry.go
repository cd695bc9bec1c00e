// Package registry implements the agent discovery registry: a concurrent,
// TTL-expiring map of peer AgentStatus messages observed on the discovery
// wildcard filter. The LLM router and the orchestrator look up a proposed
// handoff target in it by agent ID.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/tenzoki/agen/mqttagent/internal/protocol"
)

// ttl is how long an agent's last-seen status remains valid before it is
// treated as gone, matching the discovery system's fixed TTL.
const ttl = 15 * time.Second

// cleanupInterval rate-limits expiry sweeps so a burst of registrations
// doesn't turn every call into an O(n) scan.
const cleanupInterval = 5 * time.Second

// Entry is one agent's most recently observed status, plus the registry's
// own record of when it arrived (used for TTL expiry instead of trusting
// the remote clock in the status payload).
type Entry struct {
	protocol.AgentStatus
	SeenAt time.Time
}

func (e Entry) isExpired(now time.Time) bool {
	return now.Sub(e.SeenAt) > ttl
}

func (e Entry) isHealthy() bool {
	return e.Status == protocol.StatusAvailable
}

// canHandle reports whether capability is present in the entry's
// capability list, case-insensitively.
func (e Entry) canHandle(capability string) bool {
	for _, c := range e.Capabilities {
		if equalFold(c, capability) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Registry is a thread-safe, TTL-expiring store of peer agent statuses.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]Entry
	lastCleanup  time.Time
	now          func() time.Time
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		agents: make(map[string]Entry),
		now:    time.Now,
	}
}

// Register records or refreshes status for one agent, then opportunistically
// sweeps expired entries (rate-limited to once per cleanupInterval).
func (r *Registry) Register(status protocol.AgentStatus) {
	now := r.now()

	r.mu.Lock()
	r.agents[status.AgentID] = Entry{AgentStatus: status, SeenAt: now}
	r.mu.Unlock()

	r.cleanupExpired(now)
}

// Get returns the entry for agentID, if present and not expired.
func (r *Registry) Get(agentID string) (Entry, bool) {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[agentID]
	if !ok || entry.isExpired(now) {
		return Entry{}, false
	}
	return entry, true
}

// HealthyAgents returns every non-expired entry whose status is available.
func (r *Registry) HealthyAgents() []Entry {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.agents))
	for _, entry := range r.agents {
		if entry.isHealthy() && !entry.isExpired(now) {
			result = append(result, entry)
		}
	}
	return result
}

// FindAgentsWithCapability narrows HealthyAgents to those that can handle
// capability.
func (r *Registry) FindAgentsWithCapability(capability string) []Entry {
	healthy := r.HealthyAgents()
	result := make([]Entry, 0, len(healthy))
	for _, entry := range healthy {
		if entry.canHandle(capability) {
			result = append(result, entry)
		}
	}
	return result
}

// FindBest returns the agent best suited to handle capability. Ties are
// broken lexicographically by agent ID for determinism, since AgentStatus
// carries no load signal to rank on.
func (r *Registry) FindBest(capability string) (Entry, bool) {
	candidates := r.FindAgentsWithCapability(capability)
	if len(candidates) == 0 {
		return Entry{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AgentID < candidates[j].AgentID
	})
	return candidates[0], true
}

// CleanupExpired forces an immediate expiry sweep regardless of the rate
// limit, bypassing the interval check Register applies. Exposed mainly for
// tests and for an explicit lifecycle-driven sweep on a ticker.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

func (r *Registry) cleanupExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastCleanup) < cleanupInterval {
		return
	}
	r.lastCleanup = now
	r.sweepLocked(now)
}

// sweepLocked assumes r.mu is held for writing.
func (r *Registry) sweepLocked(now time.Time) int {
	removed := 0
	for id, entry := range r.agents {
		if entry.isExpired(now) {
			delete(r.agents, id)
			removed++
		}
	}
	return removed
}

// Count returns the total number of entries, expired or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// HealthyCount returns the number of non-expired, available entries.
func (r *Registry) HealthyCount() int {
	return len(r.HealthyAgents())
}
