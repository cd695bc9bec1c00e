package metrics

import "sync"

// sync64Map is a small mutex-guarded string-keyed counter map. A sync.Map
// would avoid the mutex but makes atomic increment-or-insert awkward; the
// counter set here is small and low-frequency enough that a plain mutex is
// simpler and just as fast in practice.
type sync64Map struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newSync64Map() sync64Map {
	return sync64Map{counts: make(map[string]int64)}
}

func (m *sync64Map) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
}

func (m *sync64Map) copy() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
