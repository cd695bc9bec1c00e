package llm

import (
	"context"
	"fmt"
)

// MockProvider is a deterministic, in-memory test double for Provider. It
// replays a queue of responses, one per Complete call, so tests can drive
// the nine-step processor's execute loop without a live model.
type MockProvider struct {
	Responses []CompletionResponse
	// Err, if set, is returned by HealthCheck.
	Err error

	calls int
	Seen  []CompletionRequest
}

func NewMockProvider(responses ...CompletionResponse) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.Seen = append(m.Seen, req)
	if m.calls >= len(m.Responses) {
		return CompletionResponse{}, fmt.Errorf("llm: mock provider exhausted after %d calls", m.calls)
	}
	resp := m.Responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *MockProvider) HealthCheck(context.Context) error {
	return m.Err
}

// CallCount returns how many times Complete has been invoked.
func (m *MockProvider) CallCount() int { return m.calls }
