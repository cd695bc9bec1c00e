// Package tools defines the narrow interface the nine-step processor uses
// to execute tool calls requested by the language model. Concrete tool
// implementations are out of scope for this core.
package tools

import (
	"context"
	"fmt"

	"github.com/tenzoki/agen/mqttagent/internal/llm"
)

// System executes one tool call and returns its result, or an error if the
// tool does not exist or fails.
type System interface {
	Execute(ctx context.Context, call llm.ToolCall) (string, error)
	// Descriptions returns the tool descriptions advertised to the
	// provider on every completion request.
	Descriptions() []llm.ToolDescription
}

// MockSystem is a deterministic, in-memory test double for System.
type MockSystem struct {
	Handlers map[string]func(llm.ToolCall) (string, error)
	descs    []llm.ToolDescription
}

func NewMockSystem(descs ...llm.ToolDescription) *MockSystem {
	return &MockSystem{Handlers: make(map[string]func(llm.ToolCall) (string, error)), descs: descs}
}

func (m *MockSystem) Register(name string, handler func(llm.ToolCall) (string, error)) {
	m.Handlers[name] = handler
}

func (m *MockSystem) Execute(_ context.Context, call llm.ToolCall) (string, error) {
	handler, ok := m.Handlers[call.Name]
	if !ok {
		return "", fmt.Errorf("tools: unknown tool %q", call.Name)
	}
	return handler(call)
}

func (m *MockSystem) Descriptions() []llm.ToolDescription {
	return m.descs
}
