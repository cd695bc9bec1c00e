package tools

import (
	"context"
	"testing"

	"github.com/tenzoki/agen/mqttagent/internal/llm"
)

func TestMockSystemExecuteDispatchesToRegisteredHandler(t *testing.T) {
	m := NewMockSystem()
	m.Register("search", func(call llm.ToolCall) (string, error) {
		return "result for " + call.Arguments["query"].(string), nil
	})

	out, err := m.Execute(context.Background(), llm.ToolCall{
		Name:      "search",
		Arguments: map[string]interface{}{"query": "weather"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "result for weather" {
		t.Errorf("Execute() = %q", out)
	}
}

func TestMockSystemExecuteUnknownToolFails(t *testing.T) {
	m := NewMockSystem()
	if _, err := m.Execute(context.Background(), llm.ToolCall{Name: "nonexistent"}); err == nil {
		t.Error("expected error for unregistered tool")
	}
}

func TestMockSystemDescriptionsReturnsConfiguredList(t *testing.T) {
	descs := []llm.ToolDescription{
		{Name: "search", Description: "search the web"},
		{Name: "calculate", Description: "evaluate an expression"},
	}
	m := NewMockSystem(descs...)

	got := m.Descriptions()
	if len(got) != 2 || got[0].Name != "search" || got[1].Name != "calculate" {
		t.Errorf("Descriptions() = %+v", got)
	}
}

func TestMockSystemDescriptionsEmptyByDefault(t *testing.T) {
	m := NewMockSystem()
	if len(m.Descriptions()) != 0 {
		t.Errorf("Descriptions() = %+v, want empty", m.Descriptions())
	}
}

func TestMockSystemExecutePropagatesHandlerError(t *testing.T) {
	m := NewMockSystem()
	m.Register("failing", func(llm.ToolCall) (string, error) {
		return "", errBoom
	})

	if _, err := m.Execute(context.Background(), llm.ToolCall{Name: "failing"}); err != errBoom {
		t.Errorf("Execute() error = %v, want %v", err, errBoom)
	}
}

type toolErr string

func (e toolErr) Error() string { return string(e) }

const errBoom = toolErr("handler failed")
