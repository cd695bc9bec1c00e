package processor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agen/mqttagent/internal/agenterr"
	"github.com/tenzoki/agen/mqttagent/internal/llm"
	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/tools"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

func testConfig() Config {
	return Config{MaxPipelineDepth: 16, MaxTaskCache: 10000, MaxToolIterations: 10}
}

func envelopeBytes(t *testing.T, env protocol.TaskEnvelopeV1) []byte {
	t.Helper()
	data, err := json.Marshal(protocol.EnvelopeWrapper{V1: &env})
	require.NoError(t, err)
	return data
}

func TestProcessDropsRetainedMessage(t *testing.T) {
	p := New(testConfig(), "agent-a", llm.NewMockProvider(), tools.NewMockSystem(), logging.New("test", "agent-a", false), nil)
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Retained: true}

	_, err := p.Process(context.Background(), task)
	require.Error(t, err)
	var dropped Dropped
	require.ErrorAs(t, err, &dropped)
}

func TestProcessReportsInvalidInputOnDeclaredTopicMismatch(t *testing.T) {
	p := New(testConfig(), "agent-a", llm.NewMockProvider(), tools.NewMockSystem(), logging.New("test", "agent-a", false), nil)
	env := protocol.TaskEnvelopeV1{TaskID: uuid.New(), ConversationID: "c1", Topic: "/control/agents/beta/input", Instruction: "do it"}
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Payload: envelopeBytes(t, env)}

	outcome, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, outcome.Err)
	require.Equal(t, agenterr.CodeInvalidInput, outcome.Err.Code)
}

func TestProcessAcceptsMatchingDeclaredTopic(t *testing.T) {
	provider := llm.NewMockProvider(llm.CompletionResponse{Content: "done"})
	p := New(testConfig(), "agent-a", provider, tools.NewMockSystem(), logging.New("test", "agent-a", false), nil)
	env := protocol.TaskEnvelopeV1{TaskID: uuid.New(), ConversationID: "c1", Topic: "/control/agents/agent-a/input", Instruction: "do it"}
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Payload: envelopeBytes(t, env)}

	outcome, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	require.Nil(t, outcome.Err)
	require.Equal(t, "done", outcome.FinalOutput)
}

func TestProcessDropsDuplicateTaskID(t *testing.T) {
	provider := llm.NewMockProvider(llm.CompletionResponse{Content: "done"}, llm.CompletionResponse{Content: "done"})
	p := New(testConfig(), "agent-a", provider, tools.NewMockSystem(), logging.New("test", "agent-a", false), nil)

	taskID := uuid.New()
	payload := envelopeBytes(t, protocol.TaskEnvelopeV1{TaskID: taskID, ConversationID: "c1", Topic: "/control/agents/agent-a/input", Instruction: "do it"})
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Payload: payload}

	_, err := p.Process(context.Background(), task)
	require.NoError(t, err)

	_, err = p.Process(context.Background(), task)
	require.Error(t, err)
	var dropped Dropped
	require.ErrorAs(t, err, &dropped)
}

func TestProcessRejectsExcessivePipelineDepth(t *testing.T) {
	p := New(testConfig(), "agent-a", llm.NewMockProvider(), tools.NewMockSystem(), logging.New("test", "agent-a", false), nil)

	var chain *protocol.NextTask
	for i := 0; i < 16; i++ {
		chain = &protocol.NextTask{Topic: "/x", Next: chain}
	}
	env := protocol.TaskEnvelopeV1{TaskID: uuid.New(), ConversationID: "c1", Topic: "/control/agents/agent-a/input", Next: chain}
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Payload: envelopeBytes(t, env)}

	outcome, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, outcome.Err)
	require.Equal(t, agenterr.CodePipelineDepthExceeded, outcome.Err.Code)
}

func TestProcessExecutesToolLoopThenReturnsFinalOutput(t *testing.T) {
	toolSys := tools.NewMockSystem(llm.ToolDescription{Name: "lookup"})
	toolSys.Register("lookup", func(llm.ToolCall) (string, error) { return "42", nil })

	provider := llm.NewMockProvider(
		llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "1", Name: "lookup"}}},
		llm.CompletionResponse{Content: "the answer is 42"},
	)
	p := New(testConfig(), "agent-a", provider, toolSys, logging.New("test", "agent-a", false), nil)

	env := protocol.TaskEnvelopeV1{TaskID: uuid.New(), ConversationID: "c1", Topic: "/control/agents/agent-a/input", Instruction: "look it up"}
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Payload: envelopeBytes(t, env)}

	outcome, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	require.Nil(t, outcome.Err)
	require.Equal(t, "the answer is 42", outcome.FinalOutput)
	require.Equal(t, 2, provider.CallCount())
}

func TestProcessToolIterationCapExceeded(t *testing.T) {
	toolSys := tools.NewMockSystem(llm.ToolDescription{Name: "loop"})
	toolSys.Register("loop", func(llm.ToolCall) (string, error) { return "again", nil })

	responses := make([]llm.CompletionResponse, 0, 10)
	for i := 0; i < 10; i++ {
		responses = append(responses, llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "1", Name: "loop"}}})
	}
	provider := llm.NewMockProvider(responses...)
	cfg := testConfig()
	cfg.MaxToolIterations = 10
	p := New(cfg, "agent-a", provider, toolSys, logging.New("test", "agent-a", false), nil)

	env := protocol.TaskEnvelopeV1{TaskID: uuid.New(), ConversationID: "c1", Topic: "/control/agents/agent-a/input", Instruction: "loop forever"}
	task := transport.InboundTask{Topic: "/control/agents/agent-a/input", Payload: envelopeBytes(t, env)}

	outcome, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, outcome.Err)
	require.Equal(t, agenterr.CodeToolExecutionFailed, outcome.Err.Code)
}
