package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWrapperRoundTripV1(t *testing.T) {
	orig := EnvelopeWrapper{V1: &TaskEnvelopeV1{
		TaskID:         uuid.New(),
		ConversationID: "conv-1",
		Topic:          "/control/agents/alpha/input",
		Instruction:    "do the thing",
		Input:          json.RawMessage(`{"x":1}`),
		Next: &NextTask{
			Topic:       "/control/agents/beta/input",
			Instruction: "refine",
		},
	}}

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var parsed EnvelopeWrapper
	require.NoError(t, json.Unmarshal(data, &parsed))

	require.NotNil(t, parsed.V1)
	assert.Nil(t, parsed.V2)
	assert.Equal(t, orig.V1.TaskID, parsed.V1.TaskID)
	assert.Equal(t, orig.V1.ConversationID, parsed.V1.ConversationID)
	assert.Equal(t, orig.V1.Topic, parsed.V1.Topic)
	assert.Equal(t, orig.V1.Instruction, parsed.V1.Instruction)
	assert.JSONEq(t, string(orig.V1.Input), string(parsed.V1.Input))
	require.NotNil(t, parsed.V1.Next)
	assert.Equal(t, orig.V1.Next.Topic, parsed.V1.Next.Topic)
}

func TestEnvelopeWrapperRoundTripV2(t *testing.T) {
	orig := EnvelopeWrapper{V2: &TaskEnvelopeV2{
		TaskID:         uuid.New(),
		ConversationID: "conv-2",
		Topic:          "/control/agents/alpha/input",
		Version:        "2.0",
		Input:          json.RawMessage(`{"y":2}`),
		Context: &WorkflowContext{
			OriginalQuery:  "find the answer",
			IterationCount: 3,
			StepsCompleted: []WorkflowStep{{AgentID: "alpha", Action: "searched", Timestamp: "2024-01-01T00:00:00Z"}},
		},
		RoutingTrace: []RoutingStep{{FromAgent: "alpha", ToAgent: "beta", Reason: "handoff", StepNumber: 1}},
	}}

	data, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":"2.0"`)

	var parsed EnvelopeWrapper
	require.NoError(t, json.Unmarshal(data, &parsed))

	require.NotNil(t, parsed.V2)
	assert.Nil(t, parsed.V1)
	assert.True(t, parsed.IsV2())
	assert.Equal(t, orig.V2.TaskID, parsed.V2.TaskID)
	require.NotNil(t, parsed.V2.Context)
	assert.Equal(t, 3, parsed.V2.Context.IterationCount)
	require.Len(t, parsed.V2.RoutingTrace, 1)
	assert.Equal(t, "beta", parsed.V2.RoutingTrace[0].ToAgent)
}

func TestEnvelopeWrapperDetectsVersionByFieldPresence(t *testing.T) {
	v1Wire := []byte(`{"task_id":"` + uuid.New().String() + `","conversation_id":"c","topic":"/x"}`)
	var wrapper EnvelopeWrapper
	require.NoError(t, json.Unmarshal(v1Wire, &wrapper))
	assert.False(t, wrapper.IsV2())

	v2Wire := []byte(`{"task_id":"` + uuid.New().String() + `","conversation_id":"c","topic":"/x","version":"2.0"}`)
	require.NoError(t, json.Unmarshal(v2Wire, &wrapper))
	assert.True(t, wrapper.IsV2())
}

func TestEnvelopeWrapperUnknownFieldsTolerated(t *testing.T) {
	wire := []byte(`{"task_id":"` + uuid.New().String() + `","conversation_id":"c","topic":"/x","unexpected_field":42}`)
	var wrapper EnvelopeWrapper
	require.NoError(t, json.Unmarshal(wire, &wrapper))
	require.NotNil(t, wrapper.V1)
}

func TestPipelineDepth(t *testing.T) {
	assert.Equal(t, 1, PipelineDepth(nil))

	chain := &NextTask{Topic: "/a"}
	assert.Equal(t, 2, PipelineDepth(chain))

	// Build a chain of length k=16 (total depth 17).
	var head *NextTask
	for i := 0; i < 16; i++ {
		head = &NextTask{Topic: "/x", Next: head}
	}
	assert.Equal(t, 17, PipelineDepth(head))
}

func TestErrorMessageAndResponseMessageJSON(t *testing.T) {
	taskID := uuid.New()
	errMsg := ErrorMessage{
		Error:  ErrorDetails{Code: ErrorInvalidInput, Message: "bad topic"},
		TaskID: taskID,
	}
	data, err := json.Marshal(errMsg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"invalid_input"`)

	resp := ResponseMessage{Response: "done", TaskID: taskID}
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"done","task_id":"`+taskID.String()+`"}`, string(data))
}
