package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agen/mqttagent/internal/llm"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

type stubTransport struct{ phase transport.Phase }

func (s stubTransport) Connect(context.Context) error                  { return nil }
func (s stubTransport) Disconnect(context.Context) error               { return nil }
func (s stubTransport) SubscribeTasks(context.Context, string) error   { return nil }
func (s stubTransport) SubscribeDiscovery(context.Context) error       { return nil }
func (s stubTransport) SetTaskSink(transport.TaskSink)                 {}
func (s stubTransport) Publish(context.Context, string, []byte, byte, bool) error {
	return nil
}
func (s stubTransport) PublishStatus(context.Context, protocol.AgentStatus) error { return nil }
func (s stubTransport) PublishTask(context.Context, string, []byte) error         { return nil }
func (s stubTransport) PublishResponse(context.Context, string, string, protocol.ResponseMessage) error {
	return nil
}
func (s stubTransport) PublishError(context.Context, string, string, protocol.ErrorMessage) error {
	return nil
}
func (s stubTransport) State() transport.State          { return transport.State{Phase: s.phase} }
func (s stubTransport) IsPermanentlyDisconnected() bool { return s.phase == transport.PhasePermanentlyDisconnected }

func TestCheckTransportOKWhenConnected(t *testing.T) {
	c := New(stubTransport{phase: transport.PhaseConnected}, llm.NewMockProvider())
	require.NoError(t, c.CheckTransport(context.Background()))
}

func TestCheckTransportFailsWhenNotConnected(t *testing.T) {
	c := New(stubTransport{phase: transport.PhaseReconnecting}, llm.NewMockProvider())
	require.Error(t, c.CheckTransport(context.Background()))
}

func TestCheckLLMDelegatesToProvider(t *testing.T) {
	provider := llm.NewMockProvider()
	c := New(stubTransport{phase: transport.PhaseConnected}, provider)
	require.NoError(t, c.CheckLLM(context.Background()))

	provider.Err = errors.New("model unreachable")
	require.Error(t, c.CheckLLM(context.Background()))
}
