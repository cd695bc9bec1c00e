package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/tenzoki/agen/mqttagent/internal/agenterr"
	"github.com/tenzoki/agen/mqttagent/internal/config"
	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/metrics"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
)

// pahoClient is the slice of *paho.Client the supervisor depends on. Kept
// as an interface so tests can swap in a fake instead of dialing a real
// broker; *paho.Client satisfies it with its normal method set.
type pahoClient interface {
	Connect(ctx context.Context, cp *paho.Connect) (*paho.Connack, error)
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error)
	Disconnect(d *paho.Disconnect) error
}

type clientFactory func(cfg paho.ClientConfig) pahoClient

func defaultClientFactory(cfg paho.ClientConfig) pahoClient {
	return paho.NewClient(cfg)
}

// subscription is one recorded subscribe call, replayed in order after a
// reconnect since the broker does not remember them across a clean
// session.
type subscription struct {
	topic string
	qos   byte
}

// Supervisor is the sole owner of the broker connection. It implements
// Transport on top of paho.golang/paho directly rather than its autopaho
// wrapper, because the protocol's reconnect schedule (25ms, 50ms, 100ms,
// 250ms, then sustained 250ms) and CONNACK-driven state machine need
// control autopaho's own reconnector does not expose.
type Supervisor struct {
	cfg     config.MQTTConfig
	agentID string
	log     *logging.Logger
	backoff ReconnectConfig
	metrics *metrics.Counters

	dial    func(ctx context.Context, brokerURL string) (net.Conn, error)
	newFunc clientFactory

	mu       sync.Mutex
	client   pahoClient
	conn     net.Conn
	dropCh   chan struct{}
	state    *stateBox
	sink     TaskSink
	subs     []subscription
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSupervisor constructs a Supervisor for agentID using cfg. backoff lets
// callers override the default reconnect schedule; pass
// DefaultReconnectConfig() for production use.
func NewSupervisor(cfg config.MQTTConfig, agentID string, log *logging.Logger, backoff ReconnectConfig, m *metrics.Counters) *Supervisor {
	if m == nil {
		m = metrics.New()
	}
	return &Supervisor{
		cfg:     cfg,
		agentID: agentID,
		log:     log,
		backoff: backoff,
		metrics: m,
		dial:    dial,
		newFunc: defaultClientFactory,
		state:   newStateBox(State{Phase: PhaseConnecting}),
		stopCh:  make(chan struct{}),
	}
}

func (s *Supervisor) SetTaskSink(sink TaskSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Supervisor) State() State { return s.state.get() }

func (s *Supervisor) IsPermanentlyDisconnected() bool {
	return s.state.get().Phase == PhasePermanentlyDisconnected
}

// Connect dials, performs the CONNECT/CONNACK handshake with the Last-Will
// configured for this agent, and starts the background reconnect loop. It
// blocks until the first Connected or PermanentlyDisconnected transition.
func (s *Supervisor) Connect(ctx context.Context) error {
	go s.connectionLoop(ctx)

	for {
		// Register the watcher before reading the current state so a
		// transition that lands between two watches is not missed.
		watch := s.state.watch()
		switch st := s.state.get(); st.Phase {
		case PhaseConnected:
			return nil
		case PhasePermanentlyDisconnected:
			return agenterr.InternalError("transport: %s", st.Reason)
		}
		select {
		case st := <-watch:
			switch st.Phase {
			case PhaseConnected:
				return nil
			case PhasePermanentlyDisconnected:
				return agenterr.InternalError("transport: %s", st.Reason)
			default:
				// Connecting/Reconnecting/Disconnected: keep waiting for
				// the handshake to settle one way or the other.
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// connectionLoop owns the connect-then-reconnect lifecycle for the whole
// process lifetime, exiting only when stopCh closes, the backoff schedule
// is exhausted, or ctx is cancelled while waiting between attempts.
func (s *Supervisor) connectionLoop(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if attempt > 0 {
			s.state.set(State{Phase: PhaseReconnecting, Attempt: attempt})
			delay := time.Duration(s.backoff.DelayMillis(attempt)) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		s.metrics.IncReconnectAttempt()
		if err := s.connectOnce(ctx); err != nil {
			attempt++
			s.log.Warn("connect attempt %d failed: %v", attempt, err)
			if s.backoff.Exhausted(attempt) {
				s.state.set(State{Phase: PhasePermanentlyDisconnected, Reason: err.Error()})
				return
			}
			continue
		}

		attempt = 0
		s.state.set(State{Phase: PhaseConnected})
		s.replaySubscriptions(ctx)

		// Block until the connection drops, then loop back into the
		// reconnect branch above.
		<-s.waitForDrop()
		select {
		case <-s.stopCh:
			return
		default:
			s.state.set(State{Phase: PhaseDisconnected, Reason: "connection lost"})
		}
	}
}

// waitForDrop returns the current dropCh, which is swapped in on every
// successful connect and closed by the paho client's error/disconnect
// callbacks, letting connectionLoop notice a drop without polling.
func (s *Supervisor) waitForDrop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropCh
}

func (s *Supervisor) connectOnce(ctx context.Context) error {
	conn, err := s.dial(ctx, s.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	dropCh := make(chan struct{})
	var dropOnce sync.Once
	signalDrop := func() { dropOnce.Do(func() { close(dropCh) }) }

	client := s.newFunc(paho.ClientConfig{
		Conn: conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				s.deliver(pr)
				return true, nil
			},
		},
		OnClientError:      func(error) { signalDrop() },
		OnServerDisconnect: func(*paho.Disconnect) { signalDrop() },
	})

	cp, err := s.buildConnectPacket()
	if err != nil {
		_ = conn.Close()
		return err
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect: %w", err)
	}
	if ca.ReasonCode != 0 {
		_ = conn.Close()
		return fmt.Errorf("connack reason code %d", ca.ReasonCode)
	}

	s.mu.Lock()
	s.client = client
	s.conn = conn
	s.dropCh = dropCh
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) buildConnectPacket() (*paho.Connect, error) {
	statusTopic := protocol.StatusTopic(s.agentID)
	lwt := protocol.AgentStatus{
		AgentID:   s.agentID,
		Status:    protocol.StatusUnavailable,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	lwtPayload, err := json.Marshal(lwt)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal lwt: %w", err)
	}

	username, password := s.cfg.ResolveCredentials()
	clientID := fmt.Sprintf("agent-%s-%d", s.agentID, time.Now().UnixMilli())

	cp := &paho.Connect{
		KeepAlive:  60,
		ClientID:   clientID,
		CleanStart: true,
		WillMessage: &paho.WillMessage{
			Topic:   statusTopic,
			Payload: lwtPayload,
			QoS:     1,
			Retain:  true,
		},
	}
	if username != "" {
		cp.Username = username
		cp.UsernameFlag = true
	}
	if password != "" {
		cp.Password = []byte(password)
		cp.PasswordFlag = true
	}
	return cp, nil
}

// deliver hands an inbound PUBLISH to the registered sink, if any.
func (s *Supervisor) deliver(pr paho.PublishReceived) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil || pr.Packet == nil {
		return
	}
	sink(InboundTask{
		Topic:    pr.Packet.Topic,
		Payload:  pr.Packet.Payload,
		Retained: pr.Packet.Retain,
	})
}

func (s *Supervisor) Disconnect(ctx context.Context) error {
	if !s.IsPermanentlyDisconnected() {
		status := protocol.AgentStatus{
			AgentID:   s.agentID,
			Status:    protocol.StatusUnavailable,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		_ = s.PublishStatus(ctx, status)
	}

	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	client := s.client
	conn := s.conn
	s.mu.Unlock()

	if client != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.state.set(State{Phase: PhaseDisconnected, Reason: "shutdown"})
	return nil
}

func (s *Supervisor) subscribe(ctx context.Context, topic string, qos byte) error {
	s.mu.Lock()
	client := s.client
	s.subs = append(s.subs, subscription{topic: topic, qos: qos})
	s.mu.Unlock()

	if client == nil {
		return &agenterr.NotConnected{State: s.state.get().String()}
	}
	_, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: qos}},
	})
	if err != nil {
		return fmt.Errorf("transport: subscribe %s: %w", topic, err)
	}
	return nil
}

func (s *Supervisor) SubscribeTasks(ctx context.Context, agentID string) error {
	return s.subscribe(ctx, protocol.InputTopic(agentID), 1)
}

func (s *Supervisor) SubscribeDiscovery(ctx context.Context) error {
	return s.subscribe(ctx, protocol.DiscoveryFilter, 1)
}

func (s *Supervisor) replaySubscriptions(ctx context.Context) {
	s.mu.Lock()
	client := s.client
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	if client == nil {
		return
	}
	for _, sub := range subs {
		if _, err := client.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: sub.topic, QoS: sub.qos}},
		}); err != nil {
			s.log.Error("replay subscribe %s failed: %v", sub.topic, err)
		}
	}
}

func (s *Supervisor) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return &agenterr.NotConnected{State: s.state.get().String()}
	}
	_, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	})
	if err != nil {
		return fmt.Errorf("transport: publish %s: %w", topic, err)
	}
	return nil
}

func (s *Supervisor) PublishStatus(ctx context.Context, status protocol.AgentStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("transport: marshal status: %w", err)
	}
	return s.Publish(ctx, protocol.StatusTopic(status.AgentID), payload, 1, true)
}

func (s *Supervisor) PublishTask(ctx context.Context, topic string, envelope []byte) error {
	return s.Publish(ctx, topic, envelope, 1, false)
}

func (s *Supervisor) PublishResponse(ctx context.Context, conversationID, agentID string, resp protocol.ResponseMessage) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("transport: marshal response: %w", err)
	}
	return s.Publish(ctx, protocol.ConversationTopic(conversationID, agentID), payload, 1, false)
}

func (s *Supervisor) PublishError(ctx context.Context, conversationID, agentID string, errMsg protocol.ErrorMessage) error {
	payload, err := json.Marshal(errMsg)
	if err != nil {
		return fmt.Errorf("transport: marshal error message: %w", err)
	}
	return s.Publish(ctx, protocol.ConversationTopic(conversationID, agentID), payload, 1, false)
}
