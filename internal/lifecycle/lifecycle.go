// Package lifecycle sequences one agent process's startup and shutdown:
// connect, verify health, subscribe, run, and on the way out, announce
// unavailability before the connection actually drops. golang.org/x/sync/errgroup
// supervises the handful of long-running goroutines (orchestrator loop,
// heartbeat ticker) the way a supervised service entrypoint would.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tenzoki/agen/mqttagent/internal/health"
	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/orchestrator"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/registry"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

// shutdownGrace bounds how long Run waits for the orchestrator and
// heartbeat goroutines to notice cancellation before giving up on them.
const shutdownGrace = 2 * time.Second

// Runner owns one agent's full process lifetime: it does not itself
// implement the nine-step algorithm, only the order in which the pieces
// around it start up and shut down.
type Runner struct {
	agentID           string
	capabilities      []string
	description       string
	heartbeatInterval time.Duration

	tp      transport.Transport
	orc     *orchestrator.Orchestrator
	disc    *registry.Discovery
	checker *health.Checker
	log     *logging.Logger
}

// New constructs a Runner. disc may be nil for an agent with no discovery
// subscription (static v1-only deployments).
func New(agentID string, capabilities []string, description string, heartbeatInterval time.Duration, tp transport.Transport, orc *orchestrator.Orchestrator, disc *registry.Discovery, checker *health.Checker, log *logging.Logger) *Runner {
	return &Runner{
		agentID:           agentID,
		capabilities:      capabilities,
		description:       description,
		heartbeatInterval: heartbeatInterval,
		tp:                tp,
		orc:               orc,
		disc:              disc,
		checker:           checker,
		log:               log,
	}
}

// Run performs the full startup sequence, blocks serving traffic until ctx
// is cancelled, then performs the shutdown sequence before returning.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.startup(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.orc.Run(gctx)
		return nil
	})
	g.Go(func() error {
		r.heartbeatLoop(gctx)
		return nil
	})

	<-ctx.Done()
	r.shutdown()

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-waitCtx.Done():
		r.log.Warn("shutdown grace period elapsed before workers exited")
		return nil
	}
}

// startup runs the five steps of agent bring-up in order: connect
// (which itself blocks for the CONNACK), verify transport/LLM health,
// wire the dispatch sink, subscribe to this agent's own input topic and
// (if configured) the discovery filter, and announce availability.
func (r *Runner) startup(ctx context.Context) error {
	if err := r.tp.Connect(ctx); err != nil {
		return fmt.Errorf("lifecycle: connect: %w", err)
	}

	if err := r.checker.CheckTransport(ctx); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}
	if err := r.checker.CheckLLM(ctx); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}

	r.tp.SetTaskSink(r.dispatch)

	if err := r.tp.SubscribeTasks(ctx, r.agentID); err != nil {
		return fmt.Errorf("lifecycle: subscribe tasks: %w", err)
	}
	if r.disc != nil {
		if err := r.tp.SubscribeDiscovery(ctx); err != nil {
			return fmt.Errorf("lifecycle: subscribe discovery: %w", err)
		}
	}

	if err := r.publishStatus(ctx, protocol.StatusAvailable); err != nil {
		return fmt.Errorf("lifecycle: publish initial status: %w", err)
	}

	r.log.Info("startup complete, agent %s ready", r.agentID)
	return nil
}

// dispatch is the single transport.TaskSink installed for this agent: it
// routes messages on a status topic (retained or not) to discovery and
// everything else to the orchestrator's intake.
func (r *Runner) dispatch(task transport.InboundTask) {
	if r.disc != nil && r.disc.HandleInbound(task) {
		return
	}
	r.orc.Intake(task)
}

// heartbeatLoop republishes this agent's status on a fixed interval so
// peers relying on the retained message's TTL see it refresh even when
// nothing else changes.
func (r *Runner) heartbeatLoop(ctx context.Context) {
	if r.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.publishStatus(ctx, protocol.StatusAvailable); err != nil {
				r.log.Warn("heartbeat publish failed: %v", err)
			}
		}
	}
}

// shutdown announces unavailability and disconnects. Errors are logged,
// not returned, since the process is exiting regardless.
func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := r.publishStatus(ctx, protocol.StatusUnavailable); err != nil {
		r.log.Warn("shutdown status publish failed: %v", err)
	}
	if err := r.tp.Disconnect(ctx); err != nil {
		r.log.Warn("disconnect failed: %v", err)
	}
}

func (r *Runner) publishStatus(ctx context.Context, status protocol.AgentStatusType) error {
	return r.tp.PublishStatus(ctx, protocol.AgentStatus{
		AgentID:      r.agentID,
		Status:       status,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Capabilities: r.capabilities,
		Description:  r.description,
	})
}
