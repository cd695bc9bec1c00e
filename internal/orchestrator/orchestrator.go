// Package orchestrator implements steps 8 and 9 of the task processing
// algorithm: routing (static v1 continuation, or a dynamic v2 Router
// decision) and publishing the result. It owns the intake channel the
// transport's task sink feeds and the goroutine that drains it.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tenzoki/agen/mqttagent/internal/agenterr"
	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/metrics"
	"github.com/tenzoki/agen/mqttagent/internal/processor"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/registry"
	"github.com/tenzoki/agen/mqttagent/internal/router"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

// maxWorkflowHistorySteps bounds a v2 envelope's steps_completed list,
// evicting the oldest entries once exceeded.
const maxWorkflowHistorySteps = 100

// Config holds the orchestrator's own knobs, distinct from the
// processor's: the intake channel's buffer size and the safety brake on
// how many dynamic hops one workflow may take.
type Config struct {
	IntakeBufferSize int
	MaxIterations    int
}

// Orchestrator drains inbound tasks, runs them through Processor, and
// routes/publishes the result. Router may be nil, in which case every v2
// envelope without a static Next completes immediately (no dynamic
// routing configured).
type Orchestrator struct {
	cfg       Config
	agentID   string
	proc      *processor.Processor
	transport transport.Transport
	registry  *registry.Registry
	router    router.Router
	log       *logging.Logger
	metrics   *metrics.Counters

	intake chan transport.InboundTask
	now    func() time.Time
}

// New constructs an Orchestrator. reg and rtr may be nil when this agent
// runs with static (v1-only) routing. m may be nil, in which case activity
// is not counted.
func New(cfg Config, agentID string, proc *processor.Processor, tp transport.Transport, reg *registry.Registry, rtr router.Router, log *logging.Logger, m *metrics.Counters) *Orchestrator {
	if m == nil {
		m = metrics.New()
	}
	return &Orchestrator{
		cfg:       cfg,
		agentID:   agentID,
		proc:      proc,
		transport: tp,
		registry:  reg,
		router:    rtr,
		log:       log,
		metrics:   m,
		intake:    make(chan transport.InboundTask, cfg.IntakeBufferSize),
		now:       time.Now,
	}
}

// Intake is the transport.TaskSink to install for this agent's own input
// topic (not discovery, which the registry's Discovery sink handles).
func (o *Orchestrator) Intake(task transport.InboundTask) {
	select {
	case o.intake <- task:
	default:
		o.log.Warn("intake buffer full, dropping task on topic %s", task.Topic)
	}
}

// Run drains the intake channel until ctx is cancelled, processing one
// task at a time in submission order.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-o.intake:
			o.handle(ctx, task)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, task transport.InboundTask) {
	outcome, err := o.proc.Process(ctx, task)
	if err != nil {
		if _, dropped := err.(processor.Dropped); dropped {
			o.log.Debug("dropped task on %s: %v", task.Topic, err)
			return
		}
		o.log.Error("unexpected processing error on %s: %v", task.Topic, err)
		return
	}

	o.metrics.IncEnvelopeProcessed()

	if outcome.Err != nil {
		o.publishError(ctx, outcome.Envelope, outcome.Err)
		return
	}

	if err := o.route(ctx, outcome.Envelope, outcome.FinalOutput); err != nil {
		o.log.Error("routing task %s failed: %v", outcome.Envelope.TaskID(), err)
		o.publishError(ctx, outcome.Envelope, agenterr.Wrap(agenterr.CodeInternalError, err))
	}
}

// route implements step 8: static v1 continuation takes priority over
// dynamic v2 routing, exactly as the algorithm specifies.
func (o *Orchestrator) route(ctx context.Context, env protocol.EnvelopeWrapper, output string) error {
	if next := env.Next(); next != nil {
		o.metrics.IncRoutingDecision("static")
		return o.forwardStatic(ctx, env, next, output)
	}

	if env.IsV2() && o.router != nil {
		return o.routeDynamic(ctx, env, output)
	}

	o.metrics.IncRoutingDecision("complete")
	return o.publishFinal(ctx, env, output)
}

// forwardStatic builds the next hop of a v1-style continuation: a fresh
// task_id, the same conversation_id, and the payload the Next entry
// specifies, carrying the rest of its own chain forward.
func (o *Orchestrator) forwardStatic(ctx context.Context, env protocol.EnvelopeWrapper, next *protocol.NextTask, output string) error {
	input := next.Input
	if len(input) == 0 {
		input = json.RawMessage(fmt.Sprintf("%q", output))
	}

	forward := protocol.TaskEnvelopeV1{
		TaskID:         uuid.New(),
		ConversationID: env.ConversationID(),
		Topic:          next.Topic,
		Instruction:    next.Instruction,
		Input:          input,
		Next:           next.Next,
	}

	payload, err := json.Marshal(forward)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal forwarded envelope: %w", err)
	}
	return o.transport.PublishTask(ctx, protocol.CanonicalizeTopic(next.Topic), payload)
}

func (o *Orchestrator) routeDynamic(ctx context.Context, env protocol.EnvelopeWrapper, output string) error {
	decision, err := o.router.Decide(ctx, env, output)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	if decision.Complete {
		o.metrics.IncRoutingDecision("complete")
		final := decision.FinalOutput
		if final == "" {
			final = output
		}
		return o.publishFinal(ctx, env, final)
	}

	o.metrics.IncRoutingDecision("dynamic_forward")
	return o.forwardDynamic(ctx, env, decision)
}

func (o *Orchestrator) forwardDynamic(ctx context.Context, env protocol.EnvelopeWrapper, decision router.Decision) error {
	if o.registry != nil {
		if _, ok := o.registry.Get(decision.NextAgentID); !ok {
			return fmt.Errorf("cannot forward to unknown agent %q", decision.NextAgentID)
		}
	}

	v2 := env.V2
	var workflowCtx *protocol.WorkflowContext
	if v2 != nil && v2.Context != nil {
		ctxCopy := *v2.Context
		ctxCopy.StepsCompleted = append([]protocol.WorkflowStep(nil), v2.Context.StepsCompleted...)
		workflowCtx = &ctxCopy
	} else {
		workflowCtx = &protocol.WorkflowContext{OriginalQuery: env.Instruction()}
	}

	workflowCtx.IterationCount++
	if workflowCtx.IterationCount >= o.maxIterations() {
		o.log.Warn("max iterations (%d) reached for conversation %s, completing workflow", o.maxIterations(), env.ConversationID())
		return o.publishFinal(ctx, env, decision.FinalOutput)
	}

	workflowCtx.StepsCompleted = append(workflowCtx.StepsCompleted, protocol.WorkflowStep{
		AgentID:   o.agentID,
		Action:    decision.NextInstruction,
		Timestamp: o.now().UTC().Format(time.RFC3339),
	})
	workflowCtx.StepsCompleted = capWorkflowSteps(workflowCtx.StepsCompleted, maxWorkflowHistorySteps)

	var routingTrace []protocol.RoutingStep
	if v2 != nil {
		routingTrace = v2.RoutingTrace
	}

	next := protocol.TaskEnvelopeV2{
		TaskID:         uuid.New(),
		ConversationID: env.ConversationID(),
		Topic:          protocol.InputTopic(decision.NextAgentID),
		Instruction:    decision.NextInstruction,
		Input:          env.Input(),
		Version:        "2.0",
		Context:        workflowCtx,
		RoutingTrace:   routingTrace,
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal forwarded v2 envelope: %w", err)
	}
	return o.transport.PublishTask(ctx, next.Topic, payload)
}

func (o *Orchestrator) maxIterations() int {
	if o.cfg.MaxIterations <= 0 {
		return 10
	}
	return o.cfg.MaxIterations
}

// capWorkflowSteps keeps only the most recent max entries, FIFO-evicting
// the oldest ones once the history grows past the cap.
func capWorkflowSteps(steps []protocol.WorkflowStep, max int) []protocol.WorkflowStep {
	if len(steps) <= max {
		return steps
	}
	overflow := len(steps) - max
	return append([]protocol.WorkflowStep(nil), steps[overflow:]...)
}

// publishFinal implements step 9's publishable-content extraction: if
// output itself is an AgentDecision/RouteDecision carrying a result field
// (the router already extracted one out of its own decision output, so this
// only fires for v1 envelopes and v2 envelopes that completed without ever
// reaching a router), publish that result instead of the raw decision JSON.
func (o *Orchestrator) publishFinal(ctx context.Context, env protocol.EnvelopeWrapper, output string) error {
	return o.transport.PublishResponse(ctx, env.ConversationID(), o.agentID, protocol.ResponseMessage{
		Response: extractPublishable(output),
		TaskID:   env.TaskID(),
	})
}

// extractPublishable mirrors router.ExtractResult for output that never
// passed through a Router: if output parses as an AgentDecision with a
// result field, that field's value is what gets published; otherwise
// output is published verbatim.
func extractPublishable(output string) string {
	decision, err := router.ParseAgentDecision(output)
	if err != nil || len(decision.Result) == 0 {
		return output
	}
	return router.ExtractResult(decision.Result)
}

func (o *Orchestrator) publishError(ctx context.Context, env protocol.EnvelopeWrapper, agErr *agenterr.Error) {
	code := protocol.ErrorCode(agErr.Code)
	o.metrics.IncError(string(code))
	msg := protocol.ErrorMessage{
		Error:  protocol.ErrorDetails{Code: code, Message: agenterr.Sanitize(agErr.Message)},
		TaskID: env.TaskID(),
	}
	if err := o.transport.PublishError(ctx, env.ConversationID(), o.agentID, msg); err != nil {
		o.log.Error("failed to publish error for task %s: %v", env.TaskID(), err)
	}
}
