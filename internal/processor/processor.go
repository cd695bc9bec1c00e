// Package processor implements the nine-step task processing algorithm:
// intake validation (steps 1-6) and the LLM/tool execute loop (step 7).
// Routing (step 8) and publish (step 9) are the orchestrator's job, since
// they need the registry and router components this package has no
// business depending on.
package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tenzoki/agen/mqttagent/internal/agenterr"
	"github.com/tenzoki/agen/mqttagent/internal/llm"
	"github.com/tenzoki/agen/mqttagent/internal/logging"
	"github.com/tenzoki/agen/mqttagent/internal/progress"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
	"github.com/tenzoki/agen/mqttagent/internal/tools"
	"github.com/tenzoki/agen/mqttagent/internal/transport"
)

// Config bounds the processor's steps 4 and 5 (idempotency cache size and
// maximum pipeline depth) and step 7 (tool-call iteration cap).
type Config struct {
	MaxPipelineDepth  int
	MaxTaskCache      int
	MaxToolIterations int
}

// Outcome is what step 7 produced for one accepted envelope: either a
// final textual output ready for routing, or an error that should be
// published to the conversation's error topic instead.
type Outcome struct {
	Envelope    protocol.EnvelopeWrapper
	FinalOutput string
	Err         *agenterr.Error
}

// Dropped reports whether the processor discarded the message before step
// 7 (retained or duplicate) — cases that produce no Outcome and nothing
// published to the conversation, per the protocol's silent-drop requirement.
type Dropped struct {
	Reason string
}

func (d Dropped) Error() string { return "processor: dropped: " + d.Reason }

// Processor implements steps 1 through 7 of the algorithm.
type Processor struct {
	cfg      Config
	agentID  string
	provider llm.Provider
	tools    tools.System
	idemp    *idempotencySet
	log      *logging.Logger
	reporter progress.Reporter
}

// New constructs a Processor for agentID. reporter may be nil, in which
// case step 7 reports no progress breadcrumbs.
func New(cfg Config, agentID string, provider llm.Provider, toolSystem tools.System, log *logging.Logger, reporter progress.Reporter) *Processor {
	if reporter == nil {
		reporter = progress.NoOpReporter{}
	}
	return &Processor{
		cfg:      cfg,
		agentID:  agentID,
		provider: provider,
		tools:    toolSystem,
		idemp:    newIdempotencySet(cfg.MaxTaskCache),
		log:      log,
		reporter: reporter,
	}
}

// Process runs steps 1 through 7 against one inbound message. A returned
// Dropped error means the message was silently discarded per protocol; any
// other returned error is unexpected and should be logged, not published.
// A non-nil Outcome.Err means the envelope failed step 3 (topic mismatch),
// step 5 (pipeline depth), or step 7 (execute), and the caller (the orchestrator) is responsible for publishing it to
// the conversation's error topic.
func (p *Processor) Process(ctx context.Context, task transport.InboundTask) (Outcome, error) {
	// Step 2: retained messages are never valid task intake; the registry,
	// not the processor, is the consumer of retained status messages.
	if task.Retained {
		return Outcome{}, Dropped{Reason: "retained message on task intake topic"}
	}

	// Step 6 (folded with step 1's receipt): parse the envelope body.
	var env protocol.EnvelopeWrapper
	if err := json.Unmarshal(task.Payload, &env); err != nil {
		return Outcome{}, fmt.Errorf("processor: parse envelope: %w", err)
	}

	// Step 3: the envelope's own declared topic must match the topic it
	// actually arrived on. A mismatch is not a silent drop: it is an
	// invalid envelope and the conversation must be told so.
	received := protocol.CanonicalizeTopic(task.Topic)
	declared := protocol.CanonicalizeTopic(env.Topic())
	if declared != received {
		return Outcome{Envelope: env, Err: agenterr.InvalidInput("envelope topic %q does not match received topic %q", declared, received)}, nil
	}

	// Step 4: idempotency.
	if p.idemp.seenBefore(env.TaskID()) {
		return Outcome{}, Dropped{Reason: fmt.Sprintf("duplicate task_id %s", env.TaskID())}
	}

	// Step 5: pipeline depth.
	depth := protocol.PipelineDepth(env.Next())
	if depth > p.cfg.MaxPipelineDepth {
		return Outcome{Envelope: env, Err: agenterr.PipelineDepthExceeded(depth, p.cfg.MaxPipelineDepth)}, nil
	}

	// Step 7: execute.
	output, err := p.execute(ctx, env)
	if err != nil {
		agErr, ok := err.(*agenterr.Error)
		if !ok {
			agErr = agenterr.InternalError("%s", agenterr.Sanitize(err.Error()))
		}
		p.reporter.ReportError(ctx, env.TaskID(), env.ConversationID(), agErr.Message)
		return Outcome{Envelope: env, Err: agErr}, nil
	}

	return Outcome{Envelope: env, FinalOutput: output}, nil
}

// execute drives the completion/tool-call loop up to MaxToolIterations,
// returning the model's final textual content once it stops requesting
// tool calls.
func (p *Processor) execute(ctx context.Context, env protocol.EnvelopeWrapper) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an agent in a task-routing pipeline. Use the provided tools as needed, then respond with your final answer."},
		{Role: llm.RoleUser, Content: p.userPrompt(env)},
	}

	descs := p.tools.Descriptions()
	taskID := env.TaskID()
	convID := env.ConversationID()

	p.reporter.ReportStep(ctx, taskID, convID, progress.CategoryGeneral, progress.EventTaskStart, "task started")

	for iteration := 0; iteration < p.cfg.MaxToolIterations; iteration++ {
		p.reporter.ReportStep(ctx, taskID, convID, progress.CategoryLLM, progress.EventLLMRequest, "requesting completion")
		resp, err := p.provider.Complete(ctx, llm.CompletionRequest{Messages: messages, Tools: descs})
		if err != nil {
			return "", agenterr.LLMError("completion failed: %s", agenterr.Sanitize(err.Error()))
		}
		p.reporter.ReportStep(ctx, taskID, convID, progress.CategoryLLM, progress.EventLLMResponse, "completion received")

		if len(resp.ToolCalls) == 0 {
			p.reporter.ReportComplete(ctx, taskID, convID)
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
		for _, call := range resp.ToolCalls {
			p.reporter.ReportStep(ctx, taskID, convID, progress.CategoryTool, progress.EventToolCall, call.Name)
			result, err := p.tools.Execute(ctx, call)
			if err != nil {
				return "", agenterr.ToolExecutionFailed("tool %q: %s", call.Name, agenterr.Sanitize(err.Error()))
			}
			p.reporter.ReportStep(ctx, taskID, convID, progress.CategoryTool, progress.EventToolComplete, call.Name)
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("tool %s result: %s", call.Name, result)})
		}
	}

	return "", agenterr.ToolExecutionFailed("tool iteration cap (%d) reached without a final answer", p.cfg.MaxToolIterations)
}

func (p *Processor) userPrompt(env protocol.EnvelopeWrapper) string {
	instruction := env.Instruction()
	input := env.Input()
	if len(input) == 0 {
		return instruction
	}
	return fmt.Sprintf("%s\n\ninput: %s", instruction, string(input))
}
