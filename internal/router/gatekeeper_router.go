package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tenzoki/agen/mqttagent/internal/config"
	"github.com/tenzoki/agen/mqttagent/internal/protocol"
)

// gatekeeperRequest is the payload posted to the Gatekeeper service for
// each v2 envelope lacking static routing.
type gatekeeperRequest struct {
	TaskID         string `json:"task_id"`
	ConversationID string `json:"conversation_id"`
	Output         string `json:"output"`
}

// gatekeeperResponse mirrors AgentDecision's shape but is decoded
// separately since it arrives over HTTP rather than as model output.
type gatekeeperResponse struct {
	Result           json.RawMessage `json:"result"`
	NextAgent        *string         `json:"next_agent,omitempty"`
	NextInstruction  *string         `json:"next_instruction,omitempty"`
	WorkflowComplete bool            `json:"workflow_complete"`
}

// GatekeeperRouter defers routing decisions to an external HTTP service,
// retrying server errors and network failures with exponential backoff and
// treating a timeout as a distinct, non-retried failure.
type GatekeeperRouter struct {
	cfg    config.GatekeeperConfig
	client *http.Client
}

// NewGatekeeperRouter constructs a GatekeeperRouter from cfg.
func NewGatekeeperRouter(cfg config.GatekeeperConfig) *GatekeeperRouter {
	return &GatekeeperRouter{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (g *GatekeeperRouter) url() string {
	return fmt.Sprintf("%s://%s:%d%s", g.cfg.Scheme, g.cfg.Host, g.cfg.Port, g.cfg.Path)
}

func (g *GatekeeperRouter) Decide(ctx context.Context, env protocol.EnvelopeWrapper, output string) (Decision, error) {
	body, err := json.Marshal(gatekeeperRequest{
		TaskID:         env.TaskID().String(),
		ConversationID: env.ConversationID(),
		Output:         output,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("router: marshal gatekeeper request: %w", err)
	}

	timeout := time.Duration(g.cfg.TimeoutMs) * time.Millisecond
	maxAttempts := g.cfg.RetryAttempts

	var lastErr error
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := g.post(reqCtx, body)
		cancel()

		if err != nil {
			if isTimeout(err) {
				return Decision{}, fmt.Errorf("router: gatekeeper timeout after %s: %w", timeout, err)
			}
			if attempt < maxAttempts {
				lastErr = err
				time.Sleep(backoffDelay(attempt))
				continue
			}
			return Decision{}, fmt.Errorf("router: gatekeeper request failed: %w", err)
		}

		if resp.success {
			decision := decisionFromGatekeeperResponse(resp.body)
			return decision, nil
		}

		if resp.serverError && attempt < maxAttempts {
			lastErr = fmt.Errorf("server error: status %d", resp.statusCode)
			time.Sleep(backoffDelay(attempt))
			continue
		}

		return Decision{}, fmt.Errorf("router: gatekeeper routing failed with status %d", resp.statusCode)
	}

	return Decision{}, fmt.Errorf("router: gatekeeper routing exhausted retries: %w", lastErr)
}

type gatekeeperHTTPResult struct {
	success     bool
	serverError bool
	statusCode  int
	body        gatekeeperResponse
}

func (g *GatekeeperRouter) post(ctx context.Context, body []byte) (gatekeeperHTTPResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url(), bytes.NewReader(body))
	if err != nil {
		return gatekeeperHTTPResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return gatekeeperHTTPResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return gatekeeperHTTPResult{}, fmt.Errorf("read response body: %w", err)
		}
		var parsed gatekeeperResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return gatekeeperHTTPResult{}, fmt.Errorf("invalid json response from gatekeeper: %w", err)
		}
		return gatekeeperHTTPResult{success: true, statusCode: resp.StatusCode, body: parsed}, nil
	}

	return gatekeeperHTTPResult{
		statusCode:  resp.StatusCode,
		serverError: resp.StatusCode >= 500,
	}, nil
}

func decisionFromGatekeeperResponse(resp gatekeeperResponse) Decision {
	if resp.WorkflowComplete || resp.NextAgent == nil {
		return Decision{Complete: true, FinalOutput: ExtractResult(resp.Result), Reason: "gatekeeper marked workflow complete"}
	}
	instruction := ""
	if resp.NextInstruction != nil {
		instruction = *resp.NextInstruction
	}
	return Decision{
		NextAgentID:     *resp.NextAgent,
		NextInstruction: instruction,
		Reason:          "gatekeeper routing decision",
	}
}

// backoffDelay implements the 100ms * 2^attempt exponential schedule used
// for both server-error and network-error retries.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(100*(1<<uint(attempt))) * time.Millisecond
}

func isTimeout(err error) bool {
	var netErr net.Error
	if ne, ok := err.(net.Error); ok {
		netErr = ne
		return netErr.Timeout()
	}
	return false
}
