package router

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AgentDecision is the structured-output shape a language model emits to
// drive dynamic (v2) routing: either a terminal result, or a handoff to
// another agent.
type AgentDecision struct {
	SchemaVersion    string          `json:"schema_version,omitempty"`
	Result           json.RawMessage `json:"result"`
	NextAgent        *string         `json:"next_agent,omitempty"`
	NextInstruction  *string         `json:"next_instruction,omitempty"`
	WorkflowComplete bool            `json:"workflow_complete"`
}

// ParseAgentDecision accepts a model's raw text output in three
// increasingly permissive passes: first as bare JSON, then as a fenced
// ```json code block, then as the first balanced {...} object embedded in
// surrounding prose. Models do not reliably emit clean JSON even when
// asked to.
func ParseAgentDecision(response string) (AgentDecision, error) {
	if decision, err := decodeDecision(response); err == nil {
		return decision, nil
	}

	if block, ok := extractFencedJSON(response); ok {
		if decision, err := decodeDecision(block); err == nil {
			return decision, nil
		}
	}

	if block, ok := extractBalancedObject(response); ok {
		if decision, err := decodeDecision(block); err == nil {
			return decision, nil
		}
	}

	return AgentDecision{}, fmt.Errorf("router: no agent decision found in response")
}

// ExtractResult returns the publishable string form of a decision's Result
// field: the string verbatim if Result holds a JSON string, or Result's raw
// JSON serialization otherwise. An empty Result yields an empty string.
func ExtractResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}

func decodeDecision(raw string) (AgentDecision, error) {
	var decision AgentDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &decision); err != nil {
		return AgentDecision{}, err
	}
	return decision, nil
}

func extractFencedJSON(response string) (string, bool) {
	const fence = "```"
	start := strings.Index(response, fence)
	if start == -1 {
		return "", false
	}
	rest := response[start+len(fence):]
	rest = strings.TrimPrefix(rest, "json")
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// extractBalancedObject returns the first top-level {...} object found in
// response, tracking brace depth so nested objects don't terminate the
// match early.
func extractBalancedObject(response string) (string, bool) {
	start := strings.IndexByte(response, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1], true
			}
		}
	}
	return "", false
}
