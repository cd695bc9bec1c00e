package router

import "testing"

func TestParseAgentDecisionRawJSON(t *testing.T) {
	response := `{"result": {"done": true}, "next_agent": "processor", "next_instruction": "continue", "workflow_complete": false}`
	decision, err := ParseAgentDecision(response)
	if err != nil {
		t.Fatalf("ParseAgentDecision: %v", err)
	}
	if decision.NextAgent == nil || *decision.NextAgent != "processor" {
		t.Errorf("NextAgent = %v", decision.NextAgent)
	}
	if decision.WorkflowComplete {
		t.Error("WorkflowComplete should be false")
	}
}

func TestParseAgentDecisionFencedMarkdown(t *testing.T) {
	response := "Here is my decision:\n```json\n{\"result\": {}, \"workflow_complete\": false, \"next_agent\": \"reviewer\"}\n```\nThe analysis is done."
	decision, err := ParseAgentDecision(response)
	if err != nil {
		t.Fatalf("ParseAgentDecision: %v", err)
	}
	if decision.NextAgent == nil || *decision.NextAgent != "reviewer" {
		t.Errorf("NextAgent = %v", decision.NextAgent)
	}
}

func TestParseAgentDecisionEmbeddedObject(t *testing.T) {
	response := `The result is: {"result": {"done": true}, "workflow_complete": true} and that's it.`
	decision, err := ParseAgentDecision(response)
	if err != nil {
		t.Fatalf("ParseAgentDecision: %v", err)
	}
	if !decision.WorkflowComplete {
		t.Error("expected WorkflowComplete")
	}
	if decision.NextAgent != nil {
		t.Errorf("NextAgent = %v, want nil", decision.NextAgent)
	}
}

func TestParseAgentDecisionNoJSONFails(t *testing.T) {
	if _, err := ParseAgentDecision("just plain text, no structure here"); err == nil {
		t.Error("expected error for unparsable response")
	}
}

func TestExtractResultUnquotesStringResult(t *testing.T) {
	if got := ExtractResult([]byte(`"hello"`)); got != "hello" {
		t.Errorf("ExtractResult = %q, want %q", got, "hello")
	}
}

func TestExtractResultSerializesNonStringResult(t *testing.T) {
	if got := ExtractResult([]byte(`{"done":true}`)); got != `{"done":true}` {
		t.Errorf("ExtractResult = %q", got)
	}
}

func TestExtractResultEmptyYieldsEmptyString(t *testing.T) {
	if got := ExtractResult(nil); got != "" {
		t.Errorf("ExtractResult(nil) = %q, want empty", got)
	}
}
