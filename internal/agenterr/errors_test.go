package agenterr

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorStringIncludesCodeAndMessage(t *testing.T) {
	e := InvalidInput("missing field %s", "task_id")
	if e.Error() != "invalid_input: missing field task_id" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestErrorStringIncludesWrappedCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := Wrap(CodeLLMError, cause)
	if !strings.Contains(e.Error(), "connection refused") {
		t.Errorf("Error() = %q, want wrapped cause", e.Error())
	}
}

func TestUnwrapReturnsUnderlyingError(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(CodeInternalError, cause)
	if !errors.Is(e, cause) {
		t.Error("errors.Is should see through Unwrap to cause")
	}
}

func TestPipelineDepthExceededMessage(t *testing.T) {
	e := PipelineDepthExceeded(17, 16)
	if e.Code != CodePipelineDepthExceeded {
		t.Errorf("Code = %s", e.Code)
	}
	if !strings.Contains(e.Message, "17") || !strings.Contains(e.Message, "16") {
		t.Errorf("Message = %q, want both bounds", e.Message)
	}
}

func TestSanitizeRedactsCredentialLikeSubstrings(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"password", "login failed: password=hunter2", "login failed: password=***"},
		{"token", "request rejected, token: abc123xyz", "request rejected, token=***"},
		{"apikey-style", "auth error: key=sk-deadbeef", "auth error: key=***"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.input)
			if got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeRedactsSensitivePaths(t *testing.T) {
	got := Sanitize("could not read /home/agent/.ssh/id_rsa for signing")
	if strings.Contains(got, "id_rsa") {
		t.Errorf("Sanitize leaked path: %q", got)
	}
	if !strings.Contains(got, "REDACTED") {
		t.Errorf("Sanitize(%q) did not redact the sensitive path", got)
	}
}

func TestSanitizeLeavesOrdinaryMessagesUntouched(t *testing.T) {
	got := Sanitize("tool execution failed: file not found")
	if got != "tool execution failed: file not found" {
		t.Errorf("Sanitize altered an ordinary message: %q", got)
	}
}

func TestSanitizeTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", 1000)
	got := Sanitize(long)

	if len(got) != maxMessageLen {
		t.Fatalf("len(Sanitize(long)) = %d, want %d", len(got), maxMessageLen)
	}
	if !strings.HasSuffix(got, truncateSuffix) {
		t.Errorf("truncated message missing marker, got suffix %q", got[len(got)-len(truncateSuffix):])
	}
}

func TestSanitizeDoesNotTruncateShortMessages(t *testing.T) {
	short := "short failure"
	if got := Sanitize(short); got != short {
		t.Errorf("Sanitize(%q) = %q, want unchanged", short, got)
	}
}

func TestNotConnectedError(t *testing.T) {
	e := &NotConnected{State: "reconnecting"}
	if !strings.Contains(e.Error(), "reconnecting") {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestPermanentDisconnectError(t *testing.T) {
	e := &PermanentDisconnect{Reason: "max attempts exhausted"}
	if !strings.Contains(e.Error(), "max attempts exhausted") {
		t.Errorf("Error() = %q", e.Error())
	}
}
