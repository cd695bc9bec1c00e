// Package protocol defines the wire-level types and topic grammar shared
// by every component of the agent core: envelopes, statuses, errors,
// responses, and the canonical topic formatter.
package protocol

import (
	"strings"
)

// CanonicalizeTopic applies the four canonicalization rules, in order,
// idempotently:
//  1. Prepend "/" if missing.
//  2. Collapse runs of "/" to a single "/".
//  3. Strip any trailing "/" except when the whole topic is "/".
//  4. The empty string canonicalizes to "/".
func CanonicalizeTopic(topic string) string {
	if topic == "" {
		return "/"
	}

	result := topic
	if !strings.HasPrefix(result, "/") {
		result = "/" + result
	}

	for strings.Contains(result, "//") {
		result = strings.ReplaceAll(result, "//", "/")
	}

	if len(result) > 1 && strings.HasSuffix(result, "/") {
		result = result[:len(result)-1]
	}

	return result
}

// StatusTopic builds /control/agents/{agentID}/status.
func StatusTopic(agentID string) string {
	return CanonicalizeTopic("/control/agents/" + agentID + "/status")
}

// InputTopic builds /control/agents/{agentID}/input.
func InputTopic(agentID string) string {
	return CanonicalizeTopic("/control/agents/" + agentID + "/input")
}

// ConversationTopic builds /conversations/{conversationID}/{agentID}, used
// for both responses and errors.
func ConversationTopic(conversationID, agentID string) string {
	return CanonicalizeTopic("/conversations/" + conversationID + "/" + agentID)
}

// ProgressTopic builds /progress/{agentID}/{taskID}.
func ProgressTopic(agentID, taskID string) string {
	return CanonicalizeTopic("/progress/" + agentID + "/" + taskID)
}

// DiscoveryFilter is the subscription filter used to discover peer agents.
const DiscoveryFilter = "/control/agents/+/status"

// ValidAgentIDChars reports whether agentID is non-empty and composed only
// of [A-Za-z0-9._-].
func ValidAgentIDChars(agentID string) bool {
	if agentID == "" {
		return false
	}
	for _, ch := range agentID {
		if !isAgentIDChar(ch) {
			return false
		}
	}
	return true
}

func isAgentIDChar(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	case ch == '.' || ch == '_' || ch == '-':
		return true
	default:
		return false
	}
}

// AgentIDFromStatusTopic extracts the agent ID segment (3rd segment) from a
// canonicalized status topic such as /control/agents/{agentID}/status.
// Returns "" if the topic does not match that shape.
func AgentIDFromStatusTopic(canonicalTopic string) string {
	segments := strings.Split(strings.TrimPrefix(canonicalTopic, "/"), "/")
	if len(segments) != 4 || segments[0] != "control" || segments[1] != "agents" || segments[3] != "status" {
		return ""
	}
	return segments[2]
}
