package backend

import (
	"encoding/json"
	"strings"
)

// Tool is one entry of GET /tools.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	Response       string `json:"response,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NoResponse is shown when the backend answered with neither text nor error.
const NoResponse = "(no response)"

// Text picks what the transcript should show: a backend error wins over the
// reply, and an empty payload becomes NoResponse.
func (r ChatResponse) Text() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Response != "" {
		return r.Response
	}
	return NoResponse
}

type runRequest struct {
	Command string `json:"command"`
}

// RunResponse is the body of POST /run.
type RunResponse struct {
	ShouldContinue bool            `json:"should_continue"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// FormatOutput renders Output for a terminal: strings verbatim, other JSON
// values indented, and a placeholder when absent.
func (r RunResponse) FormatOutput() string {
	raw := strings.TrimSpace(string(r.Output))
	if raw == "" || raw == "null" {
		return "(no output)"
	}
	var s string
	if err := json.Unmarshal(r.Output, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(r.Output, &v); err != nil {
		return "(invalid json)"
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "(invalid json)"
	}
	return string(pretty)
}
