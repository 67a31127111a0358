package llm

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is inline image data attached to a user turn.
type Image struct {
	MIMEType string
	Data     []byte
}

// Turn is one entry of conversation history as sent to a backend.
type Turn struct {
	Role Role
	Text string
}

// Input is the new user turn a request answers.
type Input struct {
	Text  string
	Image *Image
}

// ToolCall is one invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call id. Gemini may leave it empty,
	// in which case results are paired by position within the batch.
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing one ToolCall. Exactly one of
// Output and Error is meaningful.
type ToolResult struct {
	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Output    any            `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Round     int            `json:"round"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Failed reports whether the tool returned an error.
func (r ToolResult) Failed() bool { return r.Error != "" }

// Payload returns the object relayed back to the model for this result.
func (r ToolResult) Payload() map[string]any {
	if r.Failed() {
		return map[string]any{"error": r.Error}
	}
	return map[string]any{"output": r.Output}
}

// Round is one completed tool-call exchange within a turn: the batch
// the model asked for and the results produced for it, in call order.
type Round struct {
	Calls   []ToolCall
	Results []ToolResult
}

// ToolDeclaration describes a callable tool to the model. Parameters
// is a JSON Schema object.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single generation request.
type Request struct {
	System  string
	History []Turn
	Input   Input
	// Rounds holds the tool exchanges already completed in this turn.
	Rounds []Round
	// Tools is empty for single-shot, tool-less requests.
	Tools []ToolDeclaration
}

// SendableHistory returns the history to transmit. A leading turn not
// authored by the user (the conversation greeting) is left out; every
// later turn is kept in order.
func (r *Request) SendableHistory() []Turn {
	if len(r.History) > 0 && r.History[0].Role != RoleUser {
		return r.History[1:]
	}
	return r.History
}

// Response is a backend's answer: final text when ToolCalls is empty,
// otherwise a tool-call batch.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Model     string

	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the response is a tool-call batch.
func (r *Response) HasToolCalls() bool { return len(r.ToolCalls) > 0 }
