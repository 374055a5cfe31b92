// File: internal/domain/model/event.go
package model

// UIEvent is an ephemeral message for the live interface. It is marked
// partial (streaming), never replayed from history and never visible to the
// model's own context window.
type UIEvent struct {
	Author  string `json:"author"`
	Payload any    `json:"payload"`
	Partial bool   `json:"partial"`
}

type ContextEventKind string

const (
	ContextCall     ContextEventKind = "call"
	ContextResponse ContextEventKind = "response"
)

// ContextEvent is one half of a synthetic tool-call/tool-result pair
// recorded into the transcript so the model remembers a fact without it
// appearing as free-form assistant text. Calls and responses share a
// correlation id; a call without its response is a protocol violation.
type ContextEvent struct {
	CorrelationID string           `json:"correlation_id"`
	Kind          ContextEventKind `json:"kind"`
	Name          string           `json:"name"`
	Author        string           `json:"author"`
	Payload       any              `json:"payload"`
	Partial       bool             `json:"partial"` // always false for context events
}
