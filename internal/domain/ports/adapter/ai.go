package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CompletionAdapter is the port for the language-model completion service.
// The platform treats it as a black box: prompt in, completion out. It backs
// the supervisor's failure-explanation fallback and the parallel document
// summary group.
type CompletionAdapter interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
}
