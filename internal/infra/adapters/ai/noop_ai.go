package ai

import (
	"context"

	"agent-compute-platform/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*NoopAdapter)(nil)

// NoopAdapter is the dev-mode completion service: echoes a canned reply.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

func (NoopAdapter) Complete(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	return "noop: " + messages[len(messages)-1].Content, nil
}

func (NoopAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total, nil
}
