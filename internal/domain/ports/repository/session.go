package repository

import (
	"context"

	"agent-compute-platform/internal/domain/model"
)

// SessionStateRepository persists the durable slice of a conversation's
// session state, keyed by conversation id. The stored format is an opaque
// structured document; any serializable encoding suffices.
type SessionStateRepository interface {
	Save(ctx context.Context, state *model.SessionState) error
	Find(ctx context.Context, conversationID string) (*model.SessionState, error)
}
