package adapter

import (
	"context"

	"agent-compute-platform/internal/domain/model"
)

// UISink receives ephemeral events for the live interface. Implementations
// must tolerate best-effort delivery; a sink failure never fails the turn.
type UISink interface {
	Publish(ctx context.Context, conversationID string, ev model.UIEvent) error
}
