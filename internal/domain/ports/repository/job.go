package repository

import (
	"context"
	"time"

	"agent-compute-platform/internal/domain/model"
)

// AuditedJob is one row of the durable job history.
type AuditedJob struct {
	ConversationID string
	Record         model.JobRecord
	CreatedAt      time.Time
}

// JobAuditRepository mirrors every job-record mutation into durable storage.
// Rows are upserted by origin job id and never deleted.
type JobAuditRepository interface {
	Save(ctx context.Context, conversationID string, rec *model.JobRecord) error
	ListByConversation(ctx context.Context, conversationID string) ([]*AuditedJob, error)
	ListRecent(ctx context.Context, limit int) ([]*AuditedJob, error)
}
