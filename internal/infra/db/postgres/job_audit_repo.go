// File: internal/infra/db/postgres/job_audit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobAuditRepository = (*jobAuditRepo)(nil)

// jobAuditRepo mirrors job records into an append-only history table:
//
//	CREATE TABLE agent_jobs (
//	    origin_job_id    TEXT PRIMARY KEY,
//	    conversation_id  TEXT NOT NULL,
//	    backend_job_id   TEXT NOT NULL,
//	    tool             TEXT NOT NULL,
//	    status           TEXT NOT NULL,
//	    result           JSONB,
//	    in_context       BOOLEAN NOT NULL DEFAULT FALSE,
//	    last_invocation  TEXT NOT NULL DEFAULT '',
//	    submitted_at     TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL,
//	    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// Rows are upserted by origin job id and never deleted.
type jobAuditRepo struct {
	pool *pgxpool.Pool
}

func NewJobAuditRepo(pool *pgxpool.Pool) *jobAuditRepo {
	return &jobAuditRepo{pool: pool}
}

func (r *jobAuditRepo) Save(ctx context.Context, conversationID string, rec *model.JobRecord) error {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO agent_jobs (origin_job_id, conversation_id, backend_job_id, tool, status, result, in_context, last_invocation, submitted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (origin_job_id) DO UPDATE SET
  status = EXCLUDED.status,
  result = EXCLUDED.result,
  in_context = EXCLUDED.in_context,
  last_invocation = EXCLUDED.last_invocation,
  updated_at = EXCLUDED.updated_at;`

	_, err = r.pool.Exec(ctx, q,
		rec.OriginJobID, conversationID, rec.BackendJobID, rec.Tool, string(rec.Status),
		resultJSON, rec.InContext, rec.LastInvocationID, rec.SubmittedAt, time.Now())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return domain.ErrReadDatabaseRow
	}
	return err
}

func (r *jobAuditRepo) ListByConversation(ctx context.Context, conversationID string) ([]*repository.AuditedJob, error) {
	const q = `
SELECT origin_job_id, conversation_id, backend_job_id, tool, status, result, in_context, last_invocation, submitted_at, updated_at, created_at
FROM agent_jobs
WHERE conversation_id = $1
ORDER BY created_at;`
	rows, err := r.pool.Query(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditedJobs(rows)
}

func (r *jobAuditRepo) ListRecent(ctx context.Context, limit int) ([]*repository.AuditedJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT origin_job_id, conversation_id, backend_job_id, tool, status, result, in_context, last_invocation, submitted_at, updated_at, created_at
FROM agent_jobs
ORDER BY created_at DESC
LIMIT $1;`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditedJobs(rows)
}

func scanAuditedJobs(rows pgx.Rows) ([]*repository.AuditedJob, error) {
	var out []*repository.AuditedJob
	for rows.Next() {
		var (
			aj         repository.AuditedJob
			statusStr  string
			resultJSON []byte
		)
		err := rows.Scan(
			&aj.Record.OriginJobID, &aj.ConversationID, &aj.Record.BackendJobID, &aj.Record.Tool,
			&statusStr, &resultJSON, &aj.Record.InContext, &aj.Record.LastInvocationID,
			&aj.Record.SubmittedAt, &aj.Record.UpdatedAt, &aj.CreatedAt,
		)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		aj.Record.Status = model.JobStatus(statusStr)
		if len(resultJSON) > 0 {
			if err := json.Unmarshal(resultJSON, &aj.Record.Result); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &aj)
	}
	return out, rows.Err()
}
