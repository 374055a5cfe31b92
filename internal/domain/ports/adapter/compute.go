package adapter

import (
	"context"

	"agent-compute-platform/internal/domain/model"
)

// SubmitRequest carries one tool invocation to the compute backend.
type SubmitRequest struct {
	Tool        string
	Args        map[string]any
	Executor    string
	StoragePath string
}

// SubmitResponse covers both backend shapes: a long-running submission
// (JobID set, Result nil) or a synchronous result (Result set).
type SubmitResponse struct {
	JobID       string
	Status      model.BackendStatus
	ExtraInfo   map[string]any
	Result      map[string]any
	LongRunning bool
}

// ComputeBackend is the port for the remote tool/job backend.
type ComputeBackend interface {
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error)
	QueryStatus(ctx context.Context, jobID, executor string) (model.BackendStatus, error)
	FetchResult(ctx context.Context, jobID, executor, storagePath string) (map[string]any, error)
}
