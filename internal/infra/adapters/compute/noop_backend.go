package compute

import (
	"context"
	"fmt"
	"sync"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
)

var _ adapter.ComputeBackend = (*NoopBackend)(nil)

// NoopBackend is a dev-mode backend: every submission becomes a job that
// reports Running once and then Finished with a canned payload.
type NoopBackend struct {
	mu    sync.Mutex
	next  int64
	polls map[string]int
}

func NewNoopBackend() *NoopBackend {
	return &NoopBackend{polls: make(map[string]int)}
}

func (n *NoopBackend) Submit(ctx context.Context, req *adapter.SubmitRequest) (*adapter.SubmitResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := fmt.Sprintf("noop-%d", n.next)
	n.polls[id] = 0
	return &adapter.SubmitResponse{JobID: id, Status: model.BackendPending, LongRunning: true}, nil
}

func (n *NoopBackend) QueryStatus(ctx context.Context, jobID, executor string) (model.BackendStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.polls[jobID]++
	if n.polls[jobID] < 2 {
		return model.BackendRunning, nil
	}
	return model.BackendFinished, nil
}

func (n *NoopBackend) FetchResult(ctx context.Context, jobID, executor, storagePath string) (map[string]any, error) {
	return map[string]any{"message": "noop backend result", "job": jobID}, nil
}
