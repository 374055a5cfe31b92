//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestSession(conversationID string) *model.SessionState {
	ss := model.NewSessionState(conversationID)
	ss.Username = "alice"
	ss.BeginTurn("inv-1")
	return ss
}

// --- Mock compute backend

type MockBackend struct {
	mu sync.Mutex

	SubmitFunc      func(ctx context.Context, req *adapter.SubmitRequest) (*adapter.SubmitResponse, error)
	QueryStatusFunc func(ctx context.Context, jobID, executor string) (model.BackendStatus, error)
	FetchResultFunc func(ctx context.Context, jobID, executor, storagePath string) (map[string]any, error)

	SubmitCalls []adapter.SubmitRequest
	StatusCalls []string
	ResultCalls []string
}

func (m *MockBackend) Submit(ctx context.Context, req *adapter.SubmitRequest) (*adapter.SubmitResponse, error) {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, *req)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return &adapter.SubmitResponse{Result: map[string]any{"ok": true}}, nil
}

func (m *MockBackend) QueryStatus(ctx context.Context, jobID, executor string) (model.BackendStatus, error) {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, jobID)
	m.mu.Unlock()
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, jobID, executor)
	}
	return model.BackendRunning, nil
}

func (m *MockBackend) FetchResult(ctx context.Context, jobID, executor, storagePath string) (map[string]any, error) {
	m.mu.Lock()
	m.ResultCalls = append(m.ResultCalls, jobID)
	m.mu.Unlock()
	if m.FetchResultFunc != nil {
		return m.FetchResultFunc(ctx, jobID, executor, storagePath)
	}
	return map[string]any{"energy": -1.5}, nil
}

// --- Mock billing adapter

type MockBilling struct {
	ResolveAccessKeyFunc func(ctx context.Context, conversationID string) (string, error)
	ResolveProjectIDFunc func(ctx context.Context, accessKey string) (string, error)
	EstimateCostFunc     func(ctx context.Context, tool string, args map[string]any) (adapter.CostEstimate, error)
	CheckBalanceFunc     func(ctx context.Context, accessKey string, amountMicros int64) (bool, error)

	ResolveKeyCalls   int
	CheckBalanceCalls int
}

func (m *MockBilling) ResolveAccessKey(ctx context.Context, conversationID string) (string, error) {
	m.ResolveKeyCalls++
	if m.ResolveAccessKeyFunc != nil {
		return m.ResolveAccessKeyFunc(ctx, conversationID)
	}
	return "ak-test", nil
}

func (m *MockBilling) ResolveProjectID(ctx context.Context, accessKey string) (string, error) {
	if m.ResolveProjectIDFunc != nil {
		return m.ResolveProjectIDFunc(ctx, accessKey)
	}
	return "proj-test", nil
}

func (m *MockBilling) EstimateCost(ctx context.Context, tool string, args map[string]any) (adapter.CostEstimate, error) {
	if m.EstimateCostFunc != nil {
		return m.EstimateCostFunc(ctx, tool, args)
	}
	return adapter.CostEstimate{}, nil
}

func (m *MockBilling) CheckBalance(ctx context.Context, accessKey string, amountMicros int64) (bool, error) {
	m.CheckBalanceCalls++
	if m.CheckBalanceFunc != nil {
		return m.CheckBalanceFunc(ctx, accessKey, amountMicros)
	}
	return true, nil
}

// --- Mock ticket issuer

type MockTickets struct {
	MintFunc  func(conversationID, projectID string) (string, error)
	MintCalls int
}

func (m *MockTickets) Mint(conversationID, projectID string) (string, error) {
	m.MintCalls++
	if m.MintFunc != nil {
		return m.MintFunc(conversationID, projectID)
	}
	return "ticket-test", nil
}

// --- Mock archive expander

type MockExpander struct {
	ExpandFunc func(ctx context.Context, archiveURL string) ([]adapter.ExpandedMember, error)
}

func (m *MockExpander) Expand(ctx context.Context, archiveURL string) ([]adapter.ExpandedMember, error) {
	if m.ExpandFunc != nil {
		return m.ExpandFunc(ctx, archiveURL)
	}
	return nil, nil
}

// --- Mock UI sink, records everything it is handed

type MockSink struct {
	mu         sync.Mutex
	PublishErr error
	Events     []model.UIEvent
}

func (m *MockSink) Publish(ctx context.Context, conversationID string, ev model.UIEvent) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// --- Mock job audit repository

type MockAuditRepo struct {
	mu      sync.Mutex
	SaveErr error
	rows    map[string]*repository.AuditedJob
}

func NewMockAuditRepo() *MockAuditRepo {
	return &MockAuditRepo{rows: make(map[string]*repository.AuditedJob)}
}

func (m *MockAuditRepo) Save(ctx context.Context, conversationID string, rec *model.JobRecord) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rows[rec.OriginJobID] = &repository.AuditedJob{
		ConversationID: conversationID,
		Record:         cp,
		CreatedAt:      time.Now(),
	}
	return nil
}

func (m *MockAuditRepo) ListByConversation(ctx context.Context, conversationID string) ([]*repository.AuditedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.AuditedJob
	for _, r := range m.rows {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockAuditRepo) ListRecent(ctx context.Context, limit int) ([]*repository.AuditedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.AuditedJob
	for _, r := range m.rows {
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Mock completion adapter

type MockCompletion struct {
	mu            sync.Mutex
	CompleteFunc  func(ctx context.Context, mdl string, messages []adapter.Message) (string, error)
	CompleteCalls int
}

func (m *MockCompletion) Complete(ctx context.Context, mdl string, messages []adapter.Message) (string, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, mdl, messages)
	}
	return "canned completion", nil
}

func (m *MockCompletion) CountTokens(ctx context.Context, mdl string, messages []adapter.Message) (int, error) {
	n := 0
	for _, msg := range messages {
		n += len(msg.Content) / 4
	}
	return n, nil
}

// --- Mock session repository

type MockSessionRepo struct {
	mu      sync.Mutex
	SaveErr error
	store   map[string]*model.SessionState
}

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{store: make(map[string]*model.SessionState)}
}

func (m *MockSessionRepo) Save(ctx context.Context, state *model.SessionState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[state.ConversationID] = state
	return nil
}

func (m *MockSessionRepo) Find(ctx context.Context, conversationID string) (*model.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// --- Mock conversation locker

type MockLocker struct {
	mu     sync.Mutex
	held   map[string]string
	Busy   bool
	Locks  int
	Unlocks int
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]string)}
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Busy {
		return "", domain.ErrConversationBusy
	}
	if _, taken := m.held[key]; taken {
		return "", domain.ErrConversationBusy
	}
	m.Locks++
	token := "tok"
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	m.Unlocks++
	return nil
}
