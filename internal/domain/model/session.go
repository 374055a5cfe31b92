// File: internal/domain/model/session.go
package model

import "agent-compute-platform/internal/domain"

// SessionState is the per-conversation mutable store. It is exclusively
// owned by the turn currently executing; turns of one conversation are
// serialized by a lock keyed on the conversation id, so no internal locking
// is needed here.
//
// The durable slice (jobs, plan, transcript, counters, credentials) is
// persisted between turns; the ephemeral slice (invocation id, loading flag)
// is reset by BeginTurn.
type SessionState struct {
	ConversationID string `json:"conversation_id"`
	Username       string `json:"username,omitempty"`

	Jobs       map[string]*JobRecord `json:"jobs"`
	Plan       *Plan                 `json:"plan,omitempty"`
	Transcript []ContextEvent        `json:"transcript"`

	// Counters driving hallucination/retry detection: Count ticks when a
	// tool call enters the pipeline, CountConfirmed only once the backend
	// was actually reached.
	ToolInvocationCount          int `json:"tool_invocation_count"`
	ToolInvocationCountConfirmed int `json:"tool_invocation_count_confirmed"`

	// Pending middleware fields, filled lazily by the credential guard.
	AccessKey   string `json:"access_key,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Environment string `json:"environment,omitempty"`

	// RequestedJobID is the job the user is currently asking about; only
	// this job's results are rendered to the UI during reconciliation.
	RequestedJobID string `json:"requested_job_id,omitempty"`

	// Ephemeral per-turn slice.
	InvocationID string `json:"-"`
	LoadingShown bool   `json:"-"`
}

func NewSessionState(conversationID string) *SessionState {
	return &SessionState{
		ConversationID: conversationID,
		Jobs:           make(map[string]*JobRecord),
	}
}

// BeginTurn resets the ephemeral slice and stamps the new invocation id.
func (s *SessionState) BeginTurn(invocationID string) {
	s.InvocationID = invocationID
	s.LoadingShown = false
}

func (s *SessionState) Job(originJobID string) (*JobRecord, bool) {
	r, ok := s.Jobs[originJobID]
	return r, ok
}

func (s *SessionState) PutJob(rec *JobRecord) error {
	if s.Jobs == nil {
		s.Jobs = make(map[string]*JobRecord)
	}
	if _, exists := s.Jobs[rec.OriginJobID]; exists {
		return domain.ErrJobAlreadyTracked
	}
	s.Jobs[rec.OriginJobID] = rec
	return nil
}

// AppendContext records one context event into the transcript.
func (s *SessionState) AppendContext(ev ContextEvent) {
	s.Transcript = append(s.Transcript, ev)
}

// ValidateTranscript checks the call/response pairing invariant: every
// context call must be followed (eventually) by a response with the same
// correlation id.
func (s *SessionState) ValidateTranscript() error {
	open := make(map[string]struct{})
	for _, ev := range s.Transcript {
		switch ev.Kind {
		case ContextCall:
			open[ev.CorrelationID] = struct{}{}
		case ContextResponse:
			delete(open, ev.CorrelationID)
		}
	}
	if len(open) > 0 {
		return domain.ErrUnpairedContextCall
	}
	return nil
}
