package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.SessionStateRepository = (*SessionRepo)(nil)

// SessionRepo persists the durable slice of session state as one JSON
// document per conversation.
type SessionRepo struct {
	client *redClient
	ttl    time.Duration
}

func NewSessionRepo(client *redClient, ttl time.Duration) repository.SessionStateRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (s *SessionRepo) stateKey(conversationID string) string {
	return fmt.Sprintf("session_state:%s", conversationID)
}

func (s *SessionRepo) Save(ctx context.Context, state *model.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(state.ConversationID), data, s.ttl)
}

func (s *SessionRepo) Find(ctx context.Context, conversationID string) (*model.SessionState, error) {
	data, err := s.client.Get(ctx, s.stateKey(conversationID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var state model.SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	if state.Jobs == nil {
		state.Jobs = make(map[string]*model.JobRecord)
	}
	return &state, nil
}
