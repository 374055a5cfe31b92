// File: internal/usecase/turn_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/repository"
	"agent-compute-platform/internal/infra/logging"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Locker serializes turns of one conversation; session state is exclusively
// owned by the turn holding the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// turnLockTTL bounds how long a crashed turn can wedge its conversation.
const turnLockTTL = 2 * time.Minute

// Compile-time check
var _ TurnUseCase = (*turnUC)(nil)

type TurnUseCase interface {
	RunTurn(ctx context.Context, conversationID, requestedJobID string, plan *model.Plan) (*model.SessionState, error)
}

type turnUC struct {
	sessions   repository.SessionStateRepository
	locker     Locker
	supervisor *Supervisor
	log        *zerolog.Logger
}

func NewTurnUseCase(sessions repository.SessionStateRepository, locker Locker, supervisor *Supervisor, log *zerolog.Logger) *turnUC {
	return &turnUC{sessions: sessions, locker: locker, supervisor: supervisor, log: log}
}

// RunTurn executes one top-level conversation turn: acquire the
// per-conversation lock, load durable state, stamp a fresh invocation id,
// let the supervisor advance the plan, then persist.
func (u *turnUC) RunTurn(ctx context.Context, conversationID, requestedJobID string, plan *model.Plan) (*model.SessionState, error) {
	lockKey := "turn_lock:" + conversationID
	token, err := u.locker.TryLock(ctx, lockKey, turnLockTTL)
	if err != nil {
		return nil, domain.ErrConversationBusy
	}
	defer func() {
		if err := u.locker.Unlock(context.Background(), lockKey, token); err != nil {
			u.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("turn lock release failed")
		}
	}()

	ss, err := u.sessions.Find(ctx, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		ss = model.NewSessionState(conversationID)
	} else if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	invocationID := ulid.Make().String()
	ss.BeginTurn(invocationID)
	ss.RequestedJobID = requestedJobID
	if plan != nil {
		ss.Plan = plan
	}

	ctx = logging.WithConversationID(logging.WithInvocationID(ctx, invocationID), conversationID)
	u.supervisor.ExecuteTurn(ctx, ss)

	if err := ss.ValidateTranscript(); err != nil {
		// Pairing is enforced by construction in the event router, so this
		// firing means a component wrote the transcript directly.
		u.log.Error().Err(err).Str("conversation_id", conversationID).Msg("transcript protocol violation")
	}

	if err := u.sessions.Save(ctx, ss); err != nil {
		return nil, fmt.Errorf("save session state: %w", err)
	}
	return ss, nil
}
