// File: internal/usecase/event_uc.go
package usecase

import (
	"context"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EmitKind int

const (
	EmitUIOnly EmitKind = iota
	EmitContextOnly
	EmitBoth
)

// relayFn is the synthetic function name fabricated for "Both" text
// emissions, so relayed text reaches the model as a tool result instead of
// being double-counted as assistant prose.
const relayFn = "relay_message"

// Compile-time check
var _ EventEmitter = (*EventRouter)(nil)

type EventEmitter interface {
	Emit(ctx context.Context, ss *model.SessionState, kind EmitKind, author string, payload any)
	EmitNamed(ctx context.Context, ss *model.SessionState, kind EmitKind, author, fn string, args, result any)
}

// EventRouter fans one logical message out to up to two physical sinks: the
// ephemeral UI sink (partial, never replayed, invisible to the model) and
// the durable context sink (a synthetic call/response pair in the
// transcript, visible to the model on the next turn).
type EventRouter struct {
	ui  adapter.UISink
	log *zerolog.Logger
}

func NewEventRouter(ui adapter.UISink, log *zerolog.Logger) *EventRouter {
	return &EventRouter{ui: ui, log: log}
}

// Emit routes a plain payload. A Both emission uses the fabricated relay
// function name for its context half.
func (r *EventRouter) Emit(ctx context.Context, ss *model.SessionState, kind EmitKind, author string, payload any) {
	r.EmitNamed(ctx, ss, kind, author, relayFn, map[string]any{"text": payload}, payload)
}

// EmitNamed routes a payload with an explicit synthetic function name and
// separate call args / response payloads for the context half.
func (r *EventRouter) EmitNamed(ctx context.Context, ss *model.SessionState, kind EmitKind, author, fn string, args, result any) {
	if kind == EmitUIOnly || kind == EmitBoth {
		r.publishUI(ctx, ss, model.UIEvent{Author: author, Payload: result, Partial: true})
	}
	if kind == EmitContextOnly || kind == EmitBoth {
		r.appendContextPair(ss, author, fn, args, result)
	}
}

func (r *EventRouter) publishUI(ctx context.Context, ss *model.SessionState, ev model.UIEvent) {
	if r.ui == nil {
		return
	}
	// Sink delivery is best-effort; a UI failure never fails the turn.
	if err := r.ui.Publish(ctx, ss.ConversationID, ev); err != nil {
		r.log.Warn().Err(err).Str("conversation_id", ss.ConversationID).Msg("ui sink publish failed")
		return
	}
	metrics.IncEventEmitted("ui")
}

// appendContextPair records the call and its response atomically so the
// pairing invariant holds by construction.
func (r *EventRouter) appendContextPair(ss *model.SessionState, author, fn string, args, result any) {
	corr := uuid.NewString()
	ss.AppendContext(model.ContextEvent{
		CorrelationID: corr,
		Kind:          model.ContextCall,
		Name:          fn,
		Author:        author,
		Payload:       args,
	})
	ss.AppendContext(model.ContextEvent{
		CorrelationID: corr,
		Kind:          model.ContextResponse,
		Name:          fn,
		Author:        author,
		Payload:       result,
	})
	metrics.IncEventEmitted("context")
	metrics.IncEventEmitted("context")
}
