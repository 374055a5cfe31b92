// File: internal/usecase/tracker_uc.go
package usecase

import (
	"context"
	"fmt"

	"agent-compute-platform/internal/domain/classify"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/domain/ports/repository"
	"agent-compute-platform/internal/infra/logging"
	"agent-compute-platform/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// PollingScope gates which tracked jobs get a backend query each turn.
type PollingScope string

const (
	// PollAll refreshes every tracked job and renders only the requested
	// one (the default behavior).
	PollAll PollingScope = "all"
	// PollRequested restricts backend queries to the job the user is
	// currently asking about.
	PollRequested PollingScope = "requested"
)

// ReconciliationEvent summarizes what happened to one job during a
// reconciliation pass.
type ReconciliationEvent struct {
	OriginJobID string
	Status      model.JobStatus
	Rendered    bool // a UI render event was emitted for this job
	Queried     bool // the backend was actually queried
}

// Tracker owns the map of in-flight jobs: submit-time bookkeeping and
// poll-time reconciliation. It is the only component that writes JobRecord
// status, result and in-context fields.
type Tracker struct {
	backend  adapter.ComputeBackend
	expander adapter.ArchiveExpander // nil disables archive expansion
	events   EventEmitter
	audit    repository.JobAuditRepository // nil disables the durable mirror
	scope    PollingScope
	executor string
	storage  string
	log      *zerolog.Logger
}

func NewTracker(
	backend adapter.ComputeBackend,
	expander adapter.ArchiveExpander,
	events EventEmitter,
	audit repository.JobAuditRepository,
	scope PollingScope,
	executor, storagePath string,
	log *zerolog.Logger,
) *Tracker {
	if scope == "" {
		scope = PollAll
	}
	return &Tracker{
		backend:  backend,
		expander: expander,
		events:   events,
		audit:    audit,
		scope:    scope,
		executor: executor,
		storage:  storagePath,
		log:      log,
	}
}

// Register inserts a Submitted record for a job the backend just accepted,
// emits the ephemeral "job queued" indicator and a durable context event
// recording the submission.
func (t *Tracker) Register(ctx context.Context, ss *model.SessionState, originJobID, backendJobID, tool string) (*model.JobRecord, error) {
	rec := model.NewJobRecord(originJobID, backendJobID, tool)
	if err := ss.PutJob(rec); err != nil {
		return nil, err
	}
	t.mirror(ctx, ss.ConversationID, rec)

	t.events.Emit(ctx, ss, EmitUIOnly, "tracker",
		fmt.Sprintf("Job %s queued, I will report back once it completes.", originJobID))
	t.events.EmitNamed(ctx, ss, EmitContextOnly, "tracker", "submit_job",
		map[string]any{"origin_job_id": originJobID, "tool": tool},
		map[string]any{"backend_job_id": backendJobID, "status": string(rec.Status)})

	t.log.Info().Str("origin_job_id", originJobID).Str("backend_job_id", backendJobID).
		Str("tool", tool).Msg("job registered")
	return rec, nil
}

// ReconcileAll walks every tracked job exactly once for this turn. Per-job
// failures become an Error item on that job and never abort the pass. Jobs
// are visited in map-iteration order; no cross-job ordering is guaranteed.
func (t *Tracker) ReconcileAll(ctx context.Context, ss *model.SessionState) []ReconciliationEvent {
	defer logging.TraceDuration(t.log, "Tracker.ReconcileAll")()

	var out []ReconciliationEvent
	for _, rec := range ss.Jobs {
		ev, ok := t.reconcileOne(ctx, ss, rec)
		if ok {
			out = append(out, ev)
		}
	}
	return out
}

func (t *Tracker) reconcileOne(ctx context.Context, ss *model.SessionState, rec *model.JobRecord) (ReconciliationEvent, bool) {
	requested := rec.OriginJobID == ss.RequestedJobID

	// Idempotent short-circuit: already surfaced this turn and not what the
	// user is asking about means zero backend queries and zero events.
	if rec.InContext && !requested && rec.LastInvocationID == ss.InvocationID {
		return ReconciliationEvent{}, false
	}

	// Terminal and already reconciled: never poll again. Re-render from the
	// stored result when the user asks about it on a later turn.
	if rec.Status.Terminal() && rec.InContext {
		if requested && rec.LastInvocationID != ss.InvocationID {
			rec.LastInvocationID = ss.InvocationID
			t.renderResult(ctx, ss, rec)
			return ReconciliationEvent{OriginJobID: rec.OriginJobID, Status: rec.Status, Rendered: true}, true
		}
		return ReconciliationEvent{}, false
	}

	if t.scope == PollRequested && ss.RequestedJobID != "" && !requested {
		return ReconciliationEvent{}, false
	}

	metrics.IncBackendQuery("status")
	status, err := t.backend.QueryStatus(ctx, rec.BackendJobID, t.executor)
	if err != nil {
		t.attachError(ctx, ss, rec, fmt.Sprintf("status query failed: %v", err))
		return ReconciliationEvent{OriginJobID: rec.OriginJobID, Status: rec.Status, Queried: true}, true
	}

	if !status.Terminal() {
		rec.Status = status.JobStatus()
		t.events.EmitNamed(ctx, ss, EmitContextOnly, "tracker", "job_status",
			map[string]any{"origin_job_id": rec.OriginJobID},
			map[string]any{"status": string(status)})
		return ReconciliationEvent{OriginJobID: rec.OriginJobID, Status: rec.Status, Queried: true}, true
	}

	metrics.IncBackendQuery("result")
	raw, err := t.backend.FetchResult(ctx, rec.BackendJobID, t.executor, t.storage)
	if err != nil {
		// Leave the record non-terminal so the next turn retries the fetch.
		t.attachError(ctx, ss, rec, fmt.Sprintf("result fetch failed: %v", err))
		return ReconciliationEvent{OriginJobID: rec.OriginJobID, Status: rec.Status, Queried: true}, true
	}

	raw = expandArchives(ctx, raw, t.expander)
	rec.Result = classify.Classify(raw)
	rec.Status = status.JobStatus()
	if rec.Status == model.JobStatusFailed && len(rec.Result) == 0 {
		rec.Result = model.ResultItems{model.ErrorItem{Message: "job failed with no result payload"}}
	}
	rec.InContext = true
	rec.LastInvocationID = ss.InvocationID
	t.mirror(ctx, ss.ConversationID, rec)
	metrics.IncJobReconciled(string(rec.Status))

	if requested {
		t.renderResult(ctx, ss, rec)
	}
	// The context event fires regardless of rendering, so the model
	// remembers the outcome even when the UI does not show it.
	t.events.EmitNamed(ctx, ss, EmitContextOnly, "tracker", "job_result",
		map[string]any{"origin_job_id": rec.OriginJobID},
		map[string]any{"status": string(rec.Status), "result": rec.Result})

	t.log.Info().Str("origin_job_id", rec.OriginJobID).Str("status", string(rec.Status)).
		Int("items", len(rec.Result)).Msg("job reconciled")
	return ReconciliationEvent{OriginJobID: rec.OriginJobID, Status: rec.Status, Rendered: requested, Queried: true}, true
}

func (t *Tracker) renderResult(ctx context.Context, ss *model.SessionState, rec *model.JobRecord) {
	t.events.EmitNamed(ctx, ss, EmitUIOnly, "tracker", "job_result",
		map[string]any{"origin_job_id": rec.OriginJobID},
		map[string]any{"status": string(rec.Status), "result": rec.Result})
}

func (t *Tracker) attachError(ctx context.Context, ss *model.SessionState, rec *model.JobRecord, msg string) {
	// Transient poll failures repeat across turns; keep only the latest one
	// on the record instead of accumulating duplicates.
	if n := len(rec.Result); n > 0 {
		if _, ok := rec.Result[n-1].(model.ErrorItem); ok {
			rec.Result = rec.Result[:n-1]
		}
	}
	rec.Result = append(rec.Result, model.ErrorItem{Message: msg})
	t.events.EmitNamed(ctx, ss, EmitContextOnly, "tracker", "job_status",
		map[string]any{"origin_job_id": rec.OriginJobID},
		map[string]any{"status": string(rec.Status), "error": msg})
	t.log.Warn().Str("origin_job_id", rec.OriginJobID).Str("error", msg).Msg("job reconciliation error")
}

// mirror upserts the record into the durable audit store; best-effort.
func (t *Tracker) mirror(ctx context.Context, conversationID string, rec *model.JobRecord) {
	if t.audit == nil {
		return
	}
	if err := t.audit.Save(ctx, conversationID, rec); err != nil {
		t.log.Warn().Err(err).Str("origin_job_id", rec.OriginJobID).Msg("job audit save failed")
	}
}
