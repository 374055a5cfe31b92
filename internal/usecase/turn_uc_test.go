//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/usecase"
)

type turnTestDeps struct {
	sessions *MockSessionRepo
	locker   *MockLocker
	backend  *MockBackend
	sink     *MockSink
	turn     usecase.TurnUseCase
}

func newTurnDeps() *turnTestDeps {
	log := newTestLogger()
	deps := &turnTestDeps{
		sessions: NewMockSessionRepo(),
		locker:   NewMockLocker(),
		backend:  &MockBackend{},
		sink:     &MockSink{},
	}
	events := usecase.NewEventRouter(deps.sink, log)
	tracker := usecase.NewTracker(deps.backend, nil, events, nil, usecase.PollAll, "hpc", "jobs/", log)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Backend: deps.backend,
		Billing: &MockBilling{},
		Tickets: &MockTickets{},
		Registry: usecase.NewToolRegistry(usecase.ToolSpec{
			Name:   "property_lookup",
			Fields: []usecase.FieldSpec{{Name: "formula", Type: usecase.FieldString, Required: true}},
		}),
		Executor:    "hpc",
		StoragePath: "jobs/",
		Environment: "test",
	}, log)
	supervisor := usecase.NewSupervisor(&usecase.PipelineRunner{Pipeline: pipeline}, tracker, events, &MockCompletion{}, "fallback", log)
	deps.turn = usecase.NewTurnUseCase(deps.sessions, deps.locker, supervisor, log)
	return deps
}

func TestTurnUseCase_RunTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("should create, advance and persist a fresh session", func(t *testing.T) {
		deps := newTurnDeps()
		plan := &model.Plan{Steps: []*model.PlanStep{
			{ToolName: "property_lookup", Description: "look up", Args: map[string]any{"formula": "Fe2O3"}, Status: model.StepStatusPlan},
		}}

		ss, err := deps.turn.RunTurn(ctx, "conv-1", "", plan)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if ss.InvocationID == "" {
			t.Error("turn must stamp a fresh invocation id")
		}
		if ss.Plan.Steps[0].Status != model.StepStatusSuccess {
			t.Errorf("plan step should have run, got %s", ss.Plan.Steps[0].Status)
		}
		if err := ss.ValidateTranscript(); err != nil {
			t.Errorf("transcript invariant violated: %v", err)
		}
		if _, err := deps.sessions.Find(ctx, "conv-1"); err != nil {
			t.Error("session was not persisted")
		}
		if deps.locker.Unlocks != 1 {
			t.Errorf("lock not released, unlocks=%d", deps.locker.Unlocks)
		}
	})

	t.Run("should stamp distinct invocation ids across turns", func(t *testing.T) {
		deps := newTurnDeps()

		first, err := deps.turn.RunTurn(ctx, "conv-1", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		inv1 := first.InvocationID

		second, err := deps.turn.RunTurn(ctx, "conv-1", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		if second.InvocationID == inv1 {
			t.Error("invocation ids must be unique per turn")
		}
	})

	t.Run("should refuse a turn while the conversation is busy", func(t *testing.T) {
		deps := newTurnDeps()
		deps.locker.Busy = true

		_, err := deps.turn.RunTurn(ctx, "conv-1", "", nil)
		if !errors.Is(err, domain.ErrConversationBusy) {
			t.Fatalf("expected ErrConversationBusy, got: %v", err)
		}
	})

	t.Run("should surface a save failure", func(t *testing.T) {
		deps := newTurnDeps()
		deps.sessions.SaveErr = errors.New("redis down")

		_, err := deps.turn.RunTurn(ctx, "conv-1", "", nil)
		if err == nil {
			t.Fatal("expected the persistence failure to surface")
		}
		if deps.locker.Unlocks != 1 {
			t.Error("lock must be released even on failure")
		}
	})
}
