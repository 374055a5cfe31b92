//go:build !integration

package usecase_test

import (
	"context"
	"strings"
	"testing"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/usecase"
)

// scriptedRunner lets a test decide, per call, whether the dispatch really
// confirmed a tool call and what came back.
type scriptedRunner struct {
	Calls int
	Run   func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult
}

func (r *scriptedRunner) RunStep(ctx context.Context, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
	r.Calls++
	return r.Run(r.Calls, ss, step)
}

type supervisorTestDeps struct {
	backend    *MockBackend
	sink       *MockSink
	completion *MockCompletion
	runner     *scriptedRunner
	supervisor *usecase.Supervisor
}

func newSupervisorDeps(run func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult) *supervisorTestDeps {
	log := newTestLogger()
	deps := &supervisorTestDeps{
		backend:    &MockBackend{},
		sink:       &MockSink{},
		completion: &MockCompletion{},
		runner:     &scriptedRunner{Run: run},
	}
	events := usecase.NewEventRouter(deps.sink, log)
	tracker := usecase.NewTracker(deps.backend, nil, events, nil, usecase.PollAll, "hpc", "jobs/", log)
	deps.supervisor = usecase.NewSupervisor(deps.runner, tracker, events, deps.completion, "fallback-model", log)
	return deps
}

// confirmed simulates a dispatch that genuinely issued its tool call.
func confirmed(ss *model.SessionState, res *usecase.ToolResult) *usecase.ToolResult {
	ss.ToolInvocationCountConfirmed++
	return res
}

func threeStepPlan() *model.Plan {
	return &model.Plan{
		Goal: "optimize then analyze",
		Steps: []*model.PlanStep{
			{ToolName: "structure_optimization", Description: "relax the structure", Status: model.StepStatusPlan},
			{ToolName: "property_lookup", Description: "look up band gap", Status: model.StepStatusPlan},
			{ToolName: "molecular_dynamics", Description: "run MD", Status: model.StepStatusPlan},
		},
	}
}

func TestSupervisor_ExecuteTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("should run all steps to completion and announce it", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			return confirmed(ss, &usecase.ToolResult{Status: usecase.StatusOK})
		})
		ss := newTestSession("conv-1")
		ss.Plan = threeStepPlan()

		deps.supervisor.ExecuteTurn(ctx, ss)

		for i, step := range ss.Plan.Steps {
			if step.Status != model.StepStatusSuccess {
				t.Errorf("step %d: expected success, got %s", i, step.Status)
			}
		}
		if !ss.Plan.Done() {
			t.Error("plan should be done")
		}
		if deps.sink.Count() != 1 {
			t.Errorf("expected one completion announcement on the UI, got %d", deps.sink.Count())
		}

		// Later turns over the same completed plan stay quiet.
		transcriptLen := len(ss.Transcript)
		ss.BeginTurn("inv-2")
		deps.supervisor.ExecuteTurn(ctx, ss)
		if deps.sink.Count() != 1 {
			t.Errorf("completed plan re-announced: %d UI events", deps.sink.Count())
		}
		if len(ss.Transcript) != transcriptLen {
			t.Errorf("completed plan wrote %d extra transcript events on an idle turn",
				len(ss.Transcript)-transcriptLen)
		}
	})

	t.Run("should halt at the first failed step and never run later ones", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			if step.ToolName == "property_lookup" {
				return confirmed(ss, &usecase.ToolResult{
					Status: usecase.StatusError, Kind: usecase.KindToolFailed, Message: "lookup timed out",
				})
			}
			return confirmed(ss, &usecase.ToolResult{Status: usecase.StatusOK})
		})
		ss := newTestSession("conv-1")
		ss.Plan = threeStepPlan()

		deps.supervisor.ExecuteTurn(ctx, ss)

		if ss.Plan.Steps[0].Status != model.StepStatusSuccess {
			t.Errorf("step 0: expected success, got %s", ss.Plan.Steps[0].Status)
		}
		if ss.Plan.Steps[1].Status != model.StepStatusFailed {
			t.Errorf("step 1: expected failed, got %s", ss.Plan.Steps[1].Status)
		}
		if ss.Plan.Steps[2].Status != model.StepStatusPlan {
			t.Errorf("step 2: must stay untouched after the halt, got %s", ss.Plan.Steps[2].Status)
		}

		// A later turn makes no further progress past the failure.
		calls := deps.runner.Calls
		ss.BeginTurn("inv-2")
		deps.supervisor.ExecuteTurn(ctx, ss)
		if deps.runner.Calls != calls {
			t.Error("a halted plan must not dispatch again")
		}
	})

	t.Run("should surface a guard rejection to the user without retrying", func(t *testing.T) {
		log := newTestLogger()
		billing := &MockBilling{
			EstimateCostFunc: func(ctx context.Context, tool string, args map[string]any) (adapter.CostEstimate, error) {
				return adapter.CostEstimate{AmountMicros: 5_000_000, SKU: "compute-hpc"}, nil
			},
			CheckBalanceFunc: func(ctx context.Context, accessKey string, amountMicros int64) (bool, error) {
				return false, nil
			},
		}
		pdeps := &pipelineTestDeps{backend: &MockBackend{}, billing: billing, tickets: &MockTickets{}}
		sink := &MockSink{}
		events := usecase.NewEventRouter(sink, log)
		tracker := usecase.NewTracker(pdeps.backend, nil, events, nil, usecase.PollAll, "hpc", "jobs/", log)
		sup := usecase.NewSupervisor(&usecase.PipelineRunner{Pipeline: newPipeline(pdeps)},
			tracker, events, &MockCompletion{}, "fallback-model", log)

		ss := newTestSession("conv-1")
		ss.Plan = &model.Plan{Steps: []*model.PlanStep{{
			ToolName:    "structure_optimization",
			Description: "relax the structure",
			Status:      model.StepStatusPlan,
			Args:        map[string]any{"structure": "https://files/in.cif"},
		}}}

		sup.ExecuteTurn(ctx, ss)

		if billing.CheckBalanceCalls != 1 {
			t.Errorf("a rejected balance check must not be retried, got %d checks", billing.CheckBalanceCalls)
		}
		if len(pdeps.backend.SubmitCalls) != 0 {
			t.Errorf("a rejected call must never reach the backend, got %d submits", len(pdeps.backend.SubmitCalls))
		}
		if ss.Plan.Steps[0].Status != model.StepStatusFailed {
			t.Errorf("expected failed step, got %s", ss.Plan.Steps[0].Status)
		}
		var sawReason bool
		for _, ev := range sink.Events {
			s, ok := ev.Payload.(string)
			if !ok {
				continue
			}
			if strings.Contains(s, "insufficient account balance") {
				sawReason = true
			}
			if strings.Contains(s, "never issued") {
				t.Errorf("rejection misreported as an unissued call: %q", s)
			}
		}
		if !sawReason {
			t.Error("the rejection reason never reached the user")
		}
	})

	t.Run("should retry a hallucinated dispatch exactly once", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			// The confirmed counter never moves: the model only claimed the call.
			return &usecase.ToolResult{Status: usecase.StatusOK}
		})
		ss := newTestSession("conv-1")
		ss.Plan = &model.Plan{Steps: []*model.PlanStep{
			{ToolName: "structure_optimization", Description: "relax", Status: model.StepStatusPlan},
		}}

		deps.supervisor.ExecuteTurn(ctx, ss)

		if deps.runner.Calls != 2 {
			t.Fatalf("expected exactly 2 dispatch attempts, got %d", deps.runner.Calls)
		}
		if ss.Plan.Steps[0].Status != model.StepStatusFailed {
			t.Errorf("expected terminal failure after the retry, got %s", ss.Plan.Steps[0].Status)
		}
		// The warning between the attempts lands in the transcript, not the UI.
		var warnings int
		for _, ev := range ss.Transcript {
			if ev.Name == "dispatch_warning" && ev.Kind == model.ContextCall {
				warnings++
			}
		}
		if warnings != 1 {
			t.Errorf("expected one dispatch warning in the transcript, got %d", warnings)
		}
	})

	t.Run("should recover when the retry confirms the call", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			if call == 1 {
				return &usecase.ToolResult{Status: usecase.StatusOK} // hallucinated
			}
			return confirmed(ss, &usecase.ToolResult{Status: usecase.StatusOK})
		})
		ss := newTestSession("conv-1")
		ss.Plan = &model.Plan{Steps: []*model.PlanStep{
			{ToolName: "structure_optimization", Description: "relax", Status: model.StepStatusPlan},
		}}

		deps.supervisor.ExecuteTurn(ctx, ss)

		if ss.Plan.Steps[0].Status != model.StepStatusSuccess {
			t.Errorf("expected success on the retry, got %s", ss.Plan.Steps[0].Status)
		}
	})

	t.Run("should park a long-running step and resolve it after reconciliation", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			return confirmed(ss, &usecase.ToolResult{
				Status: usecase.StatusOK, LongRunning: true, BackendJobID: "77001",
			})
		})
		ss := newTestSession("conv-1")
		ss.Plan = &model.Plan{Steps: []*model.PlanStep{
			{ToolName: "structure_optimization", Description: "relax", Status: model.StepStatusPlan},
			{ToolName: "property_lookup", Description: "look up", Status: model.StepStatusPlan},
		}}

		deps.supervisor.ExecuteTurn(ctx, ss)

		step := ss.Plan.Steps[0]
		if step.Status != model.StepStatusSubmitted || step.OriginJobID == "" {
			t.Fatalf("expected submitted step bound to a job, got %+v", step)
		}
		if _, tracked := ss.Job(step.OriginJobID); !tracked {
			t.Fatal("submitted step's job is not tracked")
		}
		if ss.Plan.Steps[1].Status != model.StepStatusPlan {
			t.Error("the turn must stop while a submission is pending")
		}

		// Next turn: the backend reports the job finished; reconciliation
		// resolves the parked step before anything new is dispatched.
		deps.backend.QueryStatusFunc = func(ctx context.Context, jobID, executor string) (model.BackendStatus, error) {
			return model.BackendFinished, nil
		}
		deps.runner.Run = func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			return confirmed(ss, &usecase.ToolResult{Status: usecase.StatusOK})
		}
		ss.BeginTurn("inv-2")
		deps.supervisor.ExecuteTurn(ctx, ss)

		if ss.Plan.Steps[0].Status != model.StepStatusSuccess {
			t.Errorf("parked step should resolve to success, got %s", ss.Plan.Steps[0].Status)
		}
		if ss.Plan.Steps[1].Status != model.StepStatusSuccess {
			t.Errorf("next step should have run after resolution, got %s", ss.Plan.Steps[1].Status)
		}
	})

	t.Run("should fail a step that has no capable tool", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			t.Fatal("runner must not be called for a toolless step")
			return nil
		})
		ss := newTestSession("conv-1")
		ss.Plan = &model.Plan{Steps: []*model.PlanStep{
			{Description: "synthesize unobtainium", Status: model.StepStatusPlan},
		}}

		deps.supervisor.ExecuteTurn(ctx, ss)

		if ss.Plan.Steps[0].Status != model.StepStatusFailed {
			t.Errorf("expected failure, got %s", ss.Plan.Steps[0].Status)
		}
		if deps.sink.Count() != 1 {
			t.Errorf("expected the stop notice on the UI, got %d events", deps.sink.Count())
		}
	})

	t.Run("should route an internal failure through the explanation fallback", func(t *testing.T) {
		deps := newSupervisorDeps(func(call int, ss *model.SessionState, step *model.PlanStep) *usecase.ToolResult {
			return confirmed(ss, &usecase.ToolResult{
				Status: usecase.StatusError, Kind: usecase.KindInternal, Message: "nil pointer in executor",
			})
		})
		deps.completion.CompleteFunc = func(ctx context.Context, mdl string, messages []adapter.Message) (string, error) {
			return "Something went wrong on our side; your data is safe.", nil
		}
		ss := newTestSession("conv-1")
		ss.Plan = &model.Plan{Steps: []*model.PlanStep{
			{ToolName: "structure_optimization", Description: "relax", Status: model.StepStatusPlan},
		}}

		deps.supervisor.ExecuteTurn(ctx, ss)

		if deps.completion.CompleteCalls != 1 {
			t.Errorf("expected the completion fallback to be consulted once, got %d", deps.completion.CompleteCalls)
		}
		found := false
		for _, ev := range deps.sink.Events {
			if s, ok := ev.Payload.(string); ok && s == "Something went wrong on our side; your data is safe." {
				found = true
			}
		}
		if !found {
			t.Error("the explained failure never reached the UI")
		}
	})
}
