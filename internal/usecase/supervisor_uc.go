// File: internal/usecase/supervisor_uc.go
package usecase

import (
	"context"
	"fmt"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxDispatchAttempts caps the hallucination retry: one retry with a
// warning, then a terminal failure message. Never a third attempt.
const maxDispatchAttempts = 2

// StepRunner dispatches one plan step to a domain agent. The default runner
// feeds the step straight into the middleware pipeline; richer agents (model
// in the loop) satisfy the same interface.
type StepRunner interface {
	RunStep(ctx context.Context, ss *model.SessionState, step *model.PlanStep) *ToolResult
}

// PipelineRunner is the direct step-to-tool-call runner.
type PipelineRunner struct {
	Pipeline *Pipeline
}

func (r *PipelineRunner) RunStep(ctx context.Context, ss *model.SessionState, step *model.PlanStep) *ToolResult {
	args := step.Args
	if args == nil {
		args = make(map[string]any)
	}
	return r.Pipeline.Invoke(ctx, ss, &ToolCall{Tool: step.ToolName, Args: args})
}

// Supervisor drives the plan's step list: one dispatch at a time, reconcile
// before submit, halt at the first failed step.
type Supervisor struct {
	runner        StepRunner
	tracker       *Tracker
	events        EventEmitter
	completion    adapter.CompletionAdapter
	fallbackModel string
	log           *zerolog.Logger
}

func NewSupervisor(
	runner StepRunner,
	tracker *Tracker,
	events EventEmitter,
	completion adapter.CompletionAdapter,
	fallbackModel string,
	log *zerolog.Logger,
) *Supervisor {
	return &Supervisor{
		runner:        runner,
		tracker:       tracker,
		events:        events,
		completion:    completion,
		fallbackModel: fallbackModel,
		log:           log,
	}
}

// ExecuteTurn advances the plan as far as it can within one conversation
// turn. Reconciliation always runs first, so a turn never submits while
// pending results for the requested job are unprocessed. The turn never
// crashes the conversation: an unexpected failure is routed to the
// failure-explanation fallback.
func (s *Supervisor) ExecuteTurn(ctx context.Context, ss *model.SessionState) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("turn failed unexpectedly")
			s.explainFailure(ctx, ss, fmt.Sprintf("unexpected internal failure: %v", r))
		}
	}()

	s.tracker.ReconcileAll(ctx, ss)
	progressed := s.resolveSubmittedSteps(ss)

	for {
		step := ss.Plan.Current()
		if step == nil {
			// Announce completion only on the turn a step actually finished;
			// later turns over the same completed plan stay quiet.
			if progressed && ss.Plan != nil && ss.Plan.Done() {
				s.events.Emit(ctx, ss, EmitBoth, "supervisor", "All plan steps completed.")
			}
			return
		}
		switch step.Status {
		case model.StepStatusFailed:
			// Halted on a previous turn; no forward progress past a failure.
			return
		case model.StepStatusSubmitted:
			// Waiting on a long-running job; nothing to do this turn.
			return
		}
		if !s.dispatch(ctx, ss, step) {
			return
		}
		progressed = true
	}
}

// resolveSubmittedSteps maps freshly reconciled jobs onto their waiting
// steps. Reports whether any step reached a terminal status.
func (s *Supervisor) resolveSubmittedSteps(ss *model.SessionState) bool {
	if ss.Plan == nil {
		return false
	}
	resolved := false
	for _, step := range ss.Plan.Steps {
		if step.Status != model.StepStatusSubmitted || step.OriginJobID == "" {
			continue
		}
		rec, ok := ss.Job(step.OriginJobID)
		if !ok || !rec.Status.Terminal() || !rec.InContext {
			continue
		}
		if rec.Status == model.JobStatusSucceeded {
			step.Status = model.StepStatusSuccess
		} else {
			step.Status = model.StepStatusFailed
		}
		metrics.IncPlanStep(string(step.Status))
		resolved = true
	}
	return resolved
}

// dispatch runs one step, guarded against hallucinated tool calls: if the
// confirmed-invocation counter does not advance across a dispatch, the model
// claimed a call it never issued. Returns false when the turn must stop.
func (s *Supervisor) dispatch(ctx context.Context, ss *model.SessionState, step *model.PlanStep) bool {
	if step.ToolName == "" {
		step.Status = model.StepStatusFailed
		metrics.IncPlanStep(string(step.Status))
		s.events.Emit(ctx, ss, EmitBoth, "supervisor",
			fmt.Sprintf("No capable tool for step %q; stopping here.", step.Description))
		return false
	}

	step.Status = model.StepStatusProcess
	originJobID := uuid.NewString()

	for attempt := 1; attempt <= maxDispatchAttempts; attempt++ {
		before := ss.ToolInvocationCountConfirmed
		res := s.runner.RunStep(ctx, ss, step)
		confirmed := ss.ToolInvocationCountConfirmed > before

		if res == nil && confirmed {
			res = errorResult(KindInternal, "step runner returned no result")
		}

		// A structured failure is a real dispatch outcome whether or not the
		// call reached the backend: guard rejections and tool failures are
		// reported to the user once, never retried.
		if res != nil && !res.OK() {
			step.Status = model.StepStatusFailed
			metrics.IncPlanStep(string(step.Status))
			s.events.Emit(ctx, ss, EmitBoth, "supervisor",
				fmt.Sprintf("Step %q failed: %s", step.Description, res.Message))
			if res.Kind == KindInternal {
				s.explainFailure(ctx, ss, res.Message)
			}
			return false
		}

		// No failure and no confirmed invocation: the model claimed a call
		// it never issued.
		if !confirmed {
			if attempt == maxDispatchAttempts {
				step.Status = model.StepStatusFailed
				metrics.IncPlanStep(string(step.Status))
				s.events.Emit(ctx, ss, EmitBoth, "supervisor",
					fmt.Sprintf("Retry failed for step %q: the tool call was never issued.", step.Description))
				return false
			}
			metrics.IncPlanRetry()
			s.log.Warn().Str("tool", step.ToolName).Int("attempt", attempt).Msg("dispatch did not confirm a tool call; retrying")
			s.events.EmitNamed(ctx, ss, EmitContextOnly, "supervisor", "dispatch_warning",
				map[string]any{"step": step.Description},
				"The previous response claimed a tool call that was never issued. Issue the call for real this time.")
			continue
		}

		if res.LongRunning {
			if _, err := s.tracker.Register(ctx, ss, originJobID, res.BackendJobID, step.ToolName); err != nil {
				step.Status = model.StepStatusFailed
				metrics.IncPlanStep(string(step.Status))
				s.events.Emit(ctx, ss, EmitBoth, "supervisor",
					fmt.Sprintf("Step %q failed: %v", step.Description, err))
				return false
			}
			step.Status = model.StepStatusSubmitted
			step.OriginJobID = originJobID
			return false // wait for a later turn to reconcile
		}

		step.Status = model.StepStatusSuccess
		metrics.IncPlanStep(string(step.Status))
		s.events.EmitNamed(ctx, ss, EmitContextOnly, "supervisor", "step_result",
			map[string]any{"step": step.Description, "tool": step.ToolName},
			map[string]any{"status": "success", "result": res.Items})
		return true
	}
	return false
}

// explainFailure is the top-level fallback: ask the model to phrase the
// failure for the user instead of crashing the conversation. Degrades to a
// canned message when the completion service itself is down.
func (s *Supervisor) explainFailure(ctx context.Context, ss *model.SessionState, cause string) {
	text := fmt.Sprintf("Something went wrong while working on your request: %s", cause)
	if s.completion != nil {
		reply, err := s.completion.Complete(ctx, s.fallbackModel, []adapter.Message{
			{Role: "system", Content: "Explain the following internal failure to the user in one short, calm paragraph. No stack traces."},
			{Role: "user", Content: cause},
		})
		if err == nil && reply != "" {
			text = reply
		} else if err != nil {
			s.log.Warn().Err(err).Msg("failure-explanation completion failed")
		}
	}
	s.events.Emit(ctx, ss, EmitBoth, "supervisor", text)
}
