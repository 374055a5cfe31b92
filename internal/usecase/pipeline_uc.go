// File: internal/usecase/pipeline_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ControlToolTransfer is the reserved control tool that re-routes the
// conversation to another agent. It never touches the compute backend, and
// credential/environment injection is skipped for it entirely.
const ControlToolTransfer = "transfer_to_agent"

// ToolCall is one tool invocation entering the pipeline.
type ToolCall struct {
	Tool string
	Args map[string]any
}

// Result statuses and error kinds.
const (
	StatusOK    = "ok"
	StatusError = "error"

	KindGuardRejected = "guard_rejected"
	KindToolFailed    = "tool_failed"
	KindInternal      = "internal"
)

// ToolResult is the pipeline's only output shape. The pipeline's external
// contract is "never raises": every failure mode folds into a ToolResult
// with Status=error.
type ToolResult struct {
	Status  string
	Kind    string
	Message string

	Raw   map[string]any
	Items model.ResultItems

	BackendJobID string
	LongRunning  bool
}

func (r *ToolResult) OK() bool { return r != nil && r.Status == StatusOK }

func errorResult(kind, msg string) *ToolResult {
	return &ToolResult{Status: StatusError, Kind: kind, Message: msg}
}

// Handler is one link in the invocation chain.
type Handler func(ctx context.Context, ss *model.SessionState, call *ToolCall) (*ToolResult, error)

// Guard wraps a handler with one cross-cutting concern. Guards may
// short-circuit, mutate the call, or pass through; order of composition is
// fixed by the pipeline.
type Guard interface {
	Name() string
	Wrap(next Handler) Handler
}

// guardReject is how an inner guard signals a structured, user-readable
// rejection; the outermost error-catcher folds it into a ToolResult.
type guardReject struct {
	guard string
	err   error
}

func (g *guardReject) Error() string { return fmt.Sprintf("%s: %v", g.guard, g.err) }
func (g *guardReject) Unwrap() error { return g.err }

func reject(guard string, err error) error {
	return &guardReject{guard: guard, err: err}
}

// Pipeline wraps every tool invocation with the fixed guard chain:
// error-catcher -> job-creation precheck -> quota/balance -> credential
// injection -> tool execution -> response post-processing.
type Pipeline struct {
	chain Handler
	log   *zerolog.Logger
}

type PipelineDeps struct {
	Backend     adapter.ComputeBackend
	Billing     adapter.BillingAdapter
	Tickets     adapter.TicketIssuer
	Expander    adapter.ArchiveExpander // nil disables archive expansion
	Registry    *ToolRegistry
	Executor    string
	StoragePath string
	Environment string
}

func NewPipeline(deps PipelineDeps, log *zerolog.Logger) *Pipeline {
	exec := newExecutor(deps.Backend, deps.Executor, deps.StoragePath)
	guards := []Guard{
		&errorCatcher{log: log},
		&jobPrecheckGuard{registry: deps.Registry},
		&quotaGuard{billing: deps.Billing},
		&credentialGuard{billing: deps.Billing, tickets: deps.Tickets, environment: deps.Environment},
		&postProcessGuard{expander: deps.Expander},
	}
	h := exec
	for i := len(guards) - 1; i >= 0; i-- {
		h = guards[i].Wrap(h)
	}
	return &Pipeline{chain: h, log: log}
}

// Invoke runs one tool call through the guard chain. It never panics and
// never surfaces a Go error; the error-catcher converts everything into a
// structured result.
func (p *Pipeline) Invoke(ctx context.Context, ss *model.SessionState, call *ToolCall) *ToolResult {
	start := time.Now()
	ss.ToolInvocationCount++

	res, err := p.chain(ctx, ss, call)
	if err != nil || res == nil {
		// The error-catcher already folded errors; this is belt and braces
		// for a misbehaving guard returning (nil, nil).
		res = errorResult(KindInternal, "pipeline produced no result")
	}

	metrics.IncToolInvocation(call.Tool, res.Status)
	metrics.ObserveInvoke(call.Tool, int(time.Since(start)/time.Millisecond), res.OK())
	return res
}

// errorCatcher is outermost so that any error or panic raised by an inner
// guard or the tool call itself becomes a structured result instead of
// propagating.
type errorCatcher struct {
	log *zerolog.Logger
}

func (e *errorCatcher) Name() string { return "error_catcher" }

func (e *errorCatcher) Wrap(next Handler) Handler {
	return func(ctx context.Context, ss *model.SessionState, call *ToolCall) (res *ToolResult, _ error) {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error().Str("tool", call.Tool).Interface("panic", r).Msg("pipeline panic recovered")
				res = errorResult(KindInternal, fmt.Sprintf("unexpected failure in %s", call.Tool))
			}
		}()

		res, err := next(ctx, ss, call)
		if err == nil {
			return res, nil
		}

		var rej *guardReject
		if errors.As(err, &rej) {
			metrics.IncGuardShortCircuit(rej.guard)
			e.log.Warn().Str("tool", call.Tool).Str("guard", rej.guard).Err(rej.err).Msg("guard rejected invocation")
			return errorResult(KindGuardRejected, rej.err.Error()), nil
		}

		// Tool RPC failures, timeouts included, land here.
		e.log.Error().Str("tool", call.Tool).Err(err).Msg("tool execution failed")
		return errorResult(KindToolFailed, err.Error()), nil
	}
}

// newExecutor is the innermost handler: the actual backend call. The control
// tool resolves locally without reaching the backend.
func newExecutor(backend adapter.ComputeBackend, executor, storagePath string) Handler {
	return func(ctx context.Context, ss *model.SessionState, call *ToolCall) (*ToolResult, error) {
		// The call is confirmed the moment it is genuinely issued; the
		// supervisor's hallucination guard keys off this counter.
		ss.ToolInvocationCountConfirmed++

		if call.Tool == ControlToolTransfer {
			return &ToolResult{Status: StatusOK, Raw: call.Args}, nil
		}

		metrics.IncBackendQuery("submit")
		resp, err := backend.Submit(ctx, &adapter.SubmitRequest{
			Tool:        call.Tool,
			Args:        call.Args,
			Executor:    executor,
			StoragePath: storagePath,
		})
		if err != nil {
			return nil, fmt.Errorf("submit %s: %w", call.Tool, err)
		}
		if resp.LongRunning {
			return &ToolResult{
				Status:       StatusOK,
				Raw:          resp.ExtraInfo,
				BackendJobID: resp.JobID,
				LongRunning:  true,
			}, nil
		}
		return &ToolResult{Status: StatusOK, Raw: resp.Result}, nil
	}
}
