// File: internal/usecase/guards.go
package usecase

import (
	"context"
	"fmt"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/classify"
	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/infra/metrics"
)

// jobPrecheckGuard validates the call against the tool's declared field list
// and blocks duplicate job submissions before anything costs money.
type jobPrecheckGuard struct {
	registry *ToolRegistry
}

func (g *jobPrecheckGuard) Name() string { return "job_precheck" }

func (g *jobPrecheckGuard) Wrap(next Handler) Handler {
	return func(ctx context.Context, ss *model.SessionState, call *ToolCall) (*ToolResult, error) {
		spec, ok := g.registry.Lookup(call.Tool)
		if !ok {
			return nil, reject(g.Name(), fmt.Errorf("%w: %s", domain.ErrToolNotDeclared, call.Tool))
		}
		if call.Args == nil {
			call.Args = make(map[string]any)
		}
		if err := spec.ValidateArgs(call.Args); err != nil {
			return nil, reject(g.Name(), err)
		}
		// A caller-assigned origin job id must be unique per submission.
		if origin, ok := call.Args["origin_job_id"].(string); ok && origin != "" {
			if _, tracked := ss.Job(origin); tracked {
				return nil, reject(g.Name(), fmt.Errorf("%w: %s", domain.ErrJobAlreadyTracked, origin))
			}
		}
		return next(ctx, ss, call)
	}
}

// quotaGuard estimates the invocation's cost and fails closed when the
// account cannot cover it. This is the one guard permitted to reject before
// anything has been charged, and it runs before credential injection so it
// never observes credentials it does not need.
type quotaGuard struct {
	billing adapter.BillingAdapter
}

func (g *quotaGuard) Name() string { return "quota" }

func (g *quotaGuard) Wrap(next Handler) Handler {
	return func(ctx context.Context, ss *model.SessionState, call *ToolCall) (*ToolResult, error) {
		est, err := g.billing.EstimateCost(ctx, call.Tool, call.Args)
		if err != nil {
			return nil, reject(g.Name(), fmt.Errorf("cost estimation failed: %w", err))
		}
		if est.AmountMicros > 0 {
			key, err := g.accessKey(ctx, ss)
			if err != nil {
				return nil, reject(g.Name(), err)
			}
			ok, err := g.billing.CheckBalance(ctx, key, est.AmountMicros)
			if err != nil {
				return nil, reject(g.Name(), fmt.Errorf("balance check failed: %w", err))
			}
			if !ok {
				metrics.QuotaBlocked(call.Tool, est.SKU)
				return nil, reject(g.Name(), fmt.Errorf("%w: need %d micros for %s",
					domain.ErrInsufficientBalance, est.AmountMicros, est.SKU))
			}
		}
		return next(ctx, ss, call)
	}
}

func (g *quotaGuard) accessKey(ctx context.Context, ss *model.SessionState) (string, error) {
	if ss.AccessKey != "" {
		return ss.AccessKey, nil
	}
	key, err := g.billing.ResolveAccessKey(ctx, ss.ConversationID)
	if err != nil {
		return "", fmt.Errorf("%w: access key: %v", domain.ErrMissingCredential, err)
	}
	ss.AccessKey = key
	return key, nil
}

// credentialGuard injects access key, project id, username, ticket and
// environment into the call args. Skipped entirely for the control tool,
// which never touches the backend.
type credentialGuard struct {
	billing     adapter.BillingAdapter
	tickets     adapter.TicketIssuer
	environment string
}

func (g *credentialGuard) Name() string { return "credentials" }

func (g *credentialGuard) Wrap(next Handler) Handler {
	return func(ctx context.Context, ss *model.SessionState, call *ToolCall) (*ToolResult, error) {
		if call.Tool == ControlToolTransfer {
			return next(ctx, ss, call)
		}
		if ss.AccessKey == "" {
			key, err := g.billing.ResolveAccessKey(ctx, ss.ConversationID)
			if err != nil {
				return nil, reject(g.Name(), fmt.Errorf("%w: access key: %v", domain.ErrMissingCredential, err))
			}
			ss.AccessKey = key
		}
		if ss.ProjectID == "" {
			pid, err := g.billing.ResolveProjectID(ctx, ss.AccessKey)
			if err != nil {
				return nil, reject(g.Name(), fmt.Errorf("%w: project id: %v", domain.ErrMissingCredential, err))
			}
			ss.ProjectID = pid
		}
		ticket, err := g.tickets.Mint(ss.ConversationID, ss.ProjectID)
		if err != nil {
			return nil, reject(g.Name(), fmt.Errorf("%w: ticket: %v", domain.ErrMissingCredential, err))
		}

		call.Args["access_key"] = ss.AccessKey
		call.Args["project_id"] = ss.ProjectID
		call.Args["username"] = ss.Username
		call.Args["ticket"] = ticket
		if ss.Environment != "" {
			call.Args["environment"] = ss.Environment
		} else {
			call.Args["environment"] = g.environment
		}
		return next(ctx, ss, call)
	}
}

// sensitiveKeys are stripped from raw outputs before they reach the model
// or the UI.
var sensitiveKeys = []string{"access_key", "ticket", "project_id", "username"}

// postProcessGuard is innermost after the call: strips the transport
// envelope, expands compressed artifact bundles, redacts sensitive fields
// and classifies synchronous outputs into typed items.
type postProcessGuard struct {
	expander adapter.ArchiveExpander
}

func (g *postProcessGuard) Name() string { return "post_process" }

func (g *postProcessGuard) Wrap(next Handler) Handler {
	return func(ctx context.Context, ss *model.SessionState, call *ToolCall) (*ToolResult, error) {
		res, err := next(ctx, ss, call)
		if err != nil || res == nil {
			return res, err
		}
		res.Raw = stripEnvelope(res.Raw)
		redact(res.Raw)
		if res.OK() && !res.LongRunning && res.Raw != nil {
			raw := expandArchives(ctx, res.Raw, g.expander)
			res.Items = classify.Classify(raw)
		}
		return res, nil
	}
}

// stripEnvelope unwraps the backend's {code,msg,data} transport envelope
// when present.
func stripEnvelope(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	if data, ok := raw["data"].(map[string]any); ok {
		if _, hasCode := raw["code"]; hasCode {
			return data
		}
	}
	return raw
}

func redact(raw map[string]any) {
	if raw == nil {
		return
	}
	for _, k := range sensitiveKeys {
		delete(raw, k)
	}
	for _, v := range raw {
		if nested, ok := v.(map[string]any); ok {
			redact(nested)
		}
	}
}

// expandArchives replaces archive-URL values with one key per re-uploaded
// member. Expansion failures degrade to keeping the original value so the
// classifier still accounts for the key. No-op without an expander.
func expandArchives(ctx context.Context, raw map[string]any, expander adapter.ArchiveExpander) map[string]any {
	if expander == nil {
		return raw
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok || !classify.IsURI(s) || !classify.IsArchive(s) {
			out[k] = v
			continue
		}
		members, err := expander.Expand(ctx, s)
		if err != nil || len(members) == 0 {
			out[k] = v
			continue
		}
		for _, m := range members {
			out[k+"."+m.Name] = m.URL
		}
	}
	return out
}
