// File: internal/infra/adapters/billing/estimator.go
package billing

import (
	"encoding/json"
	"fmt"

	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/usecase"

	"github.com/pkoukk/tiktoken-go"
)

// ToolPricing prices one tool: a flat base charge plus, for prompt-bearing
// tools, a per-token rate over the stringified arguments.
type ToolPricing struct {
	SKU            string
	BaseMicros     int64
	PerTokenMicros int64
}

// Estimator predicts the charge for a tool invocation before anything is
// submitted. Token counting uses tiktoken over the serialized args;
// best-effort length/4 when the encoding is unavailable.
type Estimator struct {
	pricing  map[string]ToolPricing
	fallback ToolPricing
	encoding string
}

func NewEstimator(pricing map[string]ToolPricing) *Estimator {
	e := &Estimator{
		pricing:  pricing,
		fallback: ToolPricing{SKU: "compute-default", BaseMicros: 1_000_000},
		encoding: "cl100k_base",
	}
	if e.pricing == nil {
		e.pricing = map[string]ToolPricing{}
	}
	// The control tool is free: it never reaches the backend.
	e.pricing[usecase.ControlToolTransfer] = ToolPricing{SKU: "control", BaseMicros: 0}
	return e
}

func (e *Estimator) Estimate(tool string, args map[string]any) (adapter.CostEstimate, error) {
	p, ok := e.pricing[tool]
	if !ok {
		p = e.fallback
	}
	amount := p.BaseMicros
	if p.PerTokenMicros > 0 {
		n, err := e.countTokens(args)
		if err != nil {
			return adapter.CostEstimate{}, fmt.Errorf("token count for %s: %w", tool, err)
		}
		amount += int64(n) * p.PerTokenMicros
	}
	return adapter.CostEstimate{AmountMicros: amount, SKU: p.SKU}, nil
}

func (e *Estimator) countTokens(args map[string]any) (int, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return 0, err
	}
	enc, err := tiktoken.GetEncoding(e.encoding)
	if err != nil {
		// offline fallback: ~4 bytes per token
		return len(b) / 4, nil
	}
	return len(enc.Encode(string(b), nil, nil)), nil
}
