package adapter

import "context"

// CostEstimate is the predicted charge for one tool invocation.
type CostEstimate struct {
	AmountMicros int64
	SKU          string
}

// BillingAdapter is the port for the credential/quota backend.
type BillingAdapter interface {
	ResolveAccessKey(ctx context.Context, conversationID string) (string, error)
	ResolveProjectID(ctx context.Context, accessKey string) (string, error)

	// EstimateCost must be callable before anything is charged; the quota
	// guard fails closed on an insufficient balance.
	EstimateCost(ctx context.Context, tool string, args map[string]any) (CostEstimate, error)
	CheckBalance(ctx context.Context, accessKey string, amountMicros int64) (bool, error)
}

// TicketIssuer mints short-lived signed tickets that the credential guard
// attaches to backend-bound invocations.
type TicketIssuer interface {
	Mint(conversationID, projectID string) (string, error)
}
