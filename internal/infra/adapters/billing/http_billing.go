// File: internal/infra/adapters/billing/http_billing.go
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"agent-compute-platform/internal/domain/ports/adapter"
)

var _ adapter.BillingAdapter = (*HTTPBilling)(nil)

// HTTPBilling resolves credentials and balances from the billing backend
// and estimates invocation cost locally via the Estimator.
type HTTPBilling struct {
	base      string
	apiKey    string
	estimator *Estimator
	client    *http.Client
}

func NewHTTPBilling(baseURL, apiKey string, estimator *Estimator) (*HTTPBilling, error) {
	if baseURL == "" {
		return nil, errors.New("billing base url empty")
	}
	return &HTTPBilling{
		base:      baseURL,
		apiKey:    apiKey,
		estimator: estimator,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (b *HTTPBilling) ResolveAccessKey(ctx context.Context, conversationID string) (string, error) {
	var out struct {
		AccessKey string `json:"access_key"`
	}
	path := "/v1/accounts/" + url.PathEscape(conversationID) + "/access_key"
	if err := b.get(ctx, path, &out); err != nil {
		return "", err
	}
	if out.AccessKey == "" {
		return "", errors.New("billing returned empty access key")
	}
	return out.AccessKey, nil
}

func (b *HTTPBilling) ResolveProjectID(ctx context.Context, accessKey string) (string, error) {
	var out struct {
		ProjectID string `json:"project_id"`
	}
	if err := b.get(ctx, "/v1/projects?access_key="+url.QueryEscape(accessKey), &out); err != nil {
		return "", err
	}
	if out.ProjectID == "" {
		return "", errors.New("billing returned empty project id")
	}
	return out.ProjectID, nil
}

func (b *HTTPBilling) EstimateCost(ctx context.Context, tool string, args map[string]any) (adapter.CostEstimate, error) {
	return b.estimator.Estimate(tool, args)
}

func (b *HTTPBilling) CheckBalance(ctx context.Context, accessKey string, amountMicros int64) (bool, error) {
	var out struct {
		BalanceMicros int64 `json:"balance_micros"`
	}
	if err := b.get(ctx, "/v1/balance?access_key="+url.QueryEscape(accessKey), &out); err != nil {
		return false, err
	}
	return out.BalanceMicros >= amountMicros, nil
}

func (b *HTTPBilling) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return err
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("billing http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
