// File: internal/infra/adapters/compute/http_backend.go
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ComputeBackend = (*HTTPBackend)(nil)

// HTTPBackend talks to the tool/job backend over HTTP+JSON. Responses come
// wrapped in a {code, msg, data} envelope; code 0 is success. The request
// timeout doubles as the RPC's network timeout; a timeout surfaces as an
// ordinary error and is folded by the pipeline's error-catcher.
type HTTPBackend struct {
	base   string
	client *http.Client
}

func NewHTTPBackend(baseURL string, timeout time.Duration) (*HTTPBackend, error) {
	if baseURL == "" {
		return nil, errors.New("compute backend base url empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (b *HTTPBackend) Submit(ctx context.Context, req *adapter.SubmitRequest) (*adapter.SubmitResponse, error) {
	body := map[string]any{
		"tool":         req.Tool,
		"args":         req.Args,
		"executor":     req.Executor,
		"storage_path": req.StoragePath,
	}
	var data struct {
		JobID     int64          `json:"job_id"` // 0 means synchronous
		Status    int            `json:"status"`
		ExtraInfo map[string]any `json:"extra_info"`
		Result    map[string]any `json:"result"`
	}
	if err := b.post(ctx, "/v1/jobs", body, &data); err != nil {
		return nil, err
	}
	if data.JobID != 0 {
		return &adapter.SubmitResponse{
			JobID:       fmt.Sprintf("%d", data.JobID),
			Status:      model.MapBackendCode(data.Status),
			ExtraInfo:   data.ExtraInfo,
			LongRunning: true,
		}, nil
	}
	return &adapter.SubmitResponse{Result: data.Result}, nil
}

func (b *HTTPBackend) QueryStatus(ctx context.Context, jobID, executor string) (model.BackendStatus, error) {
	var data struct {
		Status int `json:"status"`
	}
	path := fmt.Sprintf("/v1/jobs/%s/status?executor=%s", url.PathEscape(jobID), url.QueryEscape(executor))
	if err := b.get(ctx, path, &data); err != nil {
		return model.BackendUnknown, err
	}
	return model.MapBackendCode(data.Status), nil
}

func (b *HTTPBackend) FetchResult(ctx context.Context, jobID, executor, storagePath string) (map[string]any, error) {
	var data struct {
		Result map[string]any `json:"result"`
	}
	path := fmt.Sprintf("/v1/jobs/%s/result?executor=%s&storage_path=%s",
		url.PathEscape(jobID), url.QueryEscape(executor), url.QueryEscape(storagePath))
	if err := b.get(ctx, path, &data); err != nil {
		return nil, err
	}
	return data.Result, nil
}

func (b *HTTPBackend) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *HTTPBackend) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return err
	}
	return b.do(req, out)
}

func (b *HTTPBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("compute backend http %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	if env.Code != 0 {
		return fmt.Errorf("compute backend error %d: %s", env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
