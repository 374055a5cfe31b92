// File: internal/infra/adapters/storage/http_storage.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agent-compute-platform/internal/domain/ports/adapter"
)

var _ adapter.ObjectStorage = (*HTTPStorage)(nil)

// HTTPStorage re-hosts artifacts on the object store's HTTP gateway:
// PUT {base}/{root}/{path} uploads, GET {url} downloads.
type HTTPStorage struct {
	base   string
	root   string
	client *http.Client
}

func NewHTTPStorage(baseURL, root string) (*HTTPStorage, error) {
	if baseURL == "" {
		return nil, errors.New("storage base url empty")
	}
	return &HTTPStorage{
		base:   strings.TrimRight(baseURL, "/"),
		root:   strings.Trim(root, "/"),
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *HTTPStorage) Upload(ctx context.Context, data []byte, path string) (string, error) {
	url := s.base + "/" + s.root + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage upload http %d", resp.StatusCode)
	}
	return url, nil
}

func (s *HTTPStorage) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage download http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
