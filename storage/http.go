package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// HTTP implements Source over plain HTTP(S) GET requests
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates an HTTP source. Paths are appended to baseURL. A nil
// client uses one with a 30 second timeout.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Open issues a GET for the path. 404 maps to os.ErrNotExist; any other
// non-2xx status is an error.
func (h *HTTP) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	target := h.baseURL + "/" + strings.TrimPrefix(path, "/")
	if _, err := url.Parse(target); err != nil {
		return nil, fmt.Errorf("storage: bad url %q: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", target, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("storage: get %s: %w", target, os.ErrNotExist)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("storage: get %s: unexpected status %s", target, resp.Status)
	}

	return resp.Body, nil
}

var _ Source = (*HTTP)(nil)
