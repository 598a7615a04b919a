// Package revalidate asks the admin UI to drop its cached copy of a page
// after the student base changes.
package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SecretHeader carries the shared secret expected by the UI endpoint.
const SecretHeader = "X-Revalidate-Secret"

// Revalidator invalidates the cached UI page at path.
type Revalidator interface {
	Revalidate(ctx context.Context, path string) error
}

// HTTPRevalidator POSTs {"path": ...} to the UI's revalidation endpoint.
type HTTPRevalidator struct {
	url    string
	secret string
	client *http.Client
}

// New returns an HTTPRevalidator for url, or Nop when url is empty.
func New(url, secret string, timeout time.Duration) Revalidator {
	if url == "" {
		return Nop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRevalidator{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPRevalidator) Revalidate(ctx context.Context, path string) error {
	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return fmt.Errorf("Revalidate: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Revalidate: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.secret != "" {
		req.Header.Set(SecretHeader, h.secret)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("Revalidate: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("Revalidate: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Nop does nothing.
type Nop struct{}

func (Nop) Revalidate(context.Context, string) error { return nil }
