package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-success reply from a provider's HTTP API
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string

	retryAfter time.Duration // negative when the server gave no hint
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s API error (%d): %s - %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// Transient reports whether repeating the request may succeed
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// errorDecoder pulls the provider's error type and message out of a reply body
type errorDecoder func(body []byte) (typ, msg string)

const retryBackoff = 500 * time.Millisecond

// jsonAPI speaks JSON over HTTP to one provider endpoint
type jsonAPI struct {
	provider string
	baseURL  string
	client   *http.Client
	headers  http.Header
	retries  int // extra attempts on transient errors
	decode   errorDecoder
}

func newJSONAPI(provider, baseURL string, client *http.Client, retries int, decode errorDecoder) *jsonAPI {
	return &jsonAPI{
		provider: provider,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   client,
		headers:  make(http.Header),
		retries:  retries,
		decode:   decode,
	}
}

// post sends in as JSON and decodes the reply into out, retrying transient
// failures with exponential backoff or the server's Retry-After
func (a *jsonAPI) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retryTransient(ctx, a.retries, func() error {
		return a.do(ctx, http.MethodPost, path, body, out)
	})
}

// retryTransient calls fn until it succeeds, fails permanently, or the
// extra attempts run out
func retryTransient(ctx context.Context, retries int, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()

		var apiErr *APIError
		if err == nil || attempt >= retries || !errors.As(err, &apiErr) || !apiErr.Transient() {
			return err
		}

		wait := apiErr.retryAfter
		if wait < 0 {
			wait = retryBackoff << attempt
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// get issues a GET and decodes the reply into out when out is non-nil
func (a *jsonAPI) get(ctx context.Context, path string, out any) error {
	return a.do(ctx, http.MethodGet, path, nil, out)
}

func (a *jsonAPI) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range a.headers {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Provider:   a.provider,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if a.decode != nil {
			if typ, msg := a.decode(respBody); msg != "" {
				apiErr.Type, apiErr.Message = typ, msg
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// parseRetryAfter reads a delay in seconds; HTTP dates are ignored
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return -1
	}
	return time.Duration(secs) * time.Second
}
