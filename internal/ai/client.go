package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// maxResponseBytes bounds how much of a reply body is read.
const maxResponseBytes = 8 << 20

// transport posts JSON to a backend and classifies failures.
type transport struct {
	provider ProviderName
	client   *http.Client
	limiter  *rate.Limiter
}

func (t *transport) post(ctx context.Context, op, url string, header map[string]string, in, out interface{}) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Kind: ErrNetworkFailure, Provider: t.provider, Err: err}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Op: op, Provider: t.provider, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Error{Op: op, Provider: t.provider, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: ErrNetworkFailure, Provider: t.provider, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, Kind: ErrNetworkFailure, Provider: t.provider, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{
			Op:       op,
			Kind:     statusKind(resp.StatusCode, data),
			Provider: t.provider,
			Status:   resp.StatusCode,
			Detail:   apiMessage(data, resp.StatusCode),
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Kind: ErrMalformedResponse, Provider: t.provider, Status: resp.StatusCode, Detail: "unreadable response body", Err: err}
	}
	return nil
}

// apiMessage extracts the vendor error message from a failed reply.
func apiMessage(body []byte, status int) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fmt.Sprintf("Request failed with status %d.", status)
}

// withTimeout returns a copy of c with the request timeout applied.
func withTimeout(c *http.Client, o options) *http.Client {
	cp := *c
	if o.timeout > 0 {
		cp.Timeout = o.timeout
	}
	return &cp
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}
