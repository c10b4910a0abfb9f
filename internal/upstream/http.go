package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/deepgate/deepgate/internal/apierr"
)

// doPost issues the one-shot HTTP session spec.md §4.2 describes: a POST
// against the shared pool, via the per-request proxy override (see
// proxy.go), bounded by cfg.Timeout. The caller owns closing resp.Body.
func doPost(ctx context.Context, cfg Config, headers map[string]string, body map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	if cfg.Proxy != "" {
		ctx = WithProxy(ctx, cfg.Proxy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := cfg.httpClient().Do(req)
	if err != nil {
		return nil, apierr.New(500, fmt.Sprintf("upstream transport error: %v", err))
	}
	return resp, nil
}

// errorFromResponse reads a non-2xx response body and translates it into a
// ClientAPIError, trying JSON first (the common `{"error": ...}` shape
// OpenAI-family and reasoner-family upstreams use) and falling back to the
// raw text otherwise. Always closes resp.Body.
func errorFromResponse(resp *http.Response) error {
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return apierr.New(resp.StatusCode, fmt.Sprintf("reading error response: %v", readErr))
	}

	var parsed map[string]any
	if json.Unmarshal(raw, &parsed) == nil {
		if e, ok := parsed["error"]; ok {
			return apierr.New(resp.StatusCode, fmt.Sprintf("%v", e))
		}
	}
	return apierr.New(resp.StatusCode, string(raw))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
