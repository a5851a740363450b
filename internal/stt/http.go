package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// doJSON sends req and decodes a JSON response into out. The returned
// duration spans the round trip including the response body.
func doJSON(ctx context.Context, client *http.Client, provider string, req *http.Request, out any) (time.Duration, error) {
	start := time.Now()
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return time.Since(start), fmt.Errorf("%s request: %w: %w", provider, ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return latency, fmt.Errorf("%s read response: %w: %w", provider, ErrTransport, err)
	}
	if resp.StatusCode >= 300 {
		return latency, statusError(provider, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return latency, fmt.Errorf("%s decode response: %w: %w", provider, ErrTransport, err)
	}
	return latency, nil
}

func statusError(provider string, status int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	kind := ErrTransport
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = ErrAuth
	}
	return fmt.Errorf("%s http %d: %s: %w", provider, status, string(body), kind)
}
