// Package netx holds small outbound HTTP helpers.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxResponseBytes bounds how much of a response body DoJSON reads.
const MaxResponseBytes = 1 << 20

// PostJSON sends body as application/json with the extra headers and returns
// the status code and response body. A non-2xx status is not an error here;
// callers decide what it means.
func PostJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (int, []byte, error) {
	return DoJSON(ctx, client, http.MethodPost, url, body, headers)
}

// DoJSON is PostJSON for an arbitrary method. A nil body sends no payload
// and no Content-Type.
func DoJSON(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, b, nil
}
