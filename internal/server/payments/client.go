package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/netx"
	"github.com/dmitrijs2005/trainingpay/internal/server/metrics"
)

// GatewayError is returned for a non-2xx gateway response.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway request failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return common.ErrGatewayRequestFailed
}

type gatewayResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    *struct {
		InstrumentResponse *struct {
			RedirectInfo *struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (r *gatewayResponse) redirectURL() (string, bool) {
	if r.Data == nil || r.Data.InstrumentResponse == nil || r.Data.InstrumentResponse.RedirectInfo == nil {
		return "", false
	}
	u := r.Data.InstrumentResponse.RedirectInfo.URL
	return u, u != ""
}

// Client submits signed payloads. The underlying *http.Client is shared and
// safe for concurrent use.
type Client struct {
	http    *http.Client
	url     string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewClient(httpClient *http.Client, url string, timeout time.Duration, mtr *metrics.Metrics, logger logging.Logger) *Client {
	return &Client{http: httpClient, url: url, timeout: timeout, metrics: mtr, logger: logger}
}

// Submit posts {"request": payload} with the checksum in X-VERIFY and returns
// the redirect URL from the response. Nothing is retried.
func (c *Client) Submit(ctx context.Context, payload, checksum string) (string, error) {
	started := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]string{"request": payload})
	if err != nil {
		return "", err
	}

	status, respBody, err := netx.PostJSON(ctx, c.http, c.url, body, map[string]string{
		"accept":   "application/json",
		"X-VERIFY": checksum,
	})
	if err != nil {
		if isTimeout(ctx, err) {
			c.metrics.ObserveGatewayRequest(metrics.GatewayTimeout, started)
			c.logger.Warn(ctx, "gateway timeout", "after", time.Since(started))
			return "", fmt.Errorf("%w: %v", common.ErrGatewayTimeout, err)
		}
		c.metrics.ObserveGatewayRequest(metrics.GatewayFailed, started)
		return "", fmt.Errorf("%w: %v", common.ErrGatewayRequestFailed, err)
	}

	if status < 200 || status > 299 {
		c.metrics.ObserveGatewayRequest(metrics.GatewayFailed, started)
		c.logger.Error(ctx, "gateway rejected payment request", "status", status, "body", string(respBody))
		return "", &GatewayError{StatusCode: status, Body: string(respBody)}
	}

	var resp gatewayResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		c.metrics.ObserveGatewayRequest(metrics.GatewayMalformed, started)
		return "", fmt.Errorf("%w: %v", common.ErrMalformedGatewayResponse, err)
	}
	url, ok := resp.redirectURL()
	if !ok {
		c.metrics.ObserveGatewayRequest(metrics.GatewayMalformed, started)
		return "", fmt.Errorf("%w: no data.instrumentResponse.redirectInfo.url", common.ErrMalformedGatewayResponse)
	}

	c.metrics.ObserveGatewayRequest(metrics.GatewayOK, started)
	return url, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
