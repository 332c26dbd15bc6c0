package paygate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/pubdesk-api/pkg/config"
)

// Status values reported by the external payment gateway.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Client looks up payment status on the external gateway by
// reference/order-number pair. The gateway itself is out of scope: this
// client only reads status, it never creates charges.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// StatusResult is the gateway's answer for one lookup.
type StatusResult struct {
	Reference string `json:"reference"`
	OrderNo   string `json:"order_no"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// New builds a gateway client from configuration.
func New(cfg config.PaymentsConfig) *Client {
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey:  cfg.GatewayAPIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Lookup queries the gateway for the current status of a payment.
func (c *Client) Lookup(ctx context.Context, reference, orderNo string) (*StatusResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("paygate: reference required")
	}

	endpoint := fmt.Sprintf("%s/v1/payments/status?%s", c.baseURL, url.Values{
		"reference": {reference},
		"order_no":  {orderNo},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("paygate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paygate: status request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return &StatusResult{Reference: reference, OrderNo: orderNo, Status: StatusPending}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("paygate: gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var result StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("paygate: decode response: %w", err)
	}
	result.Status = strings.ToLower(result.Status)
	return &result, nil
}
