package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/noah-isme/pubdesk-api/pkg/config"
)

// Client is a thin HTTP client over the external transactional email API.
// The API accepts a single JSON POST per outbound message.
type Client struct {
	endpoint string
	apiKey   string
	sender   string
	http     *http.Client
}

// Message describes one outbound email.
type Message struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	HTMLBody   string   `json:"html_body"`
	Sender     string   `json:"sender,omitempty"`
}

// New builds a mail client from configuration.
func New(cfg config.MailConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		sender:   cfg.Sender,
		http:     &http.Client{Timeout: timeout},
	}
}

// Send delivers one message through the email API. A non-2xx response is an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("mailer: at least one recipient required")
	}
	if msg.Subject == "" {
		return fmt.Errorf("mailer: subject required")
	}
	if msg.Sender == "" {
		msg.Sender = c.sender
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailer: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: email API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
