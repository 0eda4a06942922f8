// Package mailbox is a thin client for the disposable-inbox service. It can
// create a temporary address and list the messages that arrived for it;
// retry policy belongs to the caller.
package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Message is one email as returned by the mailbox service.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a mailbox client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateAddress asks the service for a fresh address built from the given
// local part and domain. The service may normalize the local part; the
// address it returns is canonical.
func (c *Client) CreateAddress(ctx context.Context, localPart, domain string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"name":   localPart,
		"domain": domain,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode address request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mailbox address request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("mailbox address request returned status %d: %s",
			resp.StatusCode, readBodySnippet(resp.Body))
	}

	var out struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode address response: %w", err)
	}
	if out.Email == "" {
		return "", fmt.Errorf("mailbox service returned an empty address")
	}
	return out.Email, nil
}

// ListMessages returns the messages currently in the given address's inbox.
func (c *Client) ListMessages(ctx context.Context, address string) ([]Message, error) {
	endpoint := c.BaseURL + "/api/emails/" + url.PathEscape(address) + "/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailbox message listing failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("mailbox message listing returned status %d: %s",
			resp.StatusCode, readBodySnippet(resp.Body))
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("failed to decode message listing: %w", err)
	}
	return messages, nil
}

// readBodySnippet reads at most 512 bytes of a response body for error
// messages, so huge upstream error pages don't end up in logs verbatim.
func readBodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
