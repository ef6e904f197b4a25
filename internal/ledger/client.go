package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned by a Client with no base URL.
var ErrNotConfigured = errors.New("reward ledger is not configured")

// Client issues award instructions to the external reward ledger.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type awardRequest struct {
	Wallet string `json:"wallet"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AwardXP posts one award instruction. Any non-2xx answer is an error.
func (c *Client) AwardXP(ctx context.Context, wallet string, amount int64, reason string) error {
	if c.BaseURL == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(awardRequest{Wallet: wallet, Amount: amount, Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to encode award: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/awards", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call reward ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reward ledger returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
