package syncpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPFetcher reads the caller's submissions from the bounty API.
type HTTPFetcher struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPFetcher(baseURL, token string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) FetchSubmissions(ctx context.Context, bountyIDs []string) (map[string]View, error) {
	q := url.Values{}
	q.Set("bountyIds", strings.Join(bountyIDs, ","))
	endpoint := f.BaseURL + "/api/v1/submissions/mine?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.Token)

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("submissions lookup returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out := map[string]View{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode submissions: %w", err)
	}
	return out, nil
}
