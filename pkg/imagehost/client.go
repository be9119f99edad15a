package imagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client uploads evidence photos to an external image hosting provider.
// Uploads are best effort: callers keep the inline payload when an upload
// fails, so errors from this package must never abort a workflow transition.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds an upload client. The timeout bounds the full round trip
// so a slow provider never blocks a submission indefinitely.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
}

// Upload posts the base64 image payload and returns the hosted public URL.
func (c *Client) Upload(ctx context.Context, imageData string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("image host not configured")
	}

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", imageData)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image host returned status %d", resp.StatusCode)
	}

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.Data.URL == "" {
		return "", fmt.Errorf("image host returned empty url")
	}

	return payload.Data.URL, nil
}
