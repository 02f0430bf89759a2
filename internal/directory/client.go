// Package directory resolves tenant voice configuration from the business
// application. The bridge only consumes this one lookup; everything else
// about the business application is out of scope.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ardelane/voicebridge/internal/protocol"
	"github.com/ardelane/voicebridge/internal/reliability"
)

var ErrNotFound = errors.New("tenant voice configuration not found")

// VoiceConfig is a tenant's voice configuration as served by the business
// application.
type VoiceConfig struct {
	TenantID     string                  `json:"tenant_id"`
	DisplayName  string                  `json:"display_name"`
	Instructions string                  `json:"instructions"`
	Voice        string                  `json:"voice,omitempty"`
	Greeting     string                  `json:"greeting,omitempty"`
	Functions    []protocol.FunctionDecl `json:"functions,omitempty"`
}

// Client fetches voice configuration over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("directory base url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 2,
	}, nil
}

// VoiceConfig resolves the configuration for tenantID, retrying transient
// upstream failures with capped backoff.
func (c *Client) VoiceConfig(ctx context.Context, tenantID string) (VoiceConfig, error) {
	if strings.TrimSpace(tenantID) == "" {
		return VoiceConfig{}, errors.New("tenant id is required")
	}
	endpoint := c.baseURL + "/internal/tenants/" + url.PathEscape(tenantID) + "/voice-config"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := reliability.ExponentialBackoff(attempt, 100*time.Millisecond, time.Second)
			select {
			case <-ctx.Done():
				return VoiceConfig{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		cfg, retryable, err := c.fetch(ctx, endpoint)
		if err == nil {
			return cfg, nil
		}
		lastErr = err
		if !retryable {
			return VoiceConfig{}, err
		}
	}
	return VoiceConfig{}, fmt.Errorf("voice config lookup exhausted retries: %w", lastErr)
}

func (c *Client) fetch(ctx context.Context, endpoint string) (VoiceConfig, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VoiceConfig{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return VoiceConfig{}, true, fmt.Errorf("voice config request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		var cfg VoiceConfig
		if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&cfg); err != nil {
			return VoiceConfig{}, false, fmt.Errorf("decode voice config: %w", err)
		}
		if strings.TrimSpace(cfg.Instructions) == "" {
			return VoiceConfig{}, false, ErrNotFound
		}
		return cfg, false, nil
	case res.StatusCode == http.StatusNotFound:
		return VoiceConfig{}, false, ErrNotFound
	case reliability.IsRetryableHTTPStatus(res.StatusCode):
		return VoiceConfig{}, true, fmt.Errorf("voice config lookup status %d", res.StatusCode)
	default:
		return VoiceConfig{}, false, fmt.Errorf("voice config lookup status %d", res.StatusCode)
	}
}
