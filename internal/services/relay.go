// Relay client for making raw HTTP requests to a running projector relay
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/projector/internal/models"
	"github.com/desertthunder/projector/internal/shared"
)

// RelayClient queries a running relay's JSON endpoints. Used by the CLI and
// the terminal watcher, which talk to the relay rather than to Spotify.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayClient creates a client for the relay at baseURL.
func NewRelayClient(baseURL string, client *http.Client) *RelayClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &RelayClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// BaseURL returns the relay address this client targets.
func (c *RelayClient) BaseURL() string {
	return c.baseURL
}

// RelayResponse represents a raw relay response with status and body.
type RelayResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Get performs a GET request to the specified path and returns the raw response.
func (c *RelayClient) Get(ctx context.Context, path string) (*RelayResponse, error) {
	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &RelayResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// Health checks the relay's /healthz endpoint.
func (c *RelayClient) Health(ctx context.Context) error {
	resp, err := c.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// AuthStatus queries /auth/status on the relay.
func (c *RelayClient) AuthStatus(ctx context.Context) (*models.AuthStatus, error) {
	resp, err := c.Get(ctx, "/auth/status")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	var status models.AuthStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode auth status: %w", err)
	}
	return &status, nil
}

// NowPlaying queries /nowplaying on the relay.
//
// A 401 maps to [shared.ErrNotAuthenticated] so the CLI can prompt for login
// instead of printing a raw status code.
func (c *RelayClient) NowPlaying(ctx context.Context) (*models.PlaybackState, error) {
	resp, err := c.Get(ctx, "/nowplaying")
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: run `projector login` first", shared.ErrNotAuthenticated)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	var state models.PlaybackState
	if err := json.Unmarshal(resp.Body, &state); err != nil {
		return nil, fmt.Errorf("failed to decode playback state: %w", err)
	}
	return &state, nil
}
