// Spotify client for the projector relay
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/projector/internal/models"
	"github.com/desertthunder/projector/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL   = "https://accounts.spotify.com/authorize"
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifyPlayerURL = "https://api.spotify.com/v1/me/player"
)

// spotifyScopes is the fixed scope set: enough to read the current track and
// the playback state (device, progress), nothing more.
var spotifyScopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
}

// defaultTimeout bounds every upstream round trip so a stuck provider call
// cannot hang a page request indefinitely.
const defaultTimeout = 10 * time.Second

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album. Images are ordered widest first.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
}

// SpotifyDevice represents the active playback device.
type SpotifyDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// SpotifyPlayerState is the raw /me/player response body.
type SpotifyPlayerState struct {
	Device     *SpotifyDevice `json:"device"`
	IsPlaying  bool           `json:"is_playing"`
	ProgressMS int            `json:"progress_ms"`
	Item       *SpotifyTrack  `json:"item"`
}

// tokenResponse is the token endpoint's JSON body for both grant types.
// refresh_token may be absent on refresh when the provider keeps the old one.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// SpotifyService owns the OAuth token lifecycle and the now-playing fetch.
//
// It holds no token state of its own: callers hand in a [models.TokenSet] and
// receive a (possibly new) one back, so session storage stays the caller's
// concern.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyService creates a Spotify service from validated credentials.
//
// The HTTP client defaults to one with a conservative timeout; pass a custom
// client to override transport behavior in tests.
func NewSpotifyService(creds shared.SpotifyConfig, client *http.Client, logger *log.Logger) (*SpotifyService, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: client,
		logger:     logger,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the authorization redirect URL carrying the caller's
// anti-CSRF state token and the fixed scope set.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the initial [models.TokenSet].
//
// Authorization codes are single-use, so a failed exchange is never retried;
// the upstream status and body are carried in the error for diagnostics.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (models.TokenSet, error) {
	if code == "" {
		return models.TokenSet{}, fmt.Errorf("%w: empty authorization code", shared.ErrInvalidArgument)
	}

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {s.config.RedirectURL},
	}

	tr, err := s.postToken(ctx, form)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	return models.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		ExpiresAt:    time.Now().Unix() + int64(tr.ExpiresIn),
	}, nil
}

// EnsureFresh returns a TokenSet safe to use for an upstream call.
//
// The fast path (token not near expiry) returns the input unchanged with no
// network traffic. Otherwise it refreshes and reports refreshed=true so the
// caller can cap refreshes for the rest of the request.
func (s *SpotifyService) EnsureFresh(ctx context.Context, ts models.TokenSet) (models.TokenSet, bool, error) {
	if !ts.Expired() {
		return ts, false, nil
	}

	updated, err := s.Refresh(ctx, ts)
	if err != nil {
		return ts, false, err
	}
	return updated, true, nil
}

// Refresh obtains a replacement TokenSet using the stored refresh token.
//
// The refresh is attempted at most twice: failures are usually transient (one
// retry fixes them) or revocations (the retry fails just as fast). A missing
// refresh token or a second failure is terminal and the caller must treat the
// session as unauthenticated.
func (s *SpotifyService) Refresh(ctx context.Context, ts models.TokenSet) (models.TokenSet, error) {
	if ts.RefreshToken == "" {
		return models.TokenSet{}, shared.ErrNoRefreshToken
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {ts.RefreshToken},
	}

	tr, err := s.postToken(ctx, form)
	if err != nil {
		s.logger.Warnf("token refresh failed, retrying once: %v", err)
		if tr, err = s.postToken(ctx, form); err != nil {
			return models.TokenSet{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}
	}

	updated := models.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		ExpiresAt:    time.Now().Unix() + int64(tr.ExpiresIn),
	}
	// Spotify may omit the refresh token on rotation; keep the one we have.
	if updated.RefreshToken == "" {
		updated.RefreshToken = ts.RefreshToken
	}

	return updated, nil
}

// postToken performs one Basic-auth POST to the token endpoint.
func (s *SpotifyService) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.config.ClientID, s.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tr, nil
}

// NowPlaying fetches the playback state and normalizes it into a
// [models.PlaybackState]. The caller is responsible for refreshing the access
// token first.
//
// A 401 surfaces as [shared.ErrUnauthorized] so the caller can run one
// refresh-and-retry cycle; transport failures surface as [shared.ErrNetwork]
// so the boundary can map them to 503 instead of 500.
func (s *SpotifyService) NowPlaying(ctx context.Context, accessToken string) (models.PlaybackState, error) {
	var state models.PlaybackState

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyPlayerURL, nil)
	if err != nil {
		return state, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return state, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		// Nothing playing, no active device.
		return state, nil
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return state, fmt.Errorf("%w: status %d", shared.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return state, fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(body))
	}

	var player SpotifyPlayerState
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return state, fmt.Errorf("%w: failed to decode player state: %v", shared.ErrAPIRequest, err)
	}

	return normalizePlayback(&player), nil
}

// normalizePlayback flattens the heterogeneous player payload into the stable
// snapshot shape. A payload without a playable item normalizes to the same
// zero snapshot as a 204.
func normalizePlayback(player *SpotifyPlayerState) models.PlaybackState {
	if player == nil || player.Item == nil {
		return models.PlaybackState{}
	}

	track := player.Item

	title := track.Name
	if title == "" {
		title = "Unknown Track"
	}

	artist := "Unknown Artist"
	if len(track.Artists) > 0 {
		names := make([]string, len(track.Artists))
		for i, a := range track.Artists {
			if a.Name == "" {
				names[i] = "Unknown Artist"
			} else {
				names[i] = a.Name
			}
		}
		artist = strings.Join(names, ", ")
	}

	var coverURL *string
	if len(track.Album.Images) > 0 {
		coverURL = &track.Album.Images[0].URL
	}

	deviceName := "Unknown Device"
	if player.Device != nil && player.Device.Name != "" {
		deviceName = player.Device.Name
	}

	return models.PlaybackState{
		IsPlaying:  player.IsPlaying,
		Title:      &title,
		Artist:     &artist,
		CoverURL:   coverURL,
		DeviceName: &deviceName,
		ProgressMs: player.ProgressMS,
		DurationMs: track.DurationMS,
	}
}
