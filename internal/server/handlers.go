package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/projector/internal/models"
	"github.com/desertthunder/projector/internal/services"
	"github.com/desertthunder/projector/internal/shared"
	"github.com/desertthunder/projector/internal/web"
)

var timeNow = time.Now

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// AuthHandler serves the OAuth login dance and session lifecycle endpoints.
type AuthHandler struct {
	spotify  *services.SpotifyService
	sessions *SessionStore
	logger   *log.Logger
}

// NewAuthHandler creates the auth endpoints handler.
func NewAuthHandler(spotify *services.SpotifyService, sessions *SessionStore, logger *log.Logger) *AuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AuthHandler{spotify: spotify, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"/login", "/callback", "/logout", "/auth/status"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/logout":
		h.logout(w, r)
	case "/auth/status":
		h.status(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login issues a fresh state token and redirects to Spotify's consent page.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Request(w, r)

	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Errorf("failed to generate state: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sess.BeginAuth(state)
	http.Redirect(w, r, h.spotify.AuthURL(state), http.StatusFound)
}

// callback verifies the state parameter and exchanges the authorization code.
//
// The stored state is consumed before comparison, so a replayed or forged
// callback can never trigger an exchange.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Request(w, r)

	expected := sess.ConsumeState()
	state := r.URL.Query().Get("state")
	if expected == "" || state != expected {
		h.logger.Warnf("callback rejected: %v", shared.ErrStateMismatch)
		writeError(w, http.StatusBadRequest, "invalid state parameter")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		h.logger.Warnf("authorization denied by provider: %s", errParam)
		writeError(w, http.StatusBadRequest, "authorization failed")
		return
	}

	ts, err := h.spotify.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Errorf("code exchange failed: %v", err)
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	sess.SetToken(&ts)
	h.logger.Info("session authenticated", "session", sess.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// logout drops the whole session record, TokenSet and pending state included.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		h.sessions.Delete(cookie.Value)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// status reports authentication state from a refresh-check, without touching
// the playback endpoint.
func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Request(w, r)

	if sess.Token() == nil {
		writeJSON(w, http.StatusOK, models.AuthStatus{Authenticated: false})
		return
	}

	var ttl int64
	err := sess.Refresh(func(ts models.TokenSet) (*models.TokenSet, error) {
		updated, _, err := h.spotify.EnsureFresh(r.Context(), ts)
		if err != nil {
			return nil, err
		}
		ttl = updated.TTL(timeNow())
		return &updated, nil
	})
	if err != nil {
		h.logger.Warnf("status refresh failed, session cleared: %v", err)
		writeJSON(w, http.StatusOK, models.AuthStatus{Authenticated: false})
		return
	}

	writeJSON(w, http.StatusOK, models.AuthStatus{
		Authenticated:  true,
		TokenExpiresIn: ttl,
	})
}

// PlayerHandler serves the normalized playback snapshot.
type PlayerHandler struct {
	spotify  *services.SpotifyService
	sessions *SessionStore
	logger   *log.Logger
}

// NewPlayerHandler creates the playback endpoint handler.
func NewPlayerHandler(spotify *services.SpotifyService, sessions *SessionStore, logger *log.Logger) *PlayerHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlayerHandler{spotify: spotify, sessions: sessions, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *PlayerHandler) Routes() []string {
	return []string{"/nowplaying"}
}

// ServeHTTP runs the refresh-then-fetch sequence.
//
// At most one token refresh happens per request: either lazily because the
// stored token was stale, or forced by a 401 from the playback endpoint. A
// 401 after a refresh in the same request means the token is revoked, not
// stale, and the session is cleared.
func (h *PlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := h.sessions.Request(w, r)

	if sess.Token() == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var refreshed bool
	var accessToken string
	err := sess.Refresh(func(ts models.TokenSet) (*models.TokenSet, error) {
		updated, didRefresh, err := h.spotify.EnsureFresh(r.Context(), ts)
		refreshed = didRefresh
		if err != nil {
			return nil, err
		}
		accessToken = updated.AccessToken
		return &updated, nil
	})
	if err != nil {
		h.logger.Warnf("refresh failed, session cleared: %v", err)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	state, err := h.spotify.NowPlaying(r.Context(), accessToken)

	if errors.Is(err, shared.ErrUnauthorized) && !refreshed {
		err = sess.Refresh(func(ts models.TokenSet) (*models.TokenSet, error) {
			updated, refreshErr := h.spotify.Refresh(r.Context(), ts)
			if refreshErr != nil {
				return nil, refreshErr
			}
			accessToken = updated.AccessToken
			return &updated, nil
		})
		if err != nil {
			h.logger.Warnf("forced refresh failed, session cleared: %v", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		state, err = h.spotify.NowPlaying(r.Context(), accessToken)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, state)
	case errors.Is(err, shared.ErrUnauthorized):
		h.logger.Warn("playback fetch unauthorized after refresh, session cleared")
		sess.ClearToken()
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, shared.ErrNetwork):
		h.logger.Errorf("playback fetch network error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "network error")
	default:
		h.logger.Errorf("playback fetch failed: %v", err)
		writeError(w, http.StatusInternalServerError, "spotify API error")
	}
}

// SiteHandler serves the projector page, static assets and the health check.
type SiteHandler struct {
	static http.Handler
	logger *log.Logger
}

// NewSiteHandler creates the page/asset handler backed by the embedded site.
func NewSiteHandler(logger *log.Logger) *SiteHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SiteHandler{static: web.Static(), logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SiteHandler) Routes() []string {
	return []string{"/", "/healthz", "/static/"}
}

func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case r.URL.Path == "/healthz":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.URL.Path == "/":
		if err := web.RenderIndex(w); err != nil {
			h.logger.Errorf("failed to render index: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	case strings.HasPrefix(r.URL.Path, "/static/"):
		h.static.ServeHTTP(w, r)
	default:
		// "/" is a catch-all pattern on the mux; anything unrecognized
		// lands here.
		http.NotFound(w, r)
	}
}
