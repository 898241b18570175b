package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/projector/internal/models"
	"github.com/desertthunder/projector/internal/services"
	"github.com/desertthunder/projector/internal/shared"
	tu "github.com/desertthunder/projector/internal/testing"
)

func quietLogger() *log.Logger {
	logger := shared.NewLogger(&strings.Builder{})
	return logger
}

func testSpotify(t *testing.T, rt *tu.ScriptedRoundTripper) *services.SpotifyService {
	t.Helper()
	creds := shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		RedirectURI:  "http://127.0.0.1:3000/callback",
	}
	srv, err := services.NewSpotifyService(creds, rt.Client(), quietLogger())
	if err != nil {
		t.Fatalf("failed to create spotify service: %v", err)
	}
	return srv
}

func withSession(r *http.Request, sess *Session) *http.Request {
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.ID})
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestAuthHandler(t *testing.T) {
	t.Run("Login Redirects To Spotify With State", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", w.Code)
		}

		location, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid redirect location: %v", err)
		}
		if location.Host != "accounts.spotify.com" {
			t.Errorf("expected redirect to accounts.spotify.com, got %s", location.Host)
		}
		if location.Query().Get("client_id") != "test_client_id" {
			t.Error("expected client_id in authorize URL")
		}
		if location.Query().Get("scope") != "user-read-currently-playing user-read-playback-state" {
			t.Errorf("unexpected scope: %s", location.Query().Get("scope"))
		}

		state := location.Query().Get("state")
		if state == "" {
			t.Fatal("expected state parameter in authorize URL")
		}

		// The state in the URL is the one stored on the session.
		cookie := w.Result().Cookies()[0]
		sess, _ := sessions.Get(cookie.Value)
		if got := sess.ConsumeState(); got != state {
			t.Errorf("stored state %q does not match redirect state %q", got, state)
		}
	})

	t.Run("Callback Rejects Mismatched State Without Exchange", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.BeginAuth("expected_state")

		w := httptest.NewRecorder()
		r := withSession(httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=abc", nil), sess)
		h.ServeHTTP(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if rt.CallCount() != 0 {
			t.Errorf("expected no token endpoint call, got %d", rt.CallCount())
		}
		if sess.Token() != nil {
			t.Error("expected session to stay unauthenticated")
		}
	})

	t.Run("Callback Rejects Missing Stored State", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()

		w := httptest.NewRecorder()
		r := withSession(httptest.NewRequest(http.MethodGet, "/callback?state=&code=abc", nil), sess)
		h.ServeHTTP(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if rt.CallCount() != 0 {
			t.Error("expected no token endpoint call")
		}
	})

	t.Run("Callback Exchanges Code And Stores TokenSet", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(tu.StubResponse{
			Status: http.StatusOK,
			Body:   `{"access_token":"access","refresh_token":"refresh","expires_in":3600}`,
		})
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.BeginAuth("good_state")

		w := httptest.NewRecorder()
		r := withSession(httptest.NewRequest(http.MethodGet, "/callback?state=good_state&code=auth_code", nil), sess)
		h.ServeHTTP(w, r)

		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", w.Code)
		}
		if w.Header().Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %s", w.Header().Get("Location"))
		}

		token := sess.Token()
		if token == nil || token.AccessToken != "access" {
			t.Fatalf("expected stored token set, got %+v", token)
		}
		if token.ExpiresAt < time.Now().Unix()+3599 {
			t.Errorf("expected expires_at near now+3600, got %d", token.ExpiresAt)
		}

		form := rt.Calls[0].Form()
		if form.Get("code") != "auth_code" {
			t.Errorf("expected exchanged code, got %s", form.Get("code"))
		}
	})

	t.Run("Callback State Is Single Use", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(tu.StubResponse{
			Status: http.StatusOK,
			Body:   `{"access_token":"access","refresh_token":"refresh","expires_in":3600}`,
		})
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.BeginAuth("good_state")

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/callback?state=good_state&code=auth_code", nil), sess))
		if w.Code != http.StatusFound {
			t.Fatalf("first callback should succeed, got %d", w.Code)
		}

		// Replaying the same callback must fail: the state was consumed.
		w = httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/callback?state=good_state&code=auth_code", nil), sess))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected replay to get 400, got %d", w.Code)
		}
		if rt.CallCount() != 1 {
			t.Errorf("expected a single exchange, got %d", rt.CallCount())
		}
	})

	t.Run("Logout Drops Session", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{AccessToken: "tok"})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/logout", nil), sess))

		if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %d %s", w.Code, w.Header().Get("Location"))
		}
		if _, ok := sessions.Get(sess.ID); ok {
			t.Error("expected session to be deleted")
		}
	})

	t.Run("Status Unauthenticated", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		h := NewAuthHandler(testSpotify(t, rt), NewSessionStore(), quietLogger())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/status", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var status models.AuthStatus
		decodeBody(t, w, &status)
		if status.Authenticated {
			t.Error("expected authenticated false")
		}
	})

	t.Run("Status With Fresh Token", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "tok",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() + 3600,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/auth/status", nil), sess))

		var status models.AuthStatus
		decodeBody(t, w, &status)
		if !status.Authenticated {
			t.Fatal("expected authenticated true")
		}
		if status.TokenExpiresIn < 3500 || status.TokenExpiresIn > 3600 {
			t.Errorf("expected ~3600s remaining, got %d", status.TokenExpiresIn)
		}
		if rt.CallCount() != 0 {
			t.Errorf("expected no network calls for a fresh token, got %d", rt.CallCount())
		}
	})

	t.Run("Status Clears Session When Refresh Fails", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(
			tu.StubResponse{Status: http.StatusBadRequest, Body: `{"error":"invalid_grant"}`},
			tu.StubResponse{Status: http.StatusBadRequest, Body: `{"error":"invalid_grant"}`},
		)
		sessions := NewSessionStore()
		h := NewAuthHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "stale",
			RefreshToken: "revoked",
			ExpiresAt:    time.Now().Unix() - 10,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/auth/status", nil), sess))

		var status models.AuthStatus
		decodeBody(t, w, &status)
		if status.Authenticated {
			t.Error("expected authenticated false after failed refresh")
		}
		if sess.Token() != nil {
			t.Error("expected token to be cleared")
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		h := NewAuthHandler(testSpotify(t, rt), NewSessionStore(), quietLogger())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})
}

func TestPlayerHandler(t *testing.T) {
	playingBody := `{
		"is_playing": true,
		"progress_ms": 1000,
		"device": {"name": "Desk"},
		"item": {"name": "Song", "duration_ms": 2000, "artists": [{"name": "A"}], "album": {"images": []}}
	}`

	t.Run("Unauthenticated", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper()
		h := NewPlayerHandler(testSpotify(t, rt), NewSessionStore(), quietLogger())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowplaying", nil))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		var body map[string]string
		decodeBody(t, w, &body)
		if body["error"] != "unauthorized" {
			t.Errorf("expected unauthorized error body, got %v", body)
		}
	})

	t.Run("Fresh Token Fetches Directly", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(tu.StubResponse{Status: http.StatusOK, Body: playingBody})
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "valid",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() + 3600,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var state models.PlaybackState
		decodeBody(t, w, &state)
		if state.Title == nil || *state.Title != "Song" {
			t.Errorf("unexpected playback state: %+v", state)
		}

		if rt.CallCount() != 1 {
			t.Fatalf("expected single upstream call, got %d", rt.CallCount())
		}
		if got := rt.Calls[0].Header.Get("Authorization"); got != "Bearer valid" {
			t.Errorf("expected stored access token, got %s", got)
		}
	})

	t.Run("Expired Token Refreshes Then Fetches With New Token", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(
			tu.StubResponse{Status: http.StatusOK, Body: `{"access_token":"new_tok","expires_in":3600}`},
			tu.StubResponse{Status: http.StatusOK, Body: playingBody},
		)
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "stale",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() - 10,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if rt.CallCount() != 2 {
			t.Fatalf("expected refresh then fetch, got %d calls", rt.CallCount())
		}
		if got := rt.Calls[1].Header.Get("Authorization"); got != "Bearer new_tok" {
			t.Errorf("expected fetch to use refreshed token, got %s", got)
		}

		// The caller-visible session now stores the replacement.
		if sess.Token().AccessToken != "new_tok" {
			t.Errorf("expected session token replaced, got %s", sess.Token().AccessToken)
		}
		if sess.Token().RefreshToken != "ref" {
			t.Errorf("expected refresh token carried over, got %s", sess.Token().RefreshToken)
		}
	})

	t.Run("401 Triggers One Refresh And Retry", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(
			tu.StubResponse{Status: http.StatusUnauthorized, Body: "expired"},
			tu.StubResponse{Status: http.StatusOK, Body: `{"access_token":"recovered","expires_in":3600}`},
			tu.StubResponse{Status: http.StatusOK, Body: playingBody},
		)
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "looks_valid",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() + 3600,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusOK {
			t.Fatalf("expected recovery to 200, got %d", w.Code)
		}
		if rt.CallCount() != 3 {
			t.Fatalf("expected fetch, refresh, fetch; got %d calls", rt.CallCount())
		}
		if got := rt.Calls[2].Header.Get("Authorization"); got != "Bearer recovered" {
			t.Errorf("expected retry with refreshed token, got %s", got)
		}
	})

	t.Run("401 After Retry Clears Session", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(
			tu.StubResponse{Status: http.StatusUnauthorized, Body: "expired"},
			tu.StubResponse{Status: http.StatusOK, Body: `{"access_token":"still_bad","expires_in":3600}`},
			tu.StubResponse{Status: http.StatusUnauthorized, Body: "expired"},
		)
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "looks_valid",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() + 3600,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if rt.CallCount() != 3 {
			t.Fatalf("expected exactly 3 upstream calls, got %d", rt.CallCount())
		}
		if sess.Token() != nil {
			t.Error("expected session token cleared after terminal 401")
		}
	})

	t.Run("401 After Lazy Refresh Does Not Refresh Again", func(t *testing.T) {
		// The token was already refreshed this request; a second 401 means
		// revoked, and no further refresh is attempted.
		rt := tu.NewScriptedRoundTripper(
			tu.StubResponse{Status: http.StatusOK, Body: `{"access_token":"fresh_but_rejected","expires_in":3600}`},
			tu.StubResponse{Status: http.StatusUnauthorized, Body: "nope"},
		)
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "stale",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() - 10,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if rt.CallCount() != 2 {
			t.Fatalf("expected refresh + fetch only, got %d calls", rt.CallCount())
		}
		if sess.Token() != nil {
			t.Error("expected session token cleared")
		}
	})

	t.Run("Network Error Maps To 503", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(tu.StubResponse{Err: http.ErrHandlerTimeout})
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "valid",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() + 3600,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", w.Code)
		}
	})

	t.Run("API Error Maps To 500", func(t *testing.T) {
		rt := tu.NewScriptedRoundTripper(tu.StubResponse{Status: http.StatusBadGateway, Body: "upstream broke"})
		sessions := NewSessionStore()
		h := NewPlayerHandler(testSpotify(t, rt), sessions, quietLogger())

		sess := sessions.Create()
		sess.SetToken(&models.TokenSet{
			AccessToken:  "valid",
			RefreshToken: "ref",
			ExpiresAt:    time.Now().Unix() + 3600,
		})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/nowplaying", nil), sess))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})
}

func TestSiteHandler(t *testing.T) {
	h := NewSiteHandler(quietLogger())

	t.Run("Healthz", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var body map[string]string
		decodeBody(t, w, &body)
		if body["status"] != "ok" {
			t.Errorf("expected status ok, got %v", body)
		}
	})

	t.Run("Index Renders HTML", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
			t.Errorf("expected HTML content type, got %s", ct)
		}
		for _, want := range []string{`id="projector"`, `id="main-card"`, "style.css", "app.js"} {
			if !strings.Contains(w.Body.String(), want) {
				t.Errorf("expected page to contain %s", want)
			}
		}
	})

	t.Run("Static Assets", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/css/style.css", nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected 200 for css, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/js/app.js", nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected 200 for js, got %d", w.Code)
		}
	})

	t.Run("Unknown Path Is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nonexistent-endpoint", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})
}
