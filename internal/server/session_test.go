package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/projector/internal/models"
)

func TestSessionStore(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		store := NewSessionStore()
		sess := store.Create()

		if sess.ID == "" {
			t.Fatal("expected session ID to be generated")
		}

		got, ok := store.Get(sess.ID)
		if !ok || got != sess {
			t.Error("expected to retrieve the created session")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := NewSessionStore()
		sess := store.Create()
		sess.SetToken(&models.TokenSet{AccessToken: "tok"})

		store.Delete(sess.ID)
		if _, ok := store.Get(sess.ID); ok {
			t.Error("expected session to be gone after delete")
		}
	})

	t.Run("Request Creates Session and Sets Cookie", func(t *testing.T) {
		store := NewSessionStore()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		sess := store.Request(w, r)
		if sess == nil {
			t.Fatal("expected a session")
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != SessionCookie {
			t.Fatalf("expected %s cookie, got %v", SessionCookie, cookies)
		}
		if cookies[0].Value != sess.ID {
			t.Error("cookie value should match session ID")
		}
		if !cookies[0].HttpOnly {
			t.Error("session cookie should be HttpOnly")
		}
	})

	t.Run("Request Reuses Session From Cookie", func(t *testing.T) {
		store := NewSessionStore()
		sess := store.Create()

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.ID})

		if got := store.Request(w, r); got != sess {
			t.Error("expected existing session to be reused")
		}
		if len(w.Result().Cookies()) != 0 {
			t.Error("expected no new cookie for an existing session")
		}
	})

	t.Run("Request Replaces Unknown Cookie", func(t *testing.T) {
		store := NewSessionStore()

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale-id"})

		sess := store.Request(w, r)
		if sess.ID == "stale-id" {
			t.Error("expected a fresh session for an unknown cookie")
		}
	})
}

func TestSession(t *testing.T) {
	t.Run("ConsumeState Is Single Use", func(t *testing.T) {
		sess := &Session{ID: "s"}
		sess.BeginAuth("state123")

		if got := sess.ConsumeState(); got != "state123" {
			t.Errorf("expected stored state, got %q", got)
		}
		if got := sess.ConsumeState(); got != "" {
			t.Errorf("expected state to be consumed, got %q", got)
		}
	})

	t.Run("Refresh Clears Token On Error", func(t *testing.T) {
		sess := &Session{ID: "s"}
		sess.SetToken(&models.TokenSet{AccessToken: "tok", RefreshToken: "ref"})

		err := sess.Refresh(func(ts models.TokenSet) (*models.TokenSet, error) {
			return nil, http.ErrHandlerTimeout
		})
		if err == nil {
			t.Fatal("expected error to propagate")
		}
		if sess.Token() != nil {
			t.Error("expected token to be cleared on refresh error")
		}
	})

	t.Run("Refresh Stores Replacement", func(t *testing.T) {
		sess := &Session{ID: "s"}
		sess.SetToken(&models.TokenSet{AccessToken: "old"})

		err := sess.Refresh(func(ts models.TokenSet) (*models.TokenSet, error) {
			if ts.AccessToken != "old" {
				t.Errorf("expected current token passed in, got %s", ts.AccessToken)
			}
			return &models.TokenSet{AccessToken: "new"}, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sess.Token().AccessToken != "new" {
			t.Error("expected replacement token to be stored")
		}
	})
}
