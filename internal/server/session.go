package server

import (
	"net/http"
	"sync"

	"github.com/desertthunder/projector/internal/models"
	"github.com/desertthunder/projector/internal/shared"
)

// SessionCookie is the cookie carrying the session ID.
const SessionCookie = "projector_session"

// Session is one browser's relay state: the stored TokenSet and, during the
// login dance, the pending anti-CSRF state value.
//
// Nothing here survives a restart; the user just logs in again.
type Session struct {
	ID string

	// mu serializes the check-refresh-store step so concurrent requests from
	// the same browser can't race a refresh against each other.
	mu    sync.Mutex
	token *models.TokenSet
	state string
}

// Token returns the stored TokenSet, or nil when unauthenticated.
func (s *Session) Token() *models.TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken replaces the stored TokenSet.
func (s *Session) SetToken(ts *models.TokenSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ts
}

// ClearToken discards the stored TokenSet. Called on every terminal
// authentication failure so a dead session can't keep retrying.
func (s *Session) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

// BeginAuth stores the state value for a freshly issued authorization
// redirect. It replaces any previous pending state.
func (s *Session) BeginAuth(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// ConsumeState returns the pending state value and clears it. The state is
// single-use: whether or not the callback verifies, it is gone afterwards.
func (s *Session) ConsumeState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	s.state = ""
	return state
}

// Refresh runs fn while holding the session lock and stores the TokenSet it
// returns. fn receives the current token (never nil; callers check first).
func (s *Session) Refresh(fn func(models.TokenSet) (*models.TokenSet, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return shared.ErrNotAuthenticated
	}

	updated, err := fn(*s.token)
	if err != nil {
		s.token = nil
		return err
	}
	s.token = updated
	return nil
}

// SessionStore is an in-memory session registry keyed by cookie ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty [SessionStore].
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]*Session{}}
}

// Get returns the session with the given ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Create registers a new session with a random ID.
func (s *SessionStore) Create() *Session {
	sess := &Session{ID: shared.GenerateID()}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Delete drops a session entirely, tokens and pending state included.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Request finds the request's session via its cookie, creating a session and
// setting the cookie when the request doesn't carry a valid one.
func (s *SessionStore) Request(w http.ResponseWriter, r *http.Request) *Session {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if sess, ok := s.Get(cookie.Value); ok {
			return sess
		}
	}

	sess := s.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}
