// Package server provides HTTP routing, sessions and the relay's endpoint handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Sessions
//
// [SessionStore] keeps per-browser state in memory, keyed by an HttpOnly
// cookie. A [Session] holds the TokenSet and the pending OAuth state value,
// and serializes the check-refresh-store step behind a per-session mutex so
// two concurrent page requests cannot race a token refresh.
//
// Sessions are deliberately not persisted; a restart means logging in again.
//
// # Handlers
//
// [AuthHandler] runs the authorization code dance (/login, /callback), logout
// and the /auth/status summary. The state parameter is single-use: consumed
// on the first callback regardless of outcome, so a mismatched or replayed
// state never reaches the token endpoint.
//
// [PlayerHandler] serves /nowplaying with the refresh-then-fetch sequence and
// maps error kinds to status codes: authentication failures clear the session
// and return 401, network failures return 503, other upstream errors 500.
// Token refreshes are capped at one per request.
//
// [SiteHandler] serves the embedded projector page, static assets and
// /healthz.
package server
