// Package services implements the relay's upstream clients.
//
// # Spotify Client
//
// [SpotifyService] owns the OAuth2 token lifecycle for a single user session:
// building the authorization URL, exchanging the callback code, validating
// expiry against a 60-second safety margin, and refreshing with single-retry
// semantics. Tokens are handed in and handed back as [models.TokenSet] values;
// the service never stores them.
//
// The token endpoint is called directly with HTTP Basic authentication rather
// than through [oauth2.Config.Exchange], because the relay's contract fixes
// the retry policy, the staleness margin, and the status+body error payloads,
// all of which the oauth2 transport hides. [oauth2.Config] still supplies the
// endpoint wiring and authorization URL construction.
//
// # Error Handling
//
// Upstream failures map onto sentinels from the shared package:
//   - [shared.ErrExchangeFailed] : non-200 from the token endpoint at login
//   - [shared.ErrNoRefreshToken] : refresh requested with nothing to refresh
//   - [shared.ErrRefreshFailed] : both refresh attempts failed, reauthenticate
//   - [shared.ErrUnauthorized] : 401 from the player endpoint
//   - [shared.ErrNetwork] : transport-level failure, distinct from API errors
//   - [shared.ErrAPIRequest] : any other non-success player response
//
// # Relay Client
//
// [RelayClient] is the consumer side: the CLI and terminal watcher query a
// running relay's own JSON endpoints through it.
package services
