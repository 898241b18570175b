package shared

import "fmt"

// The relay's error taxonomy. Callers dispatch on these sentinels with
// [errors.Is] instead of matching message text; each upstream failure is
// wrapped with status and body where diagnostics matter.
var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrStateMismatch    = fmt.Errorf("state parameter mismatch")
	ErrExchangeFailed   = fmt.Errorf("token exchange failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed after retry")
	ErrUnauthorized     = fmt.Errorf("access token rejected")

	// API and service errors
	ErrNetwork            = fmt.Errorf("network request failed")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
