package models

import "time"

// expiryMargin is the safety window, in seconds, subtracted from expires_at
// when checking staleness. Covers clock skew and in-flight request latency.
const expiryMargin = 60

// TokenSet holds one session's OAuth tokens. ExpiresAt is absolute epoch
// seconds computed at issue time; ExpiresIn is the provider's original TTL.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

// ExpiredAt reports whether the access token is expired, or close enough to
// expiry that it should not be trusted for an upstream call. A TokenSet that
// never recorded an expiry is always expired.
func (t TokenSet) ExpiredAt(now time.Time) bool {
	if t.ExpiresAt == 0 {
		return true
	}
	return now.Unix() >= t.ExpiresAt-expiryMargin
}

// Expired is [TokenSet.ExpiredAt] against the current clock.
func (t TokenSet) Expired() bool {
	return t.ExpiredAt(time.Now())
}

// TTL returns the seconds until expiry at the given instant, never negative.
func (t TokenSet) TTL(now time.Time) int64 {
	remaining := t.ExpiresAt - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PlaybackState is the normalized snapshot of the player. When nothing is
// playing the optional fields are nil and the counters zero.
type PlaybackState struct {
	IsPlaying  bool    `json:"isPlaying"`
	Title      *string `json:"title"`
	Artist     *string `json:"artist"`
	CoverURL   *string `json:"coverUrl"`
	DeviceName *string `json:"deviceName"`
	ProgressMs int     `json:"progressMs"`
	DurationMs int     `json:"durationMs"`
}

// AuthStatus is the session summary served by /auth/status.
type AuthStatus struct {
	Authenticated  bool  `json:"authenticated"`
	TokenExpiresIn int64 `json:"token_expires_in"`
}
