// Package models defines the value types flowing through the projector relay.
//
// [TokenSet] is the single-session OAuth token record. It is immutable by
// convention: the refresher returns a replacement rather than mutating in
// place, and the caller's session storage persists whichever copy it is
// handed back.
//
// [PlaybackState] is the normalized now-playing snapshot rendered by the
// display page. Optional fields are pointers so an idle player serializes
// with explicit nulls.
package models
