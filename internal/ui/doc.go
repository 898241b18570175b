// Package ui implements the terminal now-playing watcher.
//
// The watcher is a thin [tea.Model] over [services.RelayClient]: it polls
// /nowplaying every couple of seconds and renders the snapshot with a
// progress bar. It never talks to Spotify directly; the relay owns all token
// state.
package ui
