// Package session manages the authenticated session of a shipdesk client.
//
// # Lifecycle
//
// A Manager moves through these states:
//
//	unauthenticated -> authenticating -> authenticated -> refreshing -> authenticated
//	                                                   \-> logged_out
//
// Login tries the delegated directory first and mints a local 24h token on a
// match; otherwise it falls back to the remote account service. Validate
// decodes delegated tokens and clears expired or malformed ones. Refresh
// re-reads the delegated principal and re-mints its token, ending the session
// if the principal was revoked. Restore rebuilds the session at startup.
//
// # Storage
//
// Store writes every session to two tiers:
//
//   - secure: auth_token, refresh_token, principal_kind, permissions, session_context
//   - legacy: token, a bare mirror for older readers
//
// The secure tier is authoritative. A failed legacy write rolls the secure tier
// back. Restore overwrites a stale or missing legacy token.
//
// # Concurrency
//
// Manager serializes every operation with a mutex. Concurrent Refresh calls
// are collapsed into one with singleflight.
package session
