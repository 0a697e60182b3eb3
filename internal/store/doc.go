// Package store provides persistent storage for shipdesk sessions using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture:
//
//   - PrincipalReader: read-only directory lookups used by login and refresh
//   - PrincipalStore: directory management for delegated principals
//   - AuditLogger: append-only session lifecycle log
//
// SQLiteStore implements all interfaces in a single struct and additionally
// exposes named key/value tiers (Tier) used as the secure session tier.
//
// # Data Models
//
//   - DelegatedPrincipal: team member acting under a parent account, with an
//     explicit permission list and an optional bcrypt credential
//   - AuditEntry: login/logout/refresh/revoked/expired/repair events
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateEmail: email already registered (case-insensitive)
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests. Set MockStore.Err to simulate an
// unavailable directory. Use NewSQLiteStore with a t.TempDir() path for
// integration tests with real SQLite.
package store
