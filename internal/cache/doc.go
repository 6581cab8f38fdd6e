// Package cache provides the durable local key/value store that holds the
// last-known serialized tree for each user key.
//
// Keys follow the browser client's storage layout:
//
//	flashcards_filesystem_<userKey>   signed-in users
//	flashcards_filesystem_local       anonymous, local-only mode
//
// # Implementations
//
//   - SQLite (Open): WAL mode, one connection, schema versioned with
//     PRAGMA user_version. Each value is stored with its SHA-256 so a torn
//     or hand-edited row is reported as ErrCorrupt instead of silently
//     decoded.
//   - Memory (NewMemory): map-backed, for tests and throwaway sessions.
//
// Both are safe for concurrent use.
package cache
