// Package remote defines the remote document channel the VFS engine syncs
// against, plus the retry helpers its adapters share.
//
// A user's tree lives in a single document at users/<userKey> whose only
// field, fileSystem, holds the serialized tree. Writes always replace the
// whole field; subscriptions deliver whole-document snapshots.
//
// Adapters live in subpackages: memdoc (in-process) and surreal (SurrealDB).
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Replace when the user's document does not exist.
var ErrNotFound = errors.New("remote document not found")

// Snapshot is one observation of a user's document.
type Snapshot struct {
	// Exists is false when the document has not been created yet.
	Exists bool

	// FileSystem is the serialized tree. Empty when Exists is false.
	FileSystem json.RawMessage
}

// Channel is a remote document store keyed by user key.
type Channel interface {
	// Subscribe delivers the current snapshot and then every change until
	// ctx is cancelled or the connection drops; either way the returned
	// channel is closed. Callers resubscribe after an unexpected close.
	Subscribe(ctx context.Context, userKey string) (<-chan Snapshot, error)

	// Replace overwrites the fileSystem field of an existing document.
	// Returns ErrNotFound when there is no document yet.
	Replace(ctx context.Context, userKey string, fileSystem []byte) error

	// Create writes the document, overwriting any existing one.
	Create(ctx context.Context, userKey string, fileSystem []byte) error
}

// DocumentPath returns the logical location of a user's document.
func DocumentPath(userKey string) string {
	return "users/" + userKey
}
