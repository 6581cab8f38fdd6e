// Package vfs implements the flashcard virtual file system engine.
//
// An Engine owns one user's tree of folders and flashcard sets. It
// reconciles three copies of that tree: the in-memory snapshot, the durable
// local cache, and the remote document.
//
// # Concurrency
//
// Engine.Run is a single-writer event loop. Operations (CreateItem,
// MoveItems, PasteFromClipboard, ...) are enqueued from any goroutine and
// applied one at a time. Remote snapshots arrive on the same queue, so local
// edits and remote updates are ordered by arrival and the last one wins.
// Readers get immutable *tree.Tree snapshots from Tree, View and Watch.
//
// # Sync
//
// Every accepted change is written to the cache. In a signed-in session it
// is also pushed, whole, to the remote document by a background pusher.
// A tree that came from the remote is not pushed back: the engine remembers
// the hash of the last applied snapshot and skips the matching push.
//
// # Usage
//
//	eng := vfs.New(store, vfs.WithRemote(ch), vfs.WithIdentity(userKey))
//	go eng.Run(ctx)
//
//	id, err := eng.CreateItem(ctx, tree.KindSet, "Spanish", tree.RootID, nil)
package vfs
