package vfs

import (
	"context"

	"github.com/roach88/cardfs/internal/cache"
	"github.com/roach88/cardfs/internal/metrics"
	"github.com/roach88/cardfs/internal/tree"
)

// Snapshot outcomes recorded in metrics.
const (
	snapshotApplied     = "applied"
	snapshotInitialized = "initialized"
	snapshotUnchanged   = "unchanged"
	snapshotStale       = "stale"
)

// applySnapshot installs a remote document. Called only from Run.
//
// A missing document is initialized with the default tree (write-through).
// Otherwise the decoded tree replaces the local one and its hash is marked
// as remotely originated, so the cache write that follows does not echo it
// back to the remote.
func (e *Engine) applySnapshot(ctx context.Context, ev *snapshotEvent) {
	if ev.gen != e.sess.gen || ev.userKey != e.sess.userKey {
		metrics.RecordSnapshot(snapshotStale)
		e.logger.Debug("dropping stale snapshot", "user", ev.userKey, "gen", ev.gen, "current_gen", e.sess.gen)
		return
	}

	if e.sess.state == StateHydrating {
		e.sess.state = StateSynced
	}

	if !ev.snap.Exists {
		e.tree = tree.Default()
		e.sess.remoteHash = ""
		e.publish()
		e.writeCache(ctx)
		if data, err := tree.Encode(e.tree); err == nil {
			e.pusher.submit(pushJob{userKey: e.sess.userKey, data: data, create: true})
		}
		metrics.RecordSnapshot(snapshotInitialized)
		e.logger.Info("remote document missing, initialized default tree", "user", e.sess.userKey)
		return
	}

	next, err := tree.DecodeOrDefault(ev.snap.FileSystem)
	if err != nil {
		e.logger.Warn("remote snapshot unreadable, using default tree", "user", e.sess.userKey, "error", err)
	}

	hash := tree.Hash(next)
	if hash == tree.Hash(e.tree) {
		metrics.RecordSnapshot(snapshotUnchanged)
		// Still publish the state transition, and rewrite the cache in case
		// an earlier write failed.
		e.publish()
		e.writeCache(ctx)
		return
	}

	e.sess.remoteHash = hash
	e.tree = next
	e.publish()
	e.persist(ctx)
	metrics.RecordSnapshot(snapshotApplied)
	e.logger.Debug("applied remote snapshot", "user", e.sess.userKey, "nodes", next.Len())
}

// persist writes the current tree to the cache and, in a signed-in
// session, hands it to the pusher. A tree equal to the last remote
// snapshot is not pushed. Called only from Run.
func (e *Engine) persist(ctx context.Context) {
	data := e.writeCache(ctx)
	if data == nil || e.sess.userKey == "" || e.remote == nil {
		return
	}

	if e.sess.remoteHash != "" {
		marker := e.sess.remoteHash
		e.sess.remoteHash = ""
		if marker == tree.Hash(e.tree) {
			metrics.RecordEchoSuppressed()
			e.logger.Debug("suppressed echo of remote snapshot", "user", e.sess.userKey)
			return
		}
	}

	e.pusher.submit(pushJob{userKey: e.sess.userKey, data: data})
}

// writeCache stores the current tree under the session's cache key and
// returns the encoded bytes. A failed write is logged; the in-memory tree
// stays authoritative.
func (e *Engine) writeCache(ctx context.Context) []byte {
	data, err := tree.Encode(e.tree)
	if err != nil {
		e.logger.Error("encode tree", "error", err)
		return nil
	}

	key := cache.Key(e.sess.userKey)
	if err := e.cache.Put(ctx, key, data); err != nil {
		metrics.RecordCacheWrite(false)
		e.logger.Warn("cache write failed", "key", key, "error", err)
		return data
	}
	metrics.RecordCacheWrite(true)
	return data
}
