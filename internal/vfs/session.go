package vfs

import (
	"context"
	"errors"

	"github.com/roach88/cardfs/internal/cache"
	"github.com/roach88/cardfs/internal/metrics"
	"github.com/roach88/cardfs/internal/remote"
	"github.com/roach88/cardfs/internal/tree"
)

// State is the synchronization state of the current session.
type State string

const (
	// StateLocalOnly has no identity or no remote: cache only.
	StateLocalOnly State = "local-only"
	// StateHydrating has an identity and waits for the first remote snapshot.
	StateHydrating State = "hydrating"
	// StateSynced has applied at least one remote snapshot.
	StateSynced State = "synced"
)

// session is the loop-owned per-identity state.
type session struct {
	userKey string
	state   State

	// gen identifies the current subscription. Snapshot events carry the
	// gen they were read under; mismatches are dropped.
	gen    uint64
	cancel context.CancelFunc

	// remoteHash is the hash of the last applied remote snapshot that has
	// not been echoed back yet.
	remoteHash string
}

// SetIdentity switches the engine to userKey. The empty key is the
// anonymous local-only session. The previous subscription is closed, the
// tree is reloaded from the cache entry of the new key, the clipboard is
// cleared and, with a key and a remote, a subscription is opened.
//
// Pushes already handed off for the previous identity still complete.
func (e *Engine) SetIdentity(ctx context.Context, userKey string) error {
	_, err := submit(ctx, e, "identity", func(ctx context.Context) struct{} {
		e.activate(ctx, userKey)
		return struct{}{}
	})
	return err
}

// Logout returns to the anonymous session.
func (e *Engine) Logout(ctx context.Context) error {
	return e.SetIdentity(ctx, "")
}

// activate installs the session for userKey. Called only from Run.
func (e *Engine) activate(ctx context.Context, userKey string) {
	if e.sess.cancel != nil {
		e.sess.cancel()
	}
	gen := e.sess.gen + 1
	e.sess = session{userKey: userKey, state: StateLocalOnly, gen: gen}
	e.clipboard = Clipboard{}
	e.tree = e.load(ctx, userKey)

	if userKey != "" && e.remote != nil {
		subCtx, cancel := context.WithCancel(ctx)
		e.sess.cancel = cancel
		e.sess.state = StateHydrating
		e.subs.Add(1)
		go e.subscribe(subCtx, userKey, gen)
	}

	e.logger.Info("session active", "user", userKey, "state", e.sess.state, "nodes", e.tree.Len())
	e.publish()
}

// load reads the cached tree for userKey. Every failure falls back to the
// default tree; nothing is written back on load.
func (e *Engine) load(ctx context.Context, userKey string) *tree.Tree {
	key := cache.Key(userKey)
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache read failed, using default tree", "key", key, "error", err)
		return tree.Default()
	}
	if !ok {
		return tree.Default()
	}

	t, dropped, err := tree.Decode(data)
	if err != nil {
		if !errors.Is(err, tree.ErrEmptySnapshot) {
			e.logger.Warn("cached tree unreadable, using default tree", "key", key, "error", err)
		}
		return tree.Default()
	}
	if dropped > 0 {
		e.logger.Warn("cached tree repaired", "key", key, "dropped", dropped)
	}
	return t
}

// subscribe reads snapshots for userKey until ctx is cancelled, reopening
// the subscription with backoff whenever it fails or closes.
func (e *Engine) subscribe(ctx context.Context, userKey string, gen uint64) {
	defer e.subs.Done()

	for attempt := 0; ; {
		snaps, err := e.remote.Subscribe(ctx, userKey)
		if err == nil {
			metrics.AddSubscriptions(1)
			received := e.forward(ctx, snaps, userKey, gen)
			metrics.AddSubscriptions(-1)
			if received {
				attempt = 0
			}
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		metrics.RecordSubscriptionRetry()
		if err != nil {
			e.logger.Warn("subscribe failed", "user", userKey, "attempt", attempt, "error", err)
		} else {
			e.logger.Warn("subscription closed", "user", userKey, "attempt", attempt)
		}
		if e.backoff.MaxAttempts > 0 && attempt >= e.backoff.MaxAttempts {
			e.logger.Error("giving up on subscription", "user", userKey, "attempts", attempt)
			return
		}
		if err := e.backoff.Sleep(ctx, attempt); err != nil {
			return
		}
	}
}

// forward enqueues every snapshot from snaps. Reports whether at least
// one arrived.
func (e *Engine) forward(ctx context.Context, snaps <-chan remote.Snapshot, userKey string, gen uint64) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case snap, ok := <-snaps:
			if !ok {
				return received
			}
			received = true
			if !e.queue.Enqueue(Event{
				Type:     EventTypeSnapshot,
				Snapshot: &snapshotEvent{gen: gen, userKey: userKey, snap: snap},
			}) {
				return received
			}
		}
	}
}
