package vfs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cardfs/internal/metrics"
	"github.com/roach88/cardfs/internal/remote"
	"github.com/roach88/cardfs/internal/tree"
)

// Cache is the durable local store the engine hydrates from and writes
// through to. Implemented by cache.Store and cache.Memory.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// DefaultDrainTimeout bounds how long Run waits for queued pushes after the
// loop stops.
const DefaultDrainTimeout = 5 * time.Second

// View is an immutable snapshot of engine state handed to readers.
type View struct {
	Tree      *tree.Tree
	Seq       int64
	UserKey   string
	State     State
	Clipboard Clipboard
}

// Engine owns one user session's tree.
//
// All mutations happen in the single-writer Run loop goroutine. Operations
// called from any goroutine are enqueued and block until the loop has
// applied them; readers use Tree/View, which return the last published
// immutable snapshot without touching the loop.
//
// Thread-safety model:
//   - operations, Tree(), View(), Watch(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine, once
type Engine struct {
	cache   Cache
	remote  remote.Channel
	ids     IDGenerator
	wall    WallClock
	clock   *Clock
	backoff remote.Backoff
	drain   time.Duration
	logger  *slog.Logger

	queue    *eventQueue
	watchers *watchers
	pusher   *pusher
	view     atomic.Pointer[View]
	started  atomic.Bool
	done     chan struct{}
	subs     sync.WaitGroup

	// Loop-owned state. Only touched from Run.
	tree      *tree.Tree
	clipboard Clipboard
	sess      session
}

// Option configures an Engine.
type Option func(*Engine)

// WithRemote enables remote sync through ch.
func WithRemote(ch remote.Channel) Option {
	return func(e *Engine) { e.remote = ch }
}

// WithIdentity sets the user key the engine hydrates for when Run starts.
// The default is the anonymous, local-only session.
func WithIdentity(userKey string) Option {
	return func(e *Engine) { e.sess.userKey = userKey }
}

// WithIDGenerator overrides node id generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithWallClock overrides the timestamp source.
func WithWallClock(c WallClock) Option {
	return func(e *Engine) { e.wall = c }
}

// WithBackoff overrides the resubscribe backoff.
func WithBackoff(b remote.Backoff) Option {
	return func(e *Engine) { e.backoff = b }
}

// WithDrainTimeout bounds how long Run waits for pending pushes on exit.
func WithDrainTimeout(d time.Duration) Option {
	return func(e *Engine) { e.drain = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over c. It holds the default single-root tree
// until Run hydrates it from the cache.
func New(c Cache, opts ...Option) *Engine {
	e := &Engine{
		cache:   c,
		ids:     UUIDv7Generator{},
		wall:    SystemClock{},
		clock:   NewClock(),
		backoff: remote.DefaultBackoff(),
		drain:   DefaultDrainTimeout,
		queue:   newEventQueue(),
		done:    make(chan struct{}),
		tree:    tree.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "vfs")
	e.watchers = newWatchers()
	e.pusher = newPusher(e.remote, e.logger)
	e.sess.state = StateLocalOnly

	e.view.Store(&View{Tree: e.tree, UserKey: e.sess.userKey, State: e.sess.state})
	return e
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop is called.
//
// On start the session for the configured identity is hydrated from the
// cache and, when signed in, a remote subscription is opened.
//
// ERROR HANDLING: cache and remote failures are logged and counted; the
// in-memory tree stays authoritative and the loop keeps going.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)

	e.logger.Info("engine starting", "user", e.sess.userKey)
	e.pusher.start()
	defer e.shutdown()

	e.activate(ctx, e.sess.userKey)

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			e.processEvent(ctx, event)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which makes this case fire immediately.
			if e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which will cause Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) shutdown() {
	e.queue.Close()
	if e.sess.cancel != nil {
		e.sess.cancel()
		e.sess.cancel = nil
	}
	e.subs.Wait()
	e.pusher.stop(e.drain)
	e.watchers.closeAll()
}

// processEvent routes an event to the appropriate handler.
// Called only from Run.
func (e *Engine) processEvent(ctx context.Context, event Event) {
	switch event.Type {
	case EventTypeCommand:
		if event.Command != nil {
			event.Command.run(ctx)
		}
	case EventTypeSnapshot:
		if event.Snapshot != nil {
			e.applySnapshot(ctx, event.Snapshot)
		}
	default:
		e.logger.Error("unknown event type", "type", event.Type)
	}
}

// submit runs fn on the loop and waits for its result.
//
// A command whose caller gives up (ctx done) is still applied when the loop
// reaches it; only the reply is discarded.
func submit[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context) T) (T, error) {
	var zero T
	reply := make(chan T, 1)

	ok := e.queue.Enqueue(Event{
		Type: EventTypeCommand,
		Command: &command{
			op:  op,
			run: func(loopCtx context.Context) { reply <- fn(loopCtx) },
		},
	})
	if !ok {
		return zero, ErrStopped
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-e.done:
		// The loop may have applied the command just before exiting.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	}
}

// Tree returns the current tree snapshot.
func (e *Engine) Tree() *tree.Tree {
	return e.view.Load().Tree
}

// View returns the current published state.
func (e *Engine) View() View {
	return *e.view.Load()
}

// Children returns the nodes whose parent is folderID, ordered by name then
// id. Unknown ids yield an empty slice.
func (e *Engine) Children(folderID string) []tree.Node {
	return e.Tree().Children(folderID)
}

// Get returns a node from the current snapshot.
func (e *Engine) Get(id string) (tree.Node, bool) {
	return e.Tree().Get(id)
}

// Watch delivers every published View until ctx is done. The current View
// is delivered first. Delivery is latest-wins: a slow reader skips to the
// newest View rather than queueing.
func (e *Engine) Watch(ctx context.Context) <-chan View {
	ch := e.watchers.add(e.View())
	go func() {
		select {
		case <-ctx.Done():
		case <-e.done:
		}
		e.watchers.remove(ch)
	}()
	return ch
}

// Flush waits until every operation submitted before the call has been
// applied and its remote push has completed.
func (e *Engine) Flush(ctx context.Context) error {
	if _, err := submit(ctx, e, "flush", func(context.Context) struct{} { return struct{}{} }); err != nil {
		return err
	}
	return e.pusher.flush(ctx)
}

// publish stamps and stores a new View and fans it out.
// Called only from Run.
func (e *Engine) publish() {
	v := &View{
		Tree:      e.tree,
		Seq:       e.clock.Next(),
		UserKey:   e.sess.userKey,
		State:     e.sess.state,
		Clipboard: e.clipboard.clone(),
	}
	e.view.Store(v)
	metrics.SetTreeNodes(e.tree.Len())
	e.watchers.publish(*v)
}

func (e *Engine) now() time.Time {
	return tree.Stamp(e.wall.Now())
}
