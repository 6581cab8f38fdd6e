package vfs

import "sync"

// watchers fans published Views out to Watch subscribers. Each subscriber
// has a one-slot buffer holding the newest View it has not read yet.
type watchers struct {
	mu     sync.Mutex
	subs   map[chan View]struct{}
	closed bool
}

func newWatchers() *watchers {
	return &watchers{subs: make(map[chan View]struct{})}
}

func (w *watchers) add(initial View) chan View {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan View, 1)
	if w.closed {
		close(ch)
		return ch
	}
	ch <- initial
	w.subs[ch] = struct{}{}
	return ch
}

func (w *watchers) remove(ch chan View) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.subs[ch]; ok {
		delete(w.subs, ch)
		close(ch)
	}
}

// publish never blocks the loop: a stale unread View is replaced.
func (w *watchers) publish(v View) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	for ch := range w.subs {
		delete(w.subs, ch)
		close(ch)
	}
}
