// Package memdoc is an in-process remote document service. It behaves like
// the hosted document store the engine syncs against: whole-document
// snapshots, an initial snapshot on subscribe, and not-found on replacing a
// missing document.
package memdoc

import (
	"context"
	"sync"

	"github.com/roach88/cardfs/internal/remote"
)

// Write records one Replace or Create that reached the service.
type Write struct {
	UserKey string
	Op      string // "replace" or "create"
	Data    []byte
}

// Service is a remote.Channel backed by a map.
type Service struct {
	mu   sync.Mutex
	docs map[string][]byte
	subs map[string]map[chan remote.Snapshot]struct{}

	writes    []Write
	failErr   error
	failCount int
	subErr    error
}

var _ remote.Channel = (*Service)(nil)

// New returns an empty service.
func New() *Service {
	return &Service{
		docs: make(map[string][]byte),
		subs: make(map[string]map[chan remote.Snapshot]struct{}),
	}
}

// Subscribe implements remote.Channel. The current snapshot is delivered
// immediately. Delivery is latest-wins: a slow reader sees the newest
// document, never a backlog.
func (s *Service) Subscribe(ctx context.Context, userKey string) (<-chan remote.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subErr != nil {
		return nil, s.subErr
	}

	ch := make(chan remote.Snapshot, 1)
	if s.subs[userKey] == nil {
		s.subs[userKey] = make(map[chan remote.Snapshot]struct{})
	}
	s.subs[userKey][ch] = struct{}{}
	deliver(ch, s.snapshotLocked(userKey))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[userKey][ch]; ok {
			delete(s.subs[userKey], ch)
			close(ch)
		}
	}()

	return ch, nil
}

// Replace implements remote.Channel.
func (s *Service) Replace(_ context.Context, userKey string, fileSystem []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failLocked(); err != nil {
		return err
	}
	if _, ok := s.docs[userKey]; !ok {
		return remote.ErrNotFound
	}
	s.writeLocked(userKey, "replace", fileSystem)
	return nil
}

// Create implements remote.Channel.
func (s *Service) Create(_ context.Context, userKey string, fileSystem []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failLocked(); err != nil {
		return err
	}
	s.writeLocked(userKey, "create", fileSystem)
	return nil
}

// Put stores a document as if another client had written it. It is not
// recorded in Writes.
func (s *Service) Put(userKey string, fileSystem []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userKey] = append([]byte(nil), fileSystem...)
	s.publishLocked(userKey)
}

// Remove deletes a user's document and notifies subscribers.
func (s *Service) Remove(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, userKey)
	s.publishLocked(userKey)
}

// Document returns the stored fileSystem for userKey.
func (s *Service) Document(userKey string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userKey]
	return append([]byte(nil), doc...), ok
}

// Writes returns every write that reached the service, oldest first.
func (s *Service) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// Subscribers returns the number of open subscriptions for userKey.
func (s *Service) Subscribers(userKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[userKey])
}

// FailWrites makes the next n Replace/Create calls return err.
func (s *Service) FailWrites(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCount = n
	s.failErr = err
}

// FailSubscribe makes Subscribe return err until called again with nil.
func (s *Service) FailSubscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subErr = err
}

// Drop closes every open subscription for userKey, as a lost connection
// would.
func (s *Service) Drop(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[userKey] {
		delete(s.subs[userKey], ch)
		close(ch)
	}
}

func (s *Service) failLocked() error {
	if s.failCount > 0 {
		s.failCount--
		return s.failErr
	}
	return nil
}

func (s *Service) writeLocked(userKey, op string, fileSystem []byte) {
	data := append([]byte(nil), fileSystem...)
	s.docs[userKey] = data
	s.writes = append(s.writes, Write{UserKey: userKey, Op: op, Data: data})
	s.publishLocked(userKey)
}

func (s *Service) snapshotLocked(userKey string) remote.Snapshot {
	doc, ok := s.docs[userKey]
	if !ok {
		return remote.Snapshot{}
	}
	return remote.Snapshot{Exists: true, FileSystem: append([]byte(nil), doc...)}
}

func (s *Service) publishLocked(userKey string) {
	snap := s.snapshotLocked(userKey)
	for ch := range s.subs[userKey] {
		deliver(ch, snap)
	}
}

// deliver replaces any undelivered snapshot with snap. Callers hold s.mu,
// so there is exactly one sender per channel.
func deliver(ch chan remote.Snapshot, snap remote.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
