// Package asset uploads images attached to flashcard sets and returns the
// URL they are served from.
package asset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

// MaxSize bounds an upload.
const MaxSize = 10 << 20

var (
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = errors.New("asset is empty")
	// ErrTooLarge is returned for uploads over MaxSize.
	ErrTooLarge = errors.New("asset too large")
	// ErrNoUser is returned when no user key is given.
	ErrNoUser = errors.New("asset upload needs a user key")
)

// Store persists asset bytes.
type Store interface {
	// Put stores data for userKey and returns its retrieval URL.
	Put(ctx context.Context, userKey, filename string, data []byte) (string, error)
}

// ObjectKey returns users/<userKey>/images/<unixMillis>_<filename>.
// Directory parts of filename are dropped.
func ObjectKey(userKey, filename string, at time.Time) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = "image"
	}
	return fmt.Sprintf("users/%s/images/%d_%s", userKey, at.UnixMilli(), base)
}

// ContentType sniffs the MIME type of data.
func ContentType(data []byte) string {
	return http.DetectContentType(data)
}

func check(userKey string, data []byte) error {
	switch {
	case userKey == "":
		return ErrNoUser
	case len(data) == 0:
		return ErrEmpty
	case len(data) > MaxSize:
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	return nil
}

// Memory keeps assets in a map. URLs use the mem:// scheme.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte), now: time.Now}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, userKey, filename string, data []byte) (string, error) {
	if err := check(userKey, data); err != nil {
		return "", err
	}
	key := ObjectKey(userKey, filename, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}
