// Package surreal stores user documents in SurrealDB.
//
// Each user's document is the record users:<userKey> with a single field,
// fileSystem, holding the tree as a nested object. Subscriptions use a
// LIVE SELECT scoped to that record, so only the user's own changes are
// delivered.
package surreal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/roach88/cardfs/internal/remote"
)

const table = "users"

// Config holds connection settings.
type Config struct {
	Endpoint  string // e.g. ws://localhost:8000/rpc
	Namespace string
	Database  string
	Username  string
	Password  string

	// Connect bounds the connection attempts. Zero means three quick tries.
	Connect remote.Backoff
}

func (c Config) connectBackoff() remote.Backoff {
	if c.Connect.MaxAttempts > 0 {
		return c.Connect
	}
	b := remote.DefaultBackoff()
	b.MaxAttempts = 3
	b.MaxWait = 2 * time.Second
	return b
}

// Channel is a remote.Channel backed by SurrealDB.
type Channel struct {
	db     *surrealdb.DB
	logger *slog.Logger
}

var _ remote.Channel = (*Channel)(nil)

type document struct {
	ID         *models.RecordID `json:"id,omitempty"`
	FileSystem map[string]any   `json:"fileSystem"`
}

// Dial connects, signs in when credentials are set, and selects the
// namespace and database.
func Dial(ctx context.Context, cfg Config) (*Channel, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse surreal endpoint: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	var db *surrealdb.DB
	err = remote.Retry(ctx, cfg.connectBackoff(), func() error {
		var err error
		db, err = surrealdb.FromConnection(ctx, gorillaws.New(conf))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to surreal: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("sign in to surreal: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	return &Channel{
		db:     db,
		logger: slog.Default().With("component", "surreal"),
	}, nil
}

// Close closes the connection.
func (c *Channel) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

// Subscribe implements remote.Channel.
func (c *Channel) Subscribe(ctx context.Context, userKey string) (<-chan remote.Snapshot, error) {
	rid := models.NewRecordID(table, userKey)

	// Start the live query before reading so no write falls in between.
	res, err := surrealdb.Query[models.UUID](ctx, c.db,
		"LIVE SELECT * FROM users WHERE id = $id",
		map[string]any{"id": rid},
	)
	if err != nil {
		return nil, fmt.Errorf("live select %s: %w", remote.DocumentPath(userKey), err)
	}
	if res == nil || len(*res) == 0 {
		return nil, fmt.Errorf("live select %s: empty response", remote.DocumentPath(userKey))
	}
	liveID := (*res)[0].Result.String()

	notifications, err := c.db.LiveNotifications(liveID)
	if err != nil {
		return nil, fmt.Errorf("live notifications %s: %w", liveID, err)
	}

	initial, err := c.fetch(ctx, rid)
	if err != nil {
		c.kill(liveID)
		return nil, err
	}

	out := make(chan remote.Snapshot, 1)
	out <- initial

	go func() {
		defer close(out)
		defer c.kill(liveID)

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notifications:
				if !ok {
					c.logger.Warn("live query closed", "user", userKey, "live_id", liveID)
					return
				}
				snap, err := snapshotFromNotification(n)
				if err != nil {
					c.logger.Warn("skipping notification", "user", userKey, "action", n.Action, "error", err)
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Replace implements remote.Channel.
func (c *Channel) Replace(ctx context.Context, userKey string, fileSystem []byte) error {
	doc, err := newDocument(fileSystem)
	if err != nil {
		return err
	}

	rid := models.NewRecordID(table, userKey)
	updated, err := surrealdb.Update[document](ctx, c.db, rid, doc)
	if err != nil {
		return fmt.Errorf("update %s: %w", remote.DocumentPath(userKey), err)
	}
	// UPDATE on a missing record returns nothing; it does not create.
	if updated == nil || updated.ID == nil {
		return remote.ErrNotFound
	}
	return nil
}

// Create implements remote.Channel.
func (c *Channel) Create(ctx context.Context, userKey string, fileSystem []byte) error {
	doc, err := newDocument(fileSystem)
	if err != nil {
		return err
	}

	rid := models.NewRecordID(table, userKey)
	if _, err := surrealdb.Query[any](ctx, c.db,
		"UPSERT $id CONTENT $doc",
		map[string]any{"id": rid, "doc": doc},
	); err != nil {
		return fmt.Errorf("upsert %s: %w", remote.DocumentPath(userKey), err)
	}
	return nil
}

func (c *Channel) fetch(ctx context.Context, rid models.RecordID) (remote.Snapshot, error) {
	doc, err := surrealdb.Select[document](ctx, c.db, rid)
	if err != nil {
		return remote.Snapshot{}, fmt.Errorf("select %s: %w", rid.String(), err)
	}
	if doc == nil || doc.ID == nil {
		return remote.Snapshot{}, nil
	}
	return snapshotFromFields(doc.FileSystem)
}

func (c *Channel) kill(liveID string) {
	// The subscriber's context is usually done by now.
	if err := surrealdb.Kill(context.Background(), c.db, liveID); err != nil {
		c.logger.Debug("kill live query", "live_id", liveID, "error", err)
	}
}

func newDocument(fileSystem []byte) (document, error) {
	var fields map[string]any
	if err := json.Unmarshal(fileSystem, &fields); err != nil {
		return document{}, fmt.Errorf("fileSystem is not a JSON object: %w", err)
	}
	return document{FileSystem: fields}, nil
}

func snapshotFromNotification(n connection.Notification) (remote.Snapshot, error) {
	if n.Action == connection.DeleteAction {
		return remote.Snapshot{}, nil
	}
	record, ok := n.Result.(map[string]any)
	if !ok {
		return remote.Snapshot{}, fmt.Errorf("unexpected result type %T", n.Result)
	}
	fs, ok := record["fileSystem"]
	if !ok || fs == nil {
		return remote.Snapshot{}, errors.New("record has no fileSystem field")
	}
	return snapshotFromFields(fs)
}

// snapshotFromFields re-encodes the decoded CBOR object as JSON, the
// format the rest of the system speaks.
func snapshotFromFields(fields any) (remote.Snapshot, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return remote.Snapshot{}, fmt.Errorf("encode fileSystem: %w", err)
	}
	return remote.Snapshot{Exists: true, FileSystem: data}, nil
}
