// Package editor saves authored set text back into the file system.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/roach88/cardfs/internal/cards"
	"github.com/roach88/cardfs/internal/tree"
)

// DefaultMaxCards is the mass-create chunk size when none is given.
const DefaultMaxCards = 30

// FallbackName names split-off sets when the source set has vanished.
const FallbackName = "New Set"

// Engine is the part of the VFS engine the editor writes through.
type Engine interface {
	Get(id string) (tree.Node, bool)
	UpdateSetContent(ctx context.Context, id string, content tree.Content) (bool, error)
	CreateItem(ctx context.Context, kind tree.Kind, name, parentID string, content *tree.Content) (string, error)
}

// Draft is the editor state being saved.
type Draft struct {
	Text       string
	Languages  tree.Languages
	MassCreate bool
	MaxCards   int
}

// Validate checks the mass-create settings.
func (d Draft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.MaxCards, validation.When(d.MassCreate, validation.Required, validation.Min(1))),
	)
}

// Result reports what a save changed.
type Result struct {
	// Updated is false when the set did not change or no longer exists.
	Updated bool
	// Created lists the sets split off by mass-create, in order.
	Created []string
}

// Save writes the draft into set id. With mass-create on and more card
// lines than MaxCards, the set keeps the first MaxCards lines and each
// further chunk becomes a new set "<name> N" (N from 2) beside it.
//
// The set's name and parent are read from the engine when Save is called.
func Save(ctx context.Context, eng Engine, id string, d Draft, logger *slog.Logger) (Result, error) {
	if d.MassCreate && d.MaxCards == 0 {
		d.MaxCards = DefaultMaxCards
	}
	if err := d.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid draft: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	langs := d.Languages.WithDefaults()

	entries := cards.Entries(d.Text, "\n")
	if !d.MassCreate || len(entries) <= d.MaxCards {
		updated, err := eng.UpdateSetContent(ctx, id, tree.Content{Text: d.Text, Languages: langs})
		return Result{Updated: updated}, err
	}

	chunks := cards.Chunk(entries, d.MaxCards)
	var res Result
	updated, err := eng.UpdateSetContent(ctx, id, tree.Content{Text: strings.Join(chunks[0], "\n"), Languages: langs})
	if err != nil {
		return res, err
	}
	res.Updated = updated

	parent, base := tree.RootID, FallbackName
	if n, ok := eng.Get(id); ok {
		parent, base = n.ParentID, n.Name
	}
	for i, chunk := range chunks[1:] {
		content := tree.Content{Text: strings.Join(chunk, "\n"), Languages: langs}
		newID, err := eng.CreateItem(ctx, tree.KindSet, fmt.Sprintf("%s %d", base, i+2), parent, &content)
		if err != nil {
			return res, fmt.Errorf("create chunk %d: %w", i+2, err)
		}
		res.Created = append(res.Created, newID)
	}

	logger.Info("mass create",
		"component", "editor",
		"set", id,
		"cards", len(entries),
		"sets_created", len(res.Created),
	)
	return res, nil
}
