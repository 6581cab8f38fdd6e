package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cardfs/internal/tree"
)

// ClipOp is the pending clipboard operation.
type ClipOp string

const (
	ClipCopy ClipOp = "copy"
	ClipCut  ClipOp = "cut"
)

// ParseClipOp converts a string to a ClipOp.
func ParseClipOp(s string) (ClipOp, error) {
	switch ClipOp(s) {
	case ClipCopy, ClipCut:
		return ClipOp(s), nil
	}
	return "", fmt.Errorf("unknown clipboard operation %q", s)
}

// CopySuffix is appended to a clone pasted into the folder it came from.
const CopySuffix = " (Copy)"

// Clipboard is the process-local copy/cut selection. It is never persisted.
type Clipboard struct {
	Op  ClipOp
	IDs []string
}

// Empty reports whether nothing is on the clipboard.
func (c Clipboard) Empty() bool {
	return len(c.IDs) == 0
}

func (c Clipboard) clone() Clipboard {
	if c.IDs == nil {
		return Clipboard{Op: c.Op}
	}
	return Clipboard{Op: c.Op, IDs: append([]string(nil), c.IDs...)}
}

// Clipboard returns the current clipboard.
func (e *Engine) Clipboard() Clipboard {
	return e.view.Load().Clipboard
}

// CopyToClipboard replaces the clipboard with ids. Nothing is copied until
// paste.
func (e *Engine) CopyToClipboard(ctx context.Context, ids []string, op ClipOp) error {
	if _, err := ParseClipOp(string(op)); err != nil {
		return err
	}
	_, err := submit(ctx, e, "clipboard", func(context.Context) struct{} {
		e.clipboard = Clipboard{Op: op, IDs: append([]string(nil), ids...)}
		e.publish()
		return struct{}{}
	})
	return err
}

// PasteFromClipboard pastes into target and returns the ids of the
// top-level nodes that were placed there.
//
// A cut is a move followed by clearing the clipboard. A copy deep-clones
// every clipboard node with fresh ids and timestamps and keeps the
// clipboard, so it can be pasted again. A clone landing in the folder its
// original lives in gets CopySuffix. An empty clipboard is a no-op.
func (e *Engine) PasteFromClipboard(ctx context.Context, target string) ([]string, error) {
	type result struct {
		ids []string
		err error
	}
	r, err := submit(ctx, e, "paste", func(ctx context.Context) result {
		ids, err := e.paste(ctx, target)
		return result{ids, err}
	})
	if err != nil {
		return nil, err
	}
	return r.ids, r.err
}

func (e *Engine) paste(ctx context.Context, target string) ([]string, error) {
	if e.clipboard.Empty() {
		return nil, nil
	}
	dest, ok := e.tree.Get(target)
	if !ok || !dest.IsFolder() {
		e.reject("paste", target, "target is not a folder")
		return nil, &OpError{Op: "paste", ID: target, Err: ErrInvalidParent}
	}

	if e.clipboard.Op == ClipCut {
		b := e.tree.Edit()
		moved := e.moveInto(b, e.clipboard.IDs, target)
		e.clipboard = Clipboard{}
		if !e.commit(ctx, "paste", b.Build()) {
			// The clipboard still changed.
			e.publish()
		}
		return moved, nil
	}

	src := e.tree
	b := src.Edit()
	now := e.now()
	var pasted []string
	for _, id := range e.clipboard.IDs {
		if id == tree.RootID || !src.Has(id) {
			continue
		}
		pasted = append(pasted, e.cloneInto(src, b, id, target, now))
	}
	e.commit(ctx, "paste", b.Build())
	return pasted, nil
}

// cloneInto stages a copy of id and its subtree, as found in src, under
// parent. It returns the id of the new top-level clone. Reading from src
// keeps a folder pasted into its own subtree from copying its copies.
func (e *Engine) cloneInto(src *tree.Tree, b *tree.Builder, id, parent string, now time.Time) string {
	orig, _ := src.Get(id)

	clone := orig
	clone.ID = e.ids.Generate()
	clone.ParentID = parent
	clone.CreatedAt = now
	clone.ModifiedAt = now
	if parent == orig.ParentID {
		clone.Name = orig.Name + CopySuffix
	}
	if c, ok := orig.Content(); ok {
		clone = clone.WithContent(c)
	}
	b.Put(clone)

	for _, child := range src.ChildIDs(id) {
		e.cloneInto(src, b, child, clone.ID, now)
	}
	return clone.ID
}
