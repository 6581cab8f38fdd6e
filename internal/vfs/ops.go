package vfs

import (
	"context"

	"github.com/roach88/cardfs/internal/metrics"
	"github.com/roach88/cardfs/internal/tree"
)

// CreateItem inserts a new folder or set under parentID and returns its id.
//
// The parent must be an existing folder, otherwise an *OpError wrapping
// ErrInvalidParent is returned and the tree is left unchanged. content must
// be nil for folders; for sets it may be nil until the first save.
func (e *Engine) CreateItem(ctx context.Context, kind tree.Kind, name, parentID string, content *tree.Content) (string, error) {
	type result struct {
		id  string
		err error
	}
	r, err := submit(ctx, e, "create", func(ctx context.Context) result {
		id, err := e.createItem(ctx, kind, name, parentID, content)
		return result{id, err}
	})
	if err != nil {
		return "", err
	}
	return r.id, r.err
}

func (e *Engine) createItem(ctx context.Context, kind tree.Kind, name, parentID string, content *tree.Content) (string, error) {
	parent, ok := e.tree.Get(parentID)
	if !ok || !parent.IsFolder() {
		e.reject("create", parentID, "parent is not a folder")
		return "", &OpError{Op: "create", ID: parentID, Err: ErrInvalidParent}
	}

	id := e.ids.Generate()
	var n tree.Node
	switch kind {
	case tree.KindFolder:
		if content != nil {
			e.reject("create", parentID, "content on folder")
			return "", &OpError{Op: "create", ID: parentID, Err: ErrContentOnFolder}
		}
		n = tree.NewFolder(id, name, parentID, e.now())
	case tree.KindSet:
		n = tree.NewSet(id, name, parentID, content, e.now())
	default:
		e.reject("create", parentID, "unknown kind")
		return "", &OpError{Op: "create", ID: parentID, Err: ErrInvalidKind}
	}

	b := e.tree.Edit()
	b.Put(n)
	e.commit(ctx, "create", b.Build())
	return id, nil
}

// RenameItem sets the name of id. Unknown ids and blank names are ignored;
// the result reports whether the tree changed.
func (e *Engine) RenameItem(ctx context.Context, id, name string) (bool, error) {
	return submit(ctx, e, "rename", func(ctx context.Context) bool {
		n, ok := e.tree.Get(id)
		if !ok || tree.IsBlankName(name) {
			e.reject("rename", id, "unknown id or blank name")
			return false
		}
		n.Name = tree.NormalizeName(name)
		n.ModifiedAt = e.now()

		b := e.tree.Edit()
		b.Put(n)
		return e.commit(ctx, "rename", b.Build())
	})
}

// DeleteItems removes ids and every node below them in one update.
// The root and unknown ids are ignored. Returns the removed ids.
func (e *Engine) DeleteItems(ctx context.Context, ids []string) ([]string, error) {
	return submit(ctx, e, "delete", func(ctx context.Context) []string {
		b := e.tree.Edit()
		removed := deleteInto(e.tree, b, ids)
		if len(removed) == 0 {
			e.reject("delete", "", "nothing to delete")
			return nil
		}
		e.commit(ctx, "delete", b.Build())
		return removed
	})
}

// deleteInto stages the removal of ids and their descendants, read from t.
func deleteInto(t *tree.Tree, b *tree.Builder, ids []string) []string {
	var removed []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if id == tree.RootID || !t.Has(id) || seen[id] {
			continue
		}
		closure := append([]string{id}, t.Descendants(id)...)
		for _, victim := range closure {
			if seen[victim] {
				continue
			}
			seen[victim] = true
			b.Remove(victim)
			removed = append(removed, victim)
		}
	}
	return removed
}

// MoveItems re-parents each id under target. Items are skipped
// individually: the root, the target itself, unknown ids, and any id that
// is an ancestor of target. Returns the moved ids.
func (e *Engine) MoveItems(ctx context.Context, ids []string, target string) ([]string, error) {
	return submit(ctx, e, "move", func(ctx context.Context) []string {
		b := e.tree.Edit()
		moved := e.moveInto(b, ids, target)
		if len(moved) == 0 {
			return nil
		}
		e.commit(ctx, "move", b.Build())
		return moved
	})
}

// moveInto stages the move against the current tree. Every item shares one
// target, so checking ancestry on the pre-move snapshot is sufficient: a
// move that is valid there stays valid after the other items moved.
func (e *Engine) moveInto(b *tree.Builder, ids []string, target string) []string {
	dest, ok := e.tree.Get(target)
	if !ok || !dest.IsFolder() {
		e.reject("move", target, "target is not a folder")
		return nil
	}

	now := e.now()
	var moved []string
	for _, id := range ids {
		n, ok := b.Get(id)
		switch {
		case !ok:
			e.reject("move", id, "unknown id")
			continue
		case n.IsRoot():
			e.reject("move", id, "root cannot move")
			continue
		case id == target:
			e.reject("move", id, "cannot move into itself")
			continue
		case e.tree.IsAncestor(id, target):
			e.reject("move", id, "target is inside the item")
			continue
		case n.ParentID == target:
			// Already there.
			continue
		}
		n.ParentID = target
		n.ModifiedAt = now
		b.Put(n)
		moved = append(moved, id)
	}
	return moved
}

// UpdateSetContent replaces the content of a set. Folders and unknown ids
// are ignored.
func (e *Engine) UpdateSetContent(ctx context.Context, id string, content tree.Content) (bool, error) {
	return submit(ctx, e, "set_content", func(ctx context.Context) bool {
		n, ok := e.tree.Get(id)
		if !ok || n.Kind() != tree.KindSet {
			e.reject("set_content", id, "not a set")
			return false
		}
		n = n.WithContent(content)
		n.ModifiedAt = e.now()

		b := e.tree.Edit()
		b.Put(n)
		return e.commit(ctx, "set_content", b.Build())
	})
}

// UpdatePermissions sets the sharing permission of id. No ownership check
// is made. An unknown permission value is an *OpError.
func (e *Engine) UpdatePermissions(ctx context.Context, id string, perm tree.Permission) (bool, error) {
	if !perm.Valid() {
		return false, &OpError{Op: "permission", ID: id, Err: ErrInvalidPermission}
	}
	return submit(ctx, e, "permission", func(ctx context.Context) bool {
		n, ok := e.tree.Get(id)
		if !ok {
			e.reject("permission", id, "unknown id")
			return false
		}
		n.Permission = perm
		n.ModifiedAt = e.now()

		b := e.tree.Edit()
		b.Put(n)
		return e.commit(ctx, "permission", b.Build())
	})
}

// commit installs next as the current tree, publishes it and persists it.
// Returns false when next is the current tree, i.e. nothing changed.
// Called only from Run.
func (e *Engine) commit(ctx context.Context, op string, next *tree.Tree) bool {
	if next == e.tree {
		metrics.RecordMutation(op, false)
		return false
	}
	e.tree = next
	metrics.RecordMutation(op, true)
	e.publish()
	e.persist(ctx)
	return true
}

func (e *Engine) reject(op, id, reason string) {
	metrics.RecordMutation(op, false)
	e.logger.Debug("operation rejected", "op", op, "id", id, "reason", reason)
}
