package tree

import (
	"sort"
)

// Tree is an immutable snapshot of one user's hierarchy.
//
// The parent → children index is built once per snapshot so descendant walks
// never rescan the whole node table.
type Tree struct {
	nodes    map[string]Node
	children map[string][]string // parent id → child ids, ordered by name then id
}

// Default returns the single-root tree used for new users and as the
// fallback for unreadable data.
func Default() *Tree {
	root := NewRoot()
	return build(map[string]Node{root.ID: root})
}

func build(nodes map[string]Node) *Tree {
	children := make(map[string][]string)
	for id, n := range nodes {
		if id == RootID {
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], id)
	}
	for parent, ids := range children {
		sort.Slice(ids, func(i, j int) bool {
			a, b := nodes[ids[i]], nodes[ids[j]]
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		})
		children[parent] = ids
	}
	return &Tree{nodes: nodes, children: children}
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns the node with the given id.
func (t *Tree) Get(id string) (Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Has reports whether id exists.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Root returns the root folder.
func (t *Tree) Root() Node { return t.nodes[RootID] }

// Children returns the direct children of id, ordered by name then id.
// Unknown ids yield an empty slice.
func (t *Tree) Children(id string) []Node {
	ids := t.children[id]
	out := make([]Node, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.nodes[cid])
	}
	return out
}

// ChildIDs returns the ids of the direct children of id.
func (t *Tree) ChildIDs(id string) []string {
	ids := t.children[id]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Descendants returns every node reachable below id, breadth first.
// id itself is not included.
func (t *Tree) Descendants(id string) []string {
	var out []string
	queue := append([]string(nil), t.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, t.children[next]...)
	}
	return out
}

// IsAncestor reports whether ancestor appears on the parent chain of id.
// A node is not its own ancestor.
func (t *Tree) IsAncestor(ancestor, id string) bool {
	n, ok := t.nodes[id]
	// The walk is bounded by the node count so a corrupt chain cannot spin.
	for steps := 0; ok && n.ParentID != "" && steps <= len(t.nodes); steps++ {
		if n.ParentID == ancestor {
			return true
		}
		n, ok = t.nodes[n.ParentID]
	}
	return false
}

// Path returns the names from the root down to id, inclusive.
func (t *Tree) Path(id string) []string {
	var names []string
	n, ok := t.nodes[id]
	for steps := 0; ok && steps <= len(t.nodes); steps++ {
		names = append(names, n.Name)
		if n.ParentID == "" {
			break
		}
		n, ok = t.nodes[n.ParentID]
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// Nodes returns all nodes ordered by id.
func (t *Tree) Nodes() []Node {
	out := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Equal reports whether both trees hold the same nodes with the same
// attributes.
func (t *Tree) Equal(o *Tree) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || len(t.nodes) != len(o.nodes) {
		return false
	}
	for id, a := range t.nodes {
		b, ok := o.nodes[id]
		if !ok || !nodesEqual(a, b) {
			return false
		}
	}
	return true
}

func nodesEqual(a, b Node) bool {
	if a.ID != b.ID || a.Name != b.Name || a.ParentID != b.ParentID ||
		a.Permission != b.Permission || a.Kind() != b.Kind() {
		return false
	}
	if !a.CreatedAt.Equal(b.CreatedAt) || !a.ModifiedAt.Equal(b.ModifiedAt) {
		return false
	}
	ac, aok := a.Content()
	bc, bok := b.Content()
	return aok == bok && ac == bc
}

// Edit starts a copy-on-write edit of t.
func (t *Tree) Edit() *Builder {
	nodes := make(map[string]Node, len(t.nodes))
	for id, n := range t.nodes {
		nodes[id] = n
	}
	return &Builder{base: t, nodes: nodes}
}

// Builder accumulates changes against a base tree. It does not enforce
// invariants; callers validate against the base snapshot before writing.
type Builder struct {
	base  *Tree
	nodes map[string]Node
	dirty bool
}

// Get returns the node as currently staged.
func (b *Builder) Get(id string) (Node, bool) {
	n, ok := b.nodes[id]
	return n, ok
}

// Put stages n, replacing any node with the same id.
func (b *Builder) Put(n Node) {
	b.nodes[n.ID] = n
	b.dirty = true
}

// Remove stages the removal of id.
func (b *Builder) Remove(id string) {
	if _, ok := b.nodes[id]; ok {
		delete(b.nodes, id)
		b.dirty = true
	}
}

// Build returns the resulting snapshot. Without staged changes the base
// tree itself is returned.
func (b *Builder) Build() *Tree {
	if !b.dirty {
		return b.base
	}
	return build(b.nodes)
}
