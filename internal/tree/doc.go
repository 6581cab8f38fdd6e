// Package tree provides the immutable folder/set hierarchy shared by the
// VFS engine and its consumers.
//
// A Tree is a snapshot: every mutation goes through a Builder and produces a
// new Tree, so readers on any goroutine can hold a *Tree without locking.
//
// Key invariants:
//   - exactly one root (id "root", name "Main"), a folder with no parent
//   - every non-root node's parent is an existing folder
//   - parentage is acyclic
//   - a folder never carries set content (see Body)
//
// This package imports nothing internal.
package tree
