// Package harness runs YAML scenarios against a VFS engine.
//
// # Scenario Format
//
//	name: walkthrough
//	description: "What this scenario validates"
//	ids: [f1, s1]
//	setup:
//	  - invoke: create
//	    args: { kind: folder, name: A, parent: root }
//	flow:
//	  - invoke: create
//	    args: { kind: set, name: S, parent: f1 }
//	    expect:
//	      case: Success
//	      result: { id: s1 }
//	assertions:
//	  - type: children
//	    id: f1
//	    names: [S]
//
// Actions are create, rename, move, delete, copy, cut, paste, set_content
// and permission. Each completion has the case Success (the tree changed),
// Unchanged (accepted, nothing to do) or Rejected (the engine returned an
// operation error).
//
// # Assertion Types
//
//   - trace_contains: an invocation of action with matching args
//   - trace_order: actions first appear in the given order
//   - trace_count: action invoked exactly count times
//   - node: a node exists and its fields match expect
//   - children: the ordered child names of id
//   - missing: none of ids exist
//   - tree_size: the tree holds exactly count nodes
//   - acyclic: every node reaches the root
//
// # Deterministic Testing
//
// Every scenario gets a fresh engine with an in-memory cache, the
// scenario's fixed ids and a stepping wall clock, so the trace and final
// tree are identical across runs and can be compared against golden files.
package harness
