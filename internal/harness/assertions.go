package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/cardfs/internal/tree"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == "invocation" {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, event.Action, event.Args)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	}

	if result.Tree == nil {
		return &AssertionError{Type: a.Type, Expected: "a final tree", Actual: errNoTree.Error()}
	}
	t := result.Tree
	switch a.Type {
	case AssertNode:
		return assertNode(t, a)
	case AssertChildren:
		return assertChildren(t, a)
	case AssertMissing:
		return assertMissing(t, a)
	case AssertTreeSize:
		if t.Len() != a.Count {
			return &AssertionError{
				Type:     AssertTreeSize,
				Expected: fmt.Sprintf("%d nodes", a.Count),
				Actual:   fmt.Sprintf("%d nodes", t.Len()),
			}
		}
		return nil
	case AssertAcyclic:
		return assertAcyclic(t)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == a.Action && matchArgs(event.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", a.Action, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that actions first appear in the given order.
// Other actions may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != "invocation" {
			continue
		}
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s invoked %d times", a.Action, a.Count),
			Actual:   fmt.Sprintf("invoked %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertNode(t *tree.Tree, a Assertion) error {
	n, ok := t.Get(a.ID)
	if !ok {
		return &AssertionError{Type: AssertNode, Expected: fmt.Sprintf("node %s exists", a.ID), Actual: "not found"}
	}

	fields := map[string]string{
		"name":       n.Name,
		"parent":     n.ParentID,
		"kind":       string(n.Kind()),
		"permission": string(n.Permission),
	}
	if c, ok := n.Content(); ok {
		fields["text"] = c.Text
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		want := fmt.Sprint(a.Expect[k])
		got, known := fields[k]
		if !known && k != "text" {
			return fmt.Errorf("node assertion: unknown field %q", k)
		}
		if got != want {
			return &AssertionError{
				Type:     AssertNode,
				Expected: fmt.Sprintf("%s.%s = %q", a.ID, k, want),
				Actual:   fmt.Sprintf("%q", got),
			}
		}
	}
	return nil
}

func assertChildren(t *tree.Tree, a Assertion) error {
	got := []string{}
	for _, n := range t.Children(a.ID) {
		got = append(got, n.Name)
	}
	want := a.Names
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertChildren,
			Expected: fmt.Sprintf("children of %s: %q", a.ID, want),
			Actual:   fmt.Sprintf("%q", got),
		}
	}
	return nil
}

func assertMissing(t *tree.Tree, a Assertion) error {
	var present []string
	for _, id := range a.IDs {
		if t.Has(id) {
			present = append(present, id)
		}
	}
	if len(present) > 0 {
		return &AssertionError{
			Type:     AssertMissing,
			Expected: fmt.Sprintf("%v absent", a.IDs),
			Actual:   fmt.Sprintf("%v present", present),
		}
	}
	return nil
}

// assertAcyclic walks every parent chain and expects to reach the root
// within Len steps.
func assertAcyclic(t *tree.Tree) error {
	for _, n := range t.Nodes() {
		cur, steps := n, 0
		for !cur.IsRoot() {
			parent, ok := t.Get(cur.ParentID)
			if !ok || steps > t.Len() {
				return &AssertionError{
					Type:     AssertAcyclic,
					Expected: fmt.Sprintf("%s reaches the root", n.ID),
					Actual:   fmt.Sprintf("chain breaks at %s", cur.ID),
				}
			}
			cur = parent
			steps++
		}
	}
	return nil
}

// matchArgs reports whether expected is a subset of actual.
func matchArgs(actual, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares YAML-decoded values, treating lists of strings and
// lists of any alike.
func valuesEqual(got, want any) bool {
	return reflect.DeepEqual(normalize(got), normalize(want))
}

func normalize(v any) any {
	switch x := v.(type) {
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case nil:
		return nil
	}
	return v
}
