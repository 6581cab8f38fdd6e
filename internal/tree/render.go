package tree

import (
	"fmt"
	"io"
	"strings"
)

// RenderOptions controls Render output.
type RenderOptions struct {
	IDs bool // append each node's id
}

// Render writes an indented outline of the subtree rooted at id. Folders
// end in "/"; sets show their card count when they have content.
func Render(w io.Writer, t *Tree, id string, opts RenderOptions) error {
	n, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("render: unknown node %q", id)
	}
	return render(w, t, n, 0, opts)
}

func render(w io.Writer, t *Tree, n Node, depth int, opts RenderOptions) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Name)
	if n.IsFolder() {
		b.WriteString("/")
	} else if c, ok := n.Content(); ok {
		if count := countLines(c.Text); count == 1 {
			b.WriteString(" [1 card]")
		} else {
			fmt.Fprintf(&b, " [%d cards]", count)
		}
	}
	if n.Permission != PermissionPrivate {
		fmt.Fprintf(&b, " (%s)", n.Permission)
	}
	if opts.IDs {
		fmt.Fprintf(&b, "  %s", n.ID)
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	for _, child := range t.Children(n.ID) {
		if err := render(w, t, child, depth+1, opts); err != nil {
			return err
		}
	}
	return nil
}

func countLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
