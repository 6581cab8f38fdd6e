package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/cards"
	"github.com/roach88/cardfs/internal/tree"
	"github.com/roach88/cardfs/internal/vfs"
)

// itemView is the JSON form of a node.
type itemView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	ParentID   string    `json:"parent_id,omitempty"`
	Permission string    `json:"permission"`
	Cards      int       `json:"cards,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

func newItemView(n tree.Node) itemView {
	v := itemView{
		ID:         n.ID,
		Name:       n.Name,
		Kind:       string(n.Kind()),
		ParentID:   n.ParentID,
		Permission: string(n.Permission),
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
	}
	if c, ok := n.Content(); ok {
		v.Cards = len(cards.Entries(c.Text, "\n"))
	}
	return v
}

// engineError maps an engine error to an exit code. Rejections are
// failures; anything else is a command error.
func engineError(op string, err error) error {
	if vfs.IsRejected(err) {
		return WrapExitError(ExitFailure, op+" rejected", err)
	}
	return WrapExitError(ExitCommandError, op+" failed", err)
}

// idsResult prints ids one per line, or fails when there are none.
func idsResult(f *OutputFormatter, key string, ids []string, noneMsg string) error {
	if len(ids) == 0 {
		return NewExitError(ExitFailure, noneMsg)
	}
	return f.Result(map[string][]string{key: ids}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, strings.Join(ids, "\n"))
		return err
	})
}

// NewLsCommand creates the ls command.
func NewLsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List the items in a folder",
		Long: `List the direct children of a folder, root by default.

Example:
  cardfs ls
  cardfs ls --user alice 0190f5c2-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := tree.RootID
			if len(args) == 1 {
				folder = args[0]
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				n, ok := s.engine.Get(folder)
				if !ok || !n.IsFolder() {
					return NewExitError(ExitCommandError, fmt.Sprintf("unknown folder %q", folder))
				}

				children := s.engine.Children(folder)
				views := make([]itemView, len(children))
				for i, c := range children {
					views[i] = newItemView(c)
				}
				return formatter(cmd, opts).Result(views, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					for _, v := range views {
						name := v.Name
						if v.Kind == string(tree.KindFolder) {
							name += "/"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Kind, v.ID, name)
					}
					return tw.Flush()
				})
			})
		},
	}
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(opts *RootOptions) *cobra.Command {
	var showIDs bool

	cmd := &cobra.Command{
		Use:   "tree [id]",
		Short: "Print the folder tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := tree.RootID
			if len(args) == 1 {
				root = args[0]
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				t := s.engine.Tree()
				if !t.Has(root) {
					return NewExitError(ExitCommandError, fmt.Sprintf("unknown item %q", root))
				}
				var views []itemView
				for _, n := range append([]tree.Node{mustGet(t, root)}, descendants(t, root)...) {
					views = append(views, newItemView(n))
				}
				return formatter(cmd, opts).Result(views, func(w io.Writer) error {
					return tree.Render(w, t, root, tree.RenderOptions{IDs: showIDs})
				})
			})
		},
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "show item ids")
	return cmd
}

func mustGet(t *tree.Tree, id string) tree.Node {
	n, _ := t.Get(id)
	return n
}

func descendants(t *tree.Tree, id string) []tree.Node {
	ids := t.Descendants(id)
	out := make([]tree.Node, len(ids))
	for i, d := range ids {
		out[i] = mustGet(t, d)
	}
	return out
}

// NewMkdirCommand creates the mkdir command.
func NewMkdirCommand(opts *RootOptions) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(s *session) error {
				id, err := s.engine.CreateItem(cmd.Context(), tree.KindFolder, args[0], parent, nil)
				if err != nil {
					return engineError("mkdir", err)
				}
				return formatter(cmd, opts).Result(map[string]string{"id": id}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, id)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", tree.RootID, "parent folder id")
	return cmd
}

// NewNewSetCommand creates the new-set command.
func NewNewSetCommand(opts *RootOptions) *cobra.Command {
	var (
		parent   string
		file     string
		termLang string
		defLang  string
	)

	cmd := &cobra.Command{
		Use:   "new-set <name>",
		Short: "Create a flashcard set",
		Long: `Create a flashcard set, optionally with its text read from a file.

Example:
  cardfs new-set "Verbs" --parent 0190f5c2-... --file verbs.txt --term-lang es-ES`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content *tree.Content
			if file != "" {
				text, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				content = &tree.Content{Text: text, Languages: tree.Languages{Term: termLang, Definition: defLang}}
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				id, err := s.engine.CreateItem(cmd.Context(), tree.KindSet, args[0], parent, content)
				if err != nil {
					return engineError("new-set", err)
				}
				return formatter(cmd, opts).Result(map[string]string{"id": id}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, id)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", tree.RootID, "parent folder id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the set text from a file (- for stdin)")
	cmd.Flags().StringVar(&termLang, "term-lang", tree.DefaultLanguage, "language of the terms")
	cmd.Flags().StringVar(&defLang, "def-lang", tree.DefaultLanguage, "language of the definitions")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read input", err)
	}
	return string(data), nil
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a folder or set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(s *session) error {
				changed, err := s.engine.RenameItem(cmd.Context(), args[0], args[1])
				if err != nil {
					return engineError("rename", err)
				}
				if !changed {
					return NewExitError(ExitFailure, "rename had no effect (unknown id or blank name)")
				}
				return formatter(cmd, opts).Result(map[string]string{"id": args[0], "name": args[1]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "renamed %s\n", args[0])
					return err
				})
			})
		},
	}
}

// NewMvCommand creates the mv command.
func NewMvCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <target-folder> <id>...",
		Short: "Move items into a folder",
		Long: `Move items into a folder. Items that cannot move (the root, the target
itself, unknown ids, or a folder into its own subtree) are skipped.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(s *session) error {
				moved, err := s.engine.MoveItems(cmd.Context(), args[1:], args[0])
				if err != nil {
					return engineError("mv", err)
				}
				return idsResult(formatter(cmd, opts), "moved", moved, "nothing moved")
			})
		},
	}
}

// NewRmCommand creates the rm command.
func NewRmCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete items and everything below them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(s *session) error {
				removed, err := s.engine.DeleteItems(cmd.Context(), args)
				if err != nil {
					return engineError("rm", err)
				}
				return idsResult(formatter(cmd, opts), "removed", removed, "nothing removed")
			})
		},
	}
}

// NewCpCommand creates the cp command.
func NewCpCommand(opts *RootOptions) *cobra.Command {
	var cut bool

	cmd := &cobra.Command{
		Use:   "cp <target-folder> <id>...",
		Short: "Copy items into a folder",
		Long: `Copy items, with everything below them, into a folder. A copy placed
next to its original gets " (Copy)" appended to its name. With --cut the
items are moved instead.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := vfs.ClipCopy
			if cut {
				op = vfs.ClipCut
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				if err := s.engine.CopyToClipboard(cmd.Context(), args[1:], op); err != nil {
					return engineError("cp", err)
				}
				pasted, err := s.engine.PasteFromClipboard(cmd.Context(), args[0])
				if err != nil {
					return engineError("cp", err)
				}
				return idsResult(formatter(cmd, opts), "pasted", pasted, "nothing pasted")
			})
		},
	}
	cmd.Flags().BoolVar(&cut, "cut", false, "move instead of copy")
	return cmd
}

// NewChmodCommand creates the chmod command.
func NewChmodCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chmod <id> <private|link|public>",
		Short: "Set the sharing permission of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm := tree.Permission(args[1])
			if !perm.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown permission %q", args[1]))
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				changed, err := s.engine.UpdatePermissions(cmd.Context(), args[0], perm)
				if err != nil {
					return engineError("chmod", err)
				}
				if !changed {
					return NewExitError(ExitFailure, fmt.Sprintf("unknown item %q", args[0]))
				}
				return formatter(cmd, opts).Result(map[string]string{"id": args[0], "permission": string(perm)}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s is now %s\n", args[0], perm)
					return err
				})
			})
		},
	}
}

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the serialized tree",
		Long: `Write the tree in its storage format, the same JSON the cache and the
remote document hold. The --format flag does not apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(s *session) error {
				data, err := tree.Encode(s.engine.Tree())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to encode tree", err)
				}
				data = append(data, '\n')
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
