package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/cards"
	"github.com/roach88/cardfs/internal/editor"
	"github.com/roach88/cardfs/internal/tree"
)

// NewEditCommand creates the edit command.
func NewEditCommand(opts *RootOptions) *cobra.Command {
	var (
		massCreate bool
		maxCards   int
		termLang   string
		defLang    string
	)

	cmd := &cobra.Command{
		Use:   "edit <set-id> <file>",
		Short: "Replace a set's text from a file",
		Long: `Replace a set's text with the contents of a file (- for stdin).

With --mass-create, a text longer than --max-cards card lines is split: the
set keeps the first chunk and each further chunk becomes a new set named
"<set name> 2", "<set name> 3", ... in the same folder.

Example:
  cardfs edit 0190f5c2-... verbs.txt --mass-create --max-cards 25`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				n, ok := s.engine.Get(args[0])
				if !ok || n.Kind() != tree.KindSet {
					return NewExitError(ExitCommandError, fmt.Sprintf("unknown set %q", args[0]))
				}

				draft := editor.Draft{
					Text:       text,
					Languages:  tree.Languages{Term: termLang, Definition: defLang},
					MassCreate: s.cfg.Editor.MassCreate,
					MaxCards:   s.cfg.Editor.MaxCards,
				}
				if c, ok := n.Content(); ok && !cmd.Flags().Changed("term-lang") && !cmd.Flags().Changed("def-lang") {
					draft.Languages = c.Languages
				}
				if cmd.Flags().Changed("mass-create") {
					draft.MassCreate = massCreate
				}
				if cmd.Flags().Changed("max-cards") {
					draft.MaxCards = maxCards
				}

				res, err := editor.Save(cmd.Context(), s.engine, args[0], draft, slog.Default())
				if err != nil {
					return engineError("edit", err)
				}
				data := map[string]any{"id": args[0], "updated": res.Updated, "created": res.Created}
				return formatter(cmd, opts).Result(data, func(w io.Writer) error {
					if res.Updated {
						fmt.Fprintf(w, "updated %s\n", args[0])
					} else {
						fmt.Fprintf(w, "%s unchanged\n", args[0])
					}
					for _, id := range res.Created {
						fmt.Fprintf(w, "created %s\n", id)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&massCreate, "mass-create", false, "split long texts into several sets (default from config)")
	cmd.Flags().IntVar(&maxCards, "max-cards", editor.DefaultMaxCards, "cards per set when splitting (default from config)")
	cmd.Flags().StringVar(&termLang, "term-lang", tree.DefaultLanguage, "language of the terms")
	cmd.Flags().StringVar(&defLang, "def-lang", tree.DefaultLanguage, "language of the definitions")
	return cmd
}

// NewCardsCommand creates the cards command.
func NewCardsCommand(opts *RootOptions) *cobra.Command {
	seps := cards.DefaultSeparators()

	cmd := &cobra.Command{
		Use:   "cards <set-id>",
		Short: "Print the flashcards of a set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := seps.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid separators", err)
			}
			return withSession(cmd.Context(), opts, func(s *session) error {
				list, err := setCards(s, args[0], seps)
				if err != nil {
					return err
				}
				return formatter(cmd, opts).Result(list, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					for _, c := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Term, c.Definition)
					}
					return tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&seps.Card, "card-sep", seps.Card, "separator between cards")
	cmd.Flags().StringVar(&seps.Term, "term-sep", seps.Term, "separator between term and definition")
	return cmd
}

// setCards parses the cards of set id. A set that was never saved has no
// cards.
func setCards(s *session, id string, seps cards.Separators) ([]cards.Card, error) {
	n, ok := s.engine.Get(id)
	if !ok || n.Kind() != tree.KindSet {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown set %q", id))
	}
	c, _ := n.Content()
	list, err := cards.Parse(c.Text, seps)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse cards", err)
	}
	if list == nil {
		list = []cards.Card{}
	}
	return list, nil
}
