package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/cards"
	"github.com/roach88/cardfs/internal/study"
)

const studyHelp = `keys: f flip, n next, p prev, 1 known, 2 unknown, r redo all, u redo unknown, q quit`

// NewStudyCommand creates the study command.
func NewStudyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "study <set-id>",
		Short: "Drill a set's flashcards",
		Long: `Drill a set's flashcards, reading one key per line from stdin.

` + studyHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(s *session) error {
				list, err := setCards(s, args[0], cards.DefaultSeparators())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					return NewExitError(ExitFailure, "set has no cards")
				}
				return runStudy(study.New(list), cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

// runStudy drives a session from line-oriented input until q or EOF.
func runStudy(sess *study.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, studyHelp)
	show(sess, out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "f":
			sess.Flip()
		case "n":
			sess.Next()
		case "p":
			sess.Prev()
		case "1":
			sess.MarkKnown()
		case "2":
			sess.MarkUnknown()
		case "r":
			sess.RestartAll()
		case "u":
			if !sess.ReviewUnknown() {
				fmt.Fprintln(out, "no unknown cards")
				continue
			}
		case "q":
			return nil
		case "":
			continue
		default:
			fmt.Fprintln(out, studyHelp)
			continue
		}
		show(sess, out)
	}
	return scanner.Err()
}

func show(sess *study.Session, out io.Writer) {
	if sess.Complete() {
		fmt.Fprintf(out, "complete! unknown: %d\n", len(sess.Unknown()))
		return
	}
	c, _ := sess.Current()
	index, size := sess.Position()
	side := c.Term
	if sess.Flipped() {
		side = c.Definition
	}
	fmt.Fprintf(out, "[%d/%d] %s\n", index+1, size, side)
}
