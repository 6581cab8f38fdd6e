// Command cardfs manages flashcard folders and sets from the terminal.
package main

import (
	"os"

	"github.com/roach88/cardfs/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
