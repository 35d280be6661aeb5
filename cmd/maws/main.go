package main

import (
	"log"
	"os"

	"github.com/mitchellh/go-wordwrap"
	"github.com/urfave/cli/v2"
)

const appDescription = "maws builds a packed Burrows-Wheeler index of a DNA or RNA FASTA file and walks its right-maximal substrings to report minimal absent words (substrings that never occur, though both halves do) or minimal rare words (substrings occurring below a frequency threshold, though both halves occur at or above it)."

// main is separated from run to make the app testable; run is separated
// from application to make the app definition itself inspectable.
func main() {
	run(os.Args)
}

func run(args []string) {
	app := application()
	if err := app.Run(args); err != nil {
		log.Fatal(err)
	}
}

// application defines the maws command line utility: a github.com/urfave/cli/v2
// app with one subcommand per top-level operation (build-index, maws, mrws),
// each with typed flags rather than positional argv parsing.
func application() *cli.App {
	return &cli.App{
		Name:        "maws",
		Usage:       "Build a BWT index of a DNA/RNA text and report its minimal absent or rare words.",
		Description: wordwrap.WrapString(appDescription, 76),
		Commands: []*cli.Command{
			buildIndexCommand(),
			mawsCommand(),
			mrwsCommand(),
		},
	}
}
