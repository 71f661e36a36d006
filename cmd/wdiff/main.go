// Command wdiff prints a word-level diff of two text files with counts and a short summary.
package main

import (
	"fmt"
	"io"
	"os"

	"audittrail/internal/summarizer"
	"audittrail/internal/textdiff"

	"github.com/spf13/pflag"
)

const (
	exitSame    = 0
	exitChanged = 1
	exitTrouble = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout *os.File, stderr io.Writer) int {
	var (
		colorMode   string
		showSummary bool
		showStats   bool
	)

	flags := pflag.NewFlagSet("wdiff", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&colorMode, "color", colorAuto, "Colour output: auto|always|never")
	flags.BoolVarP(&showSummary, "summary", "s", false, "Print a summary of the new text")
	flags.BoolVarP(&showStats, "stats", "c", false, "Print added, removed, changed and unchanged word counts")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: wdiff [flags] OLD NEW")
		fmt.Fprintln(stderr, "\nOLD and NEW are file paths; '-' reads one of them from stdin.")
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return exitTrouble
	}

	if flags.NArg() != 2 {
		flags.Usage()
		return exitTrouble
	}

	if flags.Arg(0) == "-" && flags.Arg(1) == "-" {
		fmt.Fprintln(stderr, "wdiff: only one of OLD and NEW can be read from stdin")
		return exitTrouble
	}

	useColor, err := colorEnabled(colorMode, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "wdiff: %v\n", err)
		return exitTrouble
	}

	oldText, err := readInput(flags.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "wdiff: read old: %v\n", err)
		return exitTrouble
	}

	newText, err := readInput(flags.Arg(1), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "wdiff: read new: %v\n", err)
		return exitTrouble
	}

	d, err := textdiff.Diff(oldText, newText)
	if err != nil {
		fmt.Fprintf(stderr, "wdiff: %v\n", err)
		return exitTrouble
	}

	r := newRenderer(useColor)
	r.diff(stdout, d)

	if showStats {
		r.stats(stdout, d)
	}
	if showSummary {
		r.summary(stdout, summarizer.Summarize(newText, d))
	}

	if d.Added() == 0 && d.Removed() == 0 {
		return exitSame
	}
	return exitChanged
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}

	data, err := os.ReadFile(path)
	return string(data), err
}
