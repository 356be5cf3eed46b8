// Command tubularc compiles a single Tubular source file to WebAssembly
// text format, printed on stdout.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/tubular/tubularc/internal/compiler"
	"github.com/tubular/tubularc/internal/diagnostic"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "Format: %s [filename]\n", args[0])
		return 1
	}

	filename := args[1]
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: Unable to open file '%s'.\n", filename)
		return 1
	}

	p := compiler.New()
	if compErr := p.Compile(string(source), stdout); compErr != nil {
		printError(stderr, filename, compErr)
		p.Log.Sync()
		return 1
	}
	p.Log.Sync()
	return 0
}

// printError renders a compile error on stderr, coloring it red when stderr
// is an interactive terminal and leaving it plain otherwise (redirected to a
// file or pipe, as in CI).
func printError(stderr *os.File, filename string, err error) {
	msg := diagnostic.Format(filename, err)
	if isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd()) {
		fmt.Fprintf(stderr, "\x1b[31m%s\x1b[0m\n", msg)
		return
	}
	fmt.Fprintln(stderr, msg)
}
