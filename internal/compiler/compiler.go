// Package compiler wires the parser and code generator into the single
// pipeline the CLI drives: source text in, WAT text out, first error wins.
package compiler

import (
	"io"

	"go.uber.org/zap"

	"github.com/tubular/tubularc/internal/codegen"
	"github.com/tubular/tubularc/internal/debuglog"
	"github.com/tubular/tubularc/internal/parser"
)

// Pipeline runs one compilation. It carries its own logger rather than
// reaching for a package-level one, so nothing about a compilation is
// global mutable state.
type Pipeline struct {
	Log *debuglog.Logger
}

// New builds a Pipeline with a fresh debug logger (silent unless
// TUBULAR_DEBUG is set).
func New() *Pipeline {
	return &Pipeline{Log: debuglog.New()}
}

// Compile parses source and writes its WAT translation to w. It returns the
// first *diagnostic.CompileError encountered, if any; nothing is written to
// w unless compilation succeeds completely.
func (p *Pipeline) Compile(source string, w io.Writer) error {
	p.Log.Stage("parse", zap.Int("bytes", len(source)))
	prog, err := parser.Parse(source)
	if err != nil {
		p.Log.Stage("parse_failed", zap.Error(err))
		return err
	}
	p.Log.Stage("parse_done", zap.Int("functions", len(prog.Functions)), zap.Int("strings", len(prog.Strings)))

	p.Log.Stage("codegen")
	wat := codegen.Generate(prog)
	p.Log.Stage("codegen_done", zap.Int("bytes", len(wat)))

	_, err = io.WriteString(w, wat)
	return err
}
