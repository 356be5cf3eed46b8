// Package diagnostic implements Tubular's error model: one fatal error,
// reported with the line it occurred on, with nothing downstream of it.
// There is no accumulation and no recovery — the first error raised by the
// parser or lexer wins and aborts compilation.
package diagnostic

import "fmt"

// CompileError is the single error type the compiler ever returns. Line is
// 0 when the error isn't tied to a specific source line (e.g. a CLI-level
// failure raised before any source was read).
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Errorf builds a CompileError tied to a source line.
func Errorf(line int, format string, args ...interface{}) *CompileError {
	return &CompileError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// Format renders err as the single line printed on stderr, prefixed with
// the source filename so the message stays unambiguous when multiple
// invocations' output is interleaved.
func Format(filename string, err error) string {
	if ce, ok := err.(*CompileError); ok && ce.Line > 0 {
		return fmt.Sprintf("%s:%d: error: %s", filename, ce.Line, ce.Message)
	}
	return fmt.Sprintf("%s: error: %s", filename, err.Error())
}
