package codegen

import (
	"strings"
	"testing"

	"github.com/tubular/tubularc/internal/parser"
)

func mustGenerate(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return Generate(prog)
}

func TestModuleHasMemoryAndExport(t *testing.T) {
	wat := mustGenerate(t, `function main() : int { return 0; }`)
	if !strings.Contains(wat, `(memory (export "memory") 10)`) {
		t.Fatalf("expected memory export, got:\n%s", wat)
	}
	if !strings.Contains(wat, `(export "main" (func $main))`) {
		t.Fatalf("expected main export, got:\n%s", wat)
	}
}

func TestRuntimeHelpersArePresent(t *testing.T) {
	wat := mustGenerate(t, `function main() : int { return 0; }`)
	for _, fn := range []string{"$get_length", "$add_strings", "$char_to_string", "$pad_char", "$set_at"} {
		if !strings.Contains(wat, "(func "+fn+" ") {
			t.Fatalf("expected runtime helper %s, got:\n%s", fn, wat)
		}
	}
}

func TestReturnBranchesToExitBlock(t *testing.T) {
	wat := mustGenerate(t, `function f() : int { return 42; }`)
	if !strings.Contains(wat, "(block $fun_exit1 (result i32)") {
		t.Fatalf("expected labelled exit block, got:\n%s", wat)
	}
	if !strings.Contains(wat, "(br $fun_exit1)") {
		t.Fatalf("expected return to branch to exit block, got:\n%s", wat)
	}
}

func TestIfWithoutElseShortCircuitsViaBr(t *testing.T) {
	wat := mustGenerate(t, `function f(int x) : int {
		if (x) { return 1; }
		return 2;
	}`)
	if !strings.Contains(wat, "(if\n") {
		t.Fatalf("expected a plain if with no result annotation, got:\n%s", wat)
	}
	if strings.Count(wat, "(br $fun_exit1)") != 2 {
		t.Fatalf("expected the asymmetric then-branch and the trailing top-level return to both branch to the exit block, got:\n%s", wat)
	}
	if !strings.Contains(wat, "(return)") {
		t.Fatalf("expected the return inside the if to emit a literal (return), got:\n%s", wat)
	}
}

func TestGuaranteedReturnIfElseEmitsResultAnnotationAndReturns(t *testing.T) {
	wat := mustGenerate(t, `function k(int x) : int {
		if (x) { return 1; } else { return 2; }
	}`)
	if !strings.Contains(wat, "(if (result i32)") {
		t.Fatalf("expected a result-typed if for a guaranteed-return if/else, got:\n%s", wat)
	}
	if strings.Count(wat, "(return)") != 2 {
		t.Fatalf("expected both branches to end with a literal (return), got:\n%s", wat)
	}
	if strings.Contains(wat, "(br $fun_exit") {
		t.Fatalf("expected no exit-block branch when both branches already return, got:\n%s", wat)
	}
}

func TestWhileEmitsLoopAndExitBlocks(t *testing.T) {
	wat := mustGenerate(t, `function f() : int {
		int i;
		while (i < 10) {
			i = i + 1;
		}
		return i;
	}`)
	if !strings.Contains(wat, "(loop $loop1") || !strings.Contains(wat, "(block $exit1") {
		t.Fatalf("expected loop/exit blocks with matching ids, got:\n%s", wat)
	}
}

func TestStringConcatCallsAddStrings(t *testing.T) {
	wat := mustGenerate(t, `function f() : string { string s = "ab"; return s + "cd"; }`)
	if !strings.Contains(wat, "(call $add_strings)") {
		t.Fatalf("expected a call to $add_strings, got:\n%s", wat)
	}
}

func TestCharRepetitionCallsPadChar(t *testing.T) {
	wat := mustGenerate(t, `function f() : string { char c; int n; return c * n; }`)
	if !strings.Contains(wat, "(call $pad_char)") {
		t.Fatalf("expected a call to $pad_char, got:\n%s", wat)
	}
}

func TestStringLiteralEmitsDataSegment(t *testing.T) {
	wat := mustGenerate(t, `function f() : string { return "hi"; }`)
	if !strings.Contains(wat, `(data (i32.const 0) "hi\00")`) {
		t.Fatalf("expected a data segment for the literal, got:\n%s", wat)
	}
}

func TestIntegerToDoublePromotionInsertsConvert(t *testing.T) {
	wat := mustGenerate(t, `function f() : double { return 1 + 2.5; }`)
	if !strings.Contains(wat, "(f64.convert_i32_s)") {
		t.Fatalf("expected an i32->f64 convert, got:\n%s", wat)
	}
}

func TestFunctionCallEmitsCallInstruction(t *testing.T) {
	wat := mustGenerate(t, `
		function inc(int x) : int { return x + 1; }
		function main() : int { return inc(41); }
	`)
	if !strings.Contains(wat, "(call $inc)") {
		t.Fatalf("expected a call to $inc, got:\n%s", wat)
	}
}
