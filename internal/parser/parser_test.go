package parser

import (
	"strings"
	"testing"

	"github.com/tubular/tubularc/internal/ast"
	"github.com/tubular/tubularc/internal/types"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return prog
}

func mustFail(t *testing.T, src string) error {
	t.Helper()
	_, err := Parse(src)
	if err == nil {
		t.Fatalf("expected a compile error for:\n%s", src)
	}
	return err
}

func TestIntegerAdd(t *testing.T) {
	prog := mustParse(t, `function main() : int { return 1 + 2; }`)
	if len(prog.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.ReturnType != types.INTEGER {
		t.Fatalf("expected int return type")
	}
	ret, ok := fn.Body[0].(*ast.Return)
	if !ok {
		t.Fatalf("expected a return statement")
	}
	bin, ok := ret.Expr.(*ast.BinaryOp)
	if !ok || bin.Op != "+" || bin.DataType() != types.INTEGER {
		t.Fatalf("expected int '+' binary op, got %#v", ret.Expr)
	}
}

func TestMixedArithmeticPromotesToDouble(t *testing.T) {
	prog := mustParse(t, `function f() : double { return 1 + 2.5; }`)
	ret := prog.Functions[0].Body[0].(*ast.Return)
	if ret.Expr.DataType() != types.DOUBLE {
		t.Fatalf("expected promoted double result")
	}
}

func TestStringConcatWithCharPromotion(t *testing.T) {
	prog := mustParse(t, `function g() : string { string s = "hi"; return s + 'a'; }`)
	body := prog.Functions[0].Body
	ret := body[len(body)-1].(*ast.Return)
	bin := ret.Expr.(*ast.BinaryOp)
	if bin.DataType() != types.STRING {
		t.Fatalf("expected string concatenation result")
	}
}

func TestIndexedStore(t *testing.T) {
	prog := mustParse(t, `function h() : int { string s = "ab"; s[0] = 'c'; return 0; }`)
	body := prog.Functions[0].Body
	if _, ok := body[1].(*ast.IndexAssign); !ok {
		t.Fatalf("expected an indexed assignment, got %#v", body[1])
	}
}

func TestGuaranteedReturnIfElse(t *testing.T) {
	prog := mustParse(t, `function k(int x) : int { if (x) { return 1; } else { return 2; } }`)
	ie := prog.Functions[0].Body[0].(*ast.IfElse)
	if !ie.Returns() {
		t.Fatalf("expected if/else to guarantee return")
	}
}

func TestNarrowingReturnIsError(t *testing.T) {
	err := mustFail(t, `function f() : int { return 1.0; }`)
	if !strings.Contains(err.Error(), "double") {
		t.Fatalf("expected a narrowing error, got: %v", err)
	}
}

func TestChainedComparisonIsError(t *testing.T) {
	mustFail(t, `function f() : int { return 1 < 2 < 3; }`)
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	mustFail(t, `function f() : int { break; return 0; }`)
}

func TestStatementAfterTopLevelReturnIsError(t *testing.T) {
	mustFail(t, `function f() : int { return 1; return 2; }`)
}

func TestMissingGuaranteedReturnIsError(t *testing.T) {
	mustFail(t, `function f(int x) : int { if (x) { return 1; } }`)
}

func TestDeclarationWithoutInitialization(t *testing.T) {
	prog := mustParse(t, `function f() : int { int x; return x; }`)
	decl := prog.Functions[0].Body[0].(*ast.VarDecl)
	if decl.Init != nil {
		t.Fatalf("expected no initializer")
	}
}

func TestNestedWhileLoopsGetDistinctLoopIDs(t *testing.T) {
	prog := mustParse(t, `function f() : int {
		int i;
		while (i < 10) {
			int j;
			while (j < 10) {
				break;
				j = j + 1;
			}
			continue;
			i = i + 1;
		}
		return 0;
	}`)
	outer := prog.Functions[0].Body[1].(*ast.While)
	inner := outer.Body.Stmts[1].(*ast.While)
	if outer.LoopID == inner.LoopID {
		t.Fatalf("expected distinct loop ids, got %d and %d", outer.LoopID, inner.LoopID)
	}
}

func TestStringRepetitionNormalizesOperandOrder(t *testing.T) {
	prog := mustParse(t, `function f() : string { char c; int n; return c * n; }`)
	ret := prog.Functions[0].Body[2].(*ast.Return)
	bin := ret.Expr.(*ast.BinaryOp)
	if bin.LHS.DataType() != types.INTEGER || bin.RHS.DataType() != types.CHAR {
		t.Fatalf("expected (count, char) operand order, got (%s, %s)", bin.LHS.DataType(), bin.RHS.DataType())
	}
}

func TestFunctionCallArgumentTypeChecking(t *testing.T) {
	mustFail(t, `
		function takesInt(int x) : int { return x; }
		function main() : int { return takesInt(1.5); }
	`)
}

func TestFunctionCallArityChecking(t *testing.T) {
	mustFail(t, `
		function takesInt(int x) : int { return x; }
		function main() : int { return takesInt(1, 2); }
	`)
}

func TestCallToUndeclaredFunctionIsError(t *testing.T) {
	mustFail(t, `function main() : int { return missing(); }`)
}

func TestForwardReferenceCallIsError(t *testing.T) {
	mustFail(t, `
		function main() : int { return helper(); }
		function helper() : int { return 1; }
	`)
}

func TestSelfRecursiveCallIsError(t *testing.T) {
	mustFail(t, `
		function fact(int n) : int {
			if (n <= 1) { return 1; }
			return n * fact(n - 1);
		}
	`)
}

func TestCallToEarlierDeclaredFunctionIsAllowed(t *testing.T) {
	mustParse(t, `
		function helper() : int { return 1; }
		function main() : int { return helper(); }
	`)
}
