// Package codegen lowers a typed Tubular ast.Program directly to textual
// WebAssembly. There is no intermediate representation between the AST and
// the emitted text: each node variant has one fixed lowering, applied in a
// pre-order walk.
package codegen

import (
	"fmt"
	"strings"

	"github.com/tubular/tubularc/internal/ast"
	"github.com/tubular/tubularc/internal/types"
)

// generator accumulates WAT text with simple indentation bookkeeping
// through small emit/emitLine/indent helpers.
type generator struct {
	sb     strings.Builder
	indent int
	funcs  map[string]*ast.Function
}

func (g *generator) emit(s string) {
	g.sb.WriteString(s)
}

func (g *generator) emitLine(s string) {
	g.sb.WriteString(g.indentStr())
	g.sb.WriteString(s)
	g.sb.WriteString("\n")
}

func (g *generator) emitLinef(format string, args ...interface{}) {
	g.emitLine(fmt.Sprintf(format, args...))
}

func (g *generator) incIndent() { g.indent++ }
func (g *generator) decIndent() {
	if g.indent > 0 {
		g.indent--
	}
}
func (g *generator) indentStr() string { return strings.Repeat("  ", g.indent) }

// Generate lowers a whole program to a complete WAT module.
func Generate(prog *ast.Program) string {
	g := &generator{funcs: make(map[string]*ast.Function, len(prog.Functions))}
	for _, fn := range prog.Functions {
		g.funcs[fn.Name] = fn
	}
	g.emitLine("(module")
	g.incIndent()
	g.emitLine(`(memory (export "memory") 10)`)

	freeMem := emitStringData(g, prog.Strings)
	g.emitLinef("(global $free_mem (mut i32) (i32.const %d))", freeMem)

	emitRuntime(g)

	for _, fn := range prog.Functions {
		emitFunction(g, fn)
	}

	g.decIndent()
	g.emitLine(")")
	return g.sb.String()
}

// emitRuntime writes the five fixed runtime helpers every Tubular program
// links against: string length, concatenation, a char promoted to a
// one-byte string, char repetition (the lowering of CHAR * INTEGER), and a
// byte store by index. Strings are flat NUL-terminated byte runs bump
// allocated from $free_mem; nothing is ever freed.
func emitRuntime(g *generator) {
	g.emitLine("(func $get_length (param $s i32) (result i32)")
	g.incIndent()
	g.emitLine("(local $n i32)")
	g.emitLine("(local.set $n (i32.const 0))")
	g.emitLine("(block $done")
	g.incIndent()
	g.emitLine("(loop $scan")
	g.incIndent()
	g.emitLine("(br_if $done (i32.eqz (i32.load8_u (i32.add (local.get $s) (local.get $n)))))")
	g.emitLine("(local.set $n (i32.add (local.get $n) (i32.const 1)))")
	g.emitLine("(br $scan)")
	g.decIndent()
	g.emitLine(")")
	g.decIndent()
	g.emitLine(")")
	g.emitLine("(local.get $n)")
	g.decIndent()
	g.emitLine(")")

	g.emitLine("(func $add_strings (param $a i32) (param $b i32) (result i32)")
	g.incIndent()
	g.emitLine("(local $dst i32)")
	g.emitLine("(local $i i32)")
	g.emitLine("(local $c i32)")
	g.emitLine("(local $j i32)")
	g.emitLine("(local.set $dst (global.get $free_mem))")
	g.emitLine("(local.set $i (i32.const 0))")
	g.emitLine("(block $done_a")
	g.incIndent()
	g.emitLine("(loop $copy_a")
	g.incIndent()
	g.emitLine("(local.set $c (i32.load8_u (i32.add (local.get $a) (local.get $i))))")
	g.emitLine("(br_if $done_a (i32.eqz (local.get $c)))")
	g.emitLine("(i32.store8 (i32.add (local.get $dst) (local.get $i)) (local.get $c))")
	g.emitLine("(local.set $i (i32.add (local.get $i) (i32.const 1)))")
	g.emitLine("(br $copy_a)")
	g.decIndent()
	g.emitLine(")")
	g.decIndent()
	g.emitLine(")")
	g.emitLine("(local.set $j (i32.const 0))")
	g.emitLine("(block $done_b")
	g.incIndent()
	g.emitLine("(loop $copy_b")
	g.incIndent()
	g.emitLine("(local.set $c (i32.load8_u (i32.add (local.get $b) (local.get $j))))")
	g.emitLine("(i32.store8 (i32.add (i32.add (local.get $dst) (local.get $i)) (local.get $j)) (local.get $c))")
	g.emitLine("(br_if $done_b (i32.eqz (local.get $c)))")
	g.emitLine("(local.set $j (i32.add (local.get $j) (i32.const 1)))")
	g.emitLine("(br $copy_b)")
	g.decIndent()
	g.emitLine(")")
	g.decIndent()
	g.emitLine(")")
	g.emitLine("(global.set $free_mem (i32.add (i32.add (local.get $dst) (local.get $i)) (i32.add (local.get $j) (i32.const 1))))")
	g.emitLine("(local.get $dst)")
	g.decIndent()
	g.emitLine(")")

	g.emitLine("(func $char_to_string (param $ch i32) (result i32)")
	g.incIndent()
	g.emitLine("(local $dst i32)")
	g.emitLine("(local.set $dst (global.get $free_mem))")
	g.emitLine("(i32.store8 (local.get $dst) (local.get $ch))")
	g.emitLine("(i32.store8 (i32.add (local.get $dst) (i32.const 1)) (i32.const 0))")
	g.emitLine("(global.set $free_mem (i32.add (local.get $dst) (i32.const 2)))")
	g.emitLine("(local.get $dst)")
	g.decIndent()
	g.emitLine(")")

	g.emitLine("(func $pad_char (param $count i32) (param $ch i32) (result i32)")
	g.incIndent()
	g.emitLine("(local $dst i32)")
	g.emitLine("(local $i i32)")
	g.emitLine("(local.set $dst (global.get $free_mem))")
	g.emitLine("(local.set $i (i32.const 0))")
	g.emitLine("(block $done")
	g.incIndent()
	g.emitLine("(loop $fill")
	g.incIndent()
	g.emitLine("(br_if $done (i32.ge_s (local.get $i) (local.get $count)))")
	g.emitLine("(i32.store8 (i32.add (local.get $dst) (local.get $i)) (local.get $ch))")
	g.emitLine("(local.set $i (i32.add (local.get $i) (i32.const 1)))")
	g.emitLine("(br $fill)")
	g.decIndent()
	g.emitLine(")")
	g.decIndent()
	g.emitLine(")")
	g.emitLine("(i32.store8 (i32.add (local.get $dst) (local.get $i)) (i32.const 0))")
	g.emitLine("(global.set $free_mem (i32.add (local.get $dst) (i32.add (local.get $i) (i32.const 1))))")
	g.emitLine("(local.get $dst)")
	g.decIndent()
	g.emitLine(")")

	g.emitLine("(func $set_at (param $s i32) (param $idx i32) (param $ch i32)")
	g.incIndent()
	g.emitLine("(i32.store8 (i32.add (local.get $s) (local.get $idx)) (local.get $ch))")
	g.decIndent()
	g.emitLine(")")

	for _, name := range []string{"get_length", "add_strings", "char_to_string", "pad_char", "set_at"} {
		g.emitLinef(`(export "%s" (func $%s))`, name, name)
	}
}

func emitStringData(g *generator, lits []ast.StringLiteral) int {
	freeMem := 0
	for _, lit := range lits {
		g.emitLinef("(data (i32.const %d) %s)", lit.Offset, watStringBytes(lit.Bytes))
		end := lit.Offset + len(lit.Bytes) + 1
		if end > freeMem {
			freeMem = end
		}
	}
	return freeMem
}

// watStringBytes renders bytes as a quoted WAT data-segment string literal,
// escaping non-printable bytes and always appending the trailing NUL.
func watStringBytes(bytes []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, b := range bytes {
		switch b {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if b >= 0x20 && b < 0x7f {
				sb.WriteByte(b)
			} else {
				fmt.Fprintf(&sb, `\%02x`, b)
			}
		}
	}
	sb.WriteString(`\00"`)
	return sb.String()
}

func emitFunction(g *generator, fn *ast.Function) {
	var sig strings.Builder
	fmt.Fprintf(&sig, "(func $%s", fn.Name)
	for _, p := range fn.Params {
		fmt.Fprintf(&sig, " (param $var%d %s)", p.UID, types.WatRepr(p.Type))
	}
	fmt.Fprintf(&sig, " (result %s)", types.WatRepr(fn.ReturnType))
	g.emitLine(sig.String())
	g.incIndent()

	for _, l := range fn.Locals {
		g.emitLinef("(local $var%d %s)", l.UID, types.WatRepr(l.Type))
	}

	g.emitLinef("(block $fun_exit%d (result %s)", fn.ID, types.WatRepr(fn.ReturnType))
	g.incIndent()
	for _, stmt := range fn.Body {
		emitStmt(g, stmt, fn)
	}
	g.decIndent()
	g.emitLine(")")

	g.decIndent()
	g.emitLine(")")
	g.emitLinef(`(export "%s" (func $%s))`, fn.Name, fn.Name)
}

func emitStmt(g *generator, stmt ast.Stmt, fn *ast.Function) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if s.Init != nil {
			emitExpr(g, s.Init)
			emitPromote(g, s.Init.DataType(), s.Type)
			g.emitLinef("(local.set $var%d)", s.UID)
		}

	case *ast.Assign:
		emitExpr(g, s.RHS)
		emitPromote(g, s.RHS.DataType(), s.Type)
		g.emitLinef("(local.set $var%d)", s.UID)
		g.emitLinef("(local.get $var%d)", s.UID)
		g.emitLine("(drop)")

	case *ast.IndexAssign:
		emitExpr(g, s.IndexE)
		emitExpr(g, s.Target)
		g.emitLine("(i32.add)")
		emitExpr(g, s.RHS)
		g.emitLine("(i32.store8)")

	case *ast.ExprStmt:
		emitExpr(g, s.Expr)
		g.emitLine("(drop)")

	case *ast.IfElse:
		emitIfElse(g, s, fn)

	case *ast.While:
		emitWhile(g, s, fn)

	case *ast.ContinueBreak:
		if s.IsContinue {
			g.emitLinef("(br $loop%d)", s.LoopID)
		} else {
			g.emitLinef("(br $exit%d)", s.LoopID)
		}

	case *ast.Return:
		emitExpr(g, s.Expr)
		emitPromote(g, s.Expr.DataType(), fn.ReturnType)
		if s.InsideIf {
			g.emitLine("(return)")
		} else {
			// A top-level return is always the last statement of the
			// function body (the parser rejects anything after one), so
			// branching to the exit block here is equivalent to falling
			// through to it; a return reached through a loop body with no
			// enclosing if, which inside_if alone doesn't track, still
			// needs a real exit instruction rather than leaving its value
			// stranded on the stack.
			g.emitLinef("(br $fun_exit%d)", fn.ID)
		}

	case *ast.Block:
		for _, inner := range s.Stmts {
			emitStmt(g, inner, fn)
		}

	default:
		panic(fmt.Sprintf("codegen: unhandled statement %T", stmt))
	}
}

// emitIfElse carries a (result i32) annotation only when both branches are
// guaranteed-return; an asymmetric branch that returns short-circuits to
// the function's exit block explicitly, so a plain void if never needs a
// value left on the stack for either path.
func emitIfElse(g *generator, ie *ast.IfElse, fn *ast.Function) {
	emitExpr(g, ie.Cond)
	bothReturn := ie.ThenRet && ie.Else != nil && ie.ElseRet
	if bothReturn {
		g.emitLine("(if (result i32)")
	} else {
		g.emitLine("(if")
	}
	g.incIndent()

	g.emitLine("(then")
	g.incIndent()
	for _, st := range ie.Then.Stmts {
		emitStmt(g, st, fn)
	}
	if ie.ThenRet && !bothReturn {
		g.emitLinef("(br $fun_exit%d)", fn.ID)
	}
	g.decIndent()
	g.emitLine(")")

	if ie.Else != nil {
		g.emitLine("(else")
		g.incIndent()
		for _, st := range ie.Else.Stmts {
			emitStmt(g, st, fn)
		}
		if ie.ElseRet && !bothReturn {
			g.emitLinef("(br $fun_exit%d)", fn.ID)
		}
		g.decIndent()
		g.emitLine(")")
	}

	g.decIndent()
	g.emitLine(")")
}

func emitWhile(g *generator, w *ast.While, fn *ast.Function) {
	g.emitLinef("(block $exit%d", w.LoopID)
	g.incIndent()
	g.emitLinef("(loop $loop%d", w.LoopID)
	g.incIndent()
	emitExpr(g, w.Cond)
	g.emitLine("(i32.eqz)")
	g.emitLinef("(br_if $exit%d)", w.LoopID)
	for _, st := range w.Body.Stmts {
		emitStmt(g, st, fn)
	}
	g.emitLinef("(br $loop%d)", w.LoopID)
	g.decIndent()
	g.emitLine(")")
	g.decIndent()
	g.emitLine(")")
}

func emitExpr(g *generator, e ast.Expr) {
	switch n := e.(type) {
	case *ast.LiteralValue:
		switch n.Type {
		case types.DOUBLE:
			g.emitLinef("(f64.const %v)", n.Float)
		default:
			g.emitLinef("(i32.const %d)", n.Int)
		}

	case *ast.LiteralString:
		g.emitLinef("(i32.const %d)", n.Offset)

	case *ast.Variable:
		g.emitLinef("(local.get $var%d)", n.UID)

	case *ast.Index:
		emitExpr(g, n.Target)
		emitExpr(g, n.IndexE)
		g.emitLine("(i32.add)")
		g.emitLine("(i32.load8_u)")

	case *ast.UnaryOp:
		emitUnary(g, n)

	case *ast.BinaryOp:
		emitBinary(g, n)

	case *ast.FunctionCall:
		callee := g.funcs[n.Callee]
		for i, arg := range n.Args {
			emitExpr(g, arg)
			if callee != nil && i < len(callee.Params) {
				emitPromote(g, arg.DataType(), callee.Params[i].Type)
			}
		}
		g.emitLinef("(call $%s)", n.Callee)

	default:
		panic(fmt.Sprintf("codegen: unhandled expression %T", e))
	}
}

func emitUnary(g *generator, u *ast.UnaryOp) {
	switch u.Op {
	case "-":
		if u.Type == types.DOUBLE {
			g.emitLine("(f64.const 0)")
			emitExpr(g, u.Operand)
			g.emitLine("(f64.sub)")
		} else {
			g.emitLine("(i32.const 0)")
			emitExpr(g, u.Operand)
			g.emitLine("(i32.sub)")
		}
	case "!":
		emitExpr(g, u.Operand)
		g.emitLine("(i32.eqz)")
	case "size":
		emitExpr(g, u.Operand)
		g.emitLine("(call $get_length)")
	case "sqrt":
		emitExpr(g, u.Operand)
		emitPromote(g, u.Operand.DataType(), types.DOUBLE)
		g.emitLine("(f64.sqrt)")
	case "cast":
		emitExpr(g, u.Operand)
		emitCast(g, u.Operand.DataType(), u.Type)
	default:
		panic("codegen: unhandled unary operator " + u.Op)
	}
}

func emitCast(g *generator, from, to types.DataType) {
	switch {
	case from == to:
		return
	case (from == types.INTEGER || from == types.CHAR) && to == types.DOUBLE:
		g.emitLine("(f64.convert_i32_s)")
	case from == types.DOUBLE && to == types.INTEGER:
		g.emitLine("(i32.trunc_f64_s)")
	case from == types.CHAR && to == types.STRING:
		g.emitLine("(call $char_to_string)")
	}
}

// emitPromote inserts the conversion (if any) needed to widen a value of
// type from up to type to, matching the type model's promotion rules.
func emitPromote(g *generator, from, to types.DataType) {
	if from == to {
		return
	}
	if (from == types.INTEGER || from == types.CHAR) && to == types.DOUBLE {
		g.emitLine("(f64.convert_i32_s)")
		return
	}
	if from == types.CHAR && to == types.STRING {
		g.emitLine("(call $char_to_string)")
		return
	}
}

func emitBinary(g *generator, b *ast.BinaryOp) {
	switch b.Op {
	case "&&":
		emitExpr(g, b.LHS)
		g.emitLine("(if (result i32)")
		g.incIndent()
		g.emitLine("(then")
		g.incIndent()
		emitExpr(g, b.RHS)
		g.emitLine("(i32.const 0)")
		g.emitLine("(i32.ne)")
		g.decIndent()
		g.emitLine(")")
		g.emitLine("(else")
		g.incIndent()
		g.emitLine("(i32.const 0)")
		g.decIndent()
		g.emitLine(")")
		g.decIndent()
		g.emitLine(")")
		return

	case "||":
		emitExpr(g, b.LHS)
		g.emitLine("(if (result i32)")
		g.incIndent()
		g.emitLine("(then")
		g.incIndent()
		g.emitLine("(i32.const 1)")
		g.decIndent()
		g.emitLine(")")
		g.emitLine("(else")
		g.incIndent()
		emitExpr(g, b.RHS)
		g.emitLine("(i32.const 0)")
		g.emitLine("(i32.ne)")
		g.decIndent()
		g.emitLine(")")
		g.decIndent()
		g.emitLine(")")
		return
	}

	if b.Type == types.STRING && b.Op == "*" {
		emitExpr(g, b.LHS)
		emitExpr(g, b.RHS)
		g.emitLine("(call $pad_char)")
		return
	}

	if b.Op == "+" && b.Type == types.STRING {
		emitConcatOperand(g, b.LHS)
		emitConcatOperand(g, b.RHS)
		g.emitLine("(call $add_strings)")
		return
	}

	emitExpr(g, b.LHS)
	emitPromote(g, b.LHS.DataType(), arithmeticOperandType(b))
	emitExpr(g, b.RHS)
	emitPromote(g, b.RHS.DataType(), arithmeticOperandType(b))
	g.emitLine(watOpInstruction(b.Op, arithmeticOperandType(b)))
}

func emitConcatOperand(g *generator, e ast.Expr) {
	emitExpr(g, e)
	if e.DataType() == types.CHAR {
		g.emitLine("(call $char_to_string)")
	}
}

// arithmeticOperandType is the common type both operands of a relational or
// arithmetic BinaryOp are promoted to before the instruction executes. For
// relational operators (always typed INTEGER as the boolean result) this is
// the lattice promotion of the two operand types, not the result type.
func arithmeticOperandType(b *ast.BinaryOp) types.DataType {
	switch b.Op {
	case "<", ">", "<=", ">=", "==", "!=":
		return types.Promote(b.LHS.DataType(), b.RHS.DataType())
	default:
		return b.Type
	}
}

func watOpInstruction(op string, operandType types.DataType) string {
	t := types.WatRepr(operandType)
	signed := operandType != types.DOUBLE
	switch op {
	case "+":
		return fmt.Sprintf("(%s.add)", t)
	case "-":
		return fmt.Sprintf("(%s.sub)", t)
	case "*":
		return fmt.Sprintf("(%s.mul)", t)
	case "/":
		if signed {
			return fmt.Sprintf("(%s.div_s)", t)
		}
		return fmt.Sprintf("(%s.div)", t)
	case "%":
		return "(i32.rem_s)"
	case "<":
		if signed {
			return fmt.Sprintf("(%s.lt_s)", t)
		}
		return fmt.Sprintf("(%s.lt)", t)
	case ">":
		if signed {
			return fmt.Sprintf("(%s.gt_s)", t)
		}
		return fmt.Sprintf("(%s.gt)", t)
	case "<=":
		if signed {
			return fmt.Sprintf("(%s.le_s)", t)
		}
		return fmt.Sprintf("(%s.le)", t)
	case ">=":
		if signed {
			return fmt.Sprintf("(%s.ge_s)", t)
		}
		return fmt.Sprintf("(%s.ge)", t)
	case "==":
		return fmt.Sprintf("(%s.eq)", t)
	case "!=":
		return fmt.Sprintf("(%s.ne)", t)
	default:
		panic("codegen: unhandled binary operator " + op)
	}
}
