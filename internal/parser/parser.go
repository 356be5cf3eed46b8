// Package parser implements Tubular's single recursive-descent pass: the
// same walk that builds the AST also resolves identifiers against the
// symbol table, checks and promotes types, and tracks the control-flow
// facts (loop nesting, guaranteed return) the code generator needs. There
// is no separate checker phase and no intermediate representation.
package parser

import (
	"strconv"

	"github.com/tubular/tubularc/internal/ast"
	"github.com/tubular/tubularc/internal/diagnostic"
	"github.com/tubular/tubularc/internal/lexer"
	"github.com/tubular/tubularc/internal/symboltable"
	"github.com/tubular/tubularc/internal/types"
)

// Parser holds all per-program and per-function state for the single pass.
type Parser struct {
	tokens []lexer.Token
	pos    int

	uidGen *symboltable.UIDGen
	funcs  map[string]*ast.Function

	strings   []ast.StringLiteral
	strOffset int

	nextFuncID int
	nextLoopID int

	// Per-function state, reset at the start of each parseFunction call.
	st         *symboltable.SymbolTable
	retType    types.DataType
	loopStack  []int
	insideIf   bool
	pastReturn bool
	numReturns int
}

func newParser(source string) *Parser {
	return &Parser{
		tokens: lexer.New(source).Tokenize(),
		uidGen: &symboltable.UIDGen{},
		funcs:  make(map[string]*ast.Function),
	}
}

// Parse runs the full single-pass compile of source into a typed Program.
func Parse(source string) (*ast.Program, error) {
	p := newParser(source)
	var funcs []*ast.Function
	for !p.check(lexer.EOF) {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	return &ast.Program{Functions: funcs, Strings: p.strings}, nil
}

// --- token queue -----------------------------------------------------

func (p *Parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(tt lexer.TokenType) bool {
	return p.cur().Type == tt
}

func (p *Parser) match(tt lexer.TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt lexer.TokenType, what string) (lexer.Token, error) {
	if !p.check(tt) {
		return lexer.Token{}, diagnostic.Errorf(p.cur().Line, "expected %s, got '%s'", what, p.cur().Literal)
	}
	return p.advance(), nil
}

// --- declarations ------------------------------------------------------

func (p *Parser) parseType() (types.DataType, error) {
	switch p.cur().Type {
	case lexer.INT_TYPE:
		p.advance()
		return types.INTEGER, nil
	case lexer.DOUBLE_TYPE:
		p.advance()
		return types.DOUBLE, nil
	case lexer.CHAR_TYPE:
		p.advance()
		return types.CHAR, nil
	case lexer.STRING_TYPE:
		p.advance()
		return types.STRING, nil
	default:
		return 0, diagnostic.Errorf(p.cur().Line, "expected a type, got '%s'", p.cur().Literal)
	}
}

func (p *Parser) parseFunction() (*ast.Function, error) {
	line := p.cur().Line
	if _, err := p.expect(lexer.FUNCTION, "'function'"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.IDENT, "a function name")
	if err != nil {
		return nil, err
	}
	name := nameTok.Literal
	if _, exists := p.funcs[name]; exists {
		return nil, diagnostic.Errorf(nameTok.Line, "function '%s' is already declared", name)
	}

	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.check(lexer.RPAREN) {
		if len(params) > 0 {
			if _, err := p.expect(lexer.COMMA, "','"); err != nil {
				return nil, err
			}
		}
		pt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		pnTok, err := p.expect(lexer.IDENT, "a parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pnTok.Literal, Type: pt})
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.COLON, "':'"); err != nil {
		return nil, err
	}
	retType, err := p.parseType()
	if err != nil {
		return nil, err
	}

	p.nextFuncID++
	fn := &ast.Function{ID: p.nextFuncID, Name: name, ReturnType: retType, Line: line, Params: params}

	p.st = symboltable.New(p.uidGen)
	p.retType = retType
	p.loopStack = nil
	p.insideIf = false
	p.pastReturn = false
	p.numReturns = 0

	for i := range params {
		uid, err := p.st.InitVar(params[i].Name, params[i].Type)
		if err != nil {
			return nil, diagnostic.Errorf(line, "%s", err)
		}
		params[i].UID = uid
	}
	fn.Params = params

	if _, err := p.expect(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	stmts, err := p.parseStatements(lexer.RBRACE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}

	if len(stmts) == 0 || !stmts[len(stmts)-1].Returns() {
		return nil, diagnostic.Errorf(line, "function '%s' does not guarantee a return on every path", name)
	}

	fn.Body = stmts
	fn.Locals = localsAfter(p.st.Vars(), len(params))

	// The signature is only registered once the body has fully parsed, so
	// a call to this function from within its own body resolves against
	// whatever was already declared earlier in the file, not against
	// itself: self-recursion and forward references are both call-before-
	// definition and are both rejected, matching the language's call
	// ordering rule.
	p.funcs[name] = fn
	return fn, nil
}

func localsAfter(vars []symboltable.VarData, nParams int) []ast.Param {
	if nParams >= len(vars) {
		return nil
	}
	out := make([]ast.Param, 0, len(vars)-nParams)
	for _, v := range vars[nParams:] {
		out = append(out, ast.Param{UID: v.UID, Name: v.Name, Type: v.Type})
	}
	return out
}

// --- statements ----------------------------------------------------------

func (p *Parser) parseStatements(until lexer.TokenType) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.check(until) && !p.check(lexer.EOF) {
		if p.pastReturn {
			return nil, diagnostic.Errorf(p.cur().Line, "unreachable code after return")
		}
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Type {
	case lexer.RETURN:
		return p.parseReturn()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.CONTINUE:
		return p.parseContinueBreak(true)
	case lexer.BREAK:
		return p.parseContinueBreak(false)
	case lexer.LBRACE:
		return p.parseBracedBlock()
	case lexer.INT_TYPE, lexer.DOUBLE_TYPE, lexer.CHAR_TYPE, lexer.STRING_TYPE:
		return p.parseVarDecl()
	case lexer.IDENT:
		return p.parseIdentStatement()
	default:
		return nil, diagnostic.Errorf(p.cur().Line, "unexpected token '%s'", p.cur().Literal)
	}
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	expr, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMICOLON, "';'"); err != nil {
		return nil, err
	}
	if promoted := types.Promote(p.retType, expr.DataType()); promoted != p.retType {
		return nil, diagnostic.Errorf(line, "cannot return a %s value from a function declared to return %s", expr.DataType(), p.retType)
	}

	insideIf := p.insideIf
	p.numReturns++
	if !p.st.InsideNestedScope() {
		p.pastReturn = true
	}
	return ast.NewReturn(line, expr, insideIf), nil
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	line := p.cur().Line
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.IDENT, "a variable name")
	if err != nil {
		return nil, err
	}
	if p.st.HasVarInCurrentScope(nameTok.Literal) {
		return nil, diagnostic.Errorf(nameTok.Line, "variable '%s' is already declared in this scope", nameTok.Literal)
	}

	var init ast.Expr
	if p.match(lexer.ASSIGN) {
		init, err = p.parseLogical()
		if err != nil {
			return nil, err
		}
		if promoted := types.Promote(t, init.DataType()); promoted != t {
			return nil, diagnostic.Errorf(line, "cannot initialize %s variable '%s' with a %s value", t, nameTok.Literal, init.DataType())
		}
	}
	if _, err := p.expect(lexer.SEMICOLON, "';'"); err != nil {
		return nil, err
	}

	uid, err := p.st.InitVar(nameTok.Literal, t)
	if err != nil {
		return nil, diagnostic.Errorf(line, "%s", err)
	}
	return ast.NewVarDecl(line, uid, nameTok.Literal, t, init), nil
}

// parseIdentStatement disambiguates an identifier-led statement: an indexed
// store (`s[i] = ...`), a plain assignment (`x = ...`), or a call used for
// its side effect (`f(...)`).
func (p *Parser) parseIdentStatement() (ast.Stmt, error) {
	line := p.cur().Line
	nameTok := p.advance()

	switch p.cur().Type {
	case lexer.LBRACKET:
		p.advance()
		v, ok := p.st.Lookup(nameTok.Literal)
		if !ok {
			return nil, diagnostic.Errorf(nameTok.Line, "undeclared variable '%s'", nameTok.Literal)
		}
		if v.Type != types.STRING {
			return nil, diagnostic.Errorf(nameTok.Line, "cannot index a %s value", v.Type)
		}
		idx, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if idx.DataType() != types.INTEGER {
			return nil, diagnostic.Errorf(nameTok.Line, "string index must be an int, got %s", idx.DataType())
		}
		if _, err := p.expect(lexer.RBRACKET, "']'"); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ASSIGN, "'='"); err != nil {
			return nil, err
		}
		rhs, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if rhs.DataType() != types.CHAR {
			return nil, diagnostic.Errorf(nameTok.Line, "indexed assignment requires a char value, got %s", rhs.DataType())
		}
		if _, err := p.expect(lexer.SEMICOLON, "';'"); err != nil {
			return nil, err
		}
		target := ast.NewVariable(nameTok.Line, v.UID, v.Name, v.Type)
		return ast.NewIndexAssign(line, target, idx, rhs), nil

	case lexer.ASSIGN:
		p.advance()
		v, ok := p.st.Lookup(nameTok.Literal)
		if !ok {
			return nil, diagnostic.Errorf(nameTok.Line, "undeclared variable '%s'", nameTok.Literal)
		}
		rhs, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if promoted := types.Promote(v.Type, rhs.DataType()); promoted != v.Type {
			return nil, diagnostic.Errorf(nameTok.Line, "cannot assign a %s value to %s variable '%s'", rhs.DataType(), v.Type, nameTok.Literal)
		}
		if _, err := p.expect(lexer.SEMICOLON, "';'"); err != nil {
			return nil, err
		}
		return ast.NewAssign(line, v.UID, v.Name, v.Type, rhs), nil

	case lexer.LPAREN:
		call, err := p.parseCallTail(nameTok)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMICOLON, "';'"); err != nil {
			return nil, err
		}
		return ast.NewExprStmt(line, call), nil

	default:
		return nil, diagnostic.Errorf(p.cur().Line, "expected '=', '[' or '(' after identifier '%s'", nameTok.Literal)
	}
}

func (p *Parser) parseCallTail(nameTok lexer.Token) (ast.Expr, error) {
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	fn, ok := p.funcs[nameTok.Literal]
	if !ok {
		return nil, diagnostic.Errorf(nameTok.Line, "call to undeclared function '%s'", nameTok.Literal)
	}
	var args []ast.Expr
	for !p.check(lexer.RPAREN) {
		if len(args) > 0 {
			if _, err := p.expect(lexer.COMMA, "','"); err != nil {
				return nil, err
			}
		}
		a, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	if len(args) != len(fn.Params) {
		return nil, diagnostic.Errorf(nameTok.Line, "function '%s' expects %d argument(s), got %d", nameTok.Literal, len(fn.Params), len(args))
	}
	for i, a := range args {
		want := fn.Params[i].Type
		if promoted := types.Promote(want, a.DataType()); promoted != want {
			return nil, diagnostic.Errorf(nameTok.Line, "argument %d to '%s' must be %s, got %s", i+1, nameTok.Literal, want, a.DataType())
		}
	}
	return ast.NewFunctionCall(nameTok.Line, nameTok.Literal, fn.ReturnType, args), nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if err := requireCondition(line, cond); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}

	prevInsideIf := p.insideIf
	p.insideIf = true
	thenBlock, err := p.parseBlockBody()
	if err != nil {
		return nil, err
	}

	var elseBlock *ast.Block
	if p.match(lexer.ELSE) {
		if p.check(lexer.IF) {
			nestedLine := p.cur().Line
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseBlock = ast.NewBlock(nestedLine, []ast.Stmt{nested})
		} else {
			elseBlock, err = p.parseBlockBody()
			if err != nil {
				return nil, err
			}
		}
	}
	p.insideIf = prevInsideIf
	return ast.NewIfElse(line, cond, thenBlock, elseBlock), nil
}

// parseBlockBody parses a braced `{ ... }` body as a *ast.Block value,
// used where the caller already knows it wants a Block rather than the
// generic Stmt interface (if/else/while bodies).
func (p *Parser) parseBlockBody() (*ast.Block, error) {
	stmt, err := p.parseBracedBlock()
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseBracedBlock() (*ast.Block, error) {
	line := p.cur().Line
	if _, err := p.expect(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	p.st.PushScope()
	stmts, err := p.parseStatements(lexer.RBRACE)
	p.st.PopScope()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return ast.NewBlock(line, stmts), nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if err := requireCondition(line, cond); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}

	p.nextLoopID++
	loopID := p.nextLoopID
	p.loopStack = append(p.loopStack, loopID)
	body, err := p.parseBlockBody()
	p.loopStack = p.loopStack[:len(p.loopStack)-1]
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(line, loopID, cond, body), nil
}

func (p *Parser) parseContinueBreak(isContinue bool) (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	if len(p.loopStack) == 0 {
		kw := "break"
		if isContinue {
			kw = "continue"
		}
		return nil, diagnostic.Errorf(line, "'%s' used outside of a loop", kw)
	}
	if _, err := p.expect(lexer.SEMICOLON, "';'"); err != nil {
		return nil, err
	}
	loopID := p.loopStack[len(p.loopStack)-1]
	return ast.NewContinueBreak(line, loopID, isContinue), nil
}

// --- expressions ---------------------------------------------------------
//
// Precedence, low to high: logical-or, logical-and, comparison (non-
// associative), additive, multiplicative, unary, primary (with an optional
// trailing `: type` cast).

func (p *Parser) parseLogical() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.OR) {
		line := p.cur().Line
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if left.DataType() == types.DOUBLE || right.DataType() == types.DOUBLE {
			return nil, diagnostic.Errorf(line, "'||' does not accept double operands")
		}
		left = ast.NewBinaryOp(line, "||", left, right, types.INTEGER)
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.AND) {
		line := p.cur().Line
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if left.DataType() == types.DOUBLE || right.DataType() == types.DOUBLE {
			return nil, diagnostic.Errorf(line, "'&&' does not accept double operands")
		}
		left = ast.NewBinaryOp(line, "&&", left, right, types.INTEGER)
	}
	return left, nil
}

func (p *Parser) relOp() (string, bool) {
	switch p.cur().Type {
	case lexer.LT:
		return "<", true
	case lexer.GT:
		return ">", true
	case lexer.LEQ:
		return "<=", true
	case lexer.GEQ:
		return ">=", true
	case lexer.EQ:
		return "==", true
	case lexer.NEQ:
		return "!=", true
	default:
		return "", false
	}
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	op, ok := p.relOp()
	if !ok {
		return left, nil
	}
	line := p.cur().Line
	p.advance()
	right, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	lt, rt := left.DataType(), right.DataType()
	if lt == types.STRING || rt == types.STRING {
		if lt != rt {
			return nil, diagnostic.Errorf(line, "cannot compare %s with %s", lt, rt)
		}
	} else if !types.IsNumeric(lt) || !types.IsNumeric(rt) {
		return nil, diagnostic.Errorf(line, "cannot compare %s with %s", lt, rt)
	}
	if _, chained := p.relOp(); chained {
		return nil, diagnostic.Errorf(p.cur().Line, "comparison operators cannot be chained")
	}
	return ast.NewBinaryOp(line, op, left, right, types.INTEGER), nil
}

func (p *Parser) parseExpression() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.PLUS) || p.check(lexer.MINUS) {
		opTok := p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		node, err := p.buildAdditive(opTok, left, right)
		if err != nil {
			return nil, err
		}
		left = node
	}
	return left, nil
}

func (p *Parser) buildAdditive(opTok lexer.Token, lhs, rhs ast.Expr) (ast.Expr, error) {
	op := "+"
	if opTok.Type == lexer.MINUS {
		op = "-"
	}
	lt, rt := lhs.DataType(), rhs.DataType()

	if op == "-" {
		if !types.IsNumeric(lt) || !types.IsNumeric(rt) {
			return nil, diagnostic.Errorf(opTok.Line, "'-' requires numeric operands, got %s and %s", lt, rt)
		}
		if (lt == types.CHAR && rt == types.DOUBLE) || (lt == types.DOUBLE && rt == types.CHAR) {
			return nil, diagnostic.Errorf(opTok.Line, "cannot mix char and double with '-'")
		}
		return ast.NewBinaryOp(opTok.Line, op, lhs, rhs, types.Promote(lt, rt)), nil
	}

	if lt == types.STRING || rt == types.STRING {
		if lt != types.STRING && lt != types.CHAR {
			return nil, diagnostic.Errorf(opTok.Line, "cannot concatenate %s with a string", lt)
		}
		if rt != types.STRING && rt != types.CHAR {
			return nil, diagnostic.Errorf(opTok.Line, "cannot concatenate %s with a string", rt)
		}
		return ast.NewBinaryOp(opTok.Line, op, lhs, rhs, types.STRING), nil
	}
	if !types.IsNumeric(lt) || !types.IsNumeric(rt) {
		return nil, diagnostic.Errorf(opTok.Line, "'+' requires numeric or string operands, got %s and %s", lt, rt)
	}
	if (lt == types.CHAR && rt == types.DOUBLE) || (lt == types.DOUBLE && rt == types.CHAR) {
		return nil, diagnostic.Errorf(opTok.Line, "cannot mix char and double with '+'")
	}
	return ast.NewBinaryOp(opTok.Line, op, lhs, rhs, types.Promote(lt, rt)), nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.STAR) || p.check(lexer.SLASH) || p.check(lexer.PERCENT) {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		node, err := p.buildMultiplicative(opTok, left, right)
		if err != nil {
			return nil, err
		}
		left = node
	}
	return left, nil
}

func (p *Parser) buildMultiplicative(opTok lexer.Token, lhs, rhs ast.Expr) (ast.Expr, error) {
	lt, rt := lhs.DataType(), rhs.DataType()

	switch opTok.Type {
	case lexer.PERCENT:
		if lt != types.INTEGER || rt != types.INTEGER {
			return nil, diagnostic.Errorf(opTok.Line, "'%%' requires int operands, got %s and %s", lt, rt)
		}
		return ast.NewBinaryOp(opTok.Line, "%", lhs, rhs, types.INTEGER), nil

	case lexer.SLASH:
		if lt == types.CHAR || rt == types.CHAR {
			return nil, diagnostic.Errorf(opTok.Line, "'/' does not accept char operands")
		}
		if lt == types.STRING || rt == types.STRING {
			return nil, diagnostic.Errorf(opTok.Line, "'/' does not accept string operands")
		}
		return ast.NewBinaryOp(opTok.Line, "/", lhs, rhs, types.Promote(lt, rt)), nil

	default: // STAR
		if lt == types.INTEGER && rt == types.CHAR {
			return ast.NewBinaryOp(opTok.Line, "*", lhs, rhs, types.STRING), nil
		}
		if lt == types.CHAR && rt == types.INTEGER {
			return ast.NewBinaryOp(opTok.Line, "*", rhs, lhs, types.STRING), nil
		}
		if lt == types.STRING || rt == types.STRING {
			return nil, diagnostic.Errorf(opTok.Line, "'*' does not accept string operands")
		}
		if (lt == types.DOUBLE && rt == types.CHAR) || (lt == types.CHAR && rt == types.DOUBLE) {
			return nil, diagnostic.Errorf(opTok.Line, "cannot mix char and double with '*'")
		}
		if lt == types.CHAR || rt == types.CHAR {
			return nil, diagnostic.Errorf(opTok.Line, "'*' does not accept two char operands")
		}
		return ast.NewBinaryOp(opTok.Line, "*", lhs, rhs, types.Promote(lt, rt)), nil
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur().Type {
	case lexer.MINUS:
		line := p.cur().Line
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !types.IsNumeric(operand.DataType()) {
			return nil, diagnostic.Errorf(line, "unary '-' requires a numeric operand, got %s", operand.DataType())
		}
		return ast.NewUnaryOp(line, "-", operand, operand.DataType()), nil

	case lexer.NOT:
		line := p.cur().Line
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if operand.DataType() == types.DOUBLE || operand.DataType() == types.STRING {
			return nil, diagnostic.Errorf(line, "'!' requires a char or int operand, got %s", operand.DataType())
		}
		return ast.NewUnaryOp(line, "!", operand, types.INTEGER), nil

	default:
		return p.parsePrimaryWithCast()
	}
}

func (p *Parser) parsePrimaryWithCast() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.check(lexer.COLON) {
		return expr, nil
	}
	line := p.cur().Line
	p.advance()
	target, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return buildCast(line, expr, target)
}

// requireCondition rejects condition expressions WAT's (if)/(br_if) cannot
// consume directly: only CHAR and INTEGER leave a plain i32 truth value on
// the stack.
func requireCondition(line int, cond ast.Expr) error {
	if cond.DataType() == types.DOUBLE || cond.DataType() == types.STRING {
		return diagnostic.Errorf(line, "condition must be an int or char value, got %s", cond.DataType())
	}
	return nil
}

func buildCast(line int, expr ast.Expr, target types.DataType) (ast.Expr, error) {
	src := expr.DataType()
	switch {
	case src == target:
		return expr, nil
	case types.IsNumeric(src) && types.IsNumeric(target) && target != types.CHAR:
		return ast.NewUnaryOp(line, "cast", expr, target), nil
	case src == types.CHAR && target == types.STRING:
		return ast.NewUnaryOp(line, "cast", expr, target), nil
	default:
		return nil, diagnostic.Errorf(line, "cannot cast %s to %s", src, target)
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.LPAREN:
		p.advance()
		e, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return e, nil

	case lexer.SIZE:
		p.advance()
		if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
			return nil, err
		}
		e, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if e.DataType() != types.STRING {
			return nil, diagnostic.Errorf(tok.Line, "size() requires a string operand, got %s", e.DataType())
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(tok.Line, "size", e, types.INTEGER), nil

	case lexer.SQRT:
		p.advance()
		if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
			return nil, err
		}
		e, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if !types.IsNumeric(e.DataType()) {
			return nil, diagnostic.Errorf(tok.Line, "sqrt() requires a numeric operand, got %s", e.DataType())
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(tok.Line, "sqrt", e, types.DOUBLE), nil

	case lexer.INT_LIT:
		p.advance()
		v, convErr := strconv.ParseInt(tok.Literal, 10, 64)
		if convErr != nil {
			return nil, diagnostic.Errorf(tok.Line, "invalid integer literal '%s'", tok.Literal)
		}
		return ast.NewLiteralValue(tok.Line, types.INTEGER, v, 0), nil

	case lexer.FLOAT_LIT:
		p.advance()
		v, convErr := strconv.ParseFloat(tok.Literal, 64)
		if convErr != nil {
			return nil, diagnostic.Errorf(tok.Line, "invalid float literal '%s'", tok.Literal)
		}
		return ast.NewLiteralValue(tok.Line, types.DOUBLE, 0, v), nil

	case lexer.CHAR_LIT:
		p.advance()
		return ast.NewLiteralValue(tok.Line, types.CHAR, int64(tok.Literal[0]), 0), nil

	case lexer.STRING_LIT:
		p.advance()
		return p.internString(tok.Line, tok.Literal), nil

	case lexer.IDENT:
		p.advance()
		if p.check(lexer.LPAREN) {
			return p.parseCallTail(tok)
		}
		v, ok := p.st.Lookup(tok.Literal)
		if !ok {
			return nil, diagnostic.Errorf(tok.Line, "undeclared variable '%s'", tok.Literal)
		}
		variable := ast.NewVariable(tok.Line, v.UID, v.Name, v.Type)
		if !p.check(lexer.LBRACKET) {
			return variable, nil
		}
		p.advance()
		if v.Type != types.STRING {
			return nil, diagnostic.Errorf(tok.Line, "cannot index a %s value", v.Type)
		}
		idx, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if idx.DataType() != types.INTEGER {
			return nil, diagnostic.Errorf(tok.Line, "string index must be an int, got %s", idx.DataType())
		}
		if _, err := p.expect(lexer.RBRACKET, "']'"); err != nil {
			return nil, err
		}
		return ast.NewIndex(tok.Line, variable, idx), nil

	default:
		return nil, diagnostic.Errorf(tok.Line, "unexpected token '%s'", tok.Literal)
	}
}

func (p *Parser) internString(line int, s string) *ast.LiteralString {
	bytes := []byte(s)
	offset := p.strOffset
	p.strings = append(p.strings, ast.StringLiteral{Offset: offset, Bytes: bytes})
	p.strOffset += len(bytes) + 1
	return ast.NewLiteralString(line, offset, bytes)
}
