package parser

import (
	"fmt"
	"testing"

	"stannel/internal/ast"
	"stannel/internal/lexer"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func parseSource(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, errs := lexer.New([]byte(src)).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	prog, err := New(toks).ParseProgram()
	assert(t, err == nil, "unexpected parse error: %v", err)
	return prog
}

func TestArithmeticDeclaration(t *testing.T) {
	prog := parseSource(t, "main = 1 2 +")
	assert(t, len(prog.Declarations) == 1, "expected 1 declaration, got %d", len(prog.Declarations))
	decl := prog.Declarations[0]
	assert(t, decl.Name == "main", "expected name main, got %q", decl.Name)
	assert(t, len(decl.Term.Body) == 3, "expected 3 expressions, got %d", len(decl.Term.Body))
	_, isNum := decl.Term.Body[0].(ast.Number)
	assert(t, isNum, "expected first expression to be a Number, got %T", decl.Term.Body[0])
	app, isApp := decl.Term.Body[2].(ast.NamedTermApp)
	assert(t, isApp && app.Name == "+", "expected trailing '+' application, got %+v", decl.Term.Body[2])
}

func TestMultipleDeclarationsSplitOnAssignBoundary(t *testing.T) {
	prog := parseSource(t, "double = 2 +\nmain = 5 double")
	assert(t, len(prog.Declarations) == 2, "expected 2 declarations, got %d", len(prog.Declarations))
	assert(t, prog.Declarations[0].Name == "double", "expected first decl 'double', got %q", prog.Declarations[0].Name)
	assert(t, prog.Declarations[1].Name == "main", "expected second decl 'main', got %q", prog.Declarations[1].Name)
	assert(t, len(prog.Declarations[0].Term.Body) == 2, "double body should have 2 exprs, got %d", len(prog.Declarations[0].Term.Body))
}

func TestIfThenElse(t *testing.T) {
	prog := parseSource(t, "main = 1 2 if (<) then (7) else (13)")
	body := prog.Declarations[0].Term.Body
	ifExpr, ok := body[len(body)-1].(ast.If)
	assert(t, ok, "expected trailing If expression, got %T", body[len(body)-1])
	assert(t, len(ifExpr.Cond.Body) == 1, "cond should have 1 expr, got %d", len(ifExpr.Cond.Body))
	assert(t, len(ifExpr.Then.Body) == 1, "then should have 1 expr, got %d", len(ifExpr.Then.Body))
	assert(t, len(ifExpr.Else.Body) == 1, "else should have 1 expr, got %d", len(ifExpr.Else.Body))
}

func TestCountedRepeat(t *testing.T) {
	prog := parseSource(t, "main = 0 repeat_10 (1 +)")
	body := prog.Declarations[0].Term.Body
	rep, ok := body[len(body)-1].(ast.Repeat)
	assert(t, ok, "expected trailing Repeat expression, got %T", body[len(body)-1])
	assert(t, rep.Count == 10, "expected count 10, got %d", rep.Count)
	assert(t, len(rep.Body.Body) == 2, "expected repeat body of 2 exprs, got %d", len(rep.Body.Body))
}

func TestBareRepeatIsForever(t *testing.T) {
	prog := parseSource(t, "main = repeat (1)")
	body := prog.Declarations[0].Term.Body
	_, ok := body[0].(ast.Forever)
	assert(t, ok, "expected Forever expression, got %T", body[0])
}

func TestWhileDo(t *testing.T) {
	prog := parseSource(t, "main = while (1) do (2)")
	body := prog.Declarations[0].Term.Body
	w, ok := body[0].(ast.While)
	assert(t, ok, "expected While expression, got %T", body[0])
	assert(t, len(w.Cond.Body) == 1 && len(w.Body.Body) == 1, "unexpected body shapes: %+v", w)
}

func TestAlternation(t *testing.T) {
	prog := parseSource(t, "main = [ @0 -> 1 | @1 -> 2 ]")
	body := prog.Declarations[0].Term.Body
	alt, ok := body[0].(ast.Alternation)
	assert(t, ok, "expected Alternation expression, got %T", body[0])
	assert(t, len(alt.Arms) == 2, "expected 2 arms, got %d", len(alt.Arms))
	assert(t, alt.Arms[0].ChannelOffset == 0, "arm0 offset: got %d", alt.Arms[0].ChannelOffset)
	assert(t, alt.Arms[1].ChannelOffset == 1, "arm1 offset: got %d", alt.Arms[1].ChannelOffset)
}

func TestQuotedNamedTermRefWithSubscript(t *testing.T) {
	prog := parseSource(t, "main = 'proc_3")
	body := prog.Declarations[0].Term.Body
	ref, ok := body[0].(ast.NamedTermRef)
	assert(t, ok, "expected NamedTermRef, got %T", body[0])
	assert(t, ref.Name == "proc", "expected name proc, got %q", ref.Name)
	assert(t, ref.Subscript != nil && *ref.Subscript == 3, "expected subscript 3, got %v", ref.Subscript)
}

func TestNestedAssignIsParseError(t *testing.T) {
	toks, errs := lexer.New([]byte("main = (x = 1)")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	_, err := New(toks).ParseProgram()
	assert(t, err != nil, "expected a parse error for '=' inside a nested term")
}

func TestUnclosedParenIsParseError(t *testing.T) {
	toks, errs := lexer.New([]byte("main = (1 2")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	_, err := New(toks).ParseProgram()
	assert(t, err != nil, "expected a parse error for unclosed paren")
}
