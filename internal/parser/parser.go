// Package parser implements the recursive-descent parser of spec §4.2:
// single-token lookahead with checkpoint/backtrack, producing an ast.Program
// from a token.Token stream. Grounded on spec §4.2's grammar description;
// the checkpoint/backtrack shape follows the pack's own hand-rolled parser
// conventions (a plain index into the token slice, saved and restored
// around speculative lookahead, rather than a parser-combinator library —
// this toolchain has no third-party parsing dependency to reach for, and
// the grammar is small enough that a library would add indirection without
// buying anything; see DESIGN.md).
package parser

import (
	"stannel/internal/ast"
	"stannel/internal/diag"
	"stannel/internal/token"
)

type Parser struct {
	toks []token.Token
	pos  int
}

func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Checkpoint/restore let speculative lookahead (the optional "_k" subscript
// suffix) back out cleanly without a dedicated grammar rule per call site.
type Checkpoint int

func (p *Parser) checkpoint() Checkpoint { return Checkpoint(p.pos) }
func (p *Parser) restore(cp Checkpoint)  { p.pos = int(cp) }

func (p *Parser) current() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

func (p *Parser) advance() token.Token {
	tok := p.current()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func pos(tok token.Token) diag.Pos { return diag.Pos{Line: tok.Line, Column: tok.Column} }

func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	tok := p.current()
	if tok.Kind == kind {
		return p.advance(), nil
	}
	if tok.Kind == token.EOF {
		return token.Token{}, &diag.ParseError{At: pos(tok), Expected: kind.String(), Kind: "unclosed"}
	}
	return token.Token{}, &diag.ParseError{At: pos(tok), Expected: kind.String(), Found: tok.String(), Kind: "expected"}
}

// ParseProgram parses the full top-level `name = term` declaration list.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	var decls []ast.Declaration
	for p.current().Kind != token.EOF {
		nameTok, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Assign); err != nil {
			return nil, err
		}
		term, err := p.parseTerm(nil, true)
		if err != nil {
			return nil, err
		}
		decls = append(decls, ast.Declaration{Name: nameTok.Text, Term: term, At: pos(nameTok)})
	}
	return &ast.Program{Declarations: decls}, nil
}

func containsKind(set []token.Kind, k token.Kind) bool {
	for _, s := range set {
		if s == k {
			return true
		}
	}
	return false
}

// parseTerm collects expressions until EOF, a stop-kind, an explicit
// Period, or (when allowDeclBoundary) an upcoming "identifier =" pair that
// marks the start of the next top-level declaration. Inside a nested term
// (allowDeclBoundary == false) the same "identifier =" shape is a parse
// error (spec §4.2: "except in nested contexts, where it is an error").
func (p *Parser) parseTerm(stop []token.Kind, allowDeclBoundary bool) (ast.Term, error) {
	var body []ast.Expression
	for {
		tok := p.current()
		if tok.Kind == token.EOF || containsKind(stop, tok.Kind) {
			break
		}
		if tok.Kind == token.Period {
			p.advance()
			break
		}
		if tok.Kind == token.Identifier && p.peekAt(1).Kind == token.Assign {
			if allowDeclBoundary {
				break
			}
			return ast.Term{}, &diag.ParseError{At: pos(tok), Kind: "nested-assign"}
		}
		expr, err := p.parseExpression()
		if err != nil {
			return ast.Term{}, err
		}
		body = append(body, expr)
	}
	return ast.Term{Body: body}, nil
}

// parseBodyTerm parses a single nested body: either a parenthesised term
// `(E...)` or one bare expression, used for if/while/repeat sub-bodies.
func (p *Parser) parseBodyTerm() (ast.Term, error) {
	if p.current().Kind == token.OpenParen {
		p.advance()
		term, err := p.parseTerm([]token.Kind{token.CloseParen}, false)
		if err != nil {
			return ast.Term{}, err
		}
		if _, err := p.expect(token.CloseParen); err != nil {
			return ast.Term{}, err
		}
		return term, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return ast.Term{}, err
	}
	return ast.Term{Body: []ast.Expression{expr}}, nil
}

// maybeSubscript speculatively consumes a "_k" suffix, restoring position
// if the underscore isn't followed by a number.
func (p *Parser) maybeSubscript() *uint16 {
	if p.current().Kind != token.Underscore {
		return nil
	}
	cp := p.checkpoint()
	p.advance()
	if p.current().Kind != token.Number {
		p.restore(cp)
		return nil
	}
	v := p.advance().Value
	return &v
}

func (p *Parser) parseExpression() (ast.Expression, error) {
	tok := p.current()
	switch tok.Kind {
	case token.Number:
		p.advance()
		return ast.Number{Base: ast.Base{At: pos(tok)}, Value: tok.Value}, nil
	case token.Offset:
		p.advance()
		n, err := p.expect(token.Number)
		if err != nil {
			return nil, err
		}
		return ast.Offset{Base: ast.Base{At: pos(tok)}, Value: n.Value}, nil
	case token.Quote:
		p.advance()
		name, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		sub := p.maybeSubscript()
		return ast.NamedTermRef{Base: ast.Base{At: pos(tok)}, Name: name.Text, Subscript: sub}, nil
	case token.OpenParen:
		p.advance()
		body, err := p.parseTerm([]token.Kind{token.CloseParen}, false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.CloseParen); err != nil {
			return nil, err
		}
		return ast.AnonymousTerm{Base: ast.Base{At: pos(tok)}, Body: body}, nil
	case token.If:
		p.advance()
		cond, err := p.parseBodyTerm()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Then); err != nil {
			return nil, err
		}
		then, err := p.parseBodyTerm()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Else); err != nil {
			return nil, err
		}
		els, err := p.parseBodyTerm()
		if err != nil {
			return nil, err
		}
		return ast.If{Base: ast.Base{At: pos(tok)}, Cond: cond, Then: then, Else: els}, nil
	case token.While:
		p.advance()
		cond, err := p.parseBodyTerm()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Do); err != nil {
			return nil, err
		}
		body, err := p.parseBodyTerm()
		if err != nil {
			return nil, err
		}
		return ast.While{Base: ast.Base{At: pos(tok)}, Cond: cond, Body: body}, nil
	case token.Repeat:
		p.advance()
		count := p.maybeSubscript()
		body, err := p.parseBodyTerm()
		if err != nil {
			return nil, err
		}
		if count != nil {
			return ast.Repeat{Base: ast.Base{At: pos(tok)}, Count: *count, Body: body}, nil
		}
		return ast.Forever{Base: ast.Base{At: pos(tok)}, Body: body}, nil
	case token.OpenSquare:
		return p.parseAlternation(tok)
	case token.Identifier:
		p.advance()
		sub := p.maybeSubscript()
		return ast.NamedTermApp{Base: ast.Base{At: pos(tok)}, Name: tok.Text, Subscript: sub}, nil
	default:
		return nil, &diag.ParseError{At: pos(tok), Expected: "expression", Found: tok.String(), Kind: "expected"}
	}
}

func (p *Parser) parseAlternation(open token.Token) (ast.Expression, error) {
	p.advance() // consume '['
	var arms []ast.Arm
	for {
		offTok, err := p.expect(token.Offset)
		if err != nil {
			return nil, err
		}
		n, err := p.expect(token.Number)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Arrow); err != nil {
			return nil, err
		}
		body, err := p.parseTerm([]token.Kind{token.VerticalBar, token.CloseSquare}, false)
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.Arm{ChannelOffset: n.Value, Body: body, At: pos(offTok)})
		if p.current().Kind == token.VerticalBar {
			p.advance()
			continue
		}
		break
	}
	if len(arms) == 0 {
		return nil, &diag.ParseError{At: pos(open), Kind: "expected", Expected: "at least one alternation arm", Found: p.current().String()}
	}
	if _, err := p.expect(token.CloseSquare); err != nil {
		return nil, err
	}
	return ast.Alternation{Base: ast.Base{At: pos(open)}, Arms: arms}, nil
}
