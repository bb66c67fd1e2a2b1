// Package token defines the lexical token kinds produced by internal/lexer
// (spec §4.1). Grounded on the teacher's own single-file tokenizer in
// vm/parse.go, generalised from its flat assembly mnemonic set to the
// richer source-language token kinds the type-checked language needs.
package token

import "fmt"

type Kind int

const (
	Number Kind = iota
	Assign
	OpenParen
	CloseParen
	OpenSquare
	CloseSquare
	VerticalBar
	Arrow
	Offset
	Quote
	Underscore
	If
	Then
	Else
	While
	Do
	Repeat
	Period
	Identifier
	EOF
)

func (k Kind) String() string {
	names := [...]string{
		"number", "=", "(", ")", "[", "]", "|", "->", "@", "'", "_",
		"if", "then", "else", "while", "do", "repeat", ".", "identifier", "eof",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Token is one lexed unit with its source location (spec §4.1: "each
// carrying (line, column)").
type Token struct {
	Kind   Kind
	Line   int
	Column int

	// Value is the numeric literal's value when Kind == Number.
	Value uint16
	// Text is the raw identifier text when Kind == Identifier.
	Text string
}

func (t Token) String() string {
	switch t.Kind {
	case Number:
		return fmt.Sprintf("%d", t.Value)
	case Identifier:
		return t.Text
	default:
		return t.Kind.String()
	}
}

// keywords maps reserved identifier spellings to their dedicated Kind.
var keywords = map[string]Kind{
	"if":     If,
	"then":   Then,
	"else":   Else,
	"while":  While,
	"do":     Do,
	"repeat": Repeat,
}

// Keyword reports whether text is a reserved word and, if so, its Kind.
func Keyword(text string) (Kind, bool) {
	k, ok := keywords[text]
	return k, ok
}
