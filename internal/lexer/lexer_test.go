package lexer

import (
	"fmt"
	"testing"

	"stannel/internal/token"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func kinds(toks []token.Token) []token.Kind {
	var ks []token.Kind
	for _, tk := range toks {
		ks = append(ks, tk.Kind)
	}
	return ks
}

func TestSkipsCommentsAndWhitespace(t *testing.T) {
	toks, errs := New([]byte("-- a comment\n  1   2")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	assert(t, len(toks) == 3, "expected 2 numbers + eof, got %d: %v", len(toks), toks)
	assert(t, toks[0].Kind == token.Number && toks[0].Value == 1, "expected Number(1), got %+v", toks[0])
	assert(t, toks[1].Kind == token.Number && toks[1].Value == 2, "expected Number(2), got %+v", toks[1])
}

func TestArithmeticProgramTokens(t *testing.T) {
	toks, errs := New([]byte("main = 1 2 +")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	got := kinds(toks)
	want := []token.Kind{token.Identifier, token.Assign, token.Number, token.Number, token.Identifier, token.EOF}
	assert(t, len(got) == len(want), "length mismatch: got %v want %v", got, want)
	for i := range want {
		assert(t, got[i] == want[i], "token %d: got %v want %v", i, got[i], want[i])
	}
	assert(t, toks[4].Text == "+", "expected '+' identifier, got %q", toks[4].Text)
}

func TestOperatorIdentifiersMaximalMunch(t *testing.T) {
	toks, errs := New([]byte("<= >= == != < > ! ?")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	want := []string{"<=", ">=", "==", "!=", "<", ">", "!", "?"}
	for i, w := range want {
		assert(t, toks[i].Kind == token.Identifier && toks[i].Text == w, "token %d: got %+v want %q", i, toks[i], w)
	}
}

func TestAssignVersusEquality(t *testing.T) {
	toks, errs := New([]byte("a = b == c")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	assert(t, toks[1].Kind == token.Assign, "expected Assign, got %+v", toks[1])
	assert(t, toks[3].Kind == token.Identifier && toks[3].Text == "==", "expected '==' identifier, got %+v", toks[3])
}

func TestArrowVersusMinusIdentifier(t *testing.T) {
	toks, errs := New([]byte("a -> b - c")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	assert(t, toks[1].Kind == token.Arrow, "expected Arrow, got %+v", toks[1])
	assert(t, toks[3].Kind == token.Identifier && toks[3].Text == "-", "expected '-' identifier, got %+v", toks[3])
}

func TestKeywordsAndPunctuation(t *testing.T) {
	toks, errs := New([]byte("if (1) then [ @1 | _ ] else 'f.")).Tokenize()
	assert(t, errs.Empty(), "unexpected lex errors: %v", errs)
	want := []token.Kind{
		token.If, token.OpenParen, token.Number, token.CloseParen, token.Then,
		token.OpenSquare, token.Offset, token.Number, token.VerticalBar, token.Underscore, token.CloseSquare,
		token.Else, token.Quote, token.Identifier, token.Period, token.EOF,
	}
	got := kinds(toks)
	assert(t, len(got) == len(want), "length mismatch: got %v want %v", got, want)
	for i := range want {
		assert(t, got[i] == want[i], "token %d: got %v want %v", i, got[i], want[i])
	}
}

func TestNumericOverflowRecordsErrorAndContinues(t *testing.T) {
	toks, errs := New([]byte("99999 1")).Tokenize()
	assert(t, !errs.Empty(), "expected an overflow error")
	assert(t, errs.Errs[0].Kind == "numeric-overflow", "expected numeric-overflow kind, got %q", errs.Errs[0].Kind)
	assert(t, toks[1].Kind == token.Number && toks[1].Value == 1, "lexing should continue past the overflow, got %+v", toks[1])
}

func TestUnrecognisedCharacterRecordsErrorAndContinues(t *testing.T) {
	toks, errs := New([]byte("1 $ 2")).Tokenize()
	assert(t, !errs.Empty(), "expected an unrecognised-token error")
	assert(t, errs.Errs[0].Kind == "unrecognised-token", "expected unrecognised-token kind, got %q", errs.Errs[0].Kind)
	assert(t, toks[0].Value == 1 && toks[1].Value == 2, "lexing should skip past the bad character, got %+v", toks)
}
