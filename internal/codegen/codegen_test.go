package codegen

import (
	"strings"
	"testing"

	"stannel/internal/isa"
	"stannel/internal/lexer"
	"stannel/internal/parser"
)

func mustGenerate(t *testing.T, src string) []*Block {
	t.Helper()
	toks, errs := lexer.New([]byte(src)).Tokenize()
	if !errs.Empty() {
		t.Fatalf("unexpected lex errors: %v", errs)
	}
	prog, err := parser.New(toks).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	blocks, err := Generate(prog)
	if err != nil {
		t.Fatalf("unexpected codegen error: %v", err)
	}
	return blocks
}

func findBlock(blocks []*Block, label string) *Block {
	for _, b := range blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

func assertHasInstr(t *testing.T, toks []Token, group isa.Group, operand byte) {
	t.Helper()
	for _, tok := range toks {
		if tok.Kind == TokInstr && tok.Instr.Group == group && tok.Instr.Operand == operand {
			return
		}
	}
	t.Fatalf("expected an instruction in group %v operand %d, got %v", group, operand, toks)
}

func TestGenerateEntryBlockIsLabelledForMain(t *testing.T) {
	blocks := mustGenerate(t, "main = 1 2 +")
	main := findBlock(blocks, "f_main")
	if main == nil {
		t.Fatalf("expected a block labelled f_main, got labels %v", labelsOf(blocks))
	}
	assertHasInstr(t, main.Tokens, isa.GroupALU, byte(isa.OpAdd))
}

func TestGenerateCallsHelperDeclaration(t *testing.T) {
	blocks := mustGenerate(t, "double = dup +\nmain = 3 double")
	if findBlock(blocks, "f_double") == nil {
		t.Fatalf("expected f_double entry block, got %v", labelsOf(blocks))
	}
	main := findBlock(blocks, "f_main")
	found := false
	for _, tok := range main.Tokens {
		if tok.Kind == TokLabel && tok.Label == "f_double" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected main to reference f_double, got %v", main.Tokens)
	}
}

func TestGenerateIfEmitsConditionalJump(t *testing.T) {
	blocks := mustGenerate(t, "main = 1 2 if (<) then (7) else (13)")
	main := findBlock(blocks, "f_main")
	assertHasInstr(t, main.Tokens, isa.GroupALU, byte(isa.OpCompare))
	foundCondJump := false
	for _, tok := range main.Tokens {
		if tok.Kind == TokInstr && tok.Instr.Group == isa.GroupJump && tok.Instr.Operand == byte(isa.CondSignedLess) {
			foundCondJump = true
		}
	}
	if !foundCondJump {
		t.Fatalf("expected a signed-less conditional jump in %v", main.Tokens)
	}
}

func TestGenerateWhileLoopClosesBackToCondition(t *testing.T) {
	blocks := mustGenerate(t, "main = while (0 0 ==) do (drop)")
	var condBlock *Block
	for _, b := range blocks {
		for _, tok := range b.Tokens {
			if tok.Kind == TokInstr && tok.Instr.Group == isa.GroupALU && tok.Instr.Operand == byte(isa.OpCompare) {
				condBlock = b
			}
		}
	}
	if condBlock == nil {
		t.Fatalf("expected some block computing the while condition, got %v", labelsOf(blocks))
	}
	assertHasInstr(t, condBlock.Tokens, isa.GroupJump, byte(isa.CondNotEqual))
}

func TestGenerateForeverLoopsUnconditionally(t *testing.T) {
	blocks := mustGenerate(t, "main = repeat (drop)")
	foundAlways := false
	for _, b := range blocks {
		for _, tok := range b.Tokens {
			if tok.Kind == TokInstr && tok.Instr.Group == isa.GroupJump && tok.Instr.Operand == byte(isa.CondAlways) {
				foundAlways = true
			}
		}
	}
	if !foundAlways {
		t.Fatalf("expected an unconditional jump somewhere in %v", labelsOf(blocks))
	}
}

func TestGenerateRepeatCountedLoop(t *testing.T) {
	blocks := mustGenerate(t, "main = repeat_3 (1 +)")
	foundCmp := false
	for _, b := range blocks {
		for _, tok := range b.Tokens {
			if tok.Kind == TokInstr && tok.Instr.Group == isa.GroupALU && tok.Instr.Operand == byte(isa.OpCompare) {
				foundCmp = true
			}
		}
	}
	if !foundCmp {
		t.Fatalf("expected the repeat_3 loop counter to be compared against a bound, got %v", labelsOf(blocks))
	}
}

func TestGenerateChanProducesCreateAndDup(t *testing.T) {
	blocks := mustGenerate(t, "main = chan drop drop")
	main := findBlock(blocks, "f_main")
	assertHasInstr(t, main.Tokens, isa.GroupProcess, byte(isa.PCreateChannel))
	assertHasInstr(t, main.Tokens, isa.GroupStack, byte(isa.SDup))
}

func TestGenerateAlternationEmitsStartWaitEnd(t *testing.T) {
	blocks := mustGenerate(t, "main = chan [ @0 -> (drop) ]")
	foundStart, foundWait, foundEnd := false, false, false
	for _, b := range blocks {
		for _, tok := range b.Tokens {
			if tok.Kind == TokInstr && tok.Instr.Group == isa.GroupProcess {
				switch isa.ProcessOp(tok.Instr.Operand) {
				case isa.PAlternationStart:
					foundStart = true
				case isa.PAlternationWait:
					foundWait = true
				case isa.PAlternationEnd:
					foundEnd = true
				}
			}
		}
	}
	if !foundStart || !foundWait || !foundEnd {
		t.Fatalf("expected AlternationStart/Wait/End across blocks, got start=%v wait=%v end=%v", foundStart, foundWait, foundEnd)
	}
}

func TestPeepholeDropsLiteralThenDrop(t *testing.T) {
	in := []Token{Num(5), Instr(isa.Stack(isa.SDrop))}
	out := peephole(in)
	if len(out) != 0 {
		t.Fatalf("expected literal-then-drop to vanish, got %v", out)
	}
}

func TestPeepholeCollapsesSwapSwap(t *testing.T) {
	in := []Token{Instr(isa.Stack(isa.SSwap)), Instr(isa.Stack(isa.SSwap))}
	out := peephole(in)
	if len(out) != 0 {
		t.Fatalf("expected swap-swap to vanish, got %v", out)
	}
}

func TestPeepholeFoldsAdjacentAdds(t *testing.T) {
	in := []Token{Num(2), Num(3), Instr(isa.ALU(isa.OpAdd))}
	out := peephole(in)
	if len(out) != 1 || out[0].Kind != TokNumber || out[0].Value != 5 {
		t.Fatalf("expected constant folding to 5, got %v", out)
	}
}

func TestCollapseRewritesTrivialRedirectChains(t *testing.T) {
	g := NewGenerator()
	entry := &Block{Label: "f_main", Tokens: []Token{Lbl("l_1"), Instr(isa.Jump(isa.CondAlways))}}
	hop := &Block{Label: "l_1", Tokens: []Token{Lbl("l_2"), Instr(isa.Jump(isa.CondAlways))}}
	real := &Block{Label: "l_2", Tokens: []Token{Instr(isa.ALU(isa.OpAdd)), Instr(isa.Function(isa.FReturn))}}
	g.blocks = []*Block{entry, hop, real}
	g.collapse()

	if findBlock(g.blocks, "l_1") != nil {
		t.Fatalf("expected the trivial redirect block l_1 to be collapsed away, got %v", labelsOf(g.blocks))
	}
	main := findBlock(g.blocks, "f_main")
	foundDirect := false
	for _, tok := range main.Tokens {
		if tok.Kind == TokLabel && tok.Label == "l_2" {
			foundDirect = true
		}
	}
	if !foundDirect {
		t.Fatalf("expected f_main to jump directly to l_2, got %v", main.Tokens)
	}
}

func TestRenderProducesParsableLabelsAndMnemonics(t *testing.T) {
	blocks := mustGenerate(t, "main = 1 2 +")
	text := Render(blocks)
	if !strings.Contains(text, "f_main:") {
		t.Fatalf("expected a f_main: label line, got %q", text)
	}
	if !strings.Contains(text, "+") {
		t.Fatalf("expected the add mnemonic in output, got %q", text)
	}
}

func labelsOf(blocks []*Block) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b.Label)
	}
	return out
}
