package codegen

import "stannel/internal/isa"

// peephole applies the token-level rewrites of spec §4.4 step 5: a
// literal immediately followed by drop contributes nothing and is
// removed; dup immediately followed by drop is the original value alone;
// swap immediately followed by swap is the identity and both vanish;
// adjacent number literals feeding + or - fold into one literal.
//
// Labels are opaque boundaries: a rewrite never reaches across one, since
// a jump could land directly between the two tokens at runtime.
func peephole(in []Token) []Token {
	out := make([]Token, 0, len(in))
	for _, t := range in {
		out = append(out, t)
		out = tryCollapse(out)
	}
	return out
}

func tryCollapse(toks []Token) []Token {
	for {
		n := len(toks)
		if n < 2 {
			return toks
		}
		a, b := toks[n-2], toks[n-1]

		if a.Kind == TokNumber && isDrop(b) {
			toks = toks[:n-2]
			continue
		}
		if isDup(a) && isDrop(b) {
			toks = toks[:n-2]
			continue
		}
		if isSwap(a) && isSwap(b) {
			toks = toks[:n-2]
			continue
		}
		if n >= 3 {
			c := toks[n-3]
			if c.Kind == TokNumber && a.Kind == TokNumber && isOp(b, isa.OpAdd) {
				folded := c.Value + a.Value
				toks = append(toks[:n-3], Num(folded))
				continue
			}
			if c.Kind == TokNumber && a.Kind == TokNumber && isOp(b, isa.OpSub) {
				folded := c.Value - a.Value
				toks = append(toks[:n-3], Num(folded))
				continue
			}
		}
		return toks
	}
}

func isDrop(t Token) bool {
	return t.Kind == TokInstr && t.Instr.Group == isa.GroupStack && t.Instr.Operand == byte(isa.SDrop)
}

func isDup(t Token) bool {
	return t.Kind == TokInstr && t.Instr.Group == isa.GroupStack && t.Instr.Operand == byte(isa.SDup)
}

func isSwap(t Token) bool {
	return t.Kind == TokInstr && t.Instr.Group == isa.GroupStack && t.Instr.Operand == byte(isa.SSwap)
}

func isOp(t Token, op isa.Op) bool {
	return t.Kind == TokInstr && t.Instr.Group == isa.GroupALU && t.Instr.Operand == byte(op)
}
