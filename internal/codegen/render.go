package codegen

import (
	"fmt"
	"strconv"
	"strings"
)

// Render serialises a lowered program to the wire-level assembly text of
// spec §6: each Block opens with a "label:" line, followed by one
// whitespace-separated mnemonic or number per Token, in the exact
// vocabulary internal/asm's lexer accepts.
func Render(blocks []*Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Label)
		for _, t := range b.Tokens {
			switch t.Kind {
			case TokNumber:
				sb.WriteString(strconv.Itoa(int(t.Value)))
			case TokLabel:
				sb.WriteString(t.Label)
			case TokInstr:
				sb.WriteString(t.Instr.Mnemonic())
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
