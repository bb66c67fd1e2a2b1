package asm

import "github.com/pkg/errors"

// Assemble turns textual assembly (spec §4.5) into a byte vector: lex,
// split into Instructions/PushLabel blocks, peephole each Instructions
// block, then resolve every PushLabel to its target's fixed-point byte
// offset and flatten to bytes.
func Assemble(src string) ([]byte, error) {
	toks := lex(src)
	blocks, err := buildBlocks(toks)
	if err != nil {
		return nil, errors.Wrap(err, "building blocks")
	}
	for _, b := range blocks {
		if b.Kind == blockInstructions {
			b.Instrs = peepholeInstrs(b.Instrs)
		}
	}
	return flattenBlocks(blocks), nil
}
