package asm

import "stannel/internal/isa"

type blockKind int

const (
	blockInstructions blockKind = iota
	blockPushLabel
)

// block mirrors the original's Block enum: a run of concrete instructions,
// or a deferred push of some other block's resolved start address.
type block struct {
	Kind       blockKind
	Instrs     []isa.Instruction
	LabelIndex int // meaningful only when Kind == blockPushLabel
}

// buildBlocks walks the token stream once, splitting it into Instructions
// and PushLabel blocks exactly as spec §4.5 describes: a label definition
// closes the current Instructions block and records that the next block
// emitted is its target; a bare identifier that isn't an instruction
// mnemonic becomes a PushLabel reference instead of a lex error.
func buildBlocks(toks []lexToken) ([]*block, error) {
	var blocks []*block
	labelPos := map[string]int{}
	var current []isa.Instruction

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, &block{Kind: blockInstructions, Instrs: current})
			current = nil
		}
	}

	type pendingPush struct {
		blockIdx int
		name     string
	}
	var pending []pendingPush

	for _, t := range toks {
		switch t.Kind {
		case tokLabel:
			flush()
			labelPos[t.Text] = len(blocks)
		case tokNumber:
			current = append(current, encodePushInstructions(t.Value)...)
		case tokIdentifier:
			if instr, ok := mnemonics[t.Text]; ok {
				current = append(current, instr)
				continue
			}
			flush()
			pending = append(pending, pendingPush{blockIdx: len(blocks), name: t.Text})
			blocks = append(blocks, &block{Kind: blockPushLabel})
		}
	}
	flush()

	for _, p := range pending {
		idx, ok := labelPos[p.name]
		if !ok {
			return nil, asmErr("undefined-label", "%q is neither an instruction nor a defined label", p.name)
		}
		blocks[p.blockIdx].LabelIndex = idx
	}
	return blocks, nil
}

// flattenBlocks computes each block's final byte offset by iteration to a
// fixed point (spec §4.5's "Label resolution"): start by assuming every
// PushLabel costs one byte, then re-derive offsets from the actual
// encode_push length of each resolved target address, repeating until no
// offset changes. Monotone because push length only ever grows as
// addresses grow, so this always terminates.
func flattenBlocks(blocks []*block) []byte {
	offsets := make([]int, len(blocks))
	low := 0
	for i, b := range blocks {
		offsets[i] = low
		if b.Kind == blockInstructions {
			for _, instr := range b.Instrs {
				low += int(instr.Size())
			}
		} else {
			low++
		}
	}

	for {
		changed := false
		next := make([]int, len(blocks))
		low = 0
		for i, b := range blocks {
			next[i] = low
			changed = changed || next[i] != offsets[i]
			if b.Kind == blockInstructions {
				for _, instr := range b.Instrs {
					low += int(instr.Size())
				}
			} else {
				// Reads last round's offsets, matching the original's
				// fixed-point iteration (a label pointing forward must
				// use the previous round's estimate, not one already
				// revised earlier in this same pass).
				low += len(isa.EncodePush(uint16(offsets[b.LabelIndex])))
			}
		}
		offsets = next
		if !changed {
			break
		}
	}

	var out []byte
	for _, b := range blocks {
		if b.Kind == blockInstructions {
			for _, instr := range b.Instrs {
				out = append(out, instr.Encode()...)
			}
		} else {
			out = append(out, isa.EncodePush(uint16(offsets[b.LabelIndex]))...)
		}
	}
	return out
}
