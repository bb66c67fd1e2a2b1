package asm

import "stannel/internal/isa"

// peepholeInstrs applies the byte-level rewrites of spec §4.5 to one
// Instructions block, ported 1:1 from the original's
// peephole_optimise: a zero AddSmall vanishes; PushSmall immediately
// followed by an ALU add folds into AddSmall; PushSmall immediately
// followed by ReadLocal/WriteLocal folds into the Offset form; and two
// adjacent PushSmall/AddSmall literals re-collapse through encode_push,
// which may re-expand into a different instruction sequence than either
// started as.
func peepholeInstrs(in []isa.Instruction) []isa.Instruction {
	var buf []isa.Instruction
	for _, instr := range in {
		buf = append(buf, instr)
		buf = tryFold(buf)
	}
	return buf
}

func tryFold(buf []isa.Instruction) []isa.Instruction {
	for {
		n := len(buf)
		if n == 0 {
			return buf
		}
		last := buf[n-1]
		if isAddSmall(last, 0) {
			buf = buf[:n-1]
			continue
		}
		if n < 2 {
			return buf
		}
		penultimate := buf[n-2]
		if pushVal, ok := asPushSmall(penultimate); ok {
			switch {
			case isAluAdd(last):
				buf = append(buf[:n-2], isa.AddSmall(pushVal))
				continue
			case isReadLocal(last):
				buf = append(buf[:n-2], isa.ReadLocalOffset(pushVal))
				continue
			case isWriteLocal(last):
				buf = append(buf[:n-2], isa.WriteLocalOffset(pushVal))
				continue
			}
			if addVal, ok := asAddSmall(last); ok {
				folded := encodePushInstructions(uint16(pushVal) + uint16(addVal))
				buf = append(buf[:n-2], folded...)
				continue
			}
		}
		return buf
	}
}

func asPushSmall(i isa.Instruction) (byte, bool) {
	if i.Group == isa.GroupPushSmall {
		return i.Operand, true
	}
	return 0, false
}

func asAddSmall(i isa.Instruction) (byte, bool) {
	if i.Group == isa.GroupAddSmall {
		return i.Operand, true
	}
	return 0, false
}

func isAddSmall(i isa.Instruction, n byte) bool {
	return i.Group == isa.GroupAddSmall && i.Operand == n
}

func isAluAdd(i isa.Instruction) bool {
	return i.Group == isa.GroupALU && i.Operand == byte(isa.OpAdd)
}

func isReadLocal(i isa.Instruction) bool {
	return i.Group == isa.GroupReadLocal
}

func isWriteLocal(i isa.Instruction) bool {
	return i.Group == isa.GroupWriteLocal
}
