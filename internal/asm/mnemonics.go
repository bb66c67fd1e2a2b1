package asm

import "stannel/internal/isa"

// mnemonics mirrors statick-tools' Instruction::from_str table, adapted to
// this toolchain's Condition naming (spec §3's Sign/Carry bits replace the
// original's Negative/Overflow naming, so the condition mnemonics below
// are renamed to match, with jc/jnc/js/jns added for the two condition
// pairs spec.md's Condition enum has that the original's did not).
var mnemonics = map[string]isa.Instruction{
	"+":   isa.ALU(isa.OpAdd),
	"add": isa.ALU(isa.OpAdd),
	"-":   isa.ALU(isa.OpSub),
	"sub": isa.ALU(isa.OpSub),
	"asl": isa.ALU(isa.OpAsl),
	"asr": isa.ALU(isa.OpAsr),
	"lsl": isa.ALU(isa.OpLsl),
	"lsr": isa.ALU(isa.OpLsr),
	"not": isa.ALU(isa.OpNot),
	"and": isa.ALU(isa.OpAnd),
	"&":   isa.ALU(isa.OpAnd),
	"or":  isa.ALU(isa.OpOr),
	"|":   isa.ALU(isa.OpOr),
	"xor": isa.ALU(isa.OpXor),
	"^":   isa.ALU(isa.OpXor),
	"test":    isa.ALU(isa.OpTest),
	"cmp":     isa.ALU(isa.OpCompare),
	"compare": isa.ALU(isa.OpCompare),

	"call":   isa.Function(isa.FCall),
	"ret":    isa.Function(isa.FReturn),
	"return": isa.Function(isa.FReturn),

	"drop": isa.Stack(isa.SDrop),
	"dup":  isa.Stack(isa.SDup),
	"swap": isa.Stack(isa.SSwap),
	"tuck": isa.Stack(isa.STuck),
	"rot":  isa.Stack(isa.SRot),

	"nop":  isa.Jump(isa.CondNever),
	"j":    isa.Jump(isa.CondAlways),
	"jump": isa.Jump(isa.CondAlways),
	"jeq":  isa.Jump(isa.CondEqual),
	"jneq": isa.Jump(isa.CondNotEqual),
	"jb":   isa.Jump(isa.CondUnsignedLess),
	"jae":  isa.Jump(isa.CondUnsignedGreaterOrEqual),
	"ja":   isa.Jump(isa.CondUnsignedGreater),
	"jbe":  isa.Jump(isa.CondUnsignedLessOrEqual),
	"jl":   isa.Jump(isa.CondSignedLess),
	"jge":  isa.Jump(isa.CondSignedGreaterOrEqual),
	"jg":   isa.Jump(isa.CondSignedGreater),
	"jle":  isa.Jump(isa.CondSignedLessOrEqual),
	"jc":   isa.Jump(isa.CondCarry),
	"jnc":  isa.Jump(isa.CondNotCarry),
	"js":   isa.Jump(isa.CondSign),
	"jns":  isa.Jump(isa.CondNotSign),

	"get": isa.ReadLocal(),
	"put": isa.WriteLocal(),

	"start":    isa.Process(isa.PStart),
	"end":      isa.Process(isa.PEnd),
	".":        isa.Process(isa.PEnd),
	"chan":     isa.Process(isa.PCreateChannel),
	"del":      isa.Process(isa.PDestroyChannel),
	"!":        isa.Process(isa.PSend),
	"shriek":   isa.Process(isa.PSend),
	"send":     isa.Process(isa.PSend),
	"?":        isa.Process(isa.PReceive),
	"query":    isa.Process(isa.PReceive),
	"receive":  isa.Process(isa.PReceive),
	"altstart": isa.Process(isa.PAlternationStart),
	"altwait":  isa.Process(isa.PAlternationWait),
	"altend":   isa.Process(isa.PAlternationEnd),
	"enable":   isa.Process(isa.PEnableChannel),
	"disable":  isa.Process(isa.PDisableChannel),
	"yield":    isa.Process(isa.PYield),
}

// ReadLocalOffset/WriteLocalOffset have no mnemonic of their own: assembly
// source writes "<n> get" / "<n> put", and the byte-level peephole folds
// that pair the same way the original source does (see peephole.go).

// encodePushInstructions returns the instruction-level expansion of a
// literal push, matching isa.EncodePush's three size classes but at
// Instruction granularity so the peephole can still recognise and fold
// PushSmall/AddSmall sequences before final byte encoding.
func encodePushInstructions(v uint16) []isa.Instruction {
	switch {
	case v < 16:
		return []isa.Instruction{isa.PushSmall(byte(v))}
	case v < 4096:
		hi := byte(v >> 8)
		lo := byte(v)
		return []isa.Instruction{isa.PushNextLower(hi, lo)}
	default:
		hi := byte(v >> 12)
		mid := byte(v >> 4)
		low := byte(v & 0xF)
		return []isa.Instruction{isa.PushNextUpper(hi, mid), isa.AddSmall(low)}
	}
}
