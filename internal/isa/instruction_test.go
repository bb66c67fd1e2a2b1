package isa

import (
	"fmt"
	"testing"
)

// assert mirrors the teacher's hand-rolled helper (KTStephano-GVM vm_test.go)
// rather than pulling in an assertion library for this package's tests.
func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func allInstructions() []Instruction {
	var out []Instruction
	for _, op := range []Op{OpAdd, OpSub, OpAsl, OpAsr, OpLsl, OpLsr, OpNot, OpAnd, OpOr, OpXor, OpTest, OpCompare} {
		out = append(out, ALU(op))
	}
	for n := byte(0); n < 16; n++ {
		out = append(out, PushSmall(n), AddSmall(n), ReadLocalOffset(n), WriteLocalOffset(n))
		out = append(out, PushNextLower(n, 0xAB), PushNextUpper(n, 0xCD))
	}
	for c := Condition(0); c <= CondNotSign; c++ {
		out = append(out, Jump(c))
	}
	for _, p := range []ProcessOp{PStart, PEnd, PSend, PReceive, PAlternationStart, PAlternationWait,
		PAlternationEnd, PEnableChannel, PDisableChannel, PCreateChannel, PDestroyChannel, PYield} {
		out = append(out, Process(p))
	}
	out = append(out, Function(FCall), Function(FReturn))
	for _, s := range []StackOp{SDrop, SDup, SSwap, STuck, SRot} {
		out = append(out, Stack(s))
	}
	out = append(out, ReadLocal(), WriteLocal())
	return out
}

// TestInstructionRoundTrip verifies spec §8's first quantified invariant:
// decode(encode(I)) == I for every instruction that encodes.
func TestInstructionRoundTrip(t *testing.T) {
	for _, instr := range allInstructions() {
		encoded := instr.Encode()
		decoded, err := Decode(encoded)
		assert(t, err == nil, "decode failed for %s: %v", instr, err)
		assert(t, decoded == instr, "round-trip mismatch: %+v != %+v", decoded, instr)
	}
}

func TestDecodeRejectsReservedOpcodes(t *testing.T) {
	cases := []byte{
		0x02, // ALU op 2 (reserved gap)
		0x0D, // ALU op 13 (reserved gap)
		0xD0, // group 13 (reserved group)
		0xE0, // group 14 (reserved group)
		0xF0, // group 15 (reserved group)
		0x6C, // process op 12 (out of range)
		0x7F, // function op 15 (out of range)
		0x8F, // stack op 15 (out of range)
	}

	for _, b := range cases {
		_, err := Decode([]byte{b})
		assert(t, err != nil, "expected decode error for byte 0x%02X", b)
	}
}

func TestEncodePushRoundTripsThroughSizeClasses(t *testing.T) {
	values := []uint16{0, 1, 15, 16, 100, 4095, 4096, 4097, 12345, 65535}
	for _, v := range values {
		bytes := EncodePush(v)
		switch {
		case v < 16:
			assert(t, len(bytes) == 1, "expected 1 byte for %d, got %d", v, len(bytes))
		case v < 4096:
			assert(t, len(bytes) == 2, "expected 2 bytes for %d, got %d", v, len(bytes))
		default:
			assert(t, len(bytes) == 3, "expected 3 bytes for %d, got %d", v, len(bytes))
		}
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	for b := 0; b < 16; b++ {
		f := DecodeFlags(byte(b))
		assert(t, f.Encode() == byte(b), "flags round trip failed for %d", b)
	}
}

func TestConditionInvertIsAlwaysOppositeOutcome(t *testing.T) {
	combos := []Flags{
		{}, {Zero: true}, {Carry: true}, {Sign: true}, {Overflow: true},
		{Sign: true, Overflow: true}, {Carry: true, Zero: true},
	}
	for c := Condition(0); c <= CondNotSign; c++ {
		for _, f := range combos {
			assert(t, f.Matches(c) != f.Matches(c.Invert()),
				"condition %s and its invert agreed for flags %+v", c, f)
		}
	}
}
