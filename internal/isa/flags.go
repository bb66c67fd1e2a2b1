package isa

// Flags packs the four condition-affecting booleans into 4 bits: zero is
// bit 0, overflow bit 1, sign bit 2, carry bit 3. Add/Sub set all four from
// the operation; logical ops clear all four then set zero/sign from the
// result; shifts follow the same rule as logical ops.
type Flags struct {
	Zero     bool
	Overflow bool
	Sign     bool
	Carry    bool
}

func (f Flags) Encode() byte {
	var b byte
	if f.Zero {
		b |= 1 << 0
	}
	if f.Overflow {
		b |= 1 << 1
	}
	if f.Sign {
		b |= 1 << 2
	}
	if f.Carry {
		b |= 1 << 3
	}
	return b
}

func DecodeFlags(b byte) Flags {
	return Flags{
		Zero:     b&(1<<0) != 0,
		Overflow: b&(1<<1) != 0,
		Sign:     b&(1<<2) != 0,
		Carry:    b&(1<<3) != 0,
	}
}

// Condition is a 4-bit jump condition code. Bit 0 inverts the condition
// described by clearing it, which is why every even code's boolean formula
// is the logical negation of the following odd code (spec §3).
type Condition byte

const (
	CondNever                  Condition = 0
	CondAlways                 Condition = 1
	CondEqual                  Condition = 2
	CondNotEqual               Condition = 3
	CondUnsignedLess           Condition = 4
	CondUnsignedGreaterOrEqual Condition = 5
	CondUnsignedGreater        Condition = 6
	CondUnsignedLessOrEqual    Condition = 7
	CondSignedLess             Condition = 8
	CondSignedGreaterOrEqual   Condition = 9
	CondSignedGreater          Condition = 10
	CondSignedLessOrEqual      Condition = 11
	CondCarry                  Condition = 12
	CondNotCarry               Condition = 13
	CondSign                   Condition = 14
	CondNotSign                Condition = 15
)

func (c Condition) Valid() bool { return c <= CondNotSign }

// Invert returns the condition obtained by flipping bit 0 — the codes are
// laid out in negated pairs specifically so this is always just an XOR.
func (c Condition) Invert() Condition { return c ^ 1 }

func (c Condition) String() string {
	names := [...]string{
		"never", "always", "eq", "neq", "ult", "uge", "ugt", "ule",
		"slt", "sge", "sgt", "sle", "carry", "ncarry", "sign", "nsign",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "?cond?"
}

// Matches evaluates the condition's boolean formula against a flag set.
// CondUnsignedGreater = ¬carry ∧ ¬zero; CondSignedLess = sign⊕overflow,
// exactly as spec §3 calls out; every other code is derived the same way.
func (f Flags) Matches(c Condition) bool {
	base := c &^ 1 // clear bit 0 to find the "positive" member of the pair
	invert := c&1 == 1

	var v bool
	switch base {
	case CondNever: // pair: Never / Always
		v = false
	case CondEqual:
		v = f.Zero
	case CondUnsignedLess:
		v = f.Carry
	case CondUnsignedGreater:
		v = !f.Carry && !f.Zero
	case CondSignedLess:
		v = f.Sign != f.Overflow
	case CondSignedGreater:
		v = !f.Zero && (f.Sign == f.Overflow)
	case CondCarry:
		v = f.Carry
	case CondSign:
		v = f.Sign
	}

	if invert {
		return !v
	}
	return v
}
