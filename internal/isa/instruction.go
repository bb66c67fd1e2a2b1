package isa

import "fmt"

// Instruction is the decoded shape of one stack-machine instruction. Only
// one of the typed fields is meaningful at a time, selected by Group; this
// mirrors the teacher's packed Instruction struct (code/register/arg) but
// adapted to the 14-shape variant set of spec §3 instead of a 32-bit
// register machine.
type Instruction struct {
	Group Group
	// Operand is the 4-bit nibble for every group except the push
	// prefixes, where it is the high nibble of the value being built.
	Operand byte
	// HasData/Data hold the trailing byte consumed by the two push-prefix
	// groups.
	HasData bool
	Data    byte

	// raw, if isRaw is set, bypasses every other field: Encode just
	// returns rawByte verbatim. Assembler-only escape hatch (spec §3
	// "Raw(byte)").
	isRaw   bool
	rawByte byte
}

// ALU constructs an ALU instruction. op must be Valid(); the assembler and
// codegen only ever build instructions this way, so constructors neither
// validate their operands nor return an error — Decode is where ill-formed
// *bytes* are handled as data, since those can arrive from untrusted or
// hand-edited bytecode.
func ALU(op Op) Instruction { return Instruction{Group: GroupALU, Operand: byte(op)} }

func PushSmall(n byte) Instruction {
	return Instruction{Group: GroupPushSmall, Operand: n & 0xF}
}

func AddSmall(n byte) Instruction {
	return Instruction{Group: GroupAddSmall, Operand: n & 0xF}
}

func PushNextLower(highNibble, dataByte byte) Instruction {
	return Instruction{Group: GroupPushNextLower, Operand: highNibble & 0xF, HasData: true, Data: dataByte}
}

func PushNextUpper(highNibble, dataByte byte) Instruction {
	return Instruction{Group: GroupPushNextUpper, Operand: highNibble & 0xF, HasData: true, Data: dataByte}
}

func Jump(c Condition) Instruction { return Instruction{Group: GroupJump, Operand: byte(c)} }

func Process(op ProcessOp) Instruction { return Instruction{Group: GroupProcess, Operand: byte(op)} }

func Function(op FunctionOp) Instruction { return Instruction{Group: GroupFunction, Operand: byte(op)} }

func Stack(op StackOp) Instruction { return Instruction{Group: GroupStack, Operand: byte(op)} }

func ReadLocal() Instruction  { return Instruction{Group: GroupReadLocal} }
func WriteLocal() Instruction { return Instruction{Group: GroupWriteLocal} }

func ReadLocalOffset(n byte) Instruction {
	return Instruction{Group: GroupReadLocalOffset, Operand: n & 0xF}
}

func WriteLocalOffset(n byte) Instruction {
	return Instruction{Group: GroupWriteLocalOffset, Operand: n & 0xF}
}

// Raw wraps an arbitrary byte for the assembler's literal escape hatch.
func Raw(b byte) Instruction { return Instruction{isRaw: true, rawByte: b} }

func (i Instruction) IsRaw() bool { return i.isRaw }

// Size reports how many bytes this instruction occupies in the bytecode
// stream: 1 normally, 2 for the push-prefix groups.
func (i Instruction) Size() uint16 {
	if i.HasData {
		return 2
	}
	return 1
}

// Encode produces the 1- or 2-byte wire form of the instruction.
func (i Instruction) Encode() []byte {
	if i.isRaw {
		return []byte{i.rawByte}
	}
	head := byte(i.Group)<<4 | (i.Operand & 0xF)
	if i.HasData {
		return []byte{head, i.Data}
	}
	return []byte{head}
}

// Decode reads one instruction starting at bytecode[0], returning its
// decoded shape (whose Size gives its byte length). It never returns a Raw instruction — Raw
// is an assembler-side-only constructor.
func Decode(bytecode []byte) (Instruction, error) {
	if len(bytecode) == 0 {
		return Instruction{}, decodeError("empty instruction stream")
	}
	b := bytecode[0]
	group := Group(b >> 4)
	operand := b & 0xF

	if !groupValid(group) {
		return Instruction{}, decodeError(fmt.Sprintf("reserved opcode group %d", group))
	}

	switch group {
	case GroupALU:
		if !Op(operand).Valid() {
			return Instruction{}, decodeError(fmt.Sprintf("invalid ALU op %d", operand))
		}
		return ALU(Op(operand)), nil
	case GroupPushSmall:
		return PushSmall(operand), nil
	case GroupAddSmall:
		return AddSmall(operand), nil
	case GroupPushNextLower, GroupPushNextUpper:
		if len(bytecode) < 2 {
			return Instruction{}, decodeError("truncated push-prefix instruction")
		}
		if group == GroupPushNextLower {
			return PushNextLower(operand, bytecode[1]), nil
		}
		return PushNextUpper(operand, bytecode[1]), nil
	case GroupJump:
		if !Condition(operand).Valid() {
			return Instruction{}, decodeError(fmt.Sprintf("invalid condition %d", operand))
		}
		return Jump(Condition(operand)), nil
	case GroupProcess:
		if !ProcessOp(operand).Valid() {
			return Instruction{}, decodeError(fmt.Sprintf("invalid process op %d", operand))
		}
		return Process(ProcessOp(operand)), nil
	case GroupFunction:
		if !FunctionOp(operand).Valid() {
			return Instruction{}, decodeError(fmt.Sprintf("invalid function op %d", operand))
		}
		return Function(FunctionOp(operand)), nil
	case GroupStack:
		if !StackOp(operand).Valid() {
			return Instruction{}, decodeError(fmt.Sprintf("invalid stack op %d", operand))
		}
		return Stack(StackOp(operand)), nil
	case GroupReadLocal:
		return ReadLocal(), nil
	case GroupWriteLocal:
		return WriteLocal(), nil
	case GroupReadLocalOffset:
		return ReadLocalOffset(operand), nil
	case GroupWriteLocalOffset:
		return WriteLocalOffset(operand), nil
	default:
		return Instruction{}, decodeError(fmt.Sprintf("reserved opcode group %d", group))
	}
}

func (i Instruction) String() string {
	if i.isRaw {
		return fmt.Sprintf("raw(%d)", i.rawByte)
	}
	switch i.Group {
	case GroupALU:
		return Op(i.Operand).String()
	case GroupPushSmall:
		return fmt.Sprintf("pushsmall %d", i.Operand)
	case GroupAddSmall:
		return fmt.Sprintf("addsmall %d", i.Operand)
	case GroupPushNextLower:
		return fmt.Sprintf("pushnextlower %d %d", i.Operand, i.Data)
	case GroupPushNextUpper:
		return fmt.Sprintf("pushnextupper %d %d", i.Operand, i.Data)
	case GroupJump:
		return fmt.Sprintf("jump %s", Condition(i.Operand))
	case GroupProcess:
		return fmt.Sprintf("process %s", ProcessOp(i.Operand))
	case GroupFunction:
		return fmt.Sprintf("function %s", FunctionOp(i.Operand))
	case GroupStack:
		return fmt.Sprintf("stack %s", StackOp(i.Operand))
	case GroupReadLocal:
		return "readlocal"
	case GroupWriteLocal:
		return "writelocal"
	case GroupReadLocalOffset:
		return fmt.Sprintf("readlocaloffset %d", i.Operand)
	case GroupWriteLocalOffset:
		return fmt.Sprintf("writelocaloffset %d", i.Operand)
	default:
		return "?"
	}
}

// Mnemonic renders an instruction in the wire-level assembly syntax of
// spec §6 (the textual form the assembler parses and the compiler CLI's
// `-o` output emits), as opposed to String's debug-oriented form.
// ReadLocalOffset/WriteLocalOffset have no dedicated mnemonic: they print
// as "<n> get"/"<n> put", the same two-token form the assembler's
// peephole folds back into one instruction.
func (i Instruction) Mnemonic() string {
	switch i.Group {
	case GroupALU:
		switch Op(i.Operand) {
		case OpAdd:
			return "+"
		case OpSub:
			return "-"
		case OpAsl:
			return "asl"
		case OpAsr:
			return "asr"
		case OpLsl:
			return "lsl"
		case OpLsr:
			return "lsr"
		case OpNot:
			return "not"
		case OpAnd:
			return "and"
		case OpOr:
			return "or"
		case OpXor:
			return "xor"
		case OpTest:
			return "test"
		case OpCompare:
			return "cmp"
		}
	case GroupJump:
		switch Condition(i.Operand) {
		case CondNever:
			return "nop"
		case CondAlways:
			return "j"
		case CondEqual:
			return "jeq"
		case CondNotEqual:
			return "jneq"
		case CondUnsignedLess:
			return "jb"
		case CondUnsignedGreaterOrEqual:
			return "jae"
		case CondUnsignedGreater:
			return "ja"
		case CondUnsignedLessOrEqual:
			return "jbe"
		case CondSignedLess:
			return "jl"
		case CondSignedGreaterOrEqual:
			return "jge"
		case CondSignedGreater:
			return "jg"
		case CondSignedLessOrEqual:
			return "jle"
		case CondCarry:
			return "jc"
		case CondNotCarry:
			return "jnc"
		case CondSign:
			return "js"
		case CondNotSign:
			return "jns"
		}
	case GroupProcess:
		switch ProcessOp(i.Operand) {
		case PStart:
			return "start"
		case PEnd:
			return "end"
		case PSend:
			return "!"
		case PReceive:
			return "?"
		case PAlternationStart:
			return "altstart"
		case PAlternationWait:
			return "altwait"
		case PAlternationEnd:
			return "altend"
		case PEnableChannel:
			return "enable"
		case PDisableChannel:
			return "disable"
		case PCreateChannel:
			return "chan"
		case PDestroyChannel:
			return "del"
		case PYield:
			return "yield"
		}
	case GroupFunction:
		if FunctionOp(i.Operand) == FCall {
			return "call"
		}
		return "ret"
	case GroupStack:
		switch StackOp(i.Operand) {
		case SDrop:
			return "drop"
		case SDup:
			return "dup"
		case SSwap:
			return "swap"
		case STuck:
			return "tuck"
		case SRot:
			return "rot"
		}
	case GroupReadLocal:
		return "get"
	case GroupWriteLocal:
		return "put"
	case GroupReadLocalOffset:
		return fmt.Sprintf("%d get", i.Operand)
	case GroupWriteLocalOffset:
		return fmt.Sprintf("%d put", i.Operand)
	}
	return i.String()
}

// EncodePush returns the minimal instruction-byte sequence that pushes the
// 16-bit value v onto the stack when executed from an empty stack (spec
// §3, §4.5, tested by §8's encode_push round-trip property). Three size
// classes: v<16 → PushSmall (1 byte); v<4096 → PushNextLower+data (2
// bytes); otherwise → PushNextUpper+data then AddSmall (3 bytes).
func EncodePush(v uint16) []byte {
	switch {
	case v < 16:
		return PushSmall(byte(v)).Encode()
	case v < 4096:
		hi := byte(v >> 8)
		lo := byte(v)
		return PushNextLower(hi, lo).Encode()
	default:
		// (hi<<12 | mid<<4) + low = v, where hi is 4 bits, mid is 8 bits,
		// low is 4 bits: this recombination is undone by the
		// PushNextUpper+AddSmall execution pair in execunit.
		hi := byte(v >> 12)
		mid := byte(v >> 4)
		low := byte(v & 0xF)
		out := PushNextUpper(hi, mid).Encode()
		out = append(out, AddSmall(low).Encode()...)
		return out
	}
}
