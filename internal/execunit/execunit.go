package execunit

import (
	"stannel/internal/diag"
	"stannel/internal/isa"
	"stannel/internal/memcell"
)

// Unit is one core's interpreter state: the flag register that persists
// between ticks (kept outside the memory cell so the controller can
// explicitly decide when to sync it via SaveToMemory/ResumeFromMemory,
// mirroring the source's handling of multi-owner access to the cell
// array) and the has-alternation-value bit DisableChannel consults.
type Unit struct {
	Flags               isa.Flags
	hasAlternationValue bool
}

// Tick decodes and executes exactly one instruction from instr (read-only)
// against proc (this core's currently assigned process cell), advancing
// proc's program counter and returning the CoreMessage for the scheduler.
func (u *Unit) Tick(instr *memcell.Cell, proc *memcell.Cell) (CoreMessage, error) {
	pc := proc.PC()
	raw := instr.RawBytes()
	if int(pc) >= len(raw) {
		return CoreMessage{}, decodeErr("program counter out of bounds")
	}
	decoded, err := isa.Decode(raw[pc:])
	if err != nil {
		return CoreMessage{}, err
	}
	proc.SetPC(pc + decoded.Size())
	return u.execute(decoded, proc)
}

// Apply processes one controller message between ticks. It must be
// possible to call Apply any number of times between two Tick calls.
func (u *Unit) Apply(msg ControllerMessage, proc *memcell.Cell) error {
	switch msg.Kind {
	case ResumeFromMemory:
		u.Flags = isa.DecodeFlags(proc.FlagsByte())
	case SaveToMemory:
		proc.SetFlagsByte(u.Flags.Encode())
	case CreatedChannel:
		return proc.PushValue(msg.Channel)
	case ReceivedValue:
		u.hasAlternationValue = true
		return proc.PushValue(msg.Value)
	case Jump:
		proc.SetPC(msg.Addr)
	}
	return nil
}

func (u *Unit) execute(instr isa.Instruction, proc *memcell.Cell) (CoreMessage, error) {
	switch instr.Group {
	case isa.GroupALU:
		return u.alu(isa.Op(instr.Operand), proc)
	case isa.GroupPushSmall:
		return msgNothing(), proc.PushValue(uint16(instr.Operand))
	case isa.GroupAddSmall:
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return msgNothing(), proc.PushValue(a + uint16(instr.Operand))
	case isa.GroupPushNextLower:
		result := uint16(instr.Operand)<<8 | uint16(instr.Data)
		return msgNothing(), proc.PushValue(result)
	case isa.GroupPushNextUpper:
		result := uint16(instr.Operand)<<12 | uint16(instr.Data)<<4
		return msgNothing(), proc.PushValue(result)
	case isa.GroupJump:
		return u.jump(isa.Condition(instr.Operand), proc)
	case isa.GroupProcess:
		return u.process(isa.ProcessOp(instr.Operand), proc)
	case isa.GroupFunction:
		return u.function(isa.FunctionOp(instr.Operand), proc)
	case isa.GroupStack:
		return u.stack(isa.StackOp(instr.Operand), proc)
	case isa.GroupReadLocal:
		offset, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return u.readLocal(proc, offset)
	case isa.GroupWriteLocal:
		offset, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		word, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return u.writeLocal(proc, offset, word)
	case isa.GroupReadLocalOffset:
		return u.readLocal(proc, uint16(instr.Operand))
	case isa.GroupWriteLocalOffset:
		word, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return u.writeLocal(proc, uint16(instr.Operand), word)
	default:
		return CoreMessage{}, decodeErr("unreachable instruction group")
	}
}

func (u *Unit) alu(op isa.Op, proc *memcell.Cell) (CoreMessage, error) {
	u.Flags = isa.Flags{}

	setZS := func(result uint16) uint16 {
		u.Flags.Zero = result == 0
		u.Flags.Sign = result&(1<<15) != 0
		return result
	}

	switch op {
	case isa.OpAdd, isa.OpSub:
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		var result uint16
		var carry, overflow bool
		if op == isa.OpAdd {
			result = a + b
			carry = uint32(a)+uint32(b) > 0xFFFF
			overflow = int32(int16(a))+int32(int16(b)) != int32(int16(result))
		} else {
			result = a - b
			carry = uint32(a) < uint32(b)
			overflow = int32(int16(a))-int32(int16(b)) != int32(int16(result))
		}
		u.Flags.Zero = result == 0
		u.Flags.Sign = result&(1<<15) != 0
		u.Flags.Carry = carry
		u.Flags.Overflow = overflow
		return msgNothing(), proc.PushValue(result)
	case isa.OpAsl, isa.OpAsr:
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		shift := uint(b & 0xF)
		var result int16
		if op == isa.OpAsl {
			result = int16(a) << shift
		} else {
			result = int16(a) >> shift
		}
		return msgNothing(), proc.PushValue(setZS(uint16(result)))
	case isa.OpLsl, isa.OpLsr:
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		shift := uint(b & 0xF)
		var result uint16
		if op == isa.OpLsl {
			result = a << shift
		} else {
			result = a >> shift
		}
		return msgNothing(), proc.PushValue(setZS(result))
	case isa.OpNot:
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return msgNothing(), proc.PushValue(setZS(^a))
	case isa.OpAnd, isa.OpOr, isa.OpXor, isa.OpTest:
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		var result uint16
		switch op {
		case isa.OpAnd, isa.OpTest:
			result = a & b
		case isa.OpOr:
			result = a | b
		case isa.OpXor:
			result = a ^ b
		}
		setZS(result)
		if op == isa.OpTest {
			return msgNothing(), nil
		}
		return msgNothing(), proc.PushValue(result)
	case isa.OpCompare:
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		result := a - b
		u.Flags.Zero = result == 0
		u.Flags.Sign = result&(1<<15) != 0
		u.Flags.Carry = uint32(a) < uint32(b)
		u.Flags.Overflow = int32(int16(a))-int32(int16(b)) != int32(int16(result))
		return msgNothing(), nil
	default:
		return CoreMessage{}, decodeErr("invalid ALU opcode")
	}
}

func (u *Unit) jump(cond isa.Condition, proc *memcell.Cell) (CoreMessage, error) {
	var newPC uint16
	if cond != isa.CondNever {
		pc, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		newPC = pc
	}
	if u.Flags.Matches(cond) {
		proc.SetPC(newPC)
	}
	return msgNothing(), nil
}

func (u *Unit) process(op isa.ProcessOp, proc *memcell.Cell) (CoreMessage, error) {
	switch op {
	case isa.PStart:
		numWords, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		startAddr, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return CoreMessage{Kind: StartProcess, StartAddr: startAddr, NumWords: numWords}, nil
	case isa.PEnd:
		return CoreMessage{Kind: Halt}, nil
	case isa.PSend:
		message, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		channel, err := proc.PeekValue(0)
		if err != nil {
			return CoreMessage{}, err
		}
		return CoreMessage{Kind: Send, Channel: channel, Value: message}, nil
	case isa.PReceive:
		channel, err := proc.PeekValue(0)
		if err != nil {
			return CoreMessage{}, err
		}
		return CoreMessage{Kind: Receive, Channel: channel}, nil
	case isa.PCreateChannel:
		return CoreMessage{Kind: CreateChannel}, nil
	case isa.PDestroyChannel:
		channel, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return CoreMessage{Kind: DeleteChannel, Channel: channel}, nil
	case isa.PYield:
		return CoreMessage{Kind: Yield}, nil
	case isa.PAlternationStart:
		u.hasAlternationValue = false
		return CoreMessage{Kind: AlternationStart}, nil
	case isa.PAlternationWait:
		return CoreMessage{Kind: AlternationWait}, nil
	case isa.PAlternationEnd:
		return CoreMessage{Kind: AlternationEnd}, nil
	case isa.PEnableChannel:
		channel, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return CoreMessage{Kind: EnableChannel, Channel: channel}, nil
	case isa.PDisableChannel:
		dest, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		channel, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		return CoreMessage{Kind: DisableChannel, Channel: channel, JumpDest: dest, HasAltValue: u.hasAlternationValue}, nil
	default:
		return CoreMessage{}, decodeErr("invalid process opcode")
	}
}

func (u *Unit) function(op isa.FunctionOp, proc *memcell.Cell) (CoreMessage, error) {
	switch op {
	case isa.FCall:
		address, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushCall(proc.PC()); err != nil {
			return CoreMessage{}, err
		}
		proc.SetPC(address)
		return msgNothing(), nil
	case isa.FReturn:
		if proc.AtCallStackBottom() {
			return CoreMessage{Kind: Halt}, nil
		}
		address, err := proc.PopCall()
		if err != nil {
			return CoreMessage{}, err
		}
		proc.SetPC(address)
		return msgNothing(), nil
	default:
		return CoreMessage{}, decodeErr("invalid function opcode")
	}
}

func (u *Unit) stack(op isa.StackOp, proc *memcell.Cell) (CoreMessage, error) {
	switch op {
	case isa.SDrop:
		_, err := proc.PopValue()
		return msgNothing(), err
	case isa.SDup:
		x, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushValue(x); err != nil {
			return CoreMessage{}, err
		}
		return msgNothing(), proc.PushValue(x)
	case isa.SSwap:
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushValue(a); err != nil {
			return CoreMessage{}, err
		}
		return msgNothing(), proc.PushValue(b)
	case isa.STuck:
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		c, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushValue(b); err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushValue(a); err != nil {
			return CoreMessage{}, err
		}
		return msgNothing(), proc.PushValue(c)
	case isa.SRot:
		a, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		b, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		c, err := proc.PopValue()
		if err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushValue(a); err != nil {
			return CoreMessage{}, err
		}
		if err := proc.PushValue(c); err != nil {
			return CoreMessage{}, err
		}
		return msgNothing(), proc.PushValue(b)
	default:
		return CoreMessage{}, decodeErr("invalid stack opcode")
	}
}

func (u *Unit) readLocal(proc *memcell.Cell, offset uint16) (CoreMessage, error) {
	value, err := proc.PeekValue(offset)
	if err != nil {
		return CoreMessage{}, err
	}
	return msgNothing(), proc.PushValue(value)
}

func (u *Unit) writeLocal(proc *memcell.Cell, offset uint16, value uint16) (CoreMessage, error) {
	return msgNothing(), proc.PokeValue(offset, value)
}

func decodeErr(msg string) error {
	return &diag.RuntimeError{Kind: "invalid-instruction", Message: msg}
}
