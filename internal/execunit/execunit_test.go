package execunit

import (
	"fmt"
	"testing"

	"stannel/internal/isa"
	"stannel/internal/memcell"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// program writes a sequence of instructions into a fresh instruction cell
// starting at address 0 and returns it.
func program(instrs ...isa.Instruction) *memcell.Cell {
	var cell memcell.Cell
	addr := uint16(0)
	raw := cell.RawBytes()
	for _, ins := range instrs {
		for _, b := range ins.Encode() {
			raw[addr] = b
			addr++
		}
	}
	return &cell
}

func TestPushSmallThenEnd(t *testing.T) {
	instr := program(isa.PushSmall(7), isa.Process(isa.PEnd))
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit

	msg, err := u.Tick(instr, &proc)
	assert(t, err == nil && msg.Kind == Nothing, "push tick failed: %v %+v", err, msg)
	msg, err = u.Tick(instr, &proc)
	assert(t, err == nil && msg.Kind == Halt, "expected halt, got %+v err %v", msg, err)
	assert(t, proc.ValueStackDepth() == 1, "expected depth 1")
	top, _ := proc.PeekValue(0)
	assert(t, top == 7, "expected 7, got %d", top)
}

func TestSwap(t *testing.T) {
	instr := program(isa.PushSmall(7), isa.PushSmall(12), isa.Stack(isa.SSwap), isa.Process(isa.PEnd))
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit
	for i := 0; i < 3; i++ {
		_, err := u.Tick(instr, &proc)
		assert(t, err == nil, "tick %d failed: %v", i, err)
	}
	top, _ := proc.PeekValue(0)
	below, _ := proc.PeekValue(1)
	assert(t, top == 7, "expected top 7 got %d", top)
	assert(t, below == 12, "expected below 12 got %d", below)
}

func TestRot(t *testing.T) {
	instr := program(isa.PushSmall(12), isa.PushSmall(3), isa.PushSmall(7), isa.Stack(isa.SRot), isa.Process(isa.PEnd))
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit
	for i := 0; i < 4; i++ {
		_, err := u.Tick(instr, &proc)
		assert(t, err == nil, "tick %d failed: %v", i, err)
	}
	v0, _ := proc.PeekValue(0)
	v1, _ := proc.PeekValue(1)
	v2, _ := proc.PeekValue(2)
	assert(t, v0 == 3, "v0 expected 3 got %d", v0)
	assert(t, v1 == 12, "v1 expected 12 got %d", v1)
	assert(t, v2 == 7, "v2 expected 7 got %d", v2)
}

func TestCreateAndDestroyChannel(t *testing.T) {
	instr := program(
		isa.Process(isa.PCreateChannel),
		isa.PushSmall(7),
		isa.Process(isa.PSend),
		isa.Process(isa.PDestroyChannel),
		isa.Process(isa.PEnd),
	)
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit

	msg, err := u.Tick(instr, &proc)
	assert(t, err == nil && msg.Kind == CreateChannel, "expected CreateChannel, got %+v err %v", msg, err)
	assert(t, u.Apply(ControllerMessage{Kind: CreatedChannel, Channel: 0}, &proc) == nil, "apply created channel")

	msg, err = u.Tick(instr, &proc) // push 7
	assert(t, err == nil && msg.Kind == Nothing, "push tick: %v %+v", err, msg)

	msg, err = u.Tick(instr, &proc) // send
	assert(t, err == nil && msg.Kind == Send && msg.Channel == 0 && msg.Value == 7,
		"expected send(0,7) got %+v err %v", msg, err)

	msg, err = u.Tick(instr, &proc) // destroy
	assert(t, err == nil && msg.Kind == DeleteChannel && msg.Channel == 0,
		"expected delete channel 0, got %+v err %v", msg, err)

	msg, err = u.Tick(instr, &proc)
	assert(t, err == nil && msg.Kind == Halt, "expected halt, got %+v err %v", msg, err)
	assert(t, proc.ValueStackDepth() == 0, "stack should be empty after destroy, depth=%d", proc.ValueStackDepth())
}

func TestCompareSetsFlagsNoPush(t *testing.T) {
	instr := program(isa.PushSmall(10), isa.PushSmall(10), isa.ALU(isa.OpCompare), isa.Process(isa.PEnd))
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit
	for i := 0; i < 3; i++ {
		_, err := u.Tick(instr, &proc)
		assert(t, err == nil, "tick %d: %v", i, err)
	}
	assert(t, proc.ValueStackDepth() == 0, "compare must not push")
	assert(t, u.Flags.Zero, "equal operands should set zero flag")
}

func TestJumpNeverIsNop(t *testing.T) {
	instr := program(isa.Jump(isa.CondNever), isa.Process(isa.PEnd))
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit
	msg, err := u.Tick(instr, &proc)
	assert(t, err == nil && msg.Kind == Nothing, "never-jump should be a nop, got %+v err %v", msg, err)
	assert(t, proc.PC() == 1, "pc should have advanced by 1, got %d", proc.PC())
}

func TestCallAndReturnRoundTrip(t *testing.T) {
	// main: push addr-of-callee; call; end
	// callee at addr 5: push 9; ret
	instr := program(
		isa.PushNextLower(0, 5), // push 5 (2 bytes: addr 0-1)
		isa.Function(isa.FCall), // addr 2
		isa.Process(isa.PEnd),   // addr 3
		isa.Raw(0),              // pad addr 4 to land callee at 5
		isa.PushSmall(9),        // addr 5
		isa.Function(isa.FReturn),
	)
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit

	_, err := u.Tick(instr, &proc) // push 5
	assert(t, err == nil, "push: %v", err)
	_, err = u.Tick(instr, &proc) // call
	assert(t, err == nil, "call: %v", err)
	assert(t, proc.PC() == 5, "expected pc 5 after call, got %d", proc.PC())

	_, err = u.Tick(instr, &proc) // push 9
	assert(t, err == nil, "push 9: %v", err)
	msg, err := u.Tick(instr, &proc) // ret
	assert(t, err == nil && msg.Kind == Nothing, "return: %v %+v", err, msg)
	assert(t, proc.PC() == 3, "expected pc back at 3 (after call), got %d", proc.PC())

	msg, err = u.Tick(instr, &proc) // end
	assert(t, err == nil && msg.Kind == Halt, "expected halt, got %+v err %v", msg, err)
}

func TestReturnAtBottomHalts(t *testing.T) {
	instr := program(isa.Function(isa.FReturn))
	var proc memcell.Cell
	proc.Reset(0)
	var u Unit
	msg, err := u.Tick(instr, &proc)
	assert(t, err == nil && msg.Kind == Halt, "return with empty call stack should halt, got %+v err %v", msg, err)
}
