package sim

import (
	"fmt"
	"testing"

	"stannel/internal/isa"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func encode(instrs ...isa.Instruction) []byte {
	var out []byte
	for _, ins := range instrs {
		out = append(out, ins.Encode()...)
	}
	return out
}

func runUntilHalted(t *testing.T, p *Processor, maxTicks int) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		halted, err := p.Tick()
		assert(t, err == nil, "tick %d failed: %v", i, err)
		if halted {
			return
		}
	}
	t.Fatalf("processor did not halt within %d ticks", maxTicks)
}

// TestArithmeticScenario mirrors spec §8 scenario 1: main = 1 2 + →
// final_stack(0) = [3].
func TestArithmeticScenario(t *testing.T) {
	bytecode := encode(isa.PushSmall(1), isa.PushSmall(2), isa.ALU(isa.OpAdd), isa.Process(isa.PEnd))

	p := NewProcessor(1)
	p.SetInstructions(bytecode)
	_, err := p.StartMain(0)
	assert(t, err == nil, "start main: %v", err)

	runUntilHalted(t, p, 10)

	stack, ok := p.FinalStack(0)
	assert(t, ok, "expected a final stack for alloc 0")
	assert(t, len(stack) == 1 && stack[0] == 3, "expected [3], got %v", stack)
}

// TestTwoProcessRendezvousOnOneCore is the single-core time-sliced version
// of spec §8 scenario 5: a parent creates a channel, starts a child with
// one channel word on its stack, blocks on Receive, and the child sends a
// value before halting. One core forces the scheduler to suspend the
// parent and run the child, then resume the parent once the child's send
// delivers (spec §4.9's Receive-on-Empty / Send-on-Receiver-waiting
// transition).
func TestTwoProcessRendezvousOnOneCore(t *testing.T) {
	const startAddr = 9
	bytecode := encode(
		isa.Process(isa.PCreateChannel), // 0
		isa.Stack(isa.SDup),             // 1
		isa.PushSmall(startAddr),        // 2
		isa.PushSmall(1),                // 3 (num words to copy)
		isa.Process(isa.PStart),         // 4
		isa.Process(isa.PReceive),       // 5
		isa.Stack(isa.SSwap),            // 6
		isa.Process(isa.PDestroyChannel),// 7
		isa.Process(isa.PEnd),           // 8
		isa.PushSmall(7),                // 9 child start
		isa.Process(isa.PSend),          // 10
		isa.Process(isa.PEnd),           // 11
	)

	p := NewProcessor(1)
	p.SetInstructions(bytecode)
	_, err := p.StartMain(0)
	assert(t, err == nil, "start main: %v", err)

	runUntilHalted(t, p, 40)

	parent, ok := p.FinalStack(0)
	assert(t, ok, "expected parent (alloc 0) to have halted")
	assert(t, len(parent) == 1 && parent[0] == 7, "expected parent final stack [7], got %v", parent)

	child, ok := p.FinalStack(1)
	assert(t, ok, "expected child (alloc 1) to have halted")
	assert(t, len(child) == 1, "expected child to retain the unconsumed channel word, got %v", child)
}
