// Package sim implements the N-core lockstep scheduler of spec §4.8: it
// ticks every assigned execution unit once per cycle, interprets the
// resulting CoreMessages (process lifecycle, channel rendezvous,
// alternation), and reschedules cores for the next cycle. Grounded on
// original_source/statick-tools/src/lib/processor/mod.rs's Processor,
// reworked from its single-threaded Vec<Core>-plus-raw-pointer design into
// index-disjoint slices per spec §9's re-architecting note.
package sim

import (
	"stannel/internal/execunit"
	"stannel/internal/isa"
	"stannel/internal/memcell"
	"stannel/internal/process"
)

// Pid re-exports process.Pid for callers that only need sim.
type Pid = process.Pid

// Processor is the scheduler: N cores, a shared read-only instruction
// cell, a pool of process cells, and the last cell's process table and
// channel region.
type Processor struct {
	cores          []execunit.Unit
	coreAssignment []process.Pid
	instructions   memcell.Cell
	cellAllocator  *process.CellAllocator
	table          *process.Table
	lastCell       memcell.Cell
	channels       *process.ChannelHeap
	senderWaiting  map[uint16]bool

	allocOrder  []process.Pid
	finalStacks map[process.Pid][]uint16

	alternationSet      map[process.Pid]bool
	alternationReadySet map[process.Pid]bool

	halted bool

	// Trace, if non-nil, is called once per ticked core per cycle, after
	// the instruction has executed: spec §6's `-v` simulator output
	// ("{instruction:?} @ pc with stack [..]").
	Trace func(pid process.Pid, pc uint16, instr isa.Instruction, msg execunit.CoreMessage, stack []uint16)
}

// NewProcessor builds a Processor with the given number of cores.
func NewProcessor(numCores int) *Processor {
	p := &Processor{
		cores:               make([]execunit.Unit, numCores),
		coreAssignment:      make([]process.Pid, numCores),
		senderWaiting:       make(map[uint16]bool),
		finalStacks:         make(map[process.Pid][]uint16),
		alternationSet:      make(map[process.Pid]bool),
		alternationReadySet: make(map[process.Pid]bool),
	}
	p.table = process.NewTable(&p.lastCell)
	p.channels = process.NewChannelHeap(&p.lastCell)
	p.cellAllocator = process.NewCellAllocator(p.table)
	return p
}

// SetInstructions loads the shared, read-only instruction cache.
func (p *Processor) SetInstructions(bytecode []byte) {
	raw := p.instructions.RawBytes()
	copy(raw, bytecode)
}

// StartMain allocates the main process at pc and assigns it to core 0.
func (p *Processor) StartMain(pc uint16) (process.Pid, error) {
	pid, err := p.cellAllocator.Allocate(pc)
	if err != nil {
		return 0, err
	}
	p.table.Set(pid, process.Status{State: process.Running, CoreID: 0})
	p.coreAssignment[0] = pid
	p.allocOrder = append(p.allocOrder, pid)
	return pid, nil
}

// Halted reports whether every core is idle and no process is waiting.
func (p *Processor) Halted() bool { return p.halted }

// FinalStack returns the top-first value stack of the allocIndex-th
// process ever allocated (main = 0, first child = 1, ...), once it has
// halted. The bool is false if that index hasn't halted (or doesn't
// exist) yet.
func (p *Processor) FinalStack(allocIndex int) ([]uint16, bool) {
	if allocIndex < 0 || allocIndex >= len(p.allocOrder) {
		return nil, false
	}
	stack, ok := p.finalStacks[p.allocOrder[allocIndex]]
	return stack, ok
}

type scheduleTask struct {
	deschedule []process.Pid
	destroy    []process.Pid
	schedule   []process.Pid
}

// Tick runs one lockstep cycle across every core, per spec §4.8's four
// phases, and reports whether the processor is now fully halted.
func (p *Processor) Tick() (bool, error) {
	type coreMsg struct {
		core int
		pid  process.Pid
		msg  execunit.CoreMessage
	}

	var ticked []coreMsg
	emittedSends := make(map[uint16]struct {
		core  int
		pid   process.Pid
		value uint16
	})
	pendingReceives := make(map[uint16]struct {
		core int
		pid  process.Pid
	})

	// Phase 1: fetch/execute every assigned core exactly once.
	for c := range p.cores {
		pid := p.coreAssignment[c]
		if pid == process.NoPid {
			continue
		}
		cell := p.cellAllocator.Cell(pid)
		var pcBefore uint16
		var decoded isa.Instruction
		if p.Trace != nil {
			pcBefore = cell.PC()
			decoded, _ = isa.Decode(p.instructions.RawBytes()[pcBefore:])
		}
		msg, err := p.cores[c].Tick(&p.instructions, cell)
		if err != nil {
			return false, err
		}
		if p.Trace != nil {
			p.Trace(pid, pcBefore, decoded, msg, cell.ValueStackTopFirst())
		}
		ticked = append(ticked, coreMsg{core: c, pid: pid, msg: msg})
		switch msg.Kind {
		case execunit.Send:
			emittedSends[msg.Channel] = struct {
				core  int
				pid   process.Pid
				value uint16
			}{core: c, pid: pid, value: msg.Value}
		case execunit.Receive:
			pendingReceives[msg.Channel] = struct {
				core int
				pid  process.Pid
			}{core: c, pid: pid}
		}
	}

	returnMsgs := make(map[int][]execunit.ControllerMessage)
	tasks := scheduleTask{}
	resolvedByFastPath := make(map[uint16]bool)

	appendReturn := func(core int, m execunit.ControllerMessage) {
		returnMsgs[core] = append(returnMsgs[core], m)
	}

	// Phase 2a: resolve same-cycle send/receive rendezvous first.
	for _, tm := range ticked {
		if tm.msg.Kind != execunit.Send {
			continue
		}
		recv, ok := pendingReceives[tm.msg.Channel]
		if !ok {
			continue
		}
		appendReturn(recv.core, execunit.ControllerMessage{Kind: execunit.ReceivedValue, Channel: tm.msg.Channel, Value: tm.msg.Value})
		resolvedByFastPath[tm.msg.Channel] = true
	}

	// Phase 2b: interpret every other message.
	for _, tm := range ticked {
		c, pid, msg := tm.core, tm.pid, tm.msg
		switch msg.Kind {
		case execunit.Nothing:
			// no scheduler action
		case execunit.Yield:
			tasks.deschedule = append(tasks.deschedule, pid)
			appendReturn(c, execunit.ControllerMessage{Kind: execunit.SaveToMemory})
		case execunit.Halt:
			tasks.destroy = append(tasks.destroy, pid)
			appendReturn(c, execunit.ControllerMessage{Kind: execunit.SaveToMemory})
		case execunit.StartProcess:
			child, err := p.cellAllocator.Allocate(msg.StartAddr)
			if err != nil {
				return false, err
			}
			parentCell := p.cellAllocator.Cell(pid)
			childCell := p.cellAllocator.Cell(child)
			if err := childCell.BlockCopyValuesFrom(parentCell, msg.NumWords); err != nil {
				return false, err
			}
			p.table.Set(child, process.Status{State: process.Waiting})
			p.allocOrder = append(p.allocOrder, child)
			tasks.schedule = append(tasks.schedule, child)
		case execunit.CreateChannel:
			addr, err := p.channels.Alloc()
			if err != nil {
				return false, err
			}
			appendReturn(c, execunit.ControllerMessage{Kind: execunit.CreatedChannel, Channel: addr})
		case execunit.DeleteChannel:
			if err := p.channels.Free(msg.Channel); err != nil {
				return false, err
			}
			delete(p.senderWaiting, msg.Channel)
		case execunit.Send:
			if resolvedByFastPath[msg.Channel] {
				continue
			}
			if err := p.handleSend(pid, c, msg.Channel, msg.Value, &tasks, appendReturn); err != nil {
				return false, err
			}
		case execunit.Receive:
			if resolvedByFastPath[msg.Channel] {
				continue
			}
			if err := p.handleReceive(pid, msg.Channel, &tasks); err != nil {
				return false, err
			}
		case execunit.AlternationStart:
			p.alternationSet[pid] = true
			delete(p.alternationReadySet, pid)
		case execunit.AlternationWait:
			if !p.alternationReadySet[pid] {
				tasks.deschedule = append(tasks.deschedule, pid)
			}
		case execunit.AlternationEnd:
			delete(p.alternationSet, pid)
			delete(p.alternationReadySet, pid)
		case execunit.EnableChannel:
			if err := p.handleEnable(pid, msg.Channel); err != nil {
				return false, err
			}
		case execunit.DisableChannel:
			if err := p.handleDisable(pid, c, msg.Channel, msg.JumpDest, msg.HasAltValue, &tasks, appendReturn); err != nil {
				return false, err
			}
		}
	}

	// Phase 3: apply return messages to the cores that produced them.
	for core, msgs := range returnMsgs {
		pid := p.coreAssignment[core]
		if pid == process.NoPid {
			continue
		}
		for _, m := range msgs {
			if err := p.cores[core].Apply(m, p.cellAllocator.Cell(pid)); err != nil {
				return false, err
			}
		}
	}

	// Phase 4: reschedule.
	for _, pid := range tasks.deschedule {
		p.table.Set(pid, process.Status{State: process.Waiting})
		p.clearCoreFor(pid)
	}
	for _, pid := range tasks.destroy {
		p.finalStacks[pid] = p.cellAllocator.Cell(pid).ValueStackTopFirst()
		p.clearCoreFor(pid)
		p.cellAllocator.Release(pid)
	}

	var free []int
	for c, pid := range p.coreAssignment {
		if pid == process.NoPid {
			free = append(free, c)
		}
	}

	for _, core := range free {
		if len(tasks.schedule) == 0 {
			break
		}
		pid := tasks.schedule[len(tasks.schedule)-1]
		tasks.schedule = tasks.schedule[:len(tasks.schedule)-1]
		p.assignCore(core, pid)
	}

	for _, core := range free {
		if p.coreAssignment[core] != process.NoPid {
			continue
		}
		if waiting, ok := p.anyWaitingPid(); ok {
			p.assignCore(core, waiting)
		}
	}

	p.halted = true
	for _, pid := range p.coreAssignment {
		if pid != process.NoPid {
			p.halted = false
			break
		}
	}
	if p.halted {
		if _, ok := p.anyWaitingPid(); ok {
			p.halted = false
		}
	}
	return p.halted, nil
}

func (p *Processor) assignCore(core int, pid process.Pid) {
	p.coreAssignment[core] = pid
	p.table.Set(pid, process.Status{State: process.Running, CoreID: byte(core)})
}

func (p *Processor) clearCoreFor(pid process.Pid) {
	for c, assigned := range p.coreAssignment {
		if assigned == pid {
			p.coreAssignment[c] = process.NoPid
		}
	}
}

func (p *Processor) anyWaitingPid() (process.Pid, bool) {
	for i := 1; i < process.MaxProcesses; i++ {
		pid := process.Pid(i)
		if p.table.Get(pid).State == process.Waiting {
			return pid, true
		}
	}
	return 0, false
}

func (p *Processor) handleSend(pid process.Pid, core int, addr uint16, value uint16, tasks *scheduleTask, appendReturn func(int, execunit.ControllerMessage)) error {
	ch, err := p.channels.Read(addr)
	if err != nil {
		return err
	}
	switch {
	case ch.OwnerPid == process.NoPid:
		if err := p.channels.Write(addr, process.Channel{OwnerPid: pid, Value: value}); err != nil {
			return err
		}
		p.senderWaiting[addr] = true
		tasks.deschedule = append(tasks.deschedule, pid)
	case p.senderWaiting[addr]:
		// Two senders racing the same channel in the same tick: disallowed
		// by the type system's send linearity. Best-effort: ignore.
	case !ch.InAlternation:
		receiver := ch.OwnerPid
		if err := p.cellAllocator.Cell(receiver).PushValue(value); err != nil {
			return err
		}
		if err := p.channels.Empty(addr); err != nil {
			return err
		}
		delete(p.senderWaiting, addr)
		tasks.schedule = append(tasks.schedule, receiver)
		tasks.deschedule = append(tasks.deschedule, pid)
	default:
		receiver := ch.OwnerPid
		if err := p.channels.Write(addr, process.Channel{OwnerPid: pid, InAlternation: true, Value: value}); err != nil {
			return err
		}
		p.senderWaiting[addr] = true
		if !p.alternationReadySet[receiver] {
			p.alternationReadySet[receiver] = true
			tasks.schedule = append(tasks.schedule, receiver)
		}
		tasks.deschedule = append(tasks.deschedule, pid)
	}
	return nil
}

func (p *Processor) handleReceive(pid process.Pid, addr uint16, tasks *scheduleTask) error {
	ch, err := p.channels.Read(addr)
	if err != nil {
		return err
	}
	switch {
	case ch.OwnerPid == process.NoPid:
		if err := p.channels.Write(addr, process.Channel{OwnerPid: pid}); err != nil {
			return err
		}
		delete(p.senderWaiting, addr)
		tasks.deschedule = append(tasks.deschedule, pid)
	case p.senderWaiting[addr]:
		sender := ch.OwnerPid
		value := ch.Value
		if err := p.cellAllocator.Cell(pid).PushValue(value); err != nil {
			return err
		}
		if err := p.channels.Empty(addr); err != nil {
			return err
		}
		delete(p.senderWaiting, addr)
		tasks.schedule = append(tasks.schedule, sender)
	default:
		// Two receivers racing the same channel: disallowed by linearity.
	}
	return nil
}

func (p *Processor) handleEnable(pid process.Pid, addr uint16) error {
	ch, err := p.channels.Read(addr)
	if err != nil {
		return err
	}
	if ch.OwnerPid == process.NoPid {
		if err := p.channels.Write(addr, process.Channel{OwnerPid: pid, InAlternation: true}); err != nil {
			return err
		}
		delete(p.senderWaiting, addr)
		return nil
	}
	if p.senderWaiting[addr] {
		p.alternationReadySet[pid] = true
	}
	return nil
}

func (p *Processor) handleDisable(pid process.Pid, core int, addr uint16, dest uint16, hasAltValue bool, tasks *scheduleTask, appendReturn func(int, execunit.ControllerMessage)) error {
	ch, err := p.channels.Read(addr)
	if err != nil {
		return err
	}
	switch {
	case ch.OwnerPid == process.NoPid:
		// unowned: nothing to do
	case ch.OwnerPid == pid && !p.senderWaiting[addr]:
		if err := p.channels.Empty(addr); err != nil {
			return err
		}
	case !hasAltValue:
		sender := ch.OwnerPid
		value := ch.Value
		if err := p.cellAllocator.Cell(pid).PushValue(value); err != nil {
			return err
		}
		if err := p.channels.Empty(addr); err != nil {
			return err
		}
		delete(p.senderWaiting, addr)
		tasks.schedule = append(tasks.schedule, sender)
		appendReturn(core, execunit.ControllerMessage{Kind: execunit.Jump, Addr: dest})
	default:
		// already consumed a value from a different arm this alternation
	}
	return nil
}
