// Package process models process lifecycle state and channel storage: the
// process-state table and channel region that spec §4.8 says live inside
// the processor's last memory cell, plus the allocators backing both.
// Grounded on the teacher's packed-state-byte conventions (KTStephano-GVM
// vm/devices.go uses a similar "small tag in a byte" style for its device
// registers) and on original_source/statick-tools/src/lib/core/process.rs
// for the exact tag/core-id packing.
package process

import (
	"stannel/internal/diag"
	"stannel/internal/memcell"
)

// State is the two-bit process status tag of spec §3.
type State byte

const (
	Dead State = iota
	Inactive
	Running
	Waiting
)

func (s State) String() string {
	switch s {
	case Dead:
		return "dead"
	case Inactive:
		return "inactive"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	default:
		return "?state?"
	}
}

// Status is a process's decoded state: a two-bit tag plus, when Running,
// the six-bit core id it's assigned to.
type Status struct {
	State  State
	CoreID byte
}

func packStatus(s Status) byte {
	return byte(s.State&0x3) | (s.CoreID&0x3F)<<2
}

func unpackStatus(b byte) Status {
	return Status{State: State(b & 0x3), CoreID: (b >> 2) & 0x3F}
}

// Pid identifies a process slot in the process table. Pid 0 is always the
// "no process" sentinel and is never allocated.
type Pid uint16

const NoPid Pid = 0

// MaxProcesses bounds how many live processes the table can hold
// (including the unused pid 0 sentinel slot).
const MaxProcesses = 60

// tableOffset is where the process-status byte table starts within the
// last memory cell; channelHeapBase is the first even address after it.
const (
	tableOffset     = 0
	channelHeapBase = MaxProcesses + 1 // rounded up to an even address in NewChannelHeap
)

// Table manages process status slots carved out of a shared memory cell —
// the last of the processor's cells, per spec §4.8.
type Table struct {
	cell *memcell.Cell
}

func NewTable(cell *memcell.Cell) *Table {
	return &Table{cell: cell}
}

func (t *Table) Get(p Pid) Status {
	return unpackStatus(t.cell.RawByte(uint16(tableOffset) + uint16(p)))
}

func (t *Table) Set(p Pid, s Status) {
	addr := uint16(tableOffset) + uint16(p)
	raw := t.cell.RawBytes()
	raw[addr] = packStatus(s)
}

// AllocPid finds a Dead slot other than pid 0 and returns it, without yet
// marking it non-Dead (the caller transitions state once the new cell is
// initialised).
func (t *Table) AllocPid() (Pid, error) {
	for p := Pid(1); p < MaxProcesses; p++ {
		if t.Get(p).State == Dead {
			return p, nil
		}
	}
	return 0, diag.ErrAllocFailed
}

// Channel is the 4-byte channel slot layout of spec §3: word 0 packs
// owner pid (15 bits) and an in-alternation flag (1 bit); word 1 holds the
// buffered value.
type Channel struct {
	OwnerPid     Pid
	InAlternation bool
	Value        uint16
}

func decodeChannelWord0(w uint16) (Pid, bool) {
	return Pid(w &^ 0x8000), w&0x8000 != 0
}

func encodeChannelWord0(owner Pid, inAlt bool) uint16 {
	w := uint16(owner) & 0x7FFF
	if inAlt {
		w |= 0x8000
	}
	return w
}

// ChannelHeap allocates and frees 4-byte channel slots from the tail of
// the last memory cell, using the bump+freelist Heap.
type ChannelHeap struct {
	cell *memcell.Cell
	heap *Heap
}

func NewChannelHeap(cell *memcell.Cell) *ChannelHeap {
	base := uint16(channelHeapBase)
	if base%2 != 0 {
		base++
	}
	return &ChannelHeap{cell: cell, heap: NewHeap(base, memcell.Size, 4)}
}

func (h *ChannelHeap) Alloc() (uint16, error) {
	addr, err := h.heap.Alloc(h.cell)
	if err != nil {
		return 0, err
	}
	if err := h.cell.WriteWord(addr, 0); err != nil {
		return 0, err
	}
	if err := h.cell.WriteWord(addr+2, 0); err != nil {
		return 0, err
	}
	return addr, nil
}

func (h *ChannelHeap) Free(addr uint16) error {
	return h.heap.Free(h.cell, addr)
}

func (h *ChannelHeap) Read(addr uint16) (Channel, error) {
	w0, err := h.cell.ReadWord(addr)
	if err != nil {
		return Channel{}, err
	}
	w1, err := h.cell.ReadWord(addr + 2)
	if err != nil {
		return Channel{}, err
	}
	owner, inAlt := decodeChannelWord0(w0)
	return Channel{OwnerPid: owner, InAlternation: inAlt, Value: w1}, nil
}

func (h *ChannelHeap) Write(addr uint16, c Channel) error {
	if err := h.cell.WriteWord(addr, encodeChannelWord0(c.OwnerPid, c.InAlternation)); err != nil {
		return err
	}
	return h.cell.WriteWord(addr+2, c.Value)
}

func (h *ChannelHeap) Empty(addr uint16) error {
	return h.Write(addr, Channel{})
}

// CellAllocator is a supplemented feature (not present verbatim in the
// distilled spec, but implied by "allocate a new pid" in §4.8): it hands
// out process memory cells from a fixed pool sized MaxProcesses, keyed by
// Pid. Allocation takes the first Dead pid found by Table.AllocPid's linear
// scan; it does not use Heap.
type CellAllocator struct {
	cells [MaxProcesses]memcell.Cell
	table *Table
}

func NewCellAllocator(table *Table) *CellAllocator {
	return &CellAllocator{table: table}
}

// Cell returns the memory cell owned by pid p.
func (a *CellAllocator) Cell(p Pid) *memcell.Cell {
	return &a.cells[p]
}

// Allocate finds a free pid via the table and resets its cell to start at
// pc, returning the new pid with its status still Dead — the caller (the
// scheduler) sets it Inactive/Running once scheduling decides.
func (a *CellAllocator) Allocate(pc uint16) (Pid, error) {
	p, err := a.table.AllocPid()
	if err != nil {
		return 0, err
	}
	a.cells[p].Reset(pc)
	return p, nil
}

// Release marks p Dead in the table, making its slot eligible for reuse.
func (a *CellAllocator) Release(p Pid) {
	a.table.Set(p, Status{State: Dead})
}
