package process

import (
	"fmt"
	"testing"

	"stannel/internal/memcell"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestStatusPackRoundTrip(t *testing.T) {
	var cell memcell.Cell
	table := NewTable(&cell)
	table.Set(5, Status{State: Running, CoreID: 3})
	got := table.Get(5)
	assert(t, got.State == Running, "expected running, got %s", got.State)
	assert(t, got.CoreID == 3, "expected core 3, got %d", got.CoreID)
}

func TestAllocPidSkipsZeroAndBusySlots(t *testing.T) {
	var cell memcell.Cell
	table := NewTable(&cell)
	table.Set(1, Status{State: Inactive})
	p, err := table.AllocPid()
	assert(t, err == nil, "alloc failed: %v", err)
	assert(t, p == 2, "expected pid 2 (pid 1 busy, pid 0 sentinel), got %d", p)
}

func TestChannelHeapAllocWriteRead(t *testing.T) {
	var cell memcell.Cell
	ch := NewChannelHeap(&cell)
	addr, err := ch.Alloc()
	assert(t, err == nil, "alloc failed: %v", err)

	assert(t, ch.Write(addr, Channel{OwnerPid: 7, InAlternation: true, Value: 42}) == nil, "write")
	got, err := ch.Read(addr)
	assert(t, err == nil, "read failed: %v", err)
	assert(t, got.OwnerPid == 7, "owner expected 7 got %d", got.OwnerPid)
	assert(t, got.InAlternation, "expected in_alternation set")
	assert(t, got.Value == 42, "value expected 42 got %d", got.Value)
}

func TestChannelHeapFreeAndReuse(t *testing.T) {
	var cell memcell.Cell
	ch := NewChannelHeap(&cell)
	a, _ := ch.Alloc()
	// Alloc keeps bumping while the bump region has room and only pops the
	// free list once it is used up, so exhaust the bump region first.
	for {
		if _, err := ch.Alloc(); err != nil {
			break
		}
	}
	assert(t, ch.Free(a) == nil, "free")
	b, err := ch.Alloc()
	assert(t, err == nil, "realloc failed: %v", err)
	assert(t, a == b, "expected freed slot to be reused, got a=%d b=%d", a, b)
}

func TestCellAllocatorAllocateAndRelease(t *testing.T) {
	var cell memcell.Cell
	table := NewTable(&cell)
	alloc := NewCellAllocator(table)

	p, err := alloc.Allocate(0x20)
	assert(t, err == nil, "allocate failed: %v", err)
	assert(t, alloc.Cell(p).PC() == 0x20, "expected pc 0x20, got %d", alloc.Cell(p).PC())

	alloc.Release(p)
	assert(t, table.Get(p).State == Dead, "released pid should read back Dead")
}
