package process

import (
	"stannel/internal/diag"
	"stannel/internal/memcell"
)

// wordIO is the minimal memory interface the bump+freelist allocator needs;
// satisfied by *memcell.Cell. Grounded directly on
// original_source/statick-tools/src/lib/memory/heap.rs's Heap, which stores
// each freed slot's next-free pointer inside the freed slot itself rather
// than in a side structure.
type wordIO interface {
	ReadWord(addr uint16) (uint16, error)
	WriteWord(addr uint16, val uint16) error
}

// Heap is a bump-pointer allocator that falls back to an intrusive free
// list once the bump region is exhausted. Used for the channel heap
// (4-byte slots, spec §3); process cells are allocated by CellAllocator,
// which does not use it.
type Heap struct {
	base, end, max, free, allocSize uint16
}

// NewHeap mirrors Heap::new: base must differ from max and from 0xFFFF,
// and allocSize must be at least 2 so a freed slot can hold a free-list
// pointer.
func NewHeap(base, max, allocSize uint16) *Heap {
	if allocSize < 2 {
		panic("process: heap alloc size must be at least 2")
	}
	return &Heap{base: base, end: base, max: max, free: 0, allocSize: allocSize}
}

// Alloc returns a fresh slot address, bumping the end pointer if there is
// still room, otherwise popping the head of the free list.
func (h *Heap) Alloc(mem wordIO) (uint16, error) {
	if h.end+h.allocSize <= h.max {
		addr := h.end
		h.end += h.allocSize
		return addr, nil
	}
	if h.free != 0 {
		addr := h.free
		next, err := mem.ReadWord(h.free)
		if err != nil {
			return 0, err
		}
		h.free = next
		return addr, nil
	}
	return 0, diag.ErrAllocFailed
}

// Free pushes addr onto the free list, writing the previous head into the
// freed slot so it can be recovered on the next allocation.
func (h *Heap) Free(mem wordIO, addr uint16) error {
	if err := mem.WriteWord(addr, h.free); err != nil {
		return err
	}
	h.free = addr
	return nil
}

var _ wordIO = (*memcell.Cell)(nil)
