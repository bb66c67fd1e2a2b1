// Package memcell implements the fixed-size memory cell described in spec
// §3 and §4.7: a 512-byte word-addressable region holding exactly one
// process's header, call stack, and value stack, or serving as a shared
// instruction cache / metadata region. Grounded on the teacher's
// (KTStephano-GVM/vm/vm.go) byte-slice stack with push/pop/peek helpers
// over encoding/binary, generalised from a 64KB flat register stack to the
// per-process 512-byte cell the spec calls for.
package memcell

import (
	"encoding/binary"

	"stannel/internal/diag"
)

const (
	Size = 512

	offsetPC    = 0
	offsetCSP   = 2
	offsetVSP   = 4
	offsetFlags = 6

	// HeaderSize is both the header length in bytes and the call stack's
	// starting pointer value (spec §3: "The call stack pointer starts at
	// the process header size (8)").
	HeaderSize = 8
)

// Cell is one 512-byte memory cell.
type Cell struct {
	bytes [Size]byte
}

// Reset reinitialises the cell's header: PC=pc, call stack empty (CSP=8),
// value stack empty (VSP=Size), flags cleared. The body bytes are left
// untouched — the caller decides whether to zero them.
func (c *Cell) Reset(pc uint16) {
	binary.LittleEndian.PutUint16(c.bytes[offsetPC:], pc)
	binary.LittleEndian.PutUint16(c.bytes[offsetCSP:], HeaderSize)
	binary.LittleEndian.PutUint16(c.bytes[offsetVSP:], Size)
	c.bytes[offsetFlags] = 0
}

func (c *Cell) PC() uint16   { return binary.LittleEndian.Uint16(c.bytes[offsetPC:]) }
func (c *Cell) SetPC(v uint16) { binary.LittleEndian.PutUint16(c.bytes[offsetPC:], v) }

func (c *Cell) CSP() uint16     { return binary.LittleEndian.Uint16(c.bytes[offsetCSP:]) }
func (c *Cell) setCSP(v uint16) { binary.LittleEndian.PutUint16(c.bytes[offsetCSP:], v) }

func (c *Cell) VSP() uint16     { return binary.LittleEndian.Uint16(c.bytes[offsetVSP:]) }
func (c *Cell) setVSP(v uint16) { binary.LittleEndian.PutUint16(c.bytes[offsetVSP:], v) }

func (c *Cell) FlagsByte() byte      { return c.bytes[offsetFlags] }
func (c *Cell) SetFlagsByte(b byte)  { c.bytes[offsetFlags] = b }

// AtCallStackBottom reports whether the call stack is empty — per spec §3,
// a Return encountered here halts the process instead of popping.
func (c *Cell) AtCallStackBottom() bool { return c.CSP() == HeaderSize }

func wordAligned(addr uint16) bool { return addr%2 == 0 }

// ReadWord reads the 16-bit little-endian word at addr. addr must be even
// and addr+1 must be in bounds.
func (c *Cell) ReadWord(addr uint16) (uint16, error) {
	if !wordAligned(addr) {
		return 0, diag.ErrSegFault
	}
	if int(addr)+1 >= Size {
		return 0, diag.ErrSegFault
	}
	return binary.LittleEndian.Uint16(c.bytes[addr:]), nil
}

// WriteWord writes val as a 16-bit little-endian word at addr.
func (c *Cell) WriteWord(addr uint16, val uint16) error {
	if !wordAligned(addr) {
		return diag.ErrSegFault
	}
	if int(addr)+1 >= Size {
		return diag.ErrSegFault
	}
	binary.LittleEndian.PutUint16(c.bytes[addr:], val)
	return nil
}

// ReadByte reads a single byte from within the word containing addr,
// masking the low bit to select the word and then picking the high or low
// half according to addr's parity (spec §4.7).
func (c *Cell) ReadByte(addr uint16) (byte, error) {
	wordAddr := addr &^ 1
	word, err := c.ReadWord(wordAddr)
	if err != nil {
		return 0, err
	}
	if addr&1 == 0 {
		return byte(word), nil
	}
	return byte(word >> 8), nil
}

// WriteByte writes a single byte into the word containing addr, leaving
// the other half of that word untouched.
func (c *Cell) WriteByte(addr uint16, b byte) error {
	wordAddr := addr &^ 1
	word, err := c.ReadWord(wordAddr)
	if err != nil {
		return err
	}
	if addr&1 == 0 {
		word = (word &^ 0xFF) | uint16(b)
	} else {
		word = (word & 0xFF) | uint16(b)<<8
	}
	return c.WriteWord(wordAddr, word)
}

// RawByte exposes a single raw byte of the cell (used by execunit for
// decoding instruction bytes out of an instruction-cache cell, which is
// not word-address-checked the way process data is).
func (c *Cell) RawByte(addr uint16) byte { return c.bytes[addr] }

func (c *Cell) RawBytes() []byte { return c.bytes[:] }

// PushValue pushes val onto the value stack, which grows downward from the
// top of the cell.
func (c *Cell) PushValue(val uint16) error {
	vsp := c.VSP()
	if vsp < 2 {
		return diag.ErrStackUnderflow
	}
	vsp -= 2
	if err := c.WriteWord(vsp, val); err != nil {
		return err
	}
	c.setVSP(vsp)
	return nil
}

// PopValue pops and returns the top of the value stack.
func (c *Cell) PopValue() (uint16, error) {
	vsp := c.VSP()
	if vsp > Size-2 {
		return 0, diag.ErrStackUnderflow
	}
	val, err := c.ReadWord(vsp)
	if err != nil {
		return 0, err
	}
	c.setVSP(vsp + 2)
	return val, nil
}

// PeekValue reads the value stack at depth offset words below the current
// top without moving the stack pointer; offset 0 is the current top.
func (c *Cell) PeekValue(offset uint16) (uint16, error) {
	addr := c.VSP() + offset*2
	if addr > Size-2 {
		return 0, diag.ErrStackUnderflow
	}
	return c.ReadWord(addr)
}

// PokeValue writes the value stack at depth offset words below the current
// top without moving the stack pointer.
func (c *Cell) PokeValue(offset uint16, val uint16) error {
	addr := c.VSP() + offset*2
	if addr > Size-2 {
		return diag.ErrStackUnderflow
	}
	return c.WriteWord(addr, val)
}

// ValueStackDepth returns the number of 16-bit values currently on the
// value stack.
func (c *Cell) ValueStackDepth() uint16 { return (Size - c.VSP()) / 2 }

// ValueStackTopFirst returns the value stack contents, top of stack first
// — the layout spec §6 requires for final_stack(alloc_id).
func (c *Cell) ValueStackTopFirst() []uint16 {
	depth := c.ValueStackDepth()
	out := make([]uint16, depth)
	for i := uint16(0); i < depth; i++ {
		out[i], _ = c.PeekValue(i)
	}
	return out
}

// PushCall pushes a return address onto the call stack, which grows
// upward from the end of the header.
func (c *Cell) PushCall(addr uint16) error {
	csp := c.CSP()
	if int(csp)+2 > Size {
		return diag.ErrStackUnderflow
	}
	if err := c.WriteWord(csp, addr); err != nil {
		return err
	}
	c.setCSP(csp + 2)
	return nil
}

// PopCall pops a return address from the call stack. The caller is
// responsible for checking AtCallStackBottom first (a Return there halts
// the process rather than underflowing).
func (c *Cell) PopCall() (uint16, error) {
	csp := c.CSP()
	if csp < HeaderSize+2 {
		return 0, diag.ErrStackUnderflow
	}
	csp -= 2
	val, err := c.ReadWord(csp)
	if err != nil {
		return 0, err
	}
	c.setCSP(csp)
	return val, nil
}

// BlockCopyValuesFrom moves n words from src's current value-stack top into
// this cell's value stack, popping them from src (spec §4.7's
// stack_block_copy, used by StartProcess to hand a new process its initial
// channel/argument words). Values are copied preserving stack order: the
// word that was on top of src ends up on top of dst.
func (c *Cell) BlockCopyValuesFrom(src *Cell, n uint16) error {
	vals := make([]uint16, n)
	for i := uint16(0); i < n; i++ {
		v, err := src.PopValue()
		if err != nil {
			return err
		}
		vals[i] = v
	}
	for i := int(n) - 1; i >= 0; i-- {
		if err := c.PushValue(vals[i]); err != nil {
			return err
		}
	}
	return nil
}
