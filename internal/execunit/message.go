// Package execunit is the single-tick interpreter: it decodes one
// instruction from a read-only instruction cell and applies its effect to
// a single process's memory cell, returning a CoreMessage describing
// anything the processor needs to arbitrate. Grounded directly on
// original_source/statick-tools/src/lib/core/core_impl.rs's Core, which
// this package follows instruction-for-instruction.
package execunit

import "stannel/internal/process"

// Kind tags which variant of CoreMessage is populated.
type Kind int

const (
	Nothing Kind = iota
	StartProcess
	Yield
	Halt
	CreateChannel
	DeleteChannel
	Send
	Receive
	AlternationStart
	AlternationWait
	AlternationEnd
	EnableChannel
	DisableChannel
)

// CoreMessage is what a single tick reports back to the processor.
type CoreMessage struct {
	Kind Kind

	StartAddr uint16
	NumWords  uint16

	Channel uint16
	Value   uint16

	JumpDest    uint16
	HasAltValue bool
}

func msgNothing() CoreMessage { return CoreMessage{Kind: Nothing} }

// ControllerKind tags the messages the processor sends back into a core
// between ticks (spec §4.6).
type ControllerKind int

const (
	ResumeFromMemory ControllerKind = iota
	SaveToMemory
	CreatedChannel
	ReceivedValue
	Jump
)

type ControllerMessage struct {
	Kind    ControllerKind
	Channel uint16
	Value   uint16
	Addr    uint16
}

// Pid is re-exported for callers that only import execunit.
type Pid = process.Pid
