// Package ast defines the parsed-program shapes of spec §3: a Program is an
// ordered list of Declarations; a Term is a labelled sequence of
// Expressions; an Expression is one of several concrete node kinds. Each
// node may later carry its principal Type, filled in by internal/types
// (spec §4.3 step 4, "substitute it through every sub-expression").
//
// Grounded on spec §3's data model description; the sum-type-as-interface
// shape (a marker method plus a concrete struct per variant) follows the
// pack's own language-tool conventions for ASTs with no cycles and
// exclusively-owned children (spec §9's "boxed AST with owning children"
// re-architecting note).
package ast

import "stannel/internal/diag"

// Program is the parser's top-level output: an ordered list of
// declarations (order matters for the topological sort in spec §4.3 step
// 3, which is stable over declaration order for ties).
type Program struct {
	Declarations []Declaration
}

// Declaration is `name = term` at the top level.
type Declaration struct {
	Name string
	Term Term
	At   diag.Pos
}

// Term is a (possibly labelled) sequence of expressions with an inferred
// function type, filled in after type inference.
type Term struct {
	Label string // interior terms get "" until codegen assigns l_<n>
	Body  []Expression
}

// Expression is implemented by every concrete expression node.
type Expression interface {
	exprNode()
	Pos() diag.Pos
}

// Base is embedded by every concrete Expression to supply its source
// position and satisfy the Expression interface's marker method.
type Base struct {
	At diag.Pos
}

func (Base) exprNode()       {}
func (b Base) Pos() diag.Pos { return b.At }

// Number is a literal u16 push.
type Number struct {
	Base
	Value uint16
}

// Offset is `@k`, pushing the k-th stack slot's value (used in alternation
// arm tags and ReadLocalOffset-style access).
type Offset struct {
	Base
	Value uint16
}

// NamedTermApp is a bare identifier reference: `name` or `name_k`, applied
// immediately (push label; call).
type NamedTermApp struct {
	Base
	Name      string
	Subscript *uint16 // nil when no "_k" suffix was present
}

// NamedTermRef is `'name[_k]`, a quoted reference that pushes the function
// value itself instead of calling it.
type NamedTermRef struct {
	Base
	Name      string
	Subscript *uint16
}

// AnonymousTerm is a parenthesised sub-term `(E...)`.
type AnonymousTerm struct {
	Base
	Body Term
}

// If is `if C then T else F`; C, T, F are each themselves Terms (spec §3:
// "each branch is a Term").
type If struct {
	Base
	Cond Term
	Then Term
	Else Term
}

// While is `while C do B`.
type While struct {
	Base
	Cond Term
	Body Term
}

// Forever is the bare `repeat B` form: an unconditional, never-exiting
// loop (spec §4.4: "body label = entry label; unconditional jump back").
type Forever struct {
	Base
	Body Term
}

// Repeat is the counted `repeat_k B` form.
type Repeat struct {
	Base
	Count uint16
	Body  Term
}

// Arm is one `@i -> term` branch of an Alternation.
type Arm struct {
	ChannelOffset uint16
	Body          Term
	At            diag.Pos
}

// Alternation is `[ arm | arm | ... ]`, guarded choice over channel-read
// arms (spec §4.3 "Alternation arms", §4.4 step 3's bullet on AlternationStart/Wait/End).
type Alternation struct {
	Base
	Arms []Arm
}
