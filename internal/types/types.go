// Package types implements the stack-polymorphic, affine-channel type
// system of spec §3 and the five-phase inferencer of spec §4.3. Grounded
// directly on spec §3's Type/Stack/ChannelUse data model description;
// nothing in the teacher or the rest of the pack models a CSP-style affine
// channel type system, so this package's shapes are derived from spec.md
// itself rather than ported from an example.
package types

import "fmt"

// Direction is a channel endpoint's direction.
type Direction int

const (
	Rx Direction = iota
	Tx
)

func (d Direction) String() string {
	if d == Rx {
		return "rx"
	}
	return "tx"
}

// UseKind tags a ChannelUse's variant.
type UseKind int

const (
	UseInfinity UseKind = iota
	UseConstant
	UseVariable
)

// Use is a channel's remaining-operations counter: Infinity, a concrete
// Constant(k), or a Variable(id, offset) meaning "at least offset more
// operations than variable id resolves to" (spec §3's invariant on
// Variable-use offsets).
type Use struct {
	Kind   UseKind
	Const  uint64
	VarID  int
	Offset uint64
}

func Infinity() Use                    { return Use{Kind: UseInfinity} }
func Constant(k uint64) Use            { return Use{Kind: UseConstant, Const: k} }
func Variable(id int, offset uint64) Use { return Use{Kind: UseVariable, VarID: id, Offset: offset} }

func (u Use) IsZeroConstant() bool { return u.Kind == UseConstant && u.Const == 0 }

// Constraint is a type-level marker (spec §3).
type Constraint int

const (
	Droppable Constraint = 1 << iota
	Duplicable
	MustConsume
	IntLike
)

type ConstraintSet uint8

func NoConstraints() ConstraintSet { return 0 }
func (s ConstraintSet) Has(c Constraint) bool { return s&ConstraintSet(c) != 0 }
func (s ConstraintSet) With(c Constraint) ConstraintSet { return s | ConstraintSet(c) }
func (s ConstraintSet) Union(o ConstraintSet) ConstraintSet { return s | o }
func (s ConstraintSet) Missing(required ConstraintSet) ConstraintSet {
	return required &^ s
}

// StackConstraint is a row-variable-level marker (spec §3).
type StackConstraint int

const (
	NoConsumableOrDroppableTypes StackConstraint = 1 << iota
	AllowBottom
	MustBeBase
)

type StackConstraintSet uint8

func NoStackConstraints() StackConstraintSet { return 0 }
func (s StackConstraintSet) Has(c StackConstraint) bool { return s&StackConstraintSet(c) != 0 }
func (s StackConstraintSet) With(c StackConstraint) StackConstraintSet {
	return s | StackConstraintSet(c)
}
func (s StackConstraintSet) Union(o StackConstraintSet) StackConstraintSet { return s | o }

// TypeKind tags a Type's variant.
type TypeKind int

const (
	TBool TypeKind = iota
	TInt
	TCounter
	TVoid
	TChannel
	TGeneric
	TFunction
)

// Type is the sum type of spec §3: Bool, Int, Counter(id), Void,
// Channel(use, direction, inner), Generic(id, constraints),
// Function(Stack -> Stack). Only the fields relevant to Kind are
// meaningful, mirroring the Instruction shape in internal/isa.
type Type struct {
	Kind TypeKind

	CounterID int // TCounter

	Use   Use       // TChannel
	Dir   Direction // TChannel
	Inner *Type     // TChannel

	GenericID   int           // TGeneric
	Constraints ConstraintSet // TGeneric

	In  *Stack // TFunction
	Out *Stack // TFunction
}

func Bool() *Type { return &Type{Kind: TBool} }
func Int() *Type  { return &Type{Kind: TInt} }
func Void() *Type { return &Type{Kind: TVoid} }
func Counter(id int) *Type { return &Type{Kind: TCounter, CounterID: id} }
func Channel(use Use, dir Direction, inner *Type) *Type {
	return &Type{Kind: TChannel, Use: use, Dir: dir, Inner: inner}
}
func Generic(id int, cs ConstraintSet) *Type { return &Type{Kind: TGeneric, GenericID: id, Constraints: cs} }
func Function(in, out *Stack) *Type          { return &Type{Kind: TFunction, In: in, Out: out} }

// StackKind tags a Stack's variant.
type StackKind int

const (
	SBottom StackKind = iota
	SGeneric
	SCons
)

// Stack is ⊥ (non-returning terminator), a row variable, or Cons(base,
// top) built bottom-to-top (spec §3).
type Stack struct {
	Kind StackKind

	GenericID   int
	Constraints StackConstraintSet

	Base *Stack
	Top  *Type
}

func Bottom() *Stack { return &Stack{Kind: SBottom} }
func StackGeneric(id int, cs StackConstraintSet) *Stack {
	return &Stack{Kind: SGeneric, GenericID: id, Constraints: cs}
}
func Cons(base *Stack, top *Type) *Stack { return &Stack{Kind: SCons, Base: base, Top: top} }

// ConsN builds base, top1, top2, ..., topN bottom-to-top in one call.
func ConsN(base *Stack, tops ...*Type) *Stack {
	s := base
	for _, t := range tops {
		s = Cons(s, t)
	}
	return s
}

func (u Use) String() string {
	switch u.Kind {
	case UseInfinity:
		return "inf"
	case UseConstant:
		return fmt.Sprintf("%d", u.Const)
	default:
		return fmt.Sprintf("v%d+%d", u.VarID, u.Offset)
	}
}

// String renders a Type in the "in -> out" arrow notation spec.md itself
// uses for function signatures, so `stc -t` output reads the same way the
// spec describes builtins.
func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	switch t.Kind {
	case TBool:
		return "bool"
	case TInt:
		return "int"
	case TVoid:
		return "void"
	case TCounter:
		return fmt.Sprintf("counter(%d)", t.CounterID)
	case TChannel:
		return fmt.Sprintf("chan[%s](%s %s)", t.Use, t.Dir, t.Inner)
	case TGeneric:
		return fmt.Sprintf("'%d", t.GenericID)
	case TFunction:
		return fmt.Sprintf("(%s -> %s)", t.In, t.Out)
	default:
		return "?"
	}
}

func (s *Stack) String() string {
	if s == nil {
		return "?"
	}
	switch s.Kind {
	case SBottom:
		return "_|_"
	case SGeneric:
		return fmt.Sprintf("'s%d", s.GenericID)
	case SCons:
		return fmt.Sprintf("%s.%s", s.Base, s.Top)
	default:
		return "?"
	}
}
