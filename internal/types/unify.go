package types

import (
	"fmt"

	"stannel/internal/diag"
)

// satisfiedConstraints reports which constraints a concrete (non-Generic)
// type automatically satisfies, per spec §3: Bool/Int/Void are Droppable
// and Duplicable (Int additionally IntLike); Counter behaves like Int;
// Function values are droppable/duplicable references; a Channel is
// Droppable only once its use has resolved to Constant(0), and otherwise
// carries MustConsume (spec's affine-channel invariant).
func satisfiedConstraints(t *Type) ConstraintSet {
	switch t.Kind {
	case TBool:
		return NoConstraints().With(Droppable).With(Duplicable)
	case TInt, TCounter:
		return NoConstraints().With(Droppable).With(Duplicable).With(IntLike)
	case TVoid:
		return NoConstraints().With(Droppable).With(Duplicable)
	case TFunction:
		return NoConstraints().With(Droppable).With(Duplicable)
	case TChannel:
		if t.Use.IsZeroConstant() {
			return NoConstraints().With(Droppable)
		}
		return NoConstraints().With(MustConsume)
	default:
		return NoConstraints()
	}
}

// UnifyType implements spec §4.3 step 4's Algorithm-W-style unification
// over the Type half of the grammar.
func UnifyType(a, b *Type) (*Subst, error) {
	if a.Kind == TGeneric {
		return bindType(a.GenericID, a.Constraints, b)
	}
	if b.Kind == TGeneric {
		return bindType(b.GenericID, b.Constraints, a)
	}
	if a.Kind != b.Kind {
		return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: fmt.Sprintf("cannot unify %v with %v", a.Kind, b.Kind)}
	}
	switch a.Kind {
	case TBool, TInt, TVoid:
		return NewSubst(), nil
	case TCounter:
		if a.CounterID != b.CounterID {
			return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "mismatched counter identities"}
		}
		return NewSubst(), nil
	case TChannel:
		if a.Dir != b.Dir {
			return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "mismatched channel direction"}
		}
		s1, err := UnifyUse(a.Use, b.Use)
		if err != nil {
			return nil, err
		}
		innerA, innerB := s1.ApplyType(a.Inner), s1.ApplyType(b.Inner)
		s2, err := UnifyType(innerA, innerB)
		if err != nil {
			return nil, err
		}
		return Compose(s2, s1), nil
	case TFunction:
		s1, err := UnifyStack(a.In, b.In)
		if err != nil {
			return nil, err
		}
		outA, outB := s1.ApplyStack(a.Out), s1.ApplyStack(b.Out)
		s2, err := UnifyStack(outA, outB)
		if err != nil {
			return nil, err
		}
		return Compose(s2, s1), nil
	default:
		return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "unreachable type kind"}
	}
}

func bindType(id int, cs ConstraintSet, t *Type) (*Subst, error) {
	if t.Kind == TGeneric && t.GenericID == id {
		return NewSubst(), nil
	}
	if occursType(id, t) {
		return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "infinite type (occurs check)"}
	}

	if t.Kind == TGeneric {
		merged := Generic(t.GenericID, cs.Union(t.Constraints))
		sub := NewSubst()
		sub.Types[id] = merged
		if t.GenericID != id {
			sub.Types[t.GenericID] = merged
		}
		return sub, nil
	}

	missing := satisfiedConstraints(t).Missing(cs)
	if missing != 0 {
		if missing == ConstraintSet(Droppable) && t.Kind == TChannel && t.Use.Kind == UseVariable && t.Use.Offset == 0 {
			coerce := NewSubst()
			coerce.Uses[t.Use.VarID] = Constant(0)
			coerced := coerce.ApplyType(t)
			sub := NewSubst()
			sub.Types[id] = coerced
			return Compose(sub, coerce), nil
		}
		return nil, &diag.TypeError{Kind: diag.MissingConstraints, Message: "value does not satisfy required constraints"}
	}

	sub := NewSubst()
	sub.Types[id] = t
	return sub, nil
}

// UnifyStack implements unification over the Stack half of the grammar.
func UnifyStack(a, b *Stack) (*Subst, error) {
	if a.Kind == SGeneric {
		return bindStack(a.GenericID, a.Constraints, b)
	}
	if b.Kind == SGeneric {
		return bindStack(b.GenericID, b.Constraints, a)
	}
	if a.Kind == SBottom && b.Kind == SBottom {
		return NewSubst(), nil
	}
	if a.Kind != b.Kind {
		return nil, &diag.TypeError{Kind: diag.NonUnifiableStacks, Message: "mismatched stack shape"}
	}
	s1, err := UnifyType(a.Top, b.Top)
	if err != nil {
		return nil, err
	}
	baseA, baseB := s1.ApplyStack(a.Base), s1.ApplyStack(b.Base)
	s2, err := UnifyStack(baseA, baseB)
	if err != nil {
		return nil, err
	}
	return Compose(s2, s1), nil
}

func bindStack(id int, cs StackConstraintSet, st *Stack) (*Subst, error) {
	if st.Kind == SGeneric && st.GenericID == id {
		return NewSubst(), nil
	}
	if occursStackInStack(id, st) {
		return nil, &diag.TypeError{Kind: diag.NonUnifiableStacks, Message: "infinite stack (occurs check)"}
	}
	if st.Kind == SBottom && !cs.Has(AllowBottom) {
		return nil, &diag.TypeError{Kind: diag.BottomNotAllowed, Message: "this row may not unify with the non-returning bottom stack"}
	}
	if st.Kind == SGeneric {
		merged := StackGeneric(st.GenericID, cs.Union(st.Constraints))
		sub := NewSubst()
		sub.Stacks[id] = merged
		if st.GenericID != id {
			sub.Stacks[st.GenericID] = merged
		}
		return sub, nil
	}
	sub := NewSubst()
	sub.Stacks[id] = st
	return sub, nil
}

// UnifyUse unifies two channel use-counters, per spec §3's ChannelUse
// unification rules.
func UnifyUse(a, b Use) (*Subst, error) {
	sub := NewSubst()
	switch {
	case a.Kind == UseVariable && b.Kind == UseVariable:
		if a.VarID == b.VarID {
			if a.Offset == b.Offset {
				return sub, nil
			}
			// Same variable referenced at two different offsets: only
			// consistent if it never settles to a finite value.
			sub.Uses[a.VarID] = Infinity()
			return sub, nil
		}
		if a.Offset == b.Offset {
			sub.Uses[a.VarID] = Variable(b.VarID, 0)
			return sub, nil
		}
		sub.Uses[a.VarID] = Infinity()
		sub.Uses[b.VarID] = Infinity()
		return sub, nil
	case a.Kind == UseVariable && b.Kind == UseConstant:
		if b.Const < a.Offset {
			return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "channel use count too small for required offset"}
		}
		sub.Uses[a.VarID] = Constant(b.Const - a.Offset)
		return sub, nil
	case b.Kind == UseVariable && a.Kind == UseConstant:
		return UnifyUse(b, a)
	case a.Kind == UseVariable && b.Kind == UseInfinity:
		sub.Uses[a.VarID] = Infinity()
		return sub, nil
	case b.Kind == UseVariable && a.Kind == UseInfinity:
		return UnifyUse(b, a)
	case a.Kind == UseConstant && b.Kind == UseConstant:
		if a.Const != b.Const {
			return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "mismatched channel use counts"}
		}
		return sub, nil
	case a.Kind == UseInfinity && b.Kind == UseInfinity:
		return sub, nil
	default:
		return nil, &diag.TypeError{Kind: diag.NonUnifiableTypes, Message: "finite channel use cannot unify with infinite"}
	}
}
