package types

// IDGen hands out fresh generic ids, shared by every type/stack/use
// variable created during a single inference run so that no two
// unrelated variables ever collide.
type IDGen struct{ next int }

func NewIDGen() *IDGen { return &IDGen{} }

func (g *IDGen) Type() int  { g.next++; return g.next }
func (g *IDGen) Stack() int { g.next++; return g.next }
func (g *IDGen) Use() int   { g.next++; return g.next }

// Scheme is a universally-quantified Function type: a template with a set
// of "own" generic ids that get freshly renamed on every Instantiate call
// (spec §4.3.1's subscript-polymorphic builtins, e.g. `chan_k` for varying
// k, are exactly this: one Scheme generator per named built-in).
type Scheme struct {
	Fn *Type
}

// Instantiate deep-copies the scheme's Function type, replacing every
// generic id it contains with a fresh one from fresh, so repeated uses of
// the same built-in never alias each other's unification state.
func (s *Scheme) Instantiate(fresh *IDGen) *Type {
	rename := map[int]int{}
	renameUse := map[int]int{}
	var rt func(t *Type) *Type
	var rs func(st *Stack) *Stack
	ru := func(u Use) Use {
		if u.Kind != UseVariable {
			return u
		}
		id, ok := renameUse[u.VarID]
		if !ok {
			id = fresh.Use()
			renameUse[u.VarID] = id
		}
		return Variable(id, u.Offset)
	}
	rt = func(t *Type) *Type {
		if t == nil {
			return nil
		}
		switch t.Kind {
		case TGeneric:
			id, ok := rename[t.GenericID]
			if !ok {
				id = fresh.Type()
				rename[t.GenericID] = id
			}
			return Generic(id, t.Constraints)
		case TChannel:
			return Channel(ru(t.Use), t.Dir, rt(t.Inner))
		case TFunction:
			return Function(rs(t.In), rs(t.Out))
		default:
			return t
		}
	}
	rs = func(st *Stack) *Stack {
		if st == nil {
			return nil
		}
		switch st.Kind {
		case SGeneric:
			id, ok := rename[st.GenericID]
			if !ok {
				id = fresh.Stack()
				rename[st.GenericID] = id
			}
			return StackGeneric(id, st.Constraints)
		case SCons:
			return Cons(rs(st.Base), rt(st.Top))
		default:
			return st
		}
	}
	return rt(s.Fn)
}
