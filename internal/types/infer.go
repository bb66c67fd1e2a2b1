// Five-phase inference (spec §4.3): seed built-ins, assign every user
// declaration a fresh polymorphic Function type, topologically order
// declarations by reference so mutual recursion resolves deterministically,
// walk each declaration's Term composing expression types left to right via
// unification, then validate shape and channel consumption.
//
// User declarations are treated as monomorphic across all of their call
// sites (one Function type per name, fixed once in phase 2 and only ever
// narrowed by unification in phase 4) rather than let-generalised per call
// site the way the generated stdlib Schemes in schemes.go are. Spec §4.3.1
// only calls out subscript polymorphism for the generated built-ins; full
// Hindley-Milner generalisation of user declarations is a substantially
// larger undertaking this inferencer does not attempt (see DESIGN.md).
package types

import (
	"fmt"

	"stannel/internal/ast"
	"stannel/internal/diag"
)

type Inferencer struct {
	fresh     *IDGen
	builtins  map[string]*Scheme
	declTypes map[string]*Type
	decls     map[string]ast.Declaration
	global    *Subst
}

func NewInferencer() *Inferencer {
	return &Inferencer{
		fresh:     NewIDGen(),
		builtins:  Builtins(),
		declTypes: map[string]*Type{},
		decls:     map[string]ast.Declaration{},
		global:    NewSubst(),
	}
}

// Infer runs all five phases and returns each declaration's final,
// fully-substituted Function type.
func (inf *Inferencer) Infer(prog *ast.Program) (map[string]*Type, error) {
	// Phase 2: duplicate check + fresh per-declaration types.
	for _, d := range prog.Declarations {
		if _, dup := inf.decls[d.Name]; dup {
			return nil, &diag.TypeError{Kind: diag.DuplicateName, Name: d.Name, Message: "declared more than once"}
		}
		inf.decls[d.Name] = d
		in := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
		out := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
		inf.declTypes[d.Name] = Function(in, out)
	}

	if _, ok := inf.decls["main"]; !ok {
		return nil, &diag.TypeError{Kind: diag.UndefinedMain, Message: "program has no main declaration"}
	}

	// Phase 3: topological order over the reference graph; tolerates
	// cycles (mutual recursion) by visiting each name exactly once.
	order := inf.topoOrder(prog)

	// Phase 4: walk each declaration, composing its body's type.
	for _, name := range order {
		d := inf.decls[name]
		bodyFn, err := inf.inferTerm(d.Term)
		if err != nil {
			return nil, err
		}
		sub, err := UnifyType(bodyFn, inf.global.ApplyType(inf.declTypes[name]))
		if err != nil {
			return nil, err
		}
		inf.global = Compose(sub, inf.global)
		if err := inf.consumptionCheck(inf.global.ApplyType(inf.declTypes[name])); err != nil {
			return nil, err
		}
	}

	result := map[string]*Type{}
	for name, t := range inf.declTypes {
		result[name] = inf.global.ApplyType(t)
	}

	mainFn := result["main"]
	if mainFn.In.Kind != SGeneric {
		return nil, &diag.TypeError{Kind: diag.BadMain, Message: "main must not require any stack values"}
	}

	return result, nil
}

func (inf *Inferencer) topoOrder(prog *ast.Program) []string {
	visited := map[string]bool{}
	var order []string
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		d, ok := inf.decls[name]
		if !ok {
			return
		}
		for _, ref := range referencedNames(d.Term) {
			if ref != name {
				visit(ref)
			}
		}
		order = append(order, name)
	}
	for _, d := range prog.Declarations {
		visit(d.Name)
	}
	return order
}

func referencedNames(t ast.Term) []string {
	var names []string
	var walk func(e ast.Expression)
	walkTerm := func(tm ast.Term) {
		for _, e := range tm.Body {
			walk(e)
		}
	}
	walk = func(e ast.Expression) {
		switch n := e.(type) {
		case ast.NamedTermApp:
			if n.Subscript == nil {
				names = append(names, n.Name)
			}
		case ast.NamedTermRef:
			if n.Subscript == nil {
				names = append(names, n.Name)
			}
		case ast.AnonymousTerm:
			walkTerm(n.Body)
		case ast.If:
			walkTerm(n.Cond)
			walkTerm(n.Then)
			walkTerm(n.Else)
		case ast.While:
			walkTerm(n.Cond)
			walkTerm(n.Body)
		case ast.Forever:
			walkTerm(n.Body)
		case ast.Repeat:
			walkTerm(n.Body)
		case ast.Alternation:
			for _, a := range n.Arms {
				walkTerm(a.Body)
			}
		}
	}
	walkTerm(t)
	return names
}

// lookup resolves a bare name to a Function type: a builtin scheme
// (freshly instantiated) or a user declaration's fixed, globally
// monomorphic type.
func (inf *Inferencer) lookup(name string, subscript *uint16) (*Type, error) {
	if subscript != nil {
		if s, ok := Subscripted(inf.fresh, name, *subscript); ok {
			return s.Instantiate(inf.fresh), nil
		}
		return nil, &diag.TypeError{Kind: diag.NameHasNoParameter, Name: name, Message: "this name does not take a numeric subscript"}
	}
	if s, ok := inf.builtins[name]; ok {
		return s.Instantiate(inf.fresh), nil
	}
	if t, ok := inf.declTypes[name]; ok {
		return inf.global.ApplyType(t), nil
	}
	return nil, &diag.TypeError{Kind: diag.UnknownName, Name: name, Message: "not a built-in or declared term"}
}

// inferTerm returns the Function type of evaluating term's expressions
// left to right, starting from a fresh polymorphic base row.
func (inf *Inferencer) inferTerm(term ast.Term) (*Type, error) {
	base := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
	current := Function(base, base)
	for _, expr := range term.Body {
		exprFn, err := inf.inferExpr(expr)
		if err != nil {
			return nil, err
		}
		sub, err := UnifyStack(current.Out, exprFn.In)
		if err != nil {
			return nil, fmt.Errorf("at %s: %w", expr.Pos(), err)
		}
		current = Function(sub.ApplyStack(current.In), sub.ApplyStack(exprFn.Out))
	}
	return current, nil
}

func (inf *Inferencer) inferExpr(e ast.Expression) (*Type, error) {
	switch n := e.(type) {
	case ast.Number:
		s := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
		return Function(s, Cons(s, Int())), nil
	case ast.Offset:
		s := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
		return Function(s, Cons(s, Int())), nil
	case ast.NamedTermApp:
		return inf.lookup(n.Name, n.Subscript)
	case ast.NamedTermRef:
		fn, err := inf.lookup(n.Name, n.Subscript)
		if err != nil {
			return nil, err
		}
		s := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
		return Function(s, Cons(s, fn)), nil
	case ast.AnonymousTerm:
		return inf.inferTerm(n.Body)
	case ast.If:
		return inf.inferIf(n)
	case ast.While:
		return inf.inferWhile(n)
	case ast.Forever:
		return inf.inferForever(n)
	case ast.Repeat:
		return inf.inferRepeat(n)
	case ast.Alternation:
		return inf.inferAlternation(n)
	default:
		return nil, &diag.TypeError{Kind: diag.UnknownName, Message: fmt.Sprintf("unhandled expression node %T", e)}
	}
}

func (inf *Inferencer) inferIf(n ast.If) (*Type, error) {
	condFn, err := inf.inferTerm(n.Cond)
	if err != nil {
		return nil, err
	}
	bBase := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
	s1, err := UnifyStack(condFn.Out, Cons(bBase, Bool()))
	if err != nil {
		return nil, err
	}
	postCond := s1.ApplyStack(bBase)

	thenFn, err := inf.inferTerm(n.Then)
	if err != nil {
		return nil, err
	}
	s2, err := UnifyStack(thenFn.In, postCond)
	if err != nil {
		return nil, err
	}
	acc := Compose(s2, s1)

	elseFn, err := inf.inferTerm(n.Else)
	if err != nil {
		return nil, err
	}
	s3, err := UnifyStack(elseFn.In, acc.ApplyStack(postCond))
	if err != nil {
		return nil, err
	}
	acc = Compose(s3, acc)

	s4, err := UnifyStack(acc.ApplyStack(thenFn.Out), acc.ApplyStack(elseFn.Out))
	if err != nil {
		return nil, err
	}
	acc = Compose(s4, acc)

	return Function(acc.ApplyStack(condFn.In), acc.ApplyStack(thenFn.Out)), nil
}

func (inf *Inferencer) inferWhile(n ast.While) (*Type, error) {
	condFn, err := inf.inferTerm(n.Cond)
	if err != nil {
		return nil, err
	}
	bBase := StackGeneric(inf.fresh.Stack(), NoStackConstraints())
	s1, err := UnifyStack(condFn.Out, Cons(bBase, Bool()))
	if err != nil {
		return nil, err
	}

	bodyFn, err := inf.inferTerm(n.Body)
	if err != nil {
		return nil, err
	}
	s2, err := UnifyStack(s1.ApplyStack(bBase), bodyFn.In)
	if err != nil {
		return nil, err
	}
	acc := Compose(s2, s1)

	s3, err := UnifyStack(acc.ApplyStack(bodyFn.Out), acc.ApplyStack(condFn.In))
	if err != nil {
		return nil, err
	}
	acc = Compose(s3, acc)

	return Function(acc.ApplyStack(condFn.In), acc.ApplyStack(bBase)), nil
}

func (inf *Inferencer) inferForever(n ast.Forever) (*Type, error) {
	bodyFn, err := inf.inferTerm(n.Body)
	if err != nil {
		return nil, err
	}
	sub, err := UnifyStack(bodyFn.In, bodyFn.Out)
	if err != nil {
		return nil, err
	}
	in := sub.ApplyStack(bodyFn.In)
	out := StackGeneric(inf.fresh.Stack(), NoStackConstraints().With(AllowBottom))
	s2, err := UnifyStack(out, Bottom())
	if err != nil {
		return nil, err
	}
	return Function(in, s2.ApplyStack(out)), nil
}

func (inf *Inferencer) inferRepeat(n ast.Repeat) (*Type, error) {
	if n.Count == 0 {
		return nil, &diag.TypeError{Kind: diag.RepeatZero, Message: "repeat_0 has no well-defined type"}
	}
	bodyFn, err := inf.inferTerm(n.Body)
	if err != nil {
		return nil, err
	}
	sub, err := UnifyStack(bodyFn.In, bodyFn.Out)
	if err != nil {
		return nil, err
	}
	return Function(sub.ApplyStack(bodyFn.In), sub.ApplyStack(bodyFn.Out)), nil
}

func (inf *Inferencer) inferAlternation(n ast.Alternation) (*Type, error) {
	if len(n.Arms) == 0 {
		return nil, &diag.TypeError{Kind: diag.EmptyAlternationsNotAllowed, Message: "alternation must have at least one arm"}
	}
	acc, err := inf.inferTerm(n.Arms[0].Body)
	if err != nil {
		return nil, err
	}
	for _, arm := range n.Arms[1:] {
		armFn, err := inf.inferTerm(arm.Body)
		if err != nil {
			return nil, err
		}
		s1, err := UnifyStack(acc.In, armFn.In)
		if err != nil {
			return nil, err
		}
		s2, err := UnifyStack(s1.ApplyStack(acc.Out), s1.ApplyStack(armFn.Out))
		if err != nil {
			return nil, err
		}
		sub := Compose(s2, s1)
		acc = Function(sub.ApplyStack(acc.In), sub.ApplyStack(acc.Out))
	}
	return acc, nil
}

// consumptionCheck walks fn's fully-substituted input and output rows and
// flags any MustConsume-bearing type (an unfinished channel endpoint) that
// reappears, unconsumed, at the same position in the output (spec §4.3's
// consumption check). Comparing by structural equality at matching stack
// depth is an approximation of full alias tracking but catches the common
// leak shape: a channel pushed in and never used.
func (inf *Inferencer) consumptionCheck(fn *Type) error {
	inLayers := stackLayers(fn.In)
	outLayers := stackLayers(fn.Out)
	for _, l := range inLayers {
		if !l.Constraints.Has(MustConsume) && l.Kind != TChannel {
			continue
		}
		if l.Kind == TChannel && l.Use.IsZeroConstant() {
			continue
		}
		for _, o := range outLayers {
			if typesStructurallyEqual(l, o) {
				return &diag.TypeError{Kind: diag.ConsumedTypesWerentConsumed, Message: "a channel endpoint reaches the end of this term without being fully used"}
			}
		}
	}
	return nil
}

func stackLayers(st *Stack) []*Type {
	var out []*Type
	for st != nil && st.Kind == SCons {
		out = append(out, st.Top)
		st = st.Base
	}
	return out
}

func typesStructurallyEqual(a, b *Type) bool {
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TChannel:
		return a.Dir == b.Dir && a.Use == b.Use && typesStructurallyEqual(a.Inner, b.Inner)
	case TGeneric:
		return a.GenericID == b.GenericID
	case TCounter:
		return a.CounterID == b.CounterID
	default:
		return true
	}
}
