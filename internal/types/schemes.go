package types

// Builtins returns the seeded type environment of spec §4.3 step 1:
// arithmetic, comparison, and stack-manipulation words, plus the
// subscript-polymorphic channel/alternation/process primitives of spec
// §4.3.1. Every entry is built against a throwaway IDGen so the returned
// Schemes own their own generic ids; Instantiate renumbers them again
// against the caller's real IDGen on each use.
func Builtins() map[string]*Scheme {
	g := NewIDGen()
	m := map[string]*Scheme{}

	binaryArith := func() *Scheme {
		s := g.Stack()
		base := StackGeneric(s, NoStackConstraints())
		in := ConsN(base, Int(), Int())
		out := ConsN(base, Int())
		return &Scheme{Fn: Function(in, out)}
	}
	m["+"] = binaryArith()
	m["-"] = binaryArith()

	binaryCompare := func() *Scheme {
		s := g.Stack()
		base := StackGeneric(s, NoStackConstraints())
		in := ConsN(base, Int(), Int())
		out := ConsN(base, Bool())
		return &Scheme{Fn: Function(in, out)}
	}
	for _, op := range []string{"<", ">", "<=", ">=", "==", "!="} {
		m[op] = binaryCompare()
	}

	// drop: S x alpha(Droppable) -> S
	{
		s := g.Stack()
		a := g.Type()
		base := StackGeneric(s, NoStackConstraints())
		in := Cons(base, Generic(a, NoConstraints().With(Droppable)))
		m["drop"] = &Scheme{Fn: Function(in, base)}
	}
	// dup: S x alpha(Duplicable) -> S x alpha x alpha
	{
		s := g.Stack()
		a := g.Type()
		base := StackGeneric(s, NoStackConstraints())
		alpha := Generic(a, NoConstraints().With(Duplicable))
		in := Cons(base, alpha)
		out := ConsN(base, alpha, alpha)
		m["dup"] = &Scheme{Fn: Function(in, out)}
	}
	// swap: S x alpha x beta -> S x beta x alpha
	{
		s := g.Stack()
		a, b := g.Type(), g.Type()
		base := StackGeneric(s, NoStackConstraints())
		alpha, beta := Generic(a, NoConstraints()), Generic(b, NoConstraints())
		in := ConsN(base, alpha, beta)
		out := ConsN(base, beta, alpha)
		m["swap"] = &Scheme{Fn: Function(in, out)}
	}
	// tuck: S x alpha x beta -> S x beta x alpha x beta
	{
		s := g.Stack()
		a, b := g.Type(), g.Type()
		base := StackGeneric(s, NoStackConstraints())
		alpha, beta := Generic(a, NoConstraints().With(Duplicable)), Generic(b, NoConstraints())
		in := ConsN(base, alpha, beta)
		out := ConsN(base, beta, alpha, beta)
		m["tuck"] = &Scheme{Fn: Function(in, out)}
	}
	// rot: S x alpha x beta x gamma -> S x beta x gamma x alpha
	{
		s := g.Stack()
		a, b, c := g.Type(), g.Type(), g.Type()
		base := StackGeneric(s, NoStackConstraints())
		alpha, beta, gamma := Generic(a, NoConstraints()), Generic(b, NoConstraints()), Generic(c, NoConstraints())
		in := ConsN(base, alpha, beta, gamma)
		out := ConsN(base, beta, gamma, alpha)
		m["rot"] = &Scheme{Fn: Function(in, out)}
	}
	// apply: S x (S -> S') -> S'
	{
		s1, s2 := g.Stack(), g.Stack()
		base1 := StackGeneric(s1, NoStackConstraints())
		base2 := StackGeneric(s2, NoStackConstraints())
		fn := Function(base1, base2)
		in := Cons(base1, fn)
		m["apply"] = &Scheme{Fn: Function(in, base2)}
	}

	m["chan"] = chanScheme(g, nil)
	m["?"] = queryScheme(g, 0)
	m["!"] = sendScheme(g, 0)
	m["del"] = delScheme(g, 0)
	m["proc"] = procScheme(g, 0)

	return m
}

// Subscripted looks up a builtin that carries a numeric subscript
// (`chan_k`, `?_i`, `!_i`, `del_i`, `proc_k`), building a fresh scheme
// parameterised over k rather than serving a cached one (spec §4.3.1: the
// subscript is part of the type, not a runtime argument).
func Subscripted(fresh *IDGen, name string, k uint16) (*Scheme, bool) {
	switch name {
	case "chan":
		kk := uint64(k)
		return chanScheme(fresh, &kk), true
	case "?":
		return queryScheme(fresh, int(k)), true
	case "!":
		return sendScheme(fresh, int(k)), true
	case "del":
		return delScheme(fresh, int(k)), true
	case "proc":
		return procScheme(fresh, int(k)), true
	case "repeat":
		return repeatScheme(fresh), true
	default:
		return nil, false
	}
}

// chanScheme: S -> S x Rx(use)T x Tx(use)T. With k nil both endpoints get
// an infinite use (spec default); with k given both get Constant(k).
func chanScheme(g *IDGen, k *uint64) *Scheme {
	s := g.Stack()
	base := StackGeneric(s, NoStackConstraints())
	a := g.Type()
	payload := Generic(a, NoConstraints())
	var use Use
	if k == nil {
		use = Infinity()
	} else {
		use = Constant(*k)
	}
	rx := Channel(use, Rx, payload)
	tx := Channel(use, Tx, payload)
	out := ConsN(base, rx, tx)
	return &Scheme{Fn: Function(base, out)}
}

// queryScheme (`?`/`?_i`): receives through the Rx endpoint that sits i
// slots below the top of the stack, leaving the i passthrough slots
// untouched and pushing the received value.
func queryScheme(g *IDGen, i int) *Scheme {
	s := g.Stack()
	base := StackGeneric(s, NoStackConstraints())
	v := g.Use()
	a := g.Type()
	payload := Generic(a, NoConstraints())

	pass := make([]*Type, i)
	for idx := range pass {
		pass[idx] = Generic(g.Type(), NoConstraints())
	}

	rxIn := Channel(Variable(v, 1), Rx, payload)
	rxOut := Channel(Variable(v, 0), Rx, payload)

	in := ConsN(Cons(base, rxIn), pass...)
	out := ConsN(ConsN(Cons(base, rxOut), pass...), payload)
	return &Scheme{Fn: Function(in, out)}
}

// sendScheme (`!`/`!_i`): symmetric to queryScheme, consuming the top
// value and the i passthrough slots down to the Tx endpoint.
func sendScheme(g *IDGen, i int) *Scheme {
	s := g.Stack()
	base := StackGeneric(s, NoStackConstraints())
	v := g.Use()
	a := g.Type()
	payload := Generic(a, NoConstraints())

	pass := make([]*Type, i)
	for idx := range pass {
		pass[idx] = Generic(g.Type(), NoConstraints())
	}

	txIn := Channel(Variable(v, 1), Tx, payload)
	txOut := Channel(Variable(v, 0), Tx, payload)

	in := ConsN(ConsN(Cons(base, txIn), pass...), payload)
	out := ConsN(Cons(base, txOut), pass...)
	return &Scheme{Fn: Function(in, out)}
}

// delScheme (`del`/`del_i`): drops a fully-consumed Rx endpoint (use must
// already have resolved to 0) sitting i slots below the stack top.
func delScheme(g *IDGen, i int) *Scheme {
	s := g.Stack()
	base := StackGeneric(s, NoStackConstraints())
	a := g.Type()
	payload := Generic(a, NoConstraints())

	pass := make([]*Type, i)
	for idx := range pass {
		pass[idx] = Generic(g.Type(), NoConstraints())
	}

	rx := Channel(Constant(0), Rx, payload)
	in := ConsN(Cons(base, rx), pass...)
	out := ConsN(base, pass...)
	return &Scheme{Fn: Function(in, out)}
}

// procScheme (`proc`/`proc_k`): pops a zero-argument body function and k
// argument values, starting a new process. The body's own input stack is
// forced to MustBeBase (it may not close over the spawning process's
// stack rows) and its output stack is forced to AllowBottom (a process
// body ordinarily never returns).
func procScheme(g *IDGen, k int) *Scheme {
	s := g.Stack()
	base := StackGeneric(s, NoStackConstraints())

	args := make([]*Type, k)
	for idx := range args {
		args[idx] = Generic(g.Type(), NoConstraints())
	}

	bodyBase := StackGeneric(g.Stack(), NoStackConstraints().With(MustBeBase))
	bodyIn := ConsN(bodyBase, args...)
	bodyOut := StackGeneric(g.Stack(), NoStackConstraints().With(AllowBottom))
	bodyFn := Function(bodyIn, bodyOut)

	in := ConsN(ConsN(base, args...), bodyFn)
	return &Scheme{Fn: Function(in, base)}
}

// repeatScheme (`repeat_k`): the body function must return to the same
// shape it started from, so it can be applied k times in a row; modelled
// as S -> S. inferRepeat does not use this scheme: it unifies the body
// term's own input and output rows with each other directly.
func repeatScheme(g *IDGen) *Scheme {
	s := g.Stack()
	base := StackGeneric(s, NoStackConstraints())
	return &Scheme{Fn: Function(base, base)}
}
