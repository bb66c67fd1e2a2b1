package codegen

import (
	"fmt"

	"github.com/samber/lo"

	"stannel/internal/ast"
	"stannel/internal/isa"
)

// Generator walks a Program's declarations, building up Blocks as it goes.
// current is the block expressions are currently being appended to; it is
// nil exactly when the previous token emitted was an unconditional branch
// (jump or call-then-no-return equivalents), meaning the next Expression
// must start a fresh block reachable only via an explicit jump target.
type Generator struct {
	blocks      []*Block
	labelSeq    int
	synthesized map[string]string
	declByName  map[string]ast.Declaration
	current     *Block
}

func NewGenerator() *Generator {
	return &Generator{synthesized: map[string]string{}, declByName: map[string]ast.Declaration{}}
}

// Generate lowers every declaration in prog (main first, per spec §4.4
// step 3: "Starting from main, walk each Declaration") into Blocks, then
// runs block collapse and the token peephole.
func Generate(prog *ast.Program) ([]*Block, error) {
	g := NewGenerator()
	for _, d := range prog.Declarations {
		g.declByName[d.Name] = d
	}

	order := make([]ast.Declaration, 0, len(prog.Declarations))
	seen := map[string]bool{}
	if main, ok := g.declByName["main"]; ok {
		order = append(order, main)
		seen["main"] = true
	}
	for _, d := range prog.Declarations {
		if !seen[d.Name] {
			order = append(order, d)
			seen[d.Name] = true
		}
	}

	for _, d := range order {
		if err := g.emitDecl(d); err != nil {
			return nil, err
		}
	}

	g.collapse()
	for _, b := range g.blocks {
		b.Tokens = peephole(b.Tokens)
	}
	return g.blocks, nil
}

func (g *Generator) freshLabel() string {
	g.labelSeq++
	return fmt.Sprintf("l_%d", g.labelSeq)
}

func (g *Generator) newBlock(label string) *Block {
	b := &Block{Label: label}
	g.blocks = append(g.blocks, b)
	return b
}

func (g *Generator) append(tok Token) {
	g.current.Tokens = append(g.current.Tokens, tok)
}

func (g *Generator) appendInstr(i isa.Instruction) { g.append(Instr(i)) }

func (g *Generator) emitDecl(d ast.Declaration) error {
	g.current = g.newBlock("f_" + d.Name)
	if err := g.emitTerm(d.Term, "", ""); err != nil {
		return err
	}
	if g.current != nil {
		g.appendInstr(isa.Function(isa.FReturn))
	}
	return nil
}

// emitTerm emits every expression of term in sequence. trueLbl/falseLbl
// are only consulted for the term's last expression, and only when it is
// a bare comparison operator — spec §4.4 step 3's "tail-emit a conditional
// jump directly" optimisation.
func (g *Generator) emitTerm(term ast.Term, trueLbl, falseLbl string) error {
	for i, expr := range term.Body {
		last := i == len(term.Body)-1
		if err := g.emitExpr(expr, last, trueLbl, falseLbl); err != nil {
			return err
		}
	}
	return nil
}

// emitCondTerm emits term such that control always leaves via exactly one
// of trueLbl/falseLbl, either by tail-eliding a trailing comparison into a
// direct conditional jump or, failing that, materialising a boolean and
// comparing it against zero.
func (g *Generator) emitCondTerm(term ast.Term, trueLbl, falseLbl string) error {
	if n := len(term.Body); n > 0 {
		if app, ok := term.Body[n-1].(ast.NamedTermApp); ok && app.Subscript == nil && isComparison(app.Name) {
			for _, e := range term.Body[:n-1] {
				if err := g.emitExpr(e, false, "", ""); err != nil {
					return err
				}
			}
			return g.emitApp(app.Name, nil, true, trueLbl, falseLbl)
		}
	}
	if err := g.emitTerm(term, "", ""); err != nil {
		return err
	}
	g.append(Num(0))
	g.appendInstr(isa.ALU(isa.OpCompare))
	g.append(Lbl(trueLbl))
	g.appendInstr(isa.Jump(isa.CondNotEqual))
	g.append(Lbl(falseLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))
	g.current = nil
	return nil
}

func (g *Generator) emitExpr(e ast.Expression, tail bool, trueLbl, falseLbl string) error {
	switch n := e.(type) {
	case ast.Number:
		g.append(Num(n.Value))
		return nil
	case ast.Offset:
		g.appendInstr(isa.ReadLocalOffset(byte(n.Value)))
		return nil
	case ast.NamedTermApp:
		if tail {
			return g.emitApp(n.Name, n.Subscript, true, trueLbl, falseLbl)
		}
		return g.emitApp(n.Name, n.Subscript, false, "", "")
	case ast.NamedTermRef:
		return g.emitRef(n.Name, n.Subscript)
	case ast.AnonymousTerm:
		if tail {
			return g.emitCondTermIfComparisonElsePlain(n.Body, tail, trueLbl, falseLbl)
		}
		return g.emitTerm(n.Body, "", "")
	case ast.If:
		return g.emitIf(n)
	case ast.While:
		return g.emitWhile(n)
	case ast.Forever:
		return g.emitForever(n)
	case ast.Repeat:
		return g.emitRepeat(n)
	case ast.Alternation:
		return g.emitAlternation(n)
	default:
		return fmt.Errorf("codegen: unhandled expression node %T", e)
	}
}

func (g *Generator) emitCondTermIfComparisonElsePlain(term ast.Term, tail bool, trueLbl, falseLbl string) error {
	if tail && trueLbl != "" && falseLbl != "" {
		return g.emitCondTerm(term, trueLbl, falseLbl)
	}
	return g.emitTerm(term, "", "")
}

var comparisonConditions = map[string]isa.Condition{
	"<":  isa.CondSignedLess,
	">":  isa.CondSignedGreater,
	"<=": isa.CondSignedLessOrEqual,
	">=": isa.CondSignedGreaterOrEqual,
	"==": isa.CondEqual,
	"!=": isa.CondNotEqual,
}

func isComparison(name string) bool {
	_, ok := comparisonConditions[name]
	return ok
}

func (g *Generator) emitApp(name string, sub *uint16, tail bool, trueLbl, falseLbl string) error {
	if sub == nil {
		if _, ok := g.declByName[name]; ok {
			g.append(Lbl("f_" + name))
			g.appendInstr(isa.Function(isa.FCall))
			return nil
		}
	}
	var k uint16
	if sub != nil {
		k = *sub
	}

	if cond, ok := comparisonConditions[name]; ok {
		g.appendInstr(isa.ALU(isa.OpCompare))
		if tail && trueLbl != "" && falseLbl != "" {
			g.append(Lbl(trueLbl))
			g.appendInstr(isa.Jump(cond))
			g.append(Lbl(falseLbl))
			g.appendInstr(isa.Jump(isa.CondAlways))
			g.current = nil
			return nil
		}
		g.materializeBool(cond)
		return nil
	}

	switch name {
	case "+":
		g.appendInstr(isa.ALU(isa.OpAdd))
	case "-":
		g.appendInstr(isa.ALU(isa.OpSub))
	case "drop":
		g.appendInstr(isa.Stack(isa.SDrop))
	case "dup":
		g.appendInstr(isa.Stack(isa.SDup))
	case "swap":
		g.appendInstr(isa.Stack(isa.SSwap))
	case "tuck":
		g.appendInstr(isa.Stack(isa.STuck))
	case "rot":
		g.appendInstr(isa.Stack(isa.SRot))
	case "apply":
		g.appendInstr(isa.Function(isa.FCall))
	case "chan":
		g.appendInstr(isa.Process(isa.PCreateChannel))
		g.appendInstr(isa.Stack(isa.SDup))
	case "?":
		if k > 0 {
			g.appendInstr(isa.ReadLocalOffset(byte(k)))
		}
		g.appendInstr(isa.Process(isa.PReceive))
	case "!":
		if k > 0 {
			g.appendInstr(isa.ReadLocalOffset(byte(k)))
		}
		g.appendInstr(isa.Process(isa.PSend))
	case "del":
		if k > 0 {
			g.appendInstr(isa.ReadLocalOffset(byte(k)))
		}
		g.appendInstr(isa.Process(isa.PDestroyChannel))
	case "proc":
		g.append(Num(k))
		g.appendInstr(isa.Process(isa.PStart))
	default:
		return fmt.Errorf("codegen: %q is neither a declared term nor a known built-in", name)
	}
	return nil
}

// materializeBool turns the flags set by a preceding Compare into an
// actual 0/1 value on the stack, used when a comparison appears outside a
// branch-taking tail position (spec §4.4 step 3's "else materialise a
// boolean").
func (g *Generator) materializeBool(cond isa.Condition) {
	trueLbl, falseLbl, endLbl := g.freshLabel(), g.freshLabel(), g.freshLabel()
	g.append(Lbl(trueLbl))
	g.appendInstr(isa.Jump(cond))
	g.append(Lbl(falseLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))
	g.current = nil

	tb := g.newBlock(trueLbl)
	g.current = tb
	g.append(Num(1))
	g.append(Lbl(endLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))

	fb := g.newBlock(falseLbl)
	g.current = fb
	g.append(Num(0))
	g.append(Lbl(endLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))

	g.current = g.newBlock(endLbl)
}

func (g *Generator) synthLabel(name string, sub *uint16) string {
	key := name
	if sub != nil {
		key = fmt.Sprintf("%s_%d", name, *sub)
	}
	if lbl, ok := g.synthesized[key]; ok {
		return lbl
	}
	lbl := "s_" + key
	g.synthesized[key] = lbl
	saved := g.current
	b := g.newBlock(lbl)
	g.current = b
	// emitApp can fail only for unknown builtins, which cannot happen here
	// since Subscripted/Builtins already validated name during type
	// inference before codegen ever runs.
	_ = g.emitApp(name, sub, false, "", "")
	if g.current != nil {
		g.appendInstr(isa.Function(isa.FReturn))
	}
	g.current = saved
	return lbl
}

func (g *Generator) emitRef(name string, sub *uint16) error {
	if sub == nil {
		if _, ok := g.declByName[name]; ok {
			g.append(Lbl("f_" + name))
			return nil
		}
	}
	g.append(Lbl(g.synthLabel(name, sub)))
	return nil
}

func (g *Generator) emitIf(n ast.If) error {
	trueLbl, falseLbl, endLbl := g.freshLabel(), g.freshLabel(), g.freshLabel()
	if err := g.emitCondTerm(n.Cond, trueLbl, falseLbl); err != nil {
		return err
	}

	g.current = g.newBlock(trueLbl)
	if err := g.emitTerm(n.Then, "", ""); err != nil {
		return err
	}
	if g.current != nil {
		g.append(Lbl(endLbl))
		g.appendInstr(isa.Jump(isa.CondAlways))
	}

	g.current = g.newBlock(falseLbl)
	if err := g.emitTerm(n.Else, "", ""); err != nil {
		return err
	}
	if g.current != nil {
		g.append(Lbl(endLbl))
		g.appendInstr(isa.Jump(isa.CondAlways))
	}

	g.current = g.newBlock(endLbl)
	return nil
}

func (g *Generator) emitWhile(n ast.While) error {
	condLbl, bodyLbl, endLbl := g.freshLabel(), g.freshLabel(), g.freshLabel()

	g.append(Lbl(condLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))
	g.current = nil

	g.current = g.newBlock(bodyLbl)
	if err := g.emitTerm(n.Body, "", ""); err != nil {
		return err
	}
	if g.current != nil {
		g.append(Lbl(condLbl))
		g.appendInstr(isa.Jump(isa.CondAlways))
	}

	g.current = g.newBlock(condLbl)
	if err := g.emitCondTerm(n.Cond, bodyLbl, endLbl); err != nil {
		return err
	}

	g.current = g.newBlock(endLbl)
	return nil
}

func (g *Generator) emitForever(n ast.Forever) error {
	bodyLbl := g.freshLabel()
	g.append(Lbl(bodyLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))
	g.current = nil

	g.current = g.newBlock(bodyLbl)
	if err := g.emitTerm(n.Body, "", ""); err != nil {
		return err
	}
	if g.current != nil {
		g.append(Lbl(bodyLbl))
		g.appendInstr(isa.Jump(isa.CondAlways))
	}
	g.current = nil
	return nil
}

// emitRepeat relies on the type system having already proven the body's
// input and output rows coincide (spec invariant for counted repetition):
// the counter pushed before the body starts is therefore still directly
// on top of the stack once the body returns, with no extra bookkeeping
// needed to find it again.
func (g *Generator) emitRepeat(n ast.Repeat) error {
	bodyLbl, incLbl := g.freshLabel(), g.freshLabel()

	g.append(Num(0))
	g.append(Lbl(bodyLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))
	g.current = nil

	g.current = g.newBlock(bodyLbl)
	if err := g.emitTerm(n.Body, "", ""); err != nil {
		return err
	}
	if g.current != nil {
		g.append(Lbl(incLbl))
		g.appendInstr(isa.Jump(isa.CondAlways))
	}

	g.current = g.newBlock(incLbl)
	g.append(Num(1))
	g.appendInstr(isa.ALU(isa.OpAdd))
	g.appendInstr(isa.Stack(isa.SDup))
	g.append(Num(n.Count))
	g.appendInstr(isa.ALU(isa.OpCompare))
	g.append(Lbl(bodyLbl))
	g.appendInstr(isa.Jump(isa.CondNotEqual))
	g.appendInstr(isa.Stack(isa.SDrop))
	return nil
}

// emitAlternation desugars `[ arms ]` per spec §4.4 step 3. Each case
// label begins with its own AlternationEnd: the winning arm's
// DisableChannel reply is a Jump straight to that label, bypassing
// whatever ordinary control flow would otherwise have reached a single
// shared AlternationEnd call.
func (g *Generator) emitAlternation(n ast.Alternation) error {
	caseLbls := make([]string, len(n.Arms))
	for i := range n.Arms {
		caseLbls[i] = g.freshLabel()
	}
	endLbl := g.freshLabel()

	g.appendInstr(isa.Process(isa.PAlternationStart))
	for _, arm := range n.Arms {
		g.appendInstr(isa.ReadLocalOffset(byte(arm.ChannelOffset)))
		g.appendInstr(isa.Process(isa.PEnableChannel))
	}
	g.appendInstr(isa.Process(isa.PAlternationWait))
	for i, arm := range n.Arms {
		g.appendInstr(isa.ReadLocalOffset(byte(arm.ChannelOffset)))
		g.append(Lbl(caseLbls[i]))
		g.appendInstr(isa.Process(isa.PDisableChannel))
	}
	g.append(Lbl(endLbl))
	g.appendInstr(isa.Jump(isa.CondAlways))
	g.current = nil

	for i, arm := range n.Arms {
		g.current = g.newBlock(caseLbls[i])
		g.appendInstr(isa.Process(isa.PAlternationEnd))
		if err := g.emitTerm(arm.Body, "", ""); err != nil {
			return err
		}
		if g.current != nil {
			g.append(Lbl(endLbl))
			g.appendInstr(isa.Jump(isa.CondAlways))
		}
	}

	g.current = g.newBlock(endLbl)
	return nil
}

// collapse implements spec §4.4 step 4 in two passes. First, a union-find
// over "trivial" blocks — those containing nothing but a single
// unconditional jump — canonicalises every such chain down to its
// ultimate non-trivial target and rewrites every Lbl token in the program
// to point there directly. Second, it drops whatever blocks are left
// unreferenced (including, now, the trivial ones just canonicalised
// away), folding each into the immediately preceding surviving block.
func (g *Generator) collapse() {
	redirect := map[string]string{}
	for _, b := range g.blocks {
		if target, ok := trivialRedirectTarget(b); ok {
			redirect[b.Label] = target
		}
	}
	canon := map[string]string{}
	for label := range redirect {
		canon[label] = resolveRedirect(label, redirect)
	}

	for _, b := range g.blocks {
		for i, t := range b.Tokens {
			if t.Kind != TokLabel {
				continue
			}
			if target, ok := canon[t.Label]; ok {
				b.Tokens[i].Label = target
			}
		}
	}

	referenced := map[string]bool{}
	for _, b := range g.blocks {
		for _, t := range b.Tokens {
			if t.Kind == TokLabel {
				referenced[t.Label] = true
			}
		}
	}
	keepLabels := lo.Keys(referenced)

	var out []*Block
	for _, b := range g.blocks {
		keep := lo.Contains(keepLabels, b.Label) || isEntryLabel(b.Label) || len(out) == 0
		if keep {
			out = append(out, b)
			continue
		}
		prev := out[len(out)-1]
		prev.Tokens = append(prev.Tokens, b.Tokens...)
	}
	g.blocks = out
}

// trivialRedirectTarget reports whether b does nothing but jump
// unconditionally to another label, and if so, which one.
func trivialRedirectTarget(b *Block) (string, bool) {
	if len(b.Tokens) != 2 {
		return "", false
	}
	lbl, jmp := b.Tokens[0], b.Tokens[1]
	if lbl.Kind != TokLabel || jmp.Kind != TokInstr {
		return "", false
	}
	if jmp.Instr.Group != isa.GroupJump || jmp.Instr.Operand != byte(isa.CondAlways) {
		return "", false
	}
	return lbl.Label, true
}

// resolveRedirect follows a chain of trivial redirects to its ultimate
// target. visited (deduplicated with lo.Uniq on every step) catches a
// cycle of redirect-only blocks, which can never arise from Generate's own
// output but is guarded against defensively since collapse also runs over
// hand-assembled Block slices in tests.
func resolveRedirect(label string, redirect map[string]string) string {
	visited := []string{label}
	cur := label
	for {
		next, ok := redirect[cur]
		if !ok {
			return cur
		}
		visited = append(visited, next)
		if len(lo.Uniq(visited)) != len(visited) {
			return cur
		}
		cur = next
	}
}

func isEntryLabel(label string) bool {
	return len(label) > 2 && label[0] == 'f' && label[1] == '_'
}
