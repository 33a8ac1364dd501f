package compiler

import (
	"golang.org/x/tools/container/intsets"

	"github.com/stealthrocket/lowering/ir"
)

// machine is the analysis of a resumable body shared by iterator and async
// units: its suspension points, the bindings that must survive them, and
// the finally regions they are nested in.
//
// Iterators and async bodies differ only in how they are driven (pulled by
// MoveNext or pushed by continuations) and in what they produce (a sequence
// or a single result); the analysis and the dispatch of the body are the
// same for both.
type machine struct {
	unit   *UnitInfo
	drive  ir.Drive
	output ir.Output

	points  []*suspension
	regions []*region

	// hoisted holds the bindings of the unit that live in the machine
	// frame: parameters, this, the machine fields and every binding live
	// across a suspension point.
	hoisted intsets.Sparse

	// scopes holds the scopes that enclose at least one suspension point.
	scopes intsets.Sparse

	// Machine fields.
	state   ir.BindingID
	value   ir.BindingID
	started ir.BindingID
	awaiter ir.BindingID
}

type suspension struct {
	node    ir.Node
	pos     int
	scope   ir.ScopeID
	live    intsets.Sparse
	regions []ir.RegionID
}

type region struct {
	id     ir.RegionID
	parent ir.RegionID
	// finally is the finally block as it was before dispatch guarded it.
	finally *ir.Block
	states  intsets.Sparse
}

// stateList returns the ids of the suspension points nested in r.
func (r *region) stateList() []int {
	var states []int
	return r.states.AppendTo(states)
}

type use struct {
	binding ir.BindingID
	pos     int
}

type loopRange struct {
	start, end int
}

// analyzeMachine numbers the suspension points of a resumable unit in
// program order and computes the bindings live across each of them.
//
// A binding is live at a suspension point when it is declared in a scope
// enclosing the point and is either referenced after the point, or
// referenced anywhere in a loop enclosing the point while being declared
// before that loop.
func analyzeMachine(m *ir.Method, caps *Captures, u *UnitInfo, body *ir.Block) *machine {
	mc := &machine{unit: u}
	switch u.Mode {
	case ir.IteratorMode:
		mc.drive, mc.output = ir.Pull, ir.Sequence
		mc.state = m.NewBinding("~state", ir.FieldBinding, u.Root, ir.Int)
		mc.value = m.NewBinding("~current", ir.FieldBinding, u.Root, ir.Any)
	case ir.AsyncMode:
		mc.drive, mc.output = ir.Push, ir.Single
		mc.state = m.NewBinding("~state", ir.FieldBinding, u.Root, ir.Int)
		mc.value = m.NewBinding("~task", ir.FieldBinding, u.Root, ir.TaskType)
		mc.started = m.NewBinding("~started", ir.FieldBinding, u.Root, ir.Bool)
		mc.awaiter = m.NewBinding("~awaiter", ir.FieldBinding, u.Root, ir.Any)
	}
	for _, f := range []ir.BindingID{mc.state, mc.value, mc.started, mc.awaiter} {
		if f.IsValid() {
			mc.hoisted.Insert(int(f))
		}
	}
	if u.Lambda != nil {
		for _, p := range u.Lambda.Params {
			mc.hoisted.Insert(int(p))
		}
	} else {
		for _, p := range m.Params {
			mc.hoisted.Insert(int(p))
		}
		if m.This.IsValid() {
			mc.hoisted.Insert(int(m.This))
		}
	}

	a := &machineAnalysis{m: m, caps: caps, mc: mc, decl: map[ir.BindingID]int{}}
	a.block(body, u.Root)

	for i, p := range mc.points {
		a.liveAt(p)
		mc.hoisted.UnionWith(&p.live)
		for s := p.scope; s.IsValid(); s = m.LookupScope(s).Parent {
			mc.scopes.Insert(int(s))
			if s == u.Root {
				break
			}
		}
		for _, r := range p.regions {
			mc.regions[r-1].states.Insert(i + 1)
		}
	}
	return mc
}

type machineAnalysis struct {
	m    *ir.Method
	caps *Captures
	mc   *machine
	pos  int
	uses []use
	// decl is the position of the declaration of each binding. Bindings
	// without one (parameters, catch variables) are declared before
	// everything.
	decl    map[ir.BindingID]int
	regions []ir.RegionID
	ranges  []loopRange
}

func (a *machineAnalysis) next() int {
	a.pos++
	return a.pos
}

func (a *machineAnalysis) block(b *ir.Block, scope ir.ScopeID) {
	if b == nil {
		return
	}
	if b.Scope.IsValid() {
		scope = b.Scope
	}
	for _, s := range b.Stmts {
		a.stmt(s, scope)
	}
}

func (a *machineAnalysis) stmt(s ir.Stmt, scope ir.ScopeID) {
	a.next()
	switch s := s.(type) {
	case *ir.Block:
		a.block(s, scope)
	case *ir.Declare:
		a.expr(s.Init, scope)
		a.decl[s.Binding] = a.next()
	case *ir.ExprStmt:
		a.expr(s.X, scope)
	case *ir.Assign:
		a.expr(s.Value, scope)
		a.expr(s.Target, scope)
	case *ir.If:
		a.expr(s.Cond, scope)
		a.block(s.Then, scope)
		a.block(s.Else, scope)
		if suspends(s.Then) || suspends(s.Else) {
			// Resuming into a branch evaluates the condition again, so the
			// bindings it reads stay live until the end of the statement.
			a.reuse(s.Cond)
		}
	case *ir.Loop:
		inner := scope
		if s.Header.IsValid() {
			inner = s.Header
		}
		for _, init := range s.Init {
			a.stmt(init, inner)
		}
		// Init statements run once and are not part of the loop range.
		i := len(a.ranges)
		a.ranges = append(a.ranges, loopRange{start: a.pos})
		a.expr(s.Cond, inner)
		a.block(s.Body, inner)
		for _, post := range s.Post {
			a.stmt(post, inner)
		}
		a.ranges[i].end = a.next()
	case *ir.Return:
		a.expr(s.Value, scope)
	case *ir.Throw:
		a.expr(s.Value, scope)
	case *ir.Try:
		var id ir.RegionID
		if s.Finally != nil && suspends(s.Body) {
			id = ir.RegionID(len(a.mc.regions) + 1)
			var parent ir.RegionID
			if n := len(a.regions); n > 0 {
				parent = a.regions[n-1]
			}
			a.mc.regions = append(a.mc.regions, &region{id: id, parent: parent, finally: s.Finally})
			a.regions = append(a.regions, id)
		}
		a.block(s.Body, scope)
		if id != 0 {
			a.regions = a.regions[:len(a.regions)-1]
		}
		if s.Catch != nil {
			a.decl[s.Catch.Var] = a.next()
			a.block(s.Catch.Body, s.Catch.Scope)
		}
		a.block(s.Finally, scope)
	case *ir.YieldReturn:
		a.expr(s.Value, scope)
		a.suspend(s, scope)
	}
}

// suspend records a suspension point at the current position.
func (a *machineAnalysis) suspend(n ir.Node, scope ir.ScopeID) {
	p := &suspension{node: n, pos: a.next(), scope: scope}
	for i := len(a.regions) - 1; i >= 0; i-- {
		p.regions = append(p.regions, a.regions[i])
	}
	a.mc.points = append(a.mc.points, p)
}

func (a *machineAnalysis) expr(e ir.Expr, scope ir.ScopeID) {
	if e == nil {
		return
	}
	ir.Inspect(e, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Lambda:
			return false
		case *ir.Ref:
			a.uses = append(a.uses, use{binding: n.Binding, pos: a.next()})
		case *ir.Await:
			// The operand is evaluated before the machine suspends.
			a.expr(n.X, scope)
			a.suspend(n, scope)
			return false
		}
		return true
	})
}

// reuse records a use of every binding e reads at the current position.
func (a *machineAnalysis) reuse(e ir.Expr) {
	pos := a.next()
	ir.Inspect(e, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Lambda:
			return false
		case *ir.Ref:
			a.uses = append(a.uses, use{binding: n.Binding, pos: pos})
		}
		return true
	})
}

func (a *machineAnalysis) liveAt(p *suspension) {
	m, u := a.m, a.mc.unit
	for _, use := range a.uses {
		b := m.Binding(use.binding)
		if b.Kind == ir.FieldBinding || a.caps.UnitOf(b.Scope) != u {
			continue
		}
		if !m.Encloses(b.Scope, p.scope) || a.decl[use.binding] > p.pos {
			continue
		}
		if use.pos > p.pos {
			p.live.Insert(int(use.binding))
			continue
		}
		for _, r := range a.ranges {
			if r.start < p.pos && p.pos < r.end && r.start < use.pos && use.pos < r.end && a.decl[use.binding] < r.start {
				p.live.Insert(int(use.binding))
				break
			}
		}
	}
}
