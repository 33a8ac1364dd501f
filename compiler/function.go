package compiler

import (
	"github.com/stealthrocket/lowering/ir"
)

// rewriter moves the bindings of a method into the frames of a FramePlan
// and replaces anonymous functions and resumable bodies with units.
type rewriter struct {
	m        *ir.Method
	caps     *Captures
	plan     *FramePlan
	machines map[ir.ScopeID]*machine
	opts     *options

	units []*ir.Unit
	count map[string]int
	err   error
}

// activation is the code of one unit being rewritten. Frames lists the
// frames reachable at the current point, innermost last.
type activation struct {
	unit   *UnitInfo
	frames []reachable
}

type reachable struct {
	frame *Frame
	expr  func() ir.Expr
}

func (a *activation) push(f *Frame, expr func() ir.Expr) {
	a.frames = append(a.frames, reachable{frame: f, expr: expr})
}

func (a *activation) pop() { a.frames = a.frames[:len(a.frames)-1] }

func (a *activation) top() *reachable {
	if len(a.frames) == 0 {
		return nil
	}
	return &a.frames[len(a.frames)-1]
}

func (a *activation) find(f *Frame) *reachable {
	for i := len(a.frames) - 1; i >= 0; i-- {
		if a.frames[i].frame == f {
			return &a.frames[i]
		}
	}
	return nil
}

func (r *rewriter) fail(format string, args ...any) {
	if r.err == nil {
		r.err = internalf(r.m.Name, format, args...)
	}
}

// ref returns the expression holding the frame allocated by f in the code
// of its unit.
func (r *rewriter) ref(f *Frame) ir.Expr {
	if f.Machine {
		return &ir.Self{}
	}
	if holder := r.plan.Holder(f.Ref); holder != nil {
		return &ir.Slot{Frame: &ir.Self{}, Index: holder.slot(f.Ref)}
	}
	return ir.Use(f.Ref)
}

// access returns the expression reading or writing binding b.
func (r *rewriter) access(a *activation, b ir.BindingID) ir.Expr {
	holder := r.plan.Holder(b)
	if holder == nil {
		return ir.Use(b)
	}
	top := a.top()
	if top == nil {
		r.fail("no frame reachable to access %s", r.m.Binding(b))
		return ir.Use(b)
	}
	hops, ok := r.plan.hops(top.frame, holder)
	if !ok {
		r.fail("frame %s holding %s is not reachable from %s", holder.Type.Name, r.m.Binding(b), top.frame.Type.Name)
		return ir.Use(b)
	}
	return &ir.Slot{Frame: top.expr(), Hops: hops, Index: holder.slot(b)}
}

// parentOf returns the expression of the parent of frame f at the current
// point.
func (r *rewriter) parentOf(a *activation, f *Frame) ir.Expr {
	parent := r.plan.Frame(f.Parent)
	if parent == nil {
		return nil
	}
	reach := a.find(parent)
	if reach == nil {
		r.fail("parent %s of frame %s is not reachable", parent.Type.Name, f.Type.Name)
		return nil
	}
	return reach.expr()
}

// enter allocates the frame of scope, if it has one of its own, and makes
// it reachable. It returns the allocation statements and whether a frame
// was pushed.
func (r *rewriter) enter(a *activation, scope ir.ScopeID) ([]ir.Stmt, bool) {
	if !scope.IsValid() {
		return nil, false
	}
	f := r.plan.Allocated(scope)
	if f == nil || f.Machine {
		return nil, false
	}
	alloc := &ir.Assign{Target: r.ref(f), Value: &ir.NewFrame{Type: f.Type, Parent: r.parentOf(a, f)}}
	a.push(f, func() ir.Expr { return r.ref(f) })
	return []ir.Stmt{alloc}, true
}

// copyIn stores the values of bindings received as locals (parameters,
// receivers, caught exceptions) into the frames holding them.
func (r *rewriter) copyIn(a *activation, bindings []ir.BindingID) []ir.Stmt {
	var stmts []ir.Stmt
	for _, b := range bindings {
		if b.IsValid() && r.plan.Holder(b) != nil {
			stmts = append(stmts, &ir.Assign{Target: r.access(a, b), Value: ir.Use(b)})
		}
	}
	return stmts
}

func (r *rewriter) block(a *activation, b *ir.Block, copies ...ir.BindingID) *ir.Block {
	if b == nil {
		return nil
	}
	prologue, pushed := r.enter(a, b.Scope)
	prologue = append(prologue, r.copyIn(a, copies)...)
	b.Stmts = append(prologue, r.list(a, b.Stmts)...)
	if pushed {
		a.pop()
	}
	return b
}

func (r *rewriter) list(a *activation, stmts []ir.Stmt) []ir.Stmt {
	for i, s := range stmts {
		stmts[i] = r.stmt(a, s)
	}
	return stmts
}

func (r *rewriter) stmt(a *activation, stmt ir.Stmt) ir.Stmt {
	switch s := stmt.(type) {
	case *ir.Block:
		return r.block(a, s)

	case *ir.Declare:
		init := r.expr(a, s.Init)
		if r.plan.Holder(s.Binding) == nil {
			s.Init = init
			return s
		}
		if init == nil {
			init = zeroValue(r.m.Binding(s.Binding).Type)
		}
		return &ir.Assign{Target: r.access(a, s.Binding), Value: init}

	case *ir.Loop:
		init, pushed := r.enter(a, s.Header)
		s.Init = append(init, r.list(a, s.Init)...)
		s.Cond = r.expr(a, s.Cond)
		s.Body = r.block(a, s.Body)
		s.Post = r.list(a, s.Post)
		if pushed {
			if f := r.plan.Allocated(s.Header); f.PerIteration {
				s.Post = append(r.copyForward(a, f), s.Post...)
			}
			a.pop()
		}
		return s

	case *ir.If:
		s.Cond = r.expr(a, s.Cond)
		s.Then = r.block(a, s.Then)
		s.Else = r.block(a, s.Else)
		return s

	case *ir.Try:
		s.Body = r.block(a, s.Body)
		if s.Catch != nil {
			s.Catch.Body = r.block(a, s.Catch.Body, s.Catch.Var)
		}
		s.Finally = r.block(a, s.Finally)
		return s

	case *ir.Foreach:
		s.Source = r.expr(a, s.Source)
		s.Body = r.block(a, s.Body)
		return s

	case *ir.Using:
		s.Init = r.expr(a, s.Init)
		s.Body = r.block(a, s.Body)
		return s
	}

	mapStmtExprs(stmt, func(e ir.Expr) ir.Expr { return r.expr(a, e) })
	return stmt
}

// copyForward replaces the frame of a per-iteration loop header with a copy
// before the next iteration, so that closures created during the iteration
// keep the values they observed.
func (r *rewriter) copyForward(a *activation, f *Frame) []ir.Stmt {
	next := r.m.NewBinding("~next", ir.TempBinding, f.Scope, ir.FrameRef)
	stmts := []ir.Stmt{
		&ir.Assign{Target: ir.Use(next), Value: &ir.NewFrame{Type: f.Type, Parent: r.parentOf(a, f)}},
	}
	for i := range f.Slots {
		stmts = append(stmts, &ir.Assign{
			Target: &ir.Slot{Frame: ir.Use(next), Index: i},
			Value:  &ir.Slot{Frame: r.ref(f), Index: i},
		})
	}
	return append(stmts, &ir.Assign{Target: r.ref(f), Value: ir.Use(next)})
}

func (r *rewriter) expr(a *activation, e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *ir.Ref:
		return r.access(a, e.Binding)
	case *ir.Lambda:
		return r.lambda(a, e)
	}
	mapChildren(e, func(x ir.Expr) ir.Expr { return r.expr(a, x) })
	return e
}
