package compiler

import (
	"github.com/stealthrocket/lowering/ir"
)

// machineBuilder turns the rewritten body of a resumable unit into the code
// of its MoveNext method.
//
// Resuming relies on dispatch spans: every statement of a list that
// contains a suspension point gets the half-open range of ids assigned to
// the leaves of its subtree, and is guarded by `if ip < end { ... }`. When
// the machine resumes, ip is set to the id that follows the suspension
// point it stopped at, so every statement before that point is skipped,
// the statements enclosing it are re-entered, and the statements after it
// run normally. Loops reset ip to zero before their next iteration.
type machineBuilder struct {
	m     *ir.Method
	mc    *machine
	frame *Frame
	root  ir.ScopeID

	ip         ir.BindingID
	suspending ir.BindingID

	next   int
	resume []int
	err    error
}

func (b *machineBuilder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = internalf(b.m.Name, format, args...)
	}
}

// field returns the slot of a machine field or hoisted binding.
func (b *machineBuilder) field(id ir.BindingID) ir.Expr {
	i := b.frame.slot(id)
	if i < 0 {
		b.fail("machine frame %s has no slot for %s", b.frame.Type.Name, b.m.Binding(id))
	}
	return &ir.Slot{Frame: &ir.Self{}, Index: i}
}

func (b *machineBuilder) set(id ir.BindingID, v ir.Expr) ir.Stmt {
	return &ir.Assign{Target: b.field(id), Value: v}
}

func (b *machineBuilder) locals() {
	b.ip = b.m.NewBinding("~ip", ir.TempBinding, b.root, ir.Int)
	b.suspending = b.m.NewBinding("~suspending", ir.TempBinding, b.root, ir.Bool)
}

func (b *machineBuilder) guard(end int, s ir.Stmt) ir.Stmt {
	return &ir.If{
		Cond: ir.BinOp(ir.Lss, ir.Use(b.ip), ir.IntLit(int64(end))),
		Then: &ir.Block{Stmts: []ir.Stmt{s}},
	}
}

// suspend allocates the state id of the next suspension point, resumed at
// ip.
func (b *machineBuilder) suspend(ip int) int64 {
	b.resume = append(b.resume, ip)
	return int64(len(b.resume))
}

func (b *machineBuilder) dispatch(body *ir.Block) {
	body.Stmts = b.list(body.Stmts)
	if n := len(b.mc.points); len(b.resume) != n {
		b.fail("dispatch found %d suspension points, analysis found %d", len(b.resume), n)
	}
}

func (b *machineBuilder) list(stmts []ir.Stmt) []ir.Stmt {
	if !suspends(&ir.Block{Stmts: stmts}) {
		return stmts
	}
	out := make([]ir.Stmt, len(stmts))
	for i, s := range stmts {
		if suspends(s) {
			s = b.stmt(s)
		} else {
			b.next++
		}
		out[i] = b.guard(b.next, s)
	}
	return out
}

func (b *machineBuilder) stmt(stmt ir.Stmt) ir.Stmt {
	switch s := stmt.(type) {
	case *ir.Block:
		s.Stmts = b.list(s.Stmts)

	case *ir.If:
		s.Then.Stmts = b.list(s.Then.Stmts)
		if s.Else != nil {
			s.Else.Stmts = b.list(s.Else.Stmts)
		}

	case *ir.Loop:
		if s.Cond != nil && suspends(s.Cond) {
			b.fail("loop condition suspends")
		}
		switch {
		case suspends(&ir.Block{Stmts: s.Init}):
			s.Init = b.list(s.Init)
		case len(s.Init) > 0:
			b.next++
			s.Init = []ir.Stmt{b.guard(b.next, &ir.Block{Stmts: s.Init})}
		}
		s.Body.Stmts = b.list(s.Body.Stmts)
		if suspends(&ir.Block{Stmts: s.Post}) {
			b.fail("loop post statement suspends")
		}
		s.Post = append([]ir.Stmt{&ir.Assign{Target: ir.Use(b.ip), Value: ir.IntLit(0)}}, s.Post...)

	case *ir.Try:
		if s.Catch != nil && suspends(s.Catch.Body) {
			b.fail("catch block suspends")
		}
		if s.Finally != nil && suspends(s.Finally) {
			b.fail("finally block suspends")
		}
		s.Body.Stmts = b.list(s.Body.Stmts)
		if s.Finally != nil {
			// Leaving the try body to suspend must not run the finally
			// block; it runs when the machine resumes and leaves for good,
			// or when it is disposed.
			s.Finally = &ir.Block{Stmts: []ir.Stmt{&ir.If{
				Cond: ir.UnOp(ir.Not, ir.Use(b.suspending)),
				Then: s.Finally,
			}}}
		}

	case *ir.YieldReturn:
		return b.yield(s)

	case *ir.Declare:
		if a, ok := s.Init.(*ir.Await); ok {
			return b.await(a, func(v ir.Expr) ir.Stmt { return &ir.Declare{Binding: s.Binding, Init: v} })
		}
		b.fail("await nested in declaration of %s", b.m.Binding(s.Binding))

	case *ir.Assign:
		if a, ok := s.Value.(*ir.Await); ok {
			return b.await(a, func(v ir.Expr) ir.Stmt { return &ir.Assign{Target: s.Target, Value: v} })
		}
		b.fail("await nested in assignment")

	case *ir.ExprStmt:
		if a, ok := s.X.(*ir.Await); ok {
			return b.await(a, func(v ir.Expr) ir.Stmt { return &ir.ExprStmt{X: v} })
		}
		b.fail("await nested in expression")

	default:
		b.fail("unexpected suspending statement %T", s)
	}
	return stmt
}

// yield expands `yield return v` into
//
//	if ip < resume {
//	  current = v; state = k; suspending = true
//	  return true
//	}
func (b *machineBuilder) yield(s *ir.YieldReturn) ir.Stmt {
	start := b.next
	b.next += 2
	k := b.suspend(start + 1)
	return b.guard(start+1, &ir.Block{Stmts: []ir.Stmt{
		b.set(b.mc.value, s.Value),
		b.set(b.mc.state, ir.IntLit(k)),
		&ir.Assign{Target: ir.Use(b.suspending), Value: ir.BoolLit(true)},
		&ir.Return{Value: ir.BoolLit(true)},
	}})
}

// await expands an await in statement position into
//
//	if ip < resume {
//	  awaiter = x.GetAwaiter()
//	  if !awaiter.IsCompleted() {
//	    state = k; started = true; suspending = true
//	    awaiter.OnCompleted(continuation)
//	    return
//	  }
//	}
//	<finish(awaiter.GetResult())>
//	awaiter = nil
func (b *machineBuilder) await(a *ir.Await, finish func(ir.Expr) ir.Stmt) ir.Stmt {
	start := b.next
	b.next += 2
	k := b.suspend(start + 1)
	awaiter := func() ir.Expr { return b.field(b.mc.awaiter) }
	return &ir.Block{Stmts: []ir.Stmt{
		b.guard(start+1, &ir.Block{Stmts: []ir.Stmt{
			b.set(b.mc.awaiter, ir.CallMethod(a.X, "GetAwaiter")),
			&ir.If{
				Cond: ir.UnOp(ir.Not, ir.CallMethod(awaiter(), "IsCompleted")),
				Then: &ir.Block{Stmts: []ir.Stmt{
					b.set(b.mc.state, ir.IntLit(k)),
					b.set(b.mc.started, ir.BoolLit(true)),
					&ir.Assign{Target: ir.Use(b.suspending), Value: ir.BoolLit(true)},
					&ir.ExprStmt{X: ir.CallMethod(awaiter(), "OnCompleted", &ir.Continuation{Machine: &ir.Self{}})},
					&ir.Return{},
				}},
			},
		}}),
		finish(ir.CallMethod(awaiter(), "GetResult")),
		b.set(b.mc.awaiter, ir.NilLit()),
	}}
}

// prologue maps the machine state read into s to the ip at which the body
// resumes, and marks the machine as running.
func (b *machineBuilder) prologue(s ir.BindingID) []ir.Stmt {
	stmts := []ir.Stmt{&ir.Declare{Binding: b.ip, Init: ir.IntLit(0)}}
	for i, ip := range b.resume {
		stmts = append(stmts, &ir.If{
			Cond: ir.BinOp(ir.Eql, ir.Use(s), ir.IntLit(int64(i+1))),
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.Assign{Target: ir.Use(b.ip), Value: ir.IntLit(int64(ip))}}},
		})
	}
	return append(stmts,
		b.set(b.mc.state, ir.IntLit(ir.StateRunning)),
		&ir.Declare{Binding: b.suspending, Init: ir.BoolLit(false)},
	)
}

// suspensionPoints returns the suspension points of the machine in state
// order.
func (b *machineBuilder) suspensionPoints() []ir.SuspensionPoint {
	points := make([]ir.SuspensionPoint, len(b.mc.points))
	for i, p := range b.mc.points {
		var live []int
		sp := ir.SuspensionPoint{State: i + 1, Regions: p.regions}
		for _, id := range p.live.AppendTo(live) {
			sp.Live = append(sp.Live, ir.BindingID(id))
		}
		points[i] = sp
	}
	return points
}

func (b *machineBuilder) regions() []ir.Region {
	regions := make([]ir.Region, len(b.mc.regions))
	for i, r := range b.mc.regions {
		regions[i] = ir.Region{ID: r.id, Parent: r.parent}
	}
	return regions
}

func (b *machineBuilder) machineCode(body *ir.Block) ir.MachineCode {
	return ir.MachineCode{
		Drive:       b.mc.drive,
		Output:      b.mc.output,
		Frame:       b.frame.Type,
		StateSlot:   b.frame.slot(b.mc.state),
		ValueSlot:   b.frame.slot(b.mc.value),
		MoveNext:    body,
		Suspensions: b.suspensionPoints(),
		Regions:     b.regions(),
	}
}

// replaceStmts replaces every statement s nested in b for which f returns
// a replacement.
func replaceStmts(b *ir.Block, f func(ir.Stmt) ir.Stmt) {
	if b == nil {
		return
	}
	for i, s := range b.Stmts {
		if r := f(s); r != nil {
			b.Stmts[i] = r
			continue
		}
		switch s := s.(type) {
		case *ir.Block:
			replaceStmts(s, f)
		case *ir.If:
			replaceStmts(s.Then, f)
			replaceStmts(s.Else, f)
		case *ir.Loop:
			replaceStmts(s.Body, f)
		case *ir.Try:
			replaceStmts(s.Body, f)
			if s.Catch != nil {
				replaceStmts(s.Catch.Body, f)
			}
			replaceStmts(s.Finally, f)
		}
	}
}
