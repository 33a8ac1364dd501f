package compiler

import (
	"fmt"

	"github.com/stealthrocket/lowering/ir"
)

// desugar recursively replaces sugared statements with simpler constructs.
//
// Foreach statements become explicit uses of the enumeration protocol
// wrapped in try/finally so that the enumerator is disposed on every exit,
// and using statements become try/finally.
//
// Inside resumable bodies the pass also prepares the tree for dispatch:
// loop conditions move into the loop body and branch conditions are
// evaluated once into temporaries, so that re-entering a loop or a branch
// when resuming does not evaluate them again. Expressions containing await
// are decomposed into temporaries, left to right, so that after this pass
// an await only appears as the whole value of a declaration, an assignment
// or an expression statement. Implicit branch targets are made explicit
// with labels, and try statements whose catch or finally blocks await are
// rewritten so that the handler runs outside of the protected region.
func desugar(m *ir.Method, perIteration bool) {
	d := &desugarer{m: m, perIteration: perIteration}
	m.Body = d.block(m.Body, desugarContext{mode: m.Mode, scope: m.Scope})
}

type desugarer struct {
	m            *ir.Method
	perIteration bool
	temps        int
	labels       int
}

type desugarContext struct {
	mode  ir.Mode
	scope ir.ScopeID
	loops []string
}

func (ctx desugarContext) enter(scope ir.ScopeID) desugarContext {
	if scope.IsValid() {
		ctx.scope = scope
	}
	return ctx
}

func (ctx desugarContext) loop(label string) desugarContext {
	ctx.loops = append(ctx.loops[:len(ctx.loops):len(ctx.loops)], label)
	return ctx
}

func (d *desugarer) resumable(ctx desugarContext) bool { return ctx.mode.Resumable() }

func (d *desugarer) newTemp(ctx desugarContext, typ ir.Type) ir.BindingID {
	d.temps++
	return d.m.NewBinding(fmt.Sprintf("~t%d", d.temps), ir.TempBinding, ctx.scope, typ)
}

func (d *desugarer) newLabel(kind string) string {
	d.labels++
	return fmt.Sprintf("~%s%d", kind, d.labels)
}

func (d *desugarer) block(b *ir.Block, ctx desugarContext) *ir.Block {
	if b == nil {
		return nil
	}
	b.Stmts = d.list(b.Stmts, ctx.enter(b.Scope))
	return b
}

func (d *desugarer) list(stmts []ir.Stmt, ctx desugarContext) []ir.Stmt {
	var out []ir.Stmt
	for _, s := range stmts {
		out = append(out, d.stmt(s, ctx)...)
	}
	return out
}

func (d *desugarer) stmt(stmt ir.Stmt, ctx desugarContext) []ir.Stmt {
	mapStmtExprs(stmt, d.lambdas)

	switch s := stmt.(type) {
	case *ir.Block:
		return []ir.Stmt{d.block(s, ctx)}

	case *ir.Foreach:
		return d.stmt(d.foreach(s, ctx), ctx)

	case *ir.Using:
		return d.stmt(d.using(s), ctx)

	case *ir.Loop:
		if d.resumable(ctx) && s.Label == "" {
			s.Label = d.newLabel("loop")
		}
		lctx := ctx.enter(s.Header)
		suspending := suspends(s)
		s.Init = d.list(s.Init, lctx)
		if d.resumable(ctx) && suspending && s.Cond != nil {
			// Rewrite `loop cond { ... }` => `loop { if !cond { break }; ... }`
			guard := &ir.If{
				Cond: &ir.Unary{Op: ir.Not, X: s.Cond},
				Then: &ir.Block{Stmts: []ir.Stmt{&ir.Break{Label: s.Label}}},
			}
			s.Body = &ir.Block{Stmts: []ir.Stmt{guard, s.Body}}
			s.Cond = nil
		}
		bctx := lctx.loop(s.Label)
		s.Body = d.block(s.Body, bctx)
		s.Post = d.list(s.Post, bctx)
		if d.resumable(ctx) && suspends(&ir.Block{Stmts: s.Post}) {
			// Rewrite `loop { B } post { P }` => `loop { C: { B' }; P }`
			// where B' breaks out of C instead of continuing the loop.
			cont := d.newLabel("continue")
			continueAs(s.Body, s.Label, cont)
			body := &ir.Block{Stmts: []ir.Stmt{&ir.Block{Label: cont, Stmts: []ir.Stmt{s.Body}}}}
			body.Stmts = append(body.Stmts, s.Post...)
			s.Body, s.Post = body, nil
		}
		return []ir.Stmt{s}

	case *ir.If:
		var prologue []ir.Stmt
		if d.resumable(ctx) {
			s.Cond = d.decompose(s.Cond, ctx, &prologue)
		}
		s.Then = d.block(s.Then, ctx)
		s.Else = d.block(s.Else, ctx)
		if d.resumable(ctx) && (suspends(s.Then) || suspends(s.Else)) && !d.isTemp(s.Cond) {
			// Rewrite `if cond { ... }` => `t := cond; if t { ... }`
			cond := d.newTemp(ctx, ir.Bool)
			prologue = append(prologue, &ir.Declare{Binding: cond, Init: s.Cond})
			s.Cond = ir.Use(cond)
		}
		return append(prologue, s)

	case *ir.Try:
		return d.try(s, ctx)

	case *ir.Break:
		if s.Label == "" && d.resumable(ctx) && len(ctx.loops) > 0 {
			s.Label = ctx.loops[len(ctx.loops)-1]
		}
		return []ir.Stmt{s}

	case *ir.Continue:
		if s.Label == "" && d.resumable(ctx) && len(ctx.loops) > 0 {
			s.Label = ctx.loops[len(ctx.loops)-1]
		}
		return []ir.Stmt{s}

	case *ir.Declare:
		if !d.resumable(ctx) {
			return []ir.Stmt{s}
		}
		var prologue []ir.Stmt
		s.Init = d.decomposeValue(s.Init, ctx, &prologue)
		return append(prologue, s)

	case *ir.Assign:
		if !d.resumable(ctx) {
			return []ir.Stmt{s}
		}
		var prologue []ir.Stmt
		s.Value = d.decomposeValue(s.Value, ctx, &prologue)
		return append(prologue, s)

	case *ir.ExprStmt:
		if !d.resumable(ctx) {
			return []ir.Stmt{s}
		}
		var prologue []ir.Stmt
		s.X = d.decomposeValue(s.X, ctx, &prologue)
		return append(prologue, s)

	case *ir.Return:
		if !d.resumable(ctx) {
			return []ir.Stmt{s}
		}
		var prologue []ir.Stmt
		s.Value = d.decompose(s.Value, ctx, &prologue)
		return append(prologue, s)

	case *ir.Throw:
		if !d.resumable(ctx) {
			return []ir.Stmt{s}
		}
		var prologue []ir.Stmt
		s.Value = d.decompose(s.Value, ctx, &prologue)
		return append(prologue, s)
	}
	return []ir.Stmt{stmt}
}

// lambdas desugars the bodies of the lambdas found in e.
func (d *desugarer) lambdas(e ir.Expr) ir.Expr {
	if l, ok := e.(*ir.Lambda); ok {
		l.Body = d.block(l.Body, desugarContext{mode: l.Mode, scope: l.Scope})
		return l
	}
	mapChildren(e, d.lambdas)
	return e
}

func (d *desugarer) isTemp(e ir.Expr) bool {
	ref, ok := e.(*ir.Ref)
	return ok && d.m.Binding(ref.Binding).Kind == ir.TempBinding
}

// foreach rewrites
//
//	foreach x in src { body }
//
// into
//
//	{ e := src.GetEnumerator(); try { loop e.MoveNext() { x := e.Current(); body } } finally { e.Dispose() } }
//
// When iteration variables are shared, x is declared once before the loop
// and assigned on every iteration instead.
func (d *desugarer) foreach(f *ir.Foreach, ctx desugarContext) ir.Stmt {
	scope := d.m.NewScope(ctx.scope, ir.BlockScope)
	d.m.LookupScope(f.Header).Parent = scope
	d.temps++
	e := d.m.NewBinding(fmt.Sprintf("~e%d", d.temps), ir.TempBinding, scope, ir.Enumerator)

	current := ir.CallMethod(ir.Use(e), "Current")
	loop := &ir.Loop{Label: f.Label, Cond: ir.CallMethod(ir.Use(e), "MoveNext")}
	var protected []ir.Stmt
	if d.perIteration {
		loop.Body = &ir.Block{Scope: f.Header, Stmts: []ir.Stmt{
			&ir.Declare{Binding: f.Var, Init: current},
			f.Body,
		}}
		protected = []ir.Stmt{loop}
	} else {
		stmts := append([]ir.Stmt{&ir.Assign{Target: ir.Use(f.Var), Value: current}}, f.Body.Stmts...)
		loop.Body = &ir.Block{Scope: f.Body.Scope, Label: f.Body.Label, Stmts: stmts}
		protected = []ir.Stmt{&ir.Block{Scope: f.Header, Stmts: []ir.Stmt{
			&ir.Declare{Binding: f.Var},
			loop,
		}}}
	}
	return &ir.Block{Scope: scope, Stmts: []ir.Stmt{
		&ir.Declare{Binding: e, Init: ir.CallMethod(f.Source, "GetEnumerator")},
		&ir.Try{
			Body:    &ir.Block{Stmts: protected},
			Finally: &ir.Block{Stmts: []ir.Stmt{&ir.ExprStmt{X: ir.CallMethod(ir.Use(e), "Dispose")}}},
		},
	}}
}

// using rewrites `using r = init { body }` into
// `{ r := init; try { body } finally { if r != nil { r.Dispose() } } }`.
func (d *desugarer) using(u *ir.Using) ir.Stmt {
	dispose := &ir.If{
		Cond: ir.BinOp(ir.Neq, ir.Use(u.Var), ir.NilLit()),
		Then: &ir.Block{Stmts: []ir.Stmt{&ir.ExprStmt{X: ir.CallMethod(ir.Use(u.Var), "Dispose")}}},
	}
	return &ir.Block{Scope: u.Scope, Stmts: []ir.Stmt{
		&ir.Declare{Binding: u.Var, Init: u.Init},
		&ir.Try{Body: u.Body, Finally: &ir.Block{Stmts: []ir.Stmt{dispose}}},
	}}
}

func (d *desugarer) try(t *ir.Try, ctx desugarContext) []ir.Stmt {
	t.Body = d.block(t.Body, ctx)
	if t.Catch != nil {
		t.Catch.Body = d.block(t.Catch.Body, ctx.enter(t.Catch.Scope))
	}
	t.Finally = d.block(t.Finally, ctx)
	if ctx.mode != ir.AsyncMode {
		return []ir.Stmt{t}
	}

	catchAwaits := t.Catch != nil && suspends(t.Catch.Body)
	finallyAwaits := t.Finally != nil && suspends(t.Finally)
	switch {
	case catchAwaits && t.Finally != nil:
		// Rewrite `try { B } catch { C } finally { F }` =>
		// `try { try { B } catch { C } } finally { F }` and lower the
		// inner statement first.
		inner := d.rewriteCatch(&ir.Try{Body: t.Body, Catch: t.Catch}, ctx)
		t = &ir.Try{Body: &ir.Block{Stmts: inner}, Finally: t.Finally}
		if finallyAwaits {
			return d.rewriteFinally(t, ctx)
		}
		return []ir.Stmt{t}
	case catchAwaits:
		return d.rewriteCatch(t, ctx)
	case finallyAwaits:
		return d.rewriteFinally(t, ctx)
	}
	return []ir.Stmt{t}
}

// rewriteCatch moves a catch handler that awaits out of the try statement:
//
//	caught := nil
//	try { B } catch ex { caught = ex }
//	if caught != nil { e = caught; C }
//
// Rethrows in C throw the caught exception explicitly.
func (d *desugarer) rewriteCatch(t *ir.Try, ctx desugarContext) []ir.Stmt {
	caught := d.newTemp(ctx, ir.Any)
	exScope := d.m.NewScope(ctx.scope, ir.CatchScope)
	ex := d.m.NewBinding("~ex", ir.TempBinding, exScope, ir.Any)

	var handler []ir.Stmt
	if t.Catch.Var.IsValid() {
		handler = append(handler, &ir.Assign{Target: ir.Use(t.Catch.Var), Value: ir.Use(caught)})
	}
	handler = append(handler, rethrowAs(t.Catch.Body.Stmts, caught)...)

	return []ir.Stmt{
		&ir.Declare{Binding: caught, Init: ir.NilLit()},
		&ir.Try{
			Body: t.Body,
			Catch: &ir.Catch{Scope: exScope, Var: ex, Body: &ir.Block{Scope: exScope, Stmts: []ir.Stmt{
				&ir.Assign{Target: ir.Use(caught), Value: ir.Use(ex)},
			}}},
		},
		&ir.If{
			Cond: ir.BinOp(ir.Neq, ir.Use(caught), ir.NilLit()),
			Then: &ir.Block{Scope: t.Catch.Scope, Stmts: handler},
		},
	}
}

// rethrowAs replaces rethrow statements that refer to the exception being
// handled with throws of the binding holding it.
func rethrowAs(stmts []ir.Stmt, exc ir.BindingID) []ir.Stmt {
	var visit func(s ir.Stmt)
	visitBlock := func(b *ir.Block) {
		if b == nil {
			return
		}
		for i, s := range b.Stmts {
			if th, ok := s.(*ir.Throw); ok && th.Value == nil {
				b.Stmts[i] = &ir.Throw{Value: ir.Use(exc)}
				continue
			}
			visit(s)
		}
	}
	visit = func(s ir.Stmt) {
		switch s := s.(type) {
		case *ir.Block:
			visitBlock(s)
		case *ir.If:
			visitBlock(s.Then)
			visitBlock(s.Else)
		case *ir.Loop:
			visitBlock(s.Body)
		case *ir.Try:
			// A rethrow in a nested catch refers to the nested exception.
			visitBlock(s.Body)
			visitBlock(s.Finally)
		}
	}
	root := &ir.Block{Stmts: stmts}
	visitBlock(root)
	return root.Stmts
}

// rewriteFinally moves a finally block that awaits out of the try
// statement:
//
//	exc := nil; pending := 0
//	L: { try { B' } catch ex { exc = ex } }
//	F
//	if exc != nil { throw exc }
//	if pending == 1 { <branch 1> } ...
//
// where B' replaces each branch leaving the try statement (return, or
// break and continue to a label outside of it) with `pending = i; break L`.
func (d *desugarer) rewriteFinally(t *ir.Try, ctx desugarContext) []ir.Stmt {
	label := d.newLabel("finally")
	exc := d.newTemp(ctx, ir.Any)
	pending := d.newTemp(ctx, ir.Int)

	prologue := []ir.Stmt{
		&ir.Declare{Binding: exc, Init: ir.NilLit()},
		&ir.Declare{Binding: pending, Init: ir.IntLit(0)},
	}
	var replays []ir.Stmt
	exit := func(s ir.Stmt) ir.Stmt {
		i := int64(len(replays) + 1)
		stmts := []ir.Stmt{&ir.Assign{Target: ir.Use(pending), Value: ir.IntLit(i)}}
		replay := s
		if r, ok := s.(*ir.Return); ok && r.Value != nil {
			rv := d.newTemp(ctx, ir.Any)
			prologue = append(prologue, &ir.Declare{Binding: rv})
			stmts = append(stmts, &ir.Assign{Target: ir.Use(rv), Value: r.Value})
			replay = &ir.Return{Value: ir.Use(rv)}
		}
		replays = append(replays, replay)
		return &ir.Block{Stmts: append(stmts, &ir.Break{Label: label})}
	}

	var protected ir.Stmt = t.Body
	if t.Catch != nil {
		protected = &ir.Try{Body: t.Body, Catch: t.Catch}
	}
	protected = replaceExits(protected, labelsIn(protected), exit)

	exScope := d.m.NewScope(ctx.scope, ir.CatchScope)
	ex := d.m.NewBinding("~ex", ir.TempBinding, exScope, ir.Any)
	stmts := append(prologue,
		&ir.Block{Label: label, Stmts: []ir.Stmt{
			&ir.Try{
				Body: &ir.Block{Stmts: []ir.Stmt{protected}},
				Catch: &ir.Catch{Scope: exScope, Var: ex, Body: &ir.Block{Scope: exScope, Stmts: []ir.Stmt{
					&ir.Assign{Target: ir.Use(exc), Value: ir.Use(ex)},
				}}},
			},
		}},
		t.Finally,
		&ir.If{
			Cond: ir.BinOp(ir.Neq, ir.Use(exc), ir.NilLit()),
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.Throw{Value: ir.Use(exc)}}},
		},
	)
	for i, replay := range replays {
		stmts = append(stmts, &ir.If{
			Cond: ir.BinOp(ir.Eql, ir.Use(pending), ir.IntLit(int64(i+1))),
			Then: &ir.Block{Stmts: []ir.Stmt{replay}},
		})
	}
	return stmts
}

// labelsIn returns the labels of loops and blocks declared within s.
func labelsIn(s ir.Stmt) map[string]bool {
	labels := map[string]bool{}
	ir.Inspect(s, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Loop:
			if n.Label != "" {
				labels[n.Label] = true
			}
		case *ir.Block:
			if n.Label != "" {
				labels[n.Label] = true
			}
		case *ir.Lambda:
			return false
		}
		return true
	})
	return labels
}

// replaceExits replaces the statements of s that transfer control out of s
// with exit(stmt). Labels in inside are declared within s.
func replaceExits(s ir.Stmt, inside map[string]bool, exit func(ir.Stmt) ir.Stmt) ir.Stmt {
	switch s := s.(type) {
	case *ir.Return:
		return exit(s)
	case *ir.Break:
		if !inside[s.Label] {
			return exit(s)
		}
	case *ir.Continue:
		if !inside[s.Label] {
			return exit(s)
		}
	case *ir.Block:
		replaceExitsIn(s, inside, exit)
	case *ir.If:
		replaceExitsIn(s.Then, inside, exit)
		replaceExitsIn(s.Else, inside, exit)
	case *ir.Loop:
		replaceExitsIn(s.Body, inside, exit)
	case *ir.Try:
		replaceExitsIn(s.Body, inside, exit)
		if s.Catch != nil {
			replaceExitsIn(s.Catch.Body, inside, exit)
		}
		replaceExitsIn(s.Finally, inside, exit)
	}
	return s
}

func replaceExitsIn(b *ir.Block, inside map[string]bool, exit func(ir.Stmt) ir.Stmt) {
	if b == nil {
		return
	}
	for i, s := range b.Stmts {
		b.Stmts[i] = replaceExits(s, inside, exit)
	}
}

// continueAs replaces the continue statements targeting label in b with
// breaks out of the block labeled target.
func continueAs(b *ir.Block, label, target string) {
	if b == nil {
		return
	}
	for i, s := range b.Stmts {
		switch s := s.(type) {
		case *ir.Continue:
			if s.Label == label {
				b.Stmts[i] = &ir.Break{Label: target}
			}
		case *ir.Block:
			continueAs(s, label, target)
		case *ir.If:
			continueAs(s.Then, label, target)
			continueAs(s.Else, label, target)
		case *ir.Loop:
			continueAs(s.Body, label, target)
		case *ir.Try:
			continueAs(s.Body, label, target)
			if s.Catch != nil {
				continueAs(s.Catch.Body, label, target)
			}
			continueAs(s.Finally, label, target)
		}
	}
}

// decomposeValue is decompose for values that may be a single await: the
// await is kept in place and only its operand is decomposed.
func (d *desugarer) decomposeValue(e ir.Expr, ctx desugarContext, prologue *[]ir.Stmt) ir.Expr {
	if a, ok := e.(*ir.Await); ok {
		a.X = d.decompose(a.X, ctx, prologue)
		return a
	}
	return d.decompose(e, ctx, prologue)
}

// decompose hoists every await in e into a temporary declared by a
// statement appended to prologue, and returns the remaining expression.
// Operands evaluated before an await are spilled into temporaries so that
// evaluation order is preserved.
func (d *desugarer) decompose(e ir.Expr, ctx desugarContext, prologue *[]ir.Stmt) ir.Expr {
	if !containsAwait(e) {
		return e
	}
	switch e := e.(type) {
	case *ir.Await:
		x := d.decompose(e.X, ctx, prologue)
		t := d.newTemp(ctx, ir.Any)
		*prologue = append(*prologue, &ir.Declare{Binding: t, Init: &ir.Await{X: x}})
		return ir.Use(t)

	case *ir.Binary:
		if (e.Op == ir.And || e.Op == ir.Or) && containsAwait(e.Y) {
			// Rewrite `x && y` => `t := x; if t { t = y }`
			// and `x || y` => `t := x; if !t { t = y }`.
			t := d.newTemp(ctx, ir.Bool)
			*prologue = append(*prologue, &ir.Declare{Binding: t, Init: d.decompose(e.X, ctx, prologue)})
			var rhs []ir.Stmt
			y := d.decompose(e.Y, ctx, &rhs)
			rhs = append(rhs, &ir.Assign{Target: ir.Use(t), Value: y})
			var cond ir.Expr = ir.Use(t)
			if e.Op == ir.Or {
				cond = &ir.Unary{Op: ir.Not, X: ir.Use(t)}
			}
			*prologue = append(*prologue, &ir.If{Cond: cond, Then: &ir.Block{Stmts: rhs}})
			return ir.Use(t)
		}
		d.operands(ctx, prologue, &e.X, &e.Y)

	case *ir.Unary:
		e.X = d.decompose(e.X, ctx, prologue)

	case *ir.Call:
		ops := []*ir.Expr{&e.Fn}
		for i := range e.Args {
			ops = append(ops, &e.Args[i])
		}
		d.operands(ctx, prologue, ops...)

	case *ir.Invoke:
		var ops []*ir.Expr
		if e.This != nil {
			ops = append(ops, &e.This)
		}
		for i := range e.Args {
			ops = append(ops, &e.Args[i])
		}
		d.operands(ctx, prologue, ops...)

	case *ir.MethodCall:
		ops := []*ir.Expr{&e.Recv}
		for i := range e.Args {
			ops = append(ops, &e.Args[i])
		}
		d.operands(ctx, prologue, ops...)

	case *ir.Builtin:
		var ops []*ir.Expr
		for i := range e.Args {
			ops = append(ops, &e.Args[i])
		}
		d.operands(ctx, prologue, ops...)
	}
	return e
}

func (d *desugarer) operands(ctx desugarContext, prologue *[]ir.Stmt, ops ...*ir.Expr) {
	last := -1
	for i, op := range ops {
		if containsAwait(*op) {
			last = i
		}
	}
	for i, op := range ops {
		*op = d.decompose(*op, ctx, prologue)
		if _, isConst := (*op).(*ir.Const); i < last && !isConst {
			t := d.newTemp(ctx, ir.Any)
			*prologue = append(*prologue, &ir.Declare{Binding: t, Init: *op})
			*op = ir.Use(t)
		}
	}
}
