package compiler

import (
	"fmt"

	"github.com/stealthrocket/lowering/ir"
)

func (r *rewriter) name(kind string) string {
	r.count[kind]++
	return fmt.Sprintf("%s.%s%d", r.m.Name, kind, r.count[kind])
}

// lambda replaces an anonymous function with the construction of its
// closure unit, bound to the innermost frame reachable at this point.
func (r *rewriter) lambda(a *activation, l *ir.Lambda) ir.Expr {
	u := r.caps.Unit(l.Scope)
	if u == nil {
		r.fail("lambda at scope %d was not analyzed", l.Scope)
		return &ir.Bad{}
	}

	var env ir.Expr
	envFrame := r.plan.Env(u)
	if envFrame != nil {
		reach := a.find(envFrame)
		if reach == nil {
			r.fail("environment %s of lambda at scope %d is not reachable", envFrame.Type.Name, l.Scope)
			return &ir.Bad{}
		}
		env = reach.expr()
	}

	var unit *ir.Unit
	if u.Resumable() {
		machine := r.machineUnit(u, l.Body)
		unit = r.closureUnit(u, l.Params, r.kickoff(u, machine, l.Params))
	} else {
		inner := &activation{unit: u}
		if envFrame != nil {
			inner.push(envFrame, func() ir.Expr { return &ir.Env{} })
		}
		unit = r.closureUnit(u, l.Params, r.block(inner, l.Body, l.Params...))
	}

	return &ir.MakeClosure{
		Unit:   unit,
		Env:    env,
		Cached: r.opts.cacheStatic && !u.HasCaptures() && !u.CapturesThis,
	}
}

func (r *rewriter) closureUnit(u *UnitInfo, params []ir.BindingID, invoke *ir.Block) *ir.Unit {
	unit := r.newUnit(u, "closure")
	unit.Code = &ir.ClosureCode{Params: params, Invoke: invoke}
	return unit
}

func (r *rewriter) newUnit(u *UnitInfo, kind string) *ir.Unit {
	unit := &ir.Unit{
		Name:         r.name(kind),
		Method:       r.m,
		CapturesThis: u.CapturesThis,
	}
	if env := r.plan.Env(u); env != nil {
		unit.Env = env.Type
	}
	var ids []int
	for _, id := range u.Captured.AppendTo(ids) {
		unit.Captures = append(unit.Captures, ir.BindingID(id))
	}
	r.units = append(r.units, unit)
	return unit
}

// kickoff returns the code that starts a resumable body: it allocates the
// machine frame, copies the arguments into it and hands the frame to the
// machine unit.
//
//	m := new(machine, env)
//	m.state = 0
//	m.p1, ..., m.pn = p1, ..., pn
//	return start(machine, m)
func (r *rewriter) kickoff(u *UnitInfo, unit *ir.Unit, params []ir.BindingID) *ir.Block {
	mc := r.machines[u.Root]
	frame := r.plan.Allocated(u.Root)
	m := r.m.NewBinding("~m", ir.TempBinding, u.Root, ir.FrameRef)

	var parent ir.Expr
	if frame.Parent != 0 {
		parent = &ir.Env{}
	}
	stmts := []ir.Stmt{
		&ir.Declare{Binding: m, Init: &ir.NewFrame{Type: frame.Type, Parent: parent}},
		&ir.Assign{Target: &ir.Slot{Frame: ir.Use(m), Index: frame.slot(mc.state)}, Value: ir.IntLit(ir.StateInitial)},
	}
	if mc.started.IsValid() {
		stmts = append(stmts, &ir.Assign{Target: &ir.Slot{Frame: ir.Use(m), Index: frame.slot(mc.started)}, Value: ir.BoolLit(false)})
	}
	if u.Lambda == nil && r.m.This.IsValid() {
		params = append(params[:len(params):len(params)], r.m.This)
	}
	for _, p := range params {
		i := frame.slot(p)
		if i < 0 {
			r.fail("parameter %s has no slot in machine frame %s", r.m.Binding(p), frame.Type.Name)
			continue
		}
		stmts = append(stmts, &ir.Assign{Target: &ir.Slot{Frame: ir.Use(m), Index: i}, Value: ir.Use(p)})
	}
	stmts = append(stmts, &ir.Return{Value: &ir.MakeMachine{Unit: unit, Frame: ir.Use(m)}})
	return &ir.Block{Stmts: stmts}
}

// machineUnit rewrites a resumable body into the code of an iterator or
// async unit.
func (r *rewriter) machineUnit(u *UnitInfo, body *ir.Block) *ir.Unit {
	mc := r.machines[u.Root]
	frame := r.plan.Allocated(u.Root)

	a := &activation{unit: u}
	a.push(frame, func() ir.Expr { return &ir.Self{} })
	body = r.block(a, body)

	b := &machineBuilder{
		m:     r.m,
		mc:    mc,
		frame: frame,
		root:  u.Root,
	}
	var unit *ir.Unit
	switch u.Mode {
	case ir.IteratorMode:
		unit = r.newUnit(u, "iterator")
		unit.Code = b.iterator(body, r.iteratorResult(u) == ir.Enumerable)
	case ir.AsyncMode:
		unit = r.newUnit(u, "async")
		unit.Code = b.async(body)
	}
	if b.err != nil && r.err == nil {
		r.err = b.err
	}
	return unit
}

func (r *rewriter) iteratorResult(u *UnitInfo) ir.Type {
	if u.Lambda != nil {
		return u.Lambda.Result
	}
	return r.m.Result
}
