package compiler

import (
	"github.com/stealthrocket/lowering/ir"
)

// iterator builds the MoveNext and Dispose methods of an iterator unit.
//
// MoveNext:
//
//	s := state
//	if s == terminal || s == running { return false }
//	<prologue>
//	try { <body> } catch { state = terminal; throw }
//	state = terminal
//	return false
//
// Dispose runs the finally blocks of the regions enclosing the suspension
// point the machine stopped at, innermost first.
func (b *machineBuilder) iterator(body *ir.Block, enumerable bool) *ir.IteratorCode {
	b.locals()

	finish := func() ir.Stmt {
		return &ir.Block{Stmts: []ir.Stmt{
			b.set(b.mc.state, ir.IntLit(ir.StateTerminal)),
			&ir.Return{Value: ir.BoolLit(false)},
		}}
	}
	replaceStmts(body, func(s ir.Stmt) ir.Stmt {
		switch s.(type) {
		case *ir.YieldBreak, *ir.Return:
			return finish()
		}
		return nil
	})
	b.dispatch(body)

	s := b.m.NewBinding("~s", ir.TempBinding, b.root, ir.Int)
	ex := b.m.NewBinding("~ex", ir.TempBinding, b.root, ir.Any)
	stmts := []ir.Stmt{
		&ir.Declare{Binding: s, Init: b.field(b.mc.state)},
		&ir.If{
			Cond: ir.BinOp(ir.Or,
				ir.BinOp(ir.Eql, ir.Use(s), ir.IntLit(ir.StateTerminal)),
				ir.BinOp(ir.Eql, ir.Use(s), ir.IntLit(ir.StateRunning))),
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.Return{Value: ir.BoolLit(false)}}},
		},
	}
	stmts = append(stmts, b.prologue(s)...)
	stmts = append(stmts,
		&ir.Try{
			Body: body,
			Catch: &ir.Catch{Var: ex, Body: &ir.Block{Stmts: []ir.Stmt{
				b.set(b.mc.state, ir.IntLit(ir.StateTerminal)),
				&ir.Throw{},
			}}},
		},
		finish(),
	)

	return &ir.IteratorCode{
		MachineCode: b.machineCode(&ir.Block{Stmts: stmts}),
		Dispose:     b.dispose(),
		Enumerable:  enumerable,
	}
}

// dispose builds
//
//	s := state
//	if s == running { return }
//	state = terminal
//	if s in states(R1) { try { <nested regions> } finally { <finally of R1> } }
//	...
func (b *machineBuilder) dispose() *ir.Block {
	s := b.m.NewBinding("~s", ir.TempBinding, b.root, ir.Int)
	stmts := []ir.Stmt{
		&ir.Declare{Binding: s, Init: b.field(b.mc.state)},
		&ir.If{
			Cond: ir.BinOp(ir.Eql, ir.Use(s), ir.IntLit(ir.StateRunning)),
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.Return{}}},
		},
		b.set(b.mc.state, ir.IntLit(ir.StateTerminal)),
	}
	return &ir.Block{Stmts: append(stmts, b.unwind(s, 0)...)}
}

func (b *machineBuilder) unwind(s ir.BindingID, parent ir.RegionID) []ir.Stmt {
	var stmts []ir.Stmt
	for _, r := range b.mc.regions {
		if r.parent != parent {
			continue
		}
		states := r.stateList()
		if len(states) == 0 {
			continue
		}
		var cond ir.Expr
		for _, k := range states {
			eq := ir.BinOp(ir.Eql, ir.Use(s), ir.IntLit(int64(k)))
			if cond == nil {
				cond = eq
			} else {
				cond = ir.BinOp(ir.Or, cond, eq)
			}
		}
		stmts = append(stmts, &ir.If{
			Cond: cond,
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.Try{
				Body:    &ir.Block{Stmts: b.unwind(s, r.id)},
				Finally: ir.CloneBlock(r.finally),
			}}},
		})
	}
	return stmts
}
