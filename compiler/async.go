package compiler

import (
	"github.com/stealthrocket/lowering/ir"
)

const bodyLabel = "~body"

// async builds the MoveNext method of an async unit.
//
//	s := state
//	if s == terminal { return }
//	<prologue>
//	try {
//	  ~body: { <body> }
//	} catch ex {
//	  state = terminal
//	  if !started { throw }
//	  task.SetException(ex)
//	  return
//	}
//	state = terminal
//	task.SetResult(result)
//
// Returns in the body store the result and break out of ~body. A fault
// raised before the machine first suspends propagates to the caller that
// started it; later faults complete the task.
func (b *machineBuilder) async(body *ir.Block) *ir.AsyncCode {
	b.locals()

	result := b.m.NewBinding("~result", ir.TempBinding, b.root, ir.Any)
	replaceStmts(body, func(s ir.Stmt) ir.Stmt {
		ret, ok := s.(*ir.Return)
		if !ok {
			return nil
		}
		stmts := []ir.Stmt{}
		if ret.Value != nil {
			stmts = append(stmts, &ir.Assign{Target: ir.Use(result), Value: ret.Value})
		}
		return &ir.Block{Stmts: append(stmts, &ir.Break{Label: bodyLabel})}
	})
	b.dispatch(body)

	s := b.m.NewBinding("~s", ir.TempBinding, b.root, ir.Int)
	ex := b.m.NewBinding("~ex", ir.TempBinding, b.root, ir.Any)
	stmts := []ir.Stmt{
		&ir.Declare{Binding: s, Init: b.field(b.mc.state)},
		&ir.If{
			Cond: ir.BinOp(ir.Eql, ir.Use(s), ir.IntLit(ir.StateTerminal)),
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.Return{}}},
		},
		&ir.Declare{Binding: result},
	}
	stmts = append(stmts, b.prologue(s)...)
	stmts = append(stmts,
		&ir.Try{
			Body: &ir.Block{Stmts: []ir.Stmt{
				&ir.Block{Label: bodyLabel, Stmts: body.Stmts},
			}},
			Catch: &ir.Catch{Var: ex, Body: &ir.Block{Stmts: []ir.Stmt{
				b.set(b.mc.state, ir.IntLit(ir.StateTerminal)),
				&ir.If{
					Cond: ir.UnOp(ir.Not, b.field(b.mc.started)),
					Then: &ir.Block{Stmts: []ir.Stmt{&ir.Throw{}}},
				},
				&ir.ExprStmt{X: ir.CallMethod(b.field(b.mc.value), "SetException", ir.Use(ex))},
				&ir.Return{},
			}}},
		},
		b.set(b.mc.state, ir.IntLit(ir.StateTerminal)),
		&ir.ExprStmt{X: ir.CallMethod(b.field(b.mc.value), "SetResult", ir.Use(result))},
	)

	return &ir.AsyncCode{
		MachineCode: b.machineCode(&ir.Block{Stmts: stmts}),
		StartedSlot: b.frame.slot(b.mc.started),
	}
}
