package compiler

import "github.com/stealthrocket/lowering/ir"

// mapChildren replaces every direct child expression of e with f(child).
// Lambda bodies are statements and are left to the caller.
func mapChildren(e ir.Expr, f func(ir.Expr) ir.Expr) {
	switch e := e.(type) {
	case *ir.Unary:
		e.X = f(e.X)
	case *ir.Binary:
		e.X = f(e.X)
		e.Y = f(e.Y)
	case *ir.Call:
		e.Fn = f(e.Fn)
		mapList(e.Args, f)
	case *ir.Invoke:
		if e.This != nil {
			e.This = f(e.This)
		}
		mapList(e.Args, f)
	case *ir.MethodCall:
		e.Recv = f(e.Recv)
		mapList(e.Args, f)
	case *ir.Builtin:
		mapList(e.Args, f)
	case *ir.Await:
		e.X = f(e.X)
	case *ir.Slot:
		e.Frame = f(e.Frame)
	case *ir.NewFrame:
		if e.Parent != nil {
			e.Parent = f(e.Parent)
		}
	case *ir.MakeClosure:
		if e.Env != nil {
			e.Env = f(e.Env)
		}
	case *ir.MakeMachine:
		e.Frame = f(e.Frame)
	case *ir.Continuation:
		e.Machine = f(e.Machine)
	}
}

func mapList(list []ir.Expr, f func(ir.Expr) ir.Expr) {
	for i, e := range list {
		list[i] = f(e)
	}
}

// mapStmtExprs replaces the expressions held directly by s (not those of
// nested statements) with f(expr).
func mapStmtExprs(s ir.Stmt, f func(ir.Expr) ir.Expr) {
	opt := func(e ir.Expr) ir.Expr {
		if e == nil {
			return nil
		}
		return f(e)
	}
	switch s := s.(type) {
	case *ir.Declare:
		s.Init = opt(s.Init)
	case *ir.ExprStmt:
		s.X = f(s.X)
	case *ir.Assign:
		s.Target = f(s.Target)
		s.Value = f(s.Value)
	case *ir.If:
		s.Cond = f(s.Cond)
	case *ir.Loop:
		s.Cond = opt(s.Cond)
	case *ir.Foreach:
		s.Source = f(s.Source)
	case *ir.Using:
		s.Init = f(s.Init)
	case *ir.Return:
		s.Value = opt(s.Value)
	case *ir.Throw:
		s.Value = opt(s.Value)
	case *ir.YieldReturn:
		s.Value = f(s.Value)
	}
}

// suspends reports whether n contains a suspension point of the body it
// belongs to. Nested lambdas are separate bodies.
func suspends(n ir.Node) bool {
	if b, ok := n.(*ir.Block); n == nil || ok && b == nil {
		return false
	}
	return ir.Contains(n, ir.IsSuspension)
}

func containsAwait(e ir.Expr) bool {
	if e == nil {
		return false
	}
	return ir.Contains(e, func(n ir.Node) bool {
		_, ok := n.(*ir.Await)
		return ok
	})
}

func containsLambda(n ir.Node) bool {
	found := false
	ir.Inspect(n, func(n ir.Node) bool {
		if _, ok := n.(*ir.Lambda); ok {
			found = true
		}
		return !found
	})
	return found
}

// hasUnits reports whether the method needs lowering at all.
func hasUnits(m *ir.Method) bool {
	if m.Mode.Resumable() {
		return true
	}
	found := false
	ir.Inspect(m.Body, func(n ir.Node) bool {
		if ir.IsSpecial(n) {
			found = true
		}
		return !found
	})
	return found
}

// zeroValue returns the zero value literal of typ.
func zeroValue(typ ir.Type) ir.Expr {
	switch typ {
	case ir.Int:
		return ir.IntLit(0)
	case ir.Bool:
		return ir.BoolLit(false)
	case ir.String:
		return ir.StrLit("")
	default:
		return ir.NilLit()
	}
}
