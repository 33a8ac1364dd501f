package interp

import (
	"fmt"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/ir"
)

func (a *activation) eval(expr ir.Expr) (any, error) {
	switch e := expr.(type) {
	case *ir.Const:
		if i, ok := e.Value.(int); ok {
			return int64(i), nil
		}
		return e.Value, nil

	case *ir.Ref:
		return a.locals[e.Binding], nil

	case *ir.Slot:
		f, err := a.frame(e.Frame)
		if err != nil {
			return nil, err
		}
		return f.Load(e.Hops, e.Index), nil

	case *ir.Self:
		if a.self == nil {
			return nil, fmt.Errorf("%s: no machine frame", a.method.Name)
		}
		return a.self, nil

	case *ir.Env:
		if a.env == nil {
			return nil, fmt.Errorf("%s: no environment frame", a.method.Name)
		}
		return a.env, nil

	case *ir.Unary:
		return a.unary(e)

	case *ir.Binary:
		return a.binary(e)

	case *ir.Call:
		fn, err := a.eval(e.Fn)
		if err != nil {
			return nil, err
		}
		args, err := a.evalList(e.Args)
		if err != nil {
			return nil, err
		}
		c, ok := fn.(Callable)
		if !ok {
			return nil, lowering.Throw(fmt.Sprintf("%s is not callable", typeName(fn)))
		}
		return c.Call(a.ctx, args...)

	case *ir.Invoke:
		m := a.in.prog.Method(e.Method)
		if m == nil {
			return nil, fmt.Errorf("method %q not found", e.Method)
		}
		var this any
		if e.This != nil {
			var err error
			if this, err = a.eval(e.This); err != nil {
				return nil, err
			}
		}
		args, err := a.evalList(e.Args)
		if err != nil {
			return nil, err
		}
		return a.in.invoke(a.ctx, m, this, args)

	case *ir.MethodCall:
		recv, err := a.eval(e.Recv)
		if err != nil {
			return nil, err
		}
		args, err := a.evalList(e.Args)
		if err != nil {
			return nil, err
		}
		return a.call(recv, e.Name, args)

	case *ir.Builtin:
		args, err := a.evalList(e.Args)
		if err != nil {
			return nil, err
		}
		return a.in.builtin(e.Name, args)

	case *ir.NewFrame:
		var parent *lowering.Frame
		if e.Parent != nil {
			var err error
			if parent, err = a.frame(e.Parent); err != nil {
				return nil, err
			}
		}
		return lowering.NewFrame(e.Type.Name, len(e.Type.Slots), parent), nil

	case *ir.MakeClosure:
		if e.Cached {
			return a.in.cachedClosure(e.Unit), nil
		}
		var env *lowering.Frame
		if e.Env != nil {
			var err error
			if env, err = a.frame(e.Env); err != nil {
				return nil, err
			}
		}
		return &Closure{in: a.in, unit: e.Unit, env: env}, nil

	case *ir.MakeMachine:
		f, err := a.frame(e.Frame)
		if err != nil {
			return nil, err
		}
		return a.in.makeMachine(a.ctx, e.Unit, f)

	case *ir.Continuation:
		f, err := a.frame(e.Machine)
		if err != nil {
			return nil, err
		}
		if a.unit == nil {
			return nil, fmt.Errorf("%s: continuation outside of a machine", a.method.Name)
		}
		return &continuation{m: a.in.machine(a.unit, f)}, nil

	case *ir.Bad:
		return nil, fmt.Errorf("%s: expression rejected with %s", a.method.Name, e.Code)
	}
	return nil, fmt.Errorf("not implemented: %T", expr)
}

func (a *activation) evalList(list []ir.Expr) ([]any, error) {
	if len(list) == 0 {
		return nil, nil
	}
	values := make([]any, len(list))
	for i, e := range list {
		v, err := a.eval(e)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (a *activation) frame(e ir.Expr) (*lowering.Frame, error) {
	v, err := a.eval(e)
	if err != nil {
		return nil, err
	}
	f, ok := v.(*lowering.Frame)
	if !ok || f == nil {
		return nil, fmt.Errorf("%s: %s is not a frame", a.method.Name, typeName(v))
	}
	return f, nil
}

func (a *activation) unary(e *ir.Unary) (any, error) {
	x, err := a.eval(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ir.Not:
		if b, ok := x.(bool); ok {
			return !b, nil
		}
	case ir.Neg:
		if i, ok := x.(int64); ok {
			return -i, nil
		}
	}
	return nil, lowering.Throw(fmt.Sprintf("invalid operation %s %s", e.Op, typeName(x)))
}

func (a *activation) binary(e *ir.Binary) (any, error) {
	x, err := a.eval(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ir.And, ir.Or:
		b, ok := x.(bool)
		if !ok {
			break
		}
		if (e.Op == ir.And) != b {
			return b, nil
		}
		y, err := a.eval(e.Y)
		if err != nil {
			return nil, err
		}
		if yb, ok := y.(bool); ok {
			return yb, nil
		}
		return nil, lowering.Throw(fmt.Sprintf("invalid operation %s %s %s", typeName(x), e.Op, typeName(y)))
	}

	y, err := a.eval(e.Y)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ir.Eql:
		return equal(x, y), nil
	case ir.Neq:
		return !equal(x, y), nil
	}

	switch x := x.(type) {
	case int64:
		if y, ok := y.(int64); ok {
			return intOp(e.Op, x, y)
		}
	case string:
		if y, ok := y.(string); ok {
			switch e.Op {
			case ir.Add:
				return x + y, nil
			case ir.Lss:
				return x < y, nil
			case ir.Leq:
				return x <= y, nil
			case ir.Gtr:
				return x > y, nil
			case ir.Geq:
				return x >= y, nil
			}
		}
		if e.Op == ir.Add {
			return x + format(y), nil
		}
	}
	return nil, lowering.Throw(fmt.Sprintf("invalid operation %s %s %s", typeName(x), e.Op, typeName(y)))
}

func intOp(op ir.Op, x, y int64) (any, error) {
	switch op {
	case ir.Add:
		return x + y, nil
	case ir.Sub:
		return x - y, nil
	case ir.Mul:
		return x * y, nil
	case ir.Div, ir.Rem:
		if y == 0 {
			return nil, lowering.Throw("division by zero")
		}
		if op == ir.Div {
			return x / y, nil
		}
		return x % y, nil
	case ir.Lss:
		return x < y, nil
	case ir.Leq:
		return x <= y, nil
	case ir.Gtr:
		return x > y, nil
	case ir.Geq:
		return x >= y, nil
	}
	return nil, lowering.Throw(fmt.Sprintf("invalid operation int %s int", op))
}

// equal compares values by identity, except for exceptions which compare
// by the value they carry.
func equal(x, y any) bool {
	if ex, ok := x.(*lowering.Exception); ok {
		if ey, ok := y.(*lowering.Exception); ok {
			return ex == ey || equal(ex.Value, ey.Value)
		}
		return false
	}
	return x == y
}
