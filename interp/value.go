package interp

import (
	"context"
	"fmt"
	"strings"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/ir"
)

// Callable is a value that can be applied to arguments.
type Callable interface {
	Call(ctx context.Context, args ...any) (any, error)
}

// Closure is an instance of a closure unit bound to its environment frame.
type Closure struct {
	in   *Interp
	unit *ir.Unit
	env  *lowering.Frame
}

// Unit returns the closure unit the closure runs.
func (c *Closure) Unit() *ir.Unit { return c.unit }

// Env returns the frame the closure is bound to, or nil.
func (c *Closure) Env() *lowering.Frame { return c.env }

func (c *Closure) Call(ctx context.Context, args ...any) (v any, err error) {
	code, ok := c.unit.Code.(*ir.ClosureCode)
	if !ok {
		return nil, fmt.Errorf("unit %s is not a closure", c.unit.Name)
	}
	if len(args) != len(code.Params) {
		return nil, lowering.Throw(fmt.Sprintf("%s takes %d arguments, got %d", c.unit.Name, len(code.Params), len(args)))
	}
	a := c.in.activation(ctx, c.unit.Method)
	a.unit = c.unit
	a.env = c.env
	for i, p := range code.Params {
		a.locals[p] = args[i]
	}
	return a.run(code.Invoke)
}

func (in *Interp) cachedClosure(u *ir.Unit) *Closure {
	in.mu.Lock()
	defer in.mu.Unlock()
	c := in.cached[u]
	if c == nil {
		c = &Closure{in: in, unit: u}
		in.cached[u] = c
	}
	return c
}

// Func adapts a Go function to the Callable interface.
type Func func(args ...any) (any, error)

func (f Func) Call(_ context.Context, args ...any) (any, error) { return f(args...) }

// List is an enumerable sequence of values.
type List struct {
	Values []any
}

func (l *List) GetEnumerator() (lowering.Enumerator, error) {
	return lowering.NewSlice(l.Values), nil
}

// Resource is a disposable value that reports its disposal on the output.
type Resource struct {
	in       *Interp
	Name     string
	Disposed bool
}

func (r *Resource) Dispose() error {
	if !r.Disposed {
		r.Disposed = true
		fmt.Fprintf(r.in.out, "dispose %s\n", r.Name)
	}
	return nil
}

// call dispatches a protocol method on a runtime value.
func (a *activation) call(recv any, name string, args []any) (any, error) {
	if recv == nil {
		return nil, lowering.Throw(fmt.Sprintf("%s called on null", name))
	}
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	switch r := recv.(type) {
	case *lowering.Task:
		switch name {
		case "GetAwaiter":
			return r, nil
		case "IsCompleted":
			return r.IsCompleted(), nil
		case "GetResult":
			return r.GetResult()
		case "OnCompleted":
			k, ok := arg(0).(Callable)
			if !ok {
				return nil, fmt.Errorf("OnCompleted: %s is not callable", typeName(arg(0)))
			}
			ctx := a.ctx
			r.OnCompleted(func() {
				if _, err := k.Call(ctx); err != nil {
					a.in.fail(err)
				}
			})
			return nil, nil
		case "SetResult":
			return nil, r.SetResult(arg(0))
		case "SetException":
			return nil, r.SetException(lowering.Throw(arg(0)))
		case "Cancel":
			return nil, r.Cancel(format(arg(0)))
		}

	case lowering.Enumerator:
		switch name {
		case "MoveNext":
			return r.MoveNext()
		case "Current":
			return r.Current(), nil
		case "Dispose":
			return nil, r.Dispose()
		case "GetEnumerator":
			return r, nil
		}

	case lowering.Enumerable:
		if name == "GetEnumerator" {
			return r.GetEnumerator()
		}

	case *Resource:
		if name == "Dispose" {
			return nil, r.Dispose()
		}

	case Callable:
		if name == "Invoke" {
			return r.Call(a.ctx, args...)
		}
	}
	return nil, fmt.Errorf("not implemented: %s.%s", typeName(recv), name)
}

// enumerate returns an enumerator over v.
func enumerate(v any) (lowering.Enumerator, error) {
	switch v := v.(type) {
	case lowering.Enumerator:
		return v, nil
	case lowering.Enumerable:
		return v.GetEnumerator()
	}
	return nil, lowering.Throw(fmt.Sprintf("%s is not enumerable", typeName(v)))
}

func typeName(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case int64:
		return "int"
	case bool:
		return "bool"
	case string:
		return "string"
	case *lowering.Frame:
		return "frame " + v.Name
	case *Closure:
		return "closure " + v.unit.Name
	case *lowering.Task:
		return "task"
	case *lowering.Exception:
		return "exception"
	case *List:
		return "list"
	case *Resource:
		return "resource"
	case lowering.Enumerator:
		return "enumerator"
	case lowering.Enumerable:
		return "enumerable"
	}
	return fmt.Sprintf("%T", v)
}

// format renders a value the way the print builtin shows it.
func format(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case *lowering.Exception:
		if c, ok := v.Value.(lowering.Canceled); ok {
			return c.Error()
		}
		return format(v.Value)
	case *List:
		parts := make([]string, len(v.Values))
		for i, x := range v.Values {
			parts[i] = format(x)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *lowering.Task:
		return "task(" + v.Status().String() + ")"
	case int64, bool:
		return fmt.Sprint(v)
	}
	return "<" + typeName(v) + ">"
}
