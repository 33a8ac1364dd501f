package interp

import (
	"context"
	"errors"
	"fmt"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/ir"
)

// activation is one running body: a method, the invocation of a closure
// unit, or one call to MoveNext or Dispose of a machine.
type activation struct {
	in     *Interp
	ctx    context.Context
	method *ir.Method
	unit   *ir.Unit
	locals []any

	// self is the machine frame, env the frame a closure is bound to.
	self *lowering.Frame
	env  *lowering.Frame

	// handling stacks the exceptions of the enclosing catch blocks.
	handling []*lowering.Exception
}

func (in *Interp) activation(ctx context.Context, m *ir.Method) *activation {
	return &activation{
		in:     in,
		ctx:    ctx,
		method: m,
		locals: make([]any, len(m.Bindings)+1),
	}
}

type flow uint8

const (
	next flow = iota
	breaking
	continuing
	returning
)

// outcome is how a statement completed when it did not raise.
type outcome struct {
	flow  flow
	label string
	value any
}

var done = outcome{}

// run executes a body and returns the value of its return statement.
func (a *activation) run(b *ir.Block) (any, error) {
	out, err := a.block(b)
	if err != nil {
		return nil, err
	}
	switch out.flow {
	case breaking, continuing:
		return nil, fmt.Errorf("%s: %s to unknown label %q", a.method.Name, out.flowName(), out.label)
	}
	return out.value, nil
}

func (o outcome) flowName() string {
	if o.flow == continuing {
		return "continue"
	}
	return "break"
}

func (a *activation) block(b *ir.Block) (outcome, error) {
	if b == nil {
		return done, nil
	}
	out, err := a.list(b.Stmts)
	if err == nil && out.flow == breaking && b.Label != "" && out.label == b.Label {
		out = done
	}
	return out, err
}

func (a *activation) list(stmts []ir.Stmt) (outcome, error) {
	for _, s := range stmts {
		out, err := a.stmt(s)
		if err != nil || out.flow != next {
			return out, err
		}
	}
	return done, nil
}

func (a *activation) stmt(stmt ir.Stmt) (outcome, error) {
	switch s := stmt.(type) {
	case *ir.Block:
		return a.block(s)

	case *ir.Declare:
		var v any
		if s.Init != nil {
			var err error
			if v, err = a.eval(s.Init); err != nil {
				return done, err
			}
		} else {
			v = zero(a.method.Binding(s.Binding).Type)
		}
		a.locals[s.Binding] = v

	case *ir.Assign:
		v, err := a.eval(s.Value)
		if err != nil {
			return done, err
		}
		return done, a.store(s.Target, v)

	case *ir.ExprStmt:
		_, err := a.eval(s.X)
		return done, err

	case *ir.If:
		c, err := a.cond(s.Cond)
		if err != nil {
			return done, err
		}
		if c {
			return a.block(s.Then)
		}
		return a.block(s.Else)

	case *ir.Loop:
		return a.loop(s)

	case *ir.Foreach:
		return a.foreach(s)

	case *ir.Using:
		return a.using(s)

	case *ir.Break:
		return outcome{flow: breaking, label: s.Label}, nil

	case *ir.Continue:
		return outcome{flow: continuing, label: s.Label}, nil

	case *ir.Return:
		var v any
		if s.Value != nil {
			var err error
			if v, err = a.eval(s.Value); err != nil {
				return done, err
			}
		}
		return outcome{flow: returning, value: v}, nil

	case *ir.Throw:
		if s.Value == nil {
			if len(a.handling) == 0 {
				return done, fmt.Errorf("%s: rethrow outside of a catch block", a.method.Name)
			}
			return done, a.handling[len(a.handling)-1]
		}
		v, err := a.eval(s.Value)
		if err != nil {
			return done, err
		}
		return done, lowering.Throw(v)

	case *ir.Try:
		return a.try(s)

	case *ir.BadStmt:
		return done, fmt.Errorf("%s: statement rejected with %s", a.method.Name, s.Code)

	default:
		return done, fmt.Errorf("not implemented: %T", s)
	}
	return done, nil
}

// exits reports whether out leaves the loop labeled label, and whether it
// continues it.
func exits(out outcome, label string) (leave, cont bool) {
	switch out.flow {
	case breaking:
		return out.label == "" || out.label == label, false
	case continuing:
		return false, out.label == "" || out.label == label
	}
	return false, false
}

func (a *activation) loop(s *ir.Loop) (outcome, error) {
	if out, err := a.list(s.Init); err != nil || out.flow != next {
		return out, err
	}
	for {
		if err := a.ctx.Err(); err != nil {
			return done, err
		}
		if s.Cond != nil {
			c, err := a.cond(s.Cond)
			if err != nil {
				return done, err
			}
			if !c {
				return done, nil
			}
		}
		out, err := a.block(s.Body)
		if err != nil {
			return done, err
		}
		leave, cont := exits(out, s.Label)
		if leave {
			return done, nil
		}
		if out.flow != next && !cont {
			return out, nil
		}
		if out, err := a.list(s.Post); err != nil || out.flow != next {
			return out, err
		}
	}
}

// foreach and using only appear in methods that needed no lowering.
func (a *activation) foreach(s *ir.Foreach) (_ outcome, err error) {
	src, err := a.eval(s.Source)
	if err != nil {
		return done, err
	}
	e, err := enumerate(src)
	if err != nil {
		return done, err
	}
	defer func() {
		if derr := e.Dispose(); derr != nil && err == nil {
			err = derr
		}
	}()
	for {
		if err := a.ctx.Err(); err != nil {
			return done, err
		}
		ok, err := e.MoveNext()
		if err != nil || !ok {
			return done, err
		}
		a.locals[s.Var] = e.Current()
		out, err := a.block(s.Body)
		if err != nil {
			return done, err
		}
		leave, cont := exits(out, s.Label)
		if leave {
			return done, nil
		}
		if out.flow != next && !cont {
			return out, nil
		}
	}
}

func (a *activation) using(s *ir.Using) (_ outcome, err error) {
	r, err := a.eval(s.Init)
	if err != nil {
		return done, err
	}
	a.locals[s.Var] = r
	defer func() {
		if r == nil {
			return
		}
		if _, derr := a.call(r, "Dispose", nil); derr != nil && err == nil {
			err = derr
		}
	}()
	return a.block(s.Body)
}

// try runs the body, the catch block if the body raised an exception, then
// the finally block. A finally block that raises or transfers control
// replaces the outcome of the body. Faults of the evaluator are not
// exceptions and are never caught.
func (a *activation) try(s *ir.Try) (outcome, error) {
	out, err := a.block(s.Body)

	var exc *lowering.Exception
	if err != nil && s.Catch != nil && errors.As(err, &exc) {
		if s.Catch.Var.IsValid() {
			a.locals[s.Catch.Var] = exc
		}
		a.handling = append(a.handling, exc)
		out, err = a.block(s.Catch.Body)
		a.handling = a.handling[:len(a.handling)-1]
	}

	if s.Finally != nil && (err == nil || errors.As(err, &exc)) {
		fout, ferr := a.block(s.Finally)
		if ferr != nil {
			return done, ferr
		}
		if fout.flow != next {
			return fout, nil
		}
	}
	return out, err
}

func (a *activation) cond(e ir.Expr) (bool, error) {
	v, err := a.eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, lowering.Throw(fmt.Sprintf("condition is %s, not bool", typeName(v)))
	}
	return b, nil
}

func (a *activation) store(target ir.Expr, v any) error {
	switch t := target.(type) {
	case *ir.Ref:
		a.locals[t.Binding] = v
		return nil
	case *ir.Slot:
		f, err := a.frame(t.Frame)
		if err != nil {
			return err
		}
		f.Store(t.Hops, t.Index, v)
		return nil
	}
	return fmt.Errorf("not implemented: assignment to %T", target)
}

func zero(t ir.Type) any {
	switch t {
	case ir.Int:
		return int64(0)
	case ir.Bool:
		return false
	case ir.String:
		return ""
	}
	return nil
}
