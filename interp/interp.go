// Package interp evaluates lowered programs.
//
// The evaluator only understands the forms that lowering produces: a
// program that still contains lambdas, awaits or yields is rejected by New.
// Closure units become Callable values, iterator units become
// lowering.Enumerator values and async units become *lowering.Task values
// completed by continuations scheduled on a lowering.Loop.
package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/ir"
)

// ErrStalled is returned when awaiting a task that no scheduled work can
// complete.
var ErrStalled = errors.New("task can never complete: scheduler has no work left")

// Interp runs the methods of a lowered program.
type Interp struct {
	prog  *ir.Program
	units map[string]*ir.Unit
	loop  *lowering.Loop
	out   io.Writer
	log   commonlog.Logger

	mu     sync.Mutex
	cached map[*ir.Unit]*Closure
	fault  error
}

// Option configures an Interp.
type Option func(*Interp)

// WithOutput sets the writer receiving the output of the print builtin.
func WithOutput(w io.Writer) Option {
	return func(in *Interp) { in.out = w }
}

// WithLoop sets the scheduler completing delays and running continuations.
func WithLoop(loop *lowering.Loop) Option {
	return func(in *Interp) { in.loop = loop }
}

func WithLogger(logger commonlog.Logger) Option {
	return func(in *Interp) {
		if logger != nil {
			in.log = logger
		}
	}
}

// New prepares prog for evaluation.
func New(prog *ir.Program, opts ...Option) (*Interp, error) {
	in := &Interp{
		prog:   prog,
		units:  map[string]*ir.Unit{},
		loop:   new(lowering.Loop),
		out:    os.Stdout,
		log:    commonlog.GetLogger("lowering.interp"),
		cached: map[*ir.Unit]*Closure{},
	}
	for _, opt := range opts {
		opt(in)
	}
	for _, m := range prog.Methods {
		if err := checkLowered(m); err != nil {
			return nil, err
		}
		for _, u := range m.Units {
			in.units[u.Name] = u
		}
	}
	return in, nil
}

func checkLowered(m *ir.Method) error {
	var found ir.Node
	check := func(b *ir.Block) {
		if b == nil || found != nil {
			return
		}
		ir.Inspect(b, func(n ir.Node) bool {
			if found == nil && ir.IsSpecial(n) {
				found = n
			}
			return found == nil
		})
	}
	check(m.Body)
	for _, u := range m.Units {
		switch c := u.Code.(type) {
		case *ir.ClosureCode:
			check(c.Invoke)
		case *ir.IteratorCode:
			check(c.MoveNext)
			check(c.Dispose)
		case *ir.AsyncCode:
			check(c.MoveNext)
		}
	}
	if found != nil {
		return fmt.Errorf("method %s is not lowered: found %T", m.Name, found)
	}
	return nil
}

// Loop returns the scheduler of the interpreter.
func (in *Interp) Loop() *lowering.Loop { return in.loop }

// Call invokes the method name of the program and returns its result. An
// exception escaping the method is returned as a *lowering.Exception.
func (in *Interp) Call(ctx context.Context, name string, this any, args ...any) (v any, err error) {
	m := in.prog.Method(name)
	if m == nil {
		return nil, fmt.Errorf("method %q not found", name)
	}
	defer recoverFault(&err)
	in.log.Debugf("call %s", name)
	return in.invoke(ctx, m, this, args)
}

func (in *Interp) invoke(ctx context.Context, m *ir.Method, this any, args []any) (any, error) {
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("method %s takes %d arguments, got %d", m.Name, len(m.Params), len(args))
	}
	a := in.activation(ctx, m)
	for i, p := range m.Params {
		a.locals[p] = args[i]
	}
	if m.This.IsValid() {
		a.locals[m.This] = this
	}
	return a.run(m.Body)
}

// Run calls the method name and waits for its outcome: tasks are awaited by
// driving the scheduler, enumerators and enumerables are collected.
func (in *Interp) Run(ctx context.Context, name string, args ...any) (any, error) {
	v, err := in.Call(ctx, name, nil, args...)
	if err != nil {
		return nil, err
	}
	return in.Resolve(ctx, v)
}

// Resolve waits for v when it is a task and collects it when it is an
// enumeration. Other values are returned unchanged.
func (in *Interp) Resolve(ctx context.Context, v any) (any, error) {
	switch v := v.(type) {
	case *lowering.Task:
		return in.Await(ctx, v)
	case lowering.Enumerable:
		e, err := v.GetEnumerator()
		if err != nil {
			return nil, err
		}
		return lowering.Collect(e)
	case lowering.Enumerator:
		return lowering.Collect(v)
	}
	return v, nil
}

// Await steps the scheduler until t completes and returns its outcome.
func (in *Interp) Await(ctx context.Context, t *lowering.Task) (any, error) {
	for !t.IsCompleted() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := in.Fault(); err != nil {
			return nil, err
		}
		if !in.loop.Step() {
			return nil, ErrStalled
		}
	}
	if err := in.Fault(); err != nil {
		return nil, err
	}
	return t.GetResult()
}

// Fault returns the first error that escaped a continuation. Such errors
// are faults of the evaluator or of the lowered code, never exceptions of
// the program, which complete the task of their machine.
func (in *Interp) Fault() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.fault
}

func (in *Interp) fail(err error) {
	in.log.Errorf("%s", err)
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.fault == nil {
		in.fault = err
	}
}

// recoverFault turns a panic of the frame runtime into an error.
func recoverFault(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("fault: %v", v)
	}
}
