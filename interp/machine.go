package interp

import (
	"context"
	"fmt"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/ir"
)

// machine runs the code of a resumable unit over a machine frame. The frame
// holds every value that survives a suspension, so each call to MoveNext
// starts with fresh locals.
type machine struct {
	in    *Interp
	unit  *ir.Unit
	code  *ir.MachineCode
	frame *lowering.Frame
}

func (in *Interp) machine(u *ir.Unit, frame *lowering.Frame) *machine {
	return &machine{in: in, unit: u, code: u.Machine(), frame: frame}
}

func (m *machine) exec(ctx context.Context, body *ir.Block) (v any, err error) {
	defer recoverFault(&err)
	a := m.in.activation(ctx, m.unit.Method)
	a.unit = m.unit
	a.self = m.frame
	a.env = m.frame.Parent
	return a.run(body)
}

func (m *machine) moveNext(ctx context.Context) (any, error) {
	return m.exec(ctx, m.code.MoveNext)
}

func (m *machine) state() int64 {
	s, _ := m.frame.Slots[m.code.StateSlot].(int64)
	return s
}

func (m *machine) status() lowering.Status {
	switch s := m.state(); {
	case s == ir.StateInitial:
		return lowering.NotStarted
	case s == ir.StateRunning:
		return lowering.Running
	case s == ir.StateTerminal:
		return lowering.Terminated
	default:
		return lowering.Suspended
	}
}

func (in *Interp) makeMachine(ctx context.Context, u *ir.Unit, frame *lowering.Frame) (any, error) {
	switch c := u.Code.(type) {
	case *ir.IteratorCode:
		if c.Enumerable {
			return &Enumerable{in: in, unit: u, frame: frame, ctx: ctx}, nil
		}
		return &Enumerator{machine: in.machine(u, frame), ctx: ctx}, nil

	case *ir.AsyncCode:
		// The machine runs synchronously up to its first suspension. An
		// exception raised before then is returned to the caller; after,
		// it completes the task.
		t := lowering.NewTask()
		frame.Slots[c.ValueSlot] = t
		if _, err := in.machine(u, frame).moveNext(ctx); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unit %s is not a machine", u.Name)
}

// Enumerator is the enumerator produced by an iterator unit.
type Enumerator struct {
	*machine
	ctx      context.Context
	disposed bool
}

func (e *Enumerator) MoveNext() (bool, error) {
	v, err := e.moveNext(e.ctx)
	if err != nil {
		return false, err
	}
	more, _ := v.(bool)
	return more, nil
}

func (e *Enumerator) Current() any {
	return e.frame.Slots[e.code.ValueSlot]
}

// Dispose runs the finally blocks active at the point where the enumerator
// is suspended, and terminates it. Disposing an enumerator that has not
// started or has already terminated runs no code.
func (e *Enumerator) Dispose() error {
	suspended := e.status() == lowering.Suspended
	code := e.unit.Code.(*ir.IteratorCode)
	_, err := e.exec(e.ctx, code.Dispose)
	if suspended {
		e.disposed = true
	}
	return err
}

// Status returns the lifecycle state of the enumerator.
func (e *Enumerator) Status() lowering.Status {
	if e.disposed {
		return lowering.Disposed
	}
	return e.status()
}

// Frame returns the machine frame of the enumerator.
func (e *Enumerator) Frame() *lowering.Frame { return e.frame }

// Enumerable is the enumerable produced by an iterator unit. Every
// enumeration starts from a copy of the initial machine frame.
type Enumerable struct {
	in    *Interp
	unit  *ir.Unit
	frame *lowering.Frame
	ctx   context.Context
}

func (e *Enumerable) GetEnumerator() (lowering.Enumerator, error) {
	return &Enumerator{machine: e.in.machine(e.unit, e.frame.Clone()), ctx: e.ctx}, nil
}

// continuation resumes an async machine when the task it awaits completes.
type continuation struct {
	m *machine
}

func (k *continuation) Call(ctx context.Context, _ ...any) (any, error) {
	return k.m.moveNext(ctx)
}
