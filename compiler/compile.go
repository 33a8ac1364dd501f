package compiler

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/stealthrocket/lowering/ir"
)

// Result is the outcome of lowering a program.
type Result struct {
	// Program holds the lowered methods, in the order of the input. Methods
	// that needed no lowering are the input methods themselves.
	Program *ir.Program

	// Diagnostics lists the user-facing errors of all methods, grouped by
	// method in program order.
	Diagnostics []Diagnostic
}

// Compile lowers the anonymous functions, iterator bodies and async bodies
// of every method of prog into units.
//
// Methods are lowered independently and concurrently. Diagnostics do not
// stop compilation: the offending nodes are replaced with placeholders and
// reported in the result. An internal fault in any method aborts the call
// with an *InternalError.
//
// The input program is not modified.
func Compile(ctx context.Context, prog *ir.Program, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger

	log.Infof("lowering %d methods with %d workers", len(prog.Methods), o.workers)

	type lowered struct {
		method *ir.Method
		diags  []Diagnostic
	}
	results := make([]lowered, len(prog.Methods))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)
	for i, m := range prog.Methods {
		i, m := i, m
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			method, diags, err := lowerMethod(m, o)
			if err != nil {
				return err
			}
			log.Debugf("%s: %d units, %d frames, %d diagnostics", m.Name, len(method.Units), len(method.Frames), len(diags))
			results[i] = lowered{method, diags}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		var internal *InternalError
		if errors.As(err, &internal) {
			log.Errorf("%s", internal)
		}
		return nil, err
	}

	res := &Result{Program: &ir.Program{Methods: make([]*ir.Method, len(results))}}
	for i, r := range results {
		res.Program.Methods[i] = r.method
		res.Diagnostics = append(res.Diagnostics, r.diags...)
	}
	for _, d := range res.Diagnostics {
		log.Warningf("%s", d)
	}
	log.Infof("done: %d units, %d diagnostics", len(res.Program.Units()), len(res.Diagnostics))
	return res, nil
}

// Method lowers a single method with the given options.
func Method(m *ir.Method, opts ...Option) (*ir.Method, []Diagnostic, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return lowerMethod(m, o)
}

func lowerMethod(m *ir.Method, o *options) (_ *ir.Method, _ []Diagnostic, err error) {
	if m.Lowered || !hasUnits(m) {
		return m, nil, nil
	}
	defer func() {
		// The frame runtime and the tree accessors panic on out of range
		// ids; surface them as faults of the method being lowered.
		if v := recover(); v != nil {
			err = internalf(m.Name, "%v", v)
		}
	}()

	m = ir.CloneMethod(m)
	diags := &diagnostics{method: m.Name}
	unsupported(m, diags)
	desugar(m, o.perIteration)

	caps := AnalyzeCaptures(m, o.perIteration)
	if caps.rejectRefCaptures(diags) {
		caps = AnalyzeCaptures(m, o.perIteration)
	}

	machines := map[ir.ScopeID]*machine{}
	for _, u := range caps.Units {
		if !u.Resumable() {
			continue
		}
		body := m.Body
		if u.Lambda != nil {
			body = u.Lambda.Body
		}
		machines[u.Root] = analyzeMachine(m, caps, u, body)
	}

	plan, err := PlanFrames(m, caps, machines)
	if err != nil {
		return nil, nil, err
	}

	r := &rewriter{
		m:        m,
		caps:     caps,
		plan:     plan,
		machines: machines,
		opts:     o,
		count:    map[string]int{},
	}
	root := caps.Units[0]
	if root.Resumable() {
		unit := r.machineUnit(root, m.Body)
		m.Body = r.kickoff(root, unit, m.Params)
	} else {
		params := append([]ir.BindingID(nil), m.Params...)
		if m.This.IsValid() {
			params = append(params, m.This)
		}
		m.Body = r.block(&activation{unit: root}, m.Body, params...)
	}
	if r.err != nil {
		return nil, nil, r.err
	}

	m.Units = r.units
	m.Frames = plan.Types()
	m.Lowered = true
	return m, diags.list, nil
}

// Errors returns the diagnostics of the result as a single error, or nil.
func (r *Result) Errors() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	errs := make([]error, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		errs[i] = errors.New(d.String())
	}
	return errors.Join(errs...)
}
