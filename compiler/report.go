package compiler

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/stealthrocket/lowering/ir"
)

// Report summarizes what lowering produced for each method.
type Report struct {
	Methods     []MethodReport `cbor:"methods"`
	Diagnostics []Diagnostic   `cbor:"diagnostics,omitempty"`
}

type MethodReport struct {
	Name    string        `cbor:"name"`
	Mode    string        `cbor:"mode"`
	Lowered bool          `cbor:"lowered"`
	Units   []UnitReport  `cbor:"units,omitempty"`
	Frames  []FrameReport `cbor:"frames,omitempty"`
}

type UnitReport struct {
	Name         string   `cbor:"name"`
	Kind         string   `cbor:"kind"`
	Env          string   `cbor:"env,omitempty"`
	Captures     []string `cbor:"captures,omitempty"`
	CapturesThis bool     `cbor:"captures_this,omitempty"`
	Cached       bool     `cbor:"cached,omitempty"`
	States       int      `cbor:"states,omitempty"`
	Regions      int      `cbor:"regions,omitempty"`
	Enumerable   bool     `cbor:"enumerable,omitempty"`
}

type FrameReport struct {
	Name         string   `cbor:"name"`
	Parent       string   `cbor:"parent,omitempty"`
	Slots        []string `cbor:"slots"`
	Machine      bool     `cbor:"machine,omitempty"`
	PerIteration bool     `cbor:"per_iteration,omitempty"`
}

// Report returns the summary of the result.
func (r *Result) Report() *Report {
	rep := &Report{Diagnostics: r.Diagnostics}
	for _, m := range r.Program.Methods {
		rep.Methods = append(rep.Methods, methodReport(m))
	}
	return rep
}

func methodReport(m *ir.Method) MethodReport {
	mr := MethodReport{Name: m.Name, Mode: m.Mode.String(), Lowered: m.Lowered}
	cached := cachedUnits(m)
	for _, u := range m.Units {
		ur := UnitReport{
			Name:         u.Name,
			Kind:         u.Kind().String(),
			CapturesThis: u.CapturesThis,
			Cached:       cached[u],
		}
		if u.Env != nil {
			ur.Env = u.Env.Name
		}
		for _, b := range u.Captures {
			ur.Captures = append(ur.Captures, m.Binding(b).Name)
		}
		if mc := u.Machine(); mc != nil {
			ur.States = len(mc.Suspensions)
			ur.Regions = len(mc.Regions)
		}
		if c, ok := u.Code.(*ir.IteratorCode); ok {
			ur.Enumerable = c.Enumerable
		}
		mr.Units = append(mr.Units, ur)
	}
	for _, t := range m.Frames {
		fr := FrameReport{
			Name:         t.Name,
			Slots:        make([]string, len(t.Slots)),
			Machine:      t.Machine,
			PerIteration: t.PerIteration,
		}
		if t.Parent != nil {
			fr.Parent = t.Parent.Name
		}
		for i, s := range t.Slots {
			fr.Slots[i] = s.Name
			if s.Ownership == ir.ByReference {
				fr.Slots[i] = "&" + s.Name
			}
		}
		mr.Frames = append(mr.Frames, fr)
	}
	return mr
}

func cachedUnits(m *ir.Method) map[*ir.Unit]bool {
	cached := map[*ir.Unit]bool{}
	visit := func(n ir.Node) bool {
		if c, ok := n.(*ir.MakeClosure); ok && c.Cached {
			cached[c.Unit] = true
		}
		return true
	}
	ir.Inspect(m.Body, visit)
	for _, u := range m.Units {
		switch c := u.Code.(type) {
		case *ir.ClosureCode:
			ir.Inspect(c.Invoke, visit)
		case *ir.IteratorCode:
			ir.Inspect(c.MoveNext, visit)
			ir.Inspect(c.Dispose, visit)
		case *ir.AsyncCode:
			ir.Inspect(c.MoveNext, visit)
		}
	}
	return cached
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// MarshalCBOR encodes the report in canonical CBOR.
func (r *Report) MarshalCBOR() ([]byte, error) {
	type report Report
	b, err := encMode.Marshal((*report)(r))
	if err != nil {
		return nil, fmt.Errorf("encoding lowering report: %w", err)
	}
	return b, nil
}

// UnmarshalReport decodes a report encoded with MarshalCBOR.
func UnmarshalReport(b []byte) (*Report, error) {
	r := new(Report)
	type report Report
	if err := cbor.Unmarshal(b, (*report)(r)); err != nil {
		return nil, fmt.Errorf("decoding lowering report: %w", err)
	}
	return r, nil
}
