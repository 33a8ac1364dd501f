package compiler

import (
	"fmt"
	"sort"

	"github.com/stealthrocket/lowering/ir"
)

// FrameID identifies a frame of a FramePlan. The zero value means none.
type FrameID uint32

// Frame is a heap record planned for one activation scope. Scopes that
// are never re-entered independently of their nearest framed ancestor are
// merged into it and share its frame.
type Frame struct {
	ID     FrameID
	Scope  ir.ScopeID
	Merged []ir.ScopeID
	Unit   *UnitInfo
	Parent FrameID

	// Machine frames are the frames of resumable bodies. They are
	// addressed as Self in the machine code.
	Machine bool
	// PerIteration frames are allocated on every iteration of a loop.
	PerIteration bool

	// Ref is the temporary that holds the frame in the code of its unit.
	// It is invalid for machine frames.
	Ref ir.BindingID

	Slots []ir.FrameSlot
	Type  *ir.FrameType
}

func (f *Frame) slot(b ir.BindingID) int {
	for i, s := range f.Slots {
		if s.Binding == b {
			return i
		}
	}
	return -1
}

// FramePlan is the arena of frames of one method.
type FramePlan struct {
	Frames []*Frame

	m        *ir.Method
	caps     *Captures
	machines map[ir.ScopeID]*machine
	byScope  map[ir.ScopeID]FrameID
	byBind   map[ir.BindingID]FrameID
}

// Frame returns the frame with the given id, or nil for zero.
func (p *FramePlan) Frame(id FrameID) *Frame {
	if id == 0 {
		return nil
	}
	return p.Frames[id-1]
}

// Allocated returns the frame allocated on entry to scope, or nil when the
// scope has no frame of its own.
func (p *FramePlan) Allocated(scope ir.ScopeID) *Frame {
	f := p.Frame(p.byScope[scope])
	if f == nil || f.Scope != scope {
		return nil
	}
	return f
}

// Holder returns the frame holding b, or nil when b stays a local.
func (p *FramePlan) Holder(b ir.BindingID) *Frame {
	return p.Frame(p.byBind[b])
}

// Env returns the frame a unit is bound to, or nil.
func (p *FramePlan) Env(u *UnitInfo) *Frame {
	return p.Frame(p.above(u.Root))
}

// Types returns the frame types of the plan.
func (p *FramePlan) Types() []*ir.FrameType {
	types := make([]*ir.FrameType, len(p.Frames))
	for i, f := range p.Frames {
		types[i] = f.Type
	}
	return types
}

// PlanFrames decides which scopes of m get a frame and which frame holds
// every captured or hoisted binding.
func PlanFrames(m *ir.Method, caps *Captures, machines map[ir.ScopeID]*machine) (*FramePlan, error) {
	p := &FramePlan{
		m:        m,
		caps:     caps,
		machines: machines,
		byScope:  map[ir.ScopeID]FrameID{},
		byBind:   map[ir.BindingID]FrameID{},
	}

	for _, u := range caps.Units {
		if machines[u.Root] != nil {
			p.resolve(u.Root)
		}
	}
	var scopes []int
	for _, s := range caps.RequiresFrame.AppendTo(scopes) {
		p.resolve(ir.ScopeID(s))
	}

	// Machine fields come first in their frame.
	for _, u := range caps.Units {
		mc := machines[u.Root]
		if mc == nil {
			continue
		}
		f := p.Frame(p.byScope[u.Root])
		for _, b := range []ir.BindingID{mc.state, mc.value, mc.started, mc.awaiter} {
			if b.IsValid() {
				p.add(f, b)
			}
		}
	}

	var bindings []int
	for _, u := range caps.Units {
		if mc := machines[u.Root]; mc != nil {
			bindings = mc.hoisted.AppendTo(bindings)
		}
	}
	bindings = caps.Captured.AppendTo(bindings)
	sort.Ints(bindings)
	for _, id := range bindings {
		b := ir.BindingID(id)
		if _, done := p.byBind[b]; done {
			continue
		}
		binding := m.Binding(b)
		if caps.IsCaptured(b) {
			p.add(p.Frame(p.byScope[binding.Scope]), b)
			continue
		}
		p.add(p.Frame(p.byScope[caps.UnitOf(binding.Scope).Root]), b)
	}

	for _, f := range p.Frames {
		if f.Machine {
			continue
		}
		f.Ref = m.NewBinding(fmt.Sprintf("~f%d", f.ID), ir.TempBinding, f.Scope, ir.FrameRef)
		if mc := machines[f.Unit.Root]; mc != nil && mc.scopes.Has(int(f.Scope)) {
			p.add(p.Frame(p.byScope[f.Unit.Root]), f.Ref)
		}
	}

	for _, f := range p.Frames {
		name := fmt.Sprintf("%s.frame%d", m.Name, f.ID)
		if f.Machine {
			name = fmt.Sprintf("%s.machine%d", m.Name, f.ID)
		}
		f.Type = &ir.FrameType{
			Name:         name,
			Slots:        f.Slots,
			Machine:      f.Machine,
			PerIteration: f.PerIteration,
		}
	}
	for _, f := range p.Frames {
		if parent := p.Frame(f.Parent); parent != nil {
			f.Type.Parent = parent.Type
		}
	}

	if err := p.verify(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FramePlan) add(f *Frame, b ir.BindingID) {
	binding := p.m.Binding(b)
	ownership := ir.ByValue
	if binding.ByRef || binding.Kind == ir.ThisBinding {
		ownership = ir.ByReference
	}
	f.Slots = append(f.Slots, ir.FrameSlot{Name: binding.Name, Binding: b, Ownership: ownership})
	p.byBind[b] = f.ID
}

func (p *FramePlan) framed(s ir.ScopeID) bool {
	return p.caps.RequiresFrame.Has(int(s)) || p.machines[s] != nil
}

// reentered reports whether a scope is entered more than once per
// activation of its unit while its bindings must stay distinct.
func (p *FramePlan) reentered(s ir.ScopeID) bool {
	switch p.m.LookupScope(s).Kind {
	case ir.LoopBodyScope:
		return true
	case ir.LoopHeaderScope:
		return p.caps.PerIteration.Has(int(s))
	}
	return false
}

func (p *FramePlan) resolve(s ir.ScopeID) FrameID {
	if id, ok := p.byScope[s]; ok {
		return id
	}
	if p.machines[s] == nil {
		if target := p.mergeTarget(s); target.IsValid() {
			id := p.resolve(target)
			p.byScope[s] = id
			f := p.Frame(id)
			f.Merged = append(f.Merged, s)
			return id
		}
	}
	f := &Frame{
		ID:           FrameID(len(p.Frames) + 1),
		Scope:        s,
		Unit:         p.caps.UnitOf(s),
		Machine:      p.machines[s] != nil,
		PerIteration: p.reentered(s),
	}
	p.Frames = append(p.Frames, f)
	p.byScope[s] = f.ID
	f.Parent = p.above(s)
	return f.ID
}

// mergeTarget returns the nearest framed ancestor of s that s can share a
// frame with: one in the same unit, with no re-entered scope in between.
func (p *FramePlan) mergeTarget(s ir.ScopeID) ir.ScopeID {
	for cur := s; ; {
		if p.reentered(cur) || p.caps.Unit(cur) != nil {
			return 0
		}
		cur = p.m.LookupScope(cur).Parent
		if !cur.IsValid() {
			return 0
		}
		if p.framed(cur) {
			return cur
		}
	}
}

// above returns the frame of the nearest framed proper ancestor of s. The
// search stops at the boundary of a unit that captures nothing.
func (p *FramePlan) above(s ir.ScopeID) FrameID {
	for cur := s; ; {
		if u := p.caps.Unit(cur); u != nil && !u.HasCaptures() {
			return 0
		}
		cur = p.m.LookupScope(cur).Parent
		if !cur.IsValid() {
			return 0
		}
		if p.framed(cur) {
			return p.resolve(cur)
		}
	}
}

// hops returns the number of parent links from frame from to frame to.
func (p *FramePlan) hops(from, to *Frame) (int, bool) {
	n := 0
	for f := from; f != nil; f = p.Frame(f.Parent) {
		if f == to {
			return n, true
		}
		n++
	}
	return 0, false
}

func (p *FramePlan) verify() error {
	for _, f := range p.Frames {
		n := 0
		for g := f; g != nil; g = p.Frame(g.Parent) {
			if n++; n > len(p.Frames) {
				return internalf(p.m.Name, "frame chain of %s contains a cycle", f.Type.Name)
			}
		}
	}

	var ids []int
	for _, id := range p.caps.Captured.AppendTo(ids) {
		b := ir.BindingID(id)
		if p.Holder(b) == nil {
			return internalf(p.m.Name, "captured binding %s has no frame slot", p.m.Binding(b))
		}
	}
	for _, mc := range p.machines {
		for i, point := range mc.points {
			ids = point.live.AppendTo(ids[:0])
			for _, id := range ids {
				if p.Holder(ir.BindingID(id)) == nil {
					return internalf(p.m.Name, "binding %s live at state %d has no frame slot", p.m.Binding(ir.BindingID(id)), i+1)
				}
			}
		}
	}

	for s, id := range p.byScope {
		if p.reentered(s) && p.Frame(id).Scope != s {
			return internalf(p.m.Name, "per-iteration scope %d merged into frame %s", s, p.Frame(id).Type.Name)
		}
	}
	for _, u := range p.caps.Units {
		if u.HasCaptures() && p.Env(u) == nil {
			return internalf(p.m.Name, "unit at scope %d captures bindings but has no environment", u.Root)
		}
	}
	return nil
}
