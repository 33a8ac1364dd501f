// Package lowering is the runtime targeted by lowered code: frame chains
// holding captured variables, the enumeration protocol implemented by
// iterator machines, and the task handle completed by async machines.
package lowering

import "fmt"

// Frame is a heap record holding captured or hoisted variables. Frames form
// a chain through Parent; a chain never contains a cycle because frames are
// only ever linked to frames that existed before them.
type Frame struct {
	// Name is the name of the frame type, used in diagnostics and
	// snapshots.
	Name   string
	Parent *Frame
	Slots  []any
}

// NewFrame allocates a frame with size empty slots.
func NewFrame(name string, size int, parent *Frame) *Frame {
	return &Frame{Name: name, Parent: parent, Slots: make([]any, size)}
}

// Up returns the frame reached by following hops parent links.
func (f *Frame) Up(hops int) *Frame {
	frame := f
	for i := 0; i < hops; i++ {
		if frame == nil {
			break
		}
		frame = frame.Parent
	}
	if frame == nil {
		panic(fmt.Sprintf("frame %s: chain shorter than %d hops", f.Name, hops))
	}
	return frame
}

// Load reads slot i of the frame hops links up the chain.
func (f *Frame) Load(hops, i int) any {
	return f.Up(hops).slot(i)
}

// Store writes slot i of the frame hops links up the chain.
func (f *Frame) Store(hops, i int, v any) {
	frame := f.Up(hops)
	frame.slot(i)
	frame.Slots[i] = v
}

func (f *Frame) slot(i int) any {
	if i < 0 || i >= len(f.Slots) {
		panic(fmt.Sprintf("frame %s: slot %d out of range [0,%d)", f.Name, i, len(f.Slots)))
	}
	return f.Slots[i]
}

// Clone returns a copy of the frame sharing the same parent.
func (f *Frame) Clone() *Frame {
	return &Frame{Name: f.Name, Parent: f.Parent, Slots: append([]any(nil), f.Slots...)}
}

// Depth returns the number of frames in the chain starting at f.
func (f *Frame) Depth() int {
	n := 0
	for frame := f; frame != nil; frame = frame.Parent {
		n++
	}
	return n
}
