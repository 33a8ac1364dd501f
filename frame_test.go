package lowering

import "testing"

func TestFrameChain(t *testing.T) {
	outer := NewFrame("outer", 1, nil)
	inner := NewFrame("inner", 2, outer)

	inner.Store(1, 0, int64(7))
	inner.Store(0, 1, "x")

	if v := outer.Load(0, 0); v != int64(7) {
		t.Errorf("outer slot 0: got %v, want 7", v)
	}
	if v := inner.Load(1, 0); v != int64(7) {
		t.Errorf("inner hop 1 slot 0: got %v, want 7", v)
	}
	if v := inner.Load(0, 1); v != "x" {
		t.Errorf("inner slot 1: got %v, want x", v)
	}
	if d := inner.Depth(); d != 2 {
		t.Errorf("depth: got %d, want 2", d)
	}
}

func TestFrameClone(t *testing.T) {
	parent := NewFrame("parent", 1, nil)
	f := NewFrame("f", 1, parent)
	f.Slots[0] = int64(1)

	c := f.Clone()
	c.Slots[0] = int64(2)
	c.Store(1, 0, "shared")

	if f.Slots[0] != int64(1) {
		t.Error("writing a slot of the clone changed the original")
	}
	if f.Load(1, 0) != "shared" {
		t.Error("clone does not share the parent frame")
	}
}

func TestFramePanics(t *testing.T) {
	for _, test := range []struct {
		name string
		fn   func(f *Frame)
	}{
		{"slot out of range", func(f *Frame) { f.Load(0, 3) }},
		{"negative slot", func(f *Frame) { f.Store(0, -1, nil) }},
		{"chain too short", func(f *Frame) { f.Load(2, 0) }},
	} {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			test.fn(NewFrame("f", 1, nil))
		})
	}
}
