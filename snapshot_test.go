package lowering

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameSnapshot(t *testing.T) {
	outer := &Frame{Name: "outer", Slots: []any{int64(-4), "x"}}
	shared := &Frame{Name: "shared", Parent: outer, Slots: []any{true}}
	root := &Frame{Name: "root", Parent: outer, Slots: []any{shared, nil, shared, int64(1 << 40)}}

	b, err := root.MarshalAppend(nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalFrame(b)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(root, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	if got.Slots[0] != got.Slots[2] {
		t.Error("aliased frames were decoded as distinct frames")
	}
	if got.Parent != got.Slots[0].(*Frame).Parent {
		t.Error("shared parent was decoded twice")
	}
}

func TestFrameSnapshotErrors(t *testing.T) {
	f := &Frame{Name: "f", Slots: []any{func() {}}}
	if _, err := f.MarshalAppend(nil); !errors.Is(err, ErrUnserializable) {
		t.Errorf("got %v, want ErrUnserializable", err)
	}

	for _, test := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte{0x0a, 0x05, 0x0a}},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := UnmarshalFrame(test.data); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
