package interp

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/ir"
)

// A machine snapshot is the protobuf message
//
//	message MachineSnapshot {
//	  string unit  = 1;
//	  bytes  frame = 2; // lowering frame snapshot
//	}
//
// Restoring it requires a program with a unit of the same name.
const (
	snapshotUnit  = 1
	snapshotFrame = 2
)

// Snapshot encodes the state of a suspended enumerator. The enumerator
// cannot be snapshotted while it runs, and neither can the values held in
// its frames that have no snapshot representation (closures, tasks,
// enumerators).
func (e *Enumerator) Snapshot() ([]byte, error) {
	if e.status() == lowering.Running {
		return nil, fmt.Errorf("snapshot of %s: enumerator is running", e.unit.Name)
	}
	var b []byte
	b = protowire.AppendTag(b, snapshotUnit, protowire.BytesType)
	b = protowire.AppendString(b, e.unit.Name)
	frame, err := e.frame.MarshalAppend(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w", e.unit.Name, err)
	}
	b = protowire.AppendTag(b, snapshotFrame, protowire.BytesType)
	b = protowire.AppendBytes(b, frame)
	return b, nil
}

// Restore decodes a snapshot produced by (*Enumerator).Snapshot into an
// enumerator that resumes where the original was suspended.
func (in *Interp) Restore(ctx context.Context, b []byte) (*Enumerator, error) {
	var name string
	var frame *lowering.Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == snapshotUnit && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			name, b = s, b[n:]
		case num == snapshotFrame && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			f, err := lowering.UnmarshalFrame(v)
			if err != nil {
				return nil, fmt.Errorf("restoring machine frame: %w", err)
			}
			frame = f
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if frame == nil {
		return nil, errors.New("machine snapshot has no frame")
	}

	u := in.units[name]
	if u == nil {
		return nil, fmt.Errorf("machine snapshot of unknown unit %q", name)
	}
	code, ok := u.Code.(*ir.IteratorCode)
	if !ok {
		return nil, fmt.Errorf("machine snapshot of %s: not an iterator", name)
	}
	if frame.Name != code.Frame.Name || len(frame.Slots) != len(code.Frame.Slots) {
		return nil, fmt.Errorf("machine snapshot of %s: frame %s does not match %s", name, frame.Name, code.Frame.Name)
	}
	return &Enumerator{machine: in.machine(u, frame), ctx: ctx}, nil
}
