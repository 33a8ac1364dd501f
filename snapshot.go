package lowering

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Snapshots serialize a frame together with every frame reachable from it
// through parent links or slot values. Shared frames are encoded once so
// that aliasing between closures survives a round trip.
//
// The encoding is a protobuf message:
//
//	message Snapshot { repeated FrameRecord frames = 1; }
//	message FrameRecord {
//	  string name = 1;
//	  uint32 parent = 2;        // index+1 into frames, 0 for none
//	  repeated Value slots = 3;
//	}
//	message Value {
//	  oneof kind {
//	    bool   null  = 1;
//	    sint64 int   = 2;
//	    bool   bool  = 3;
//	    string str   = 4;
//	    uint32 frame = 5;       // index+1 into frames
//	  }
//	}
//
// The root frame is always the first record.

const (
	snapshotFrames = 1

	frameName   = 1
	frameParent = 2
	frameSlots  = 3

	valueNull  = 1
	valueInt   = 2
	valueBool  = 3
	valueStr   = 4
	valueFrame = 5
)

// ErrUnserializable is wrapped by errors for slot values that have no
// snapshot representation.
var ErrUnserializable = errors.New("value cannot be snapshotted")

// MarshalAppend appends the snapshot of f to b.
func (f *Frame) MarshalAppend(b []byte) ([]byte, error) {
	index := map[*Frame]int{}
	var order []*Frame
	var visit func(*Frame) error
	visit = func(frame *Frame) error {
		if frame == nil {
			return nil
		}
		if _, ok := index[frame]; ok {
			return nil
		}
		index[frame] = len(order)
		order = append(order, frame)
		if err := visit(frame.Parent); err != nil {
			return err
		}
		for i, v := range frame.Slots {
			switch v := v.(type) {
			case nil, int64, bool, string:
			case *Frame:
				if err := visit(v); err != nil {
					return err
				}
			default:
				return fmt.Errorf("frame %s slot %d: %T: %w", frame.Name, i, v, ErrUnserializable)
			}
		}
		return nil
	}
	if err := visit(f); err != nil {
		return b, err
	}

	for _, frame := range order {
		var rec []byte
		rec = protowire.AppendTag(rec, frameName, protowire.BytesType)
		rec = protowire.AppendString(rec, frame.Name)
		if frame.Parent != nil {
			rec = protowire.AppendTag(rec, frameParent, protowire.VarintType)
			rec = protowire.AppendVarint(rec, uint64(index[frame.Parent]+1))
		}
		for _, v := range frame.Slots {
			var val []byte
			switch v := v.(type) {
			case nil:
				val = protowire.AppendTag(val, valueNull, protowire.VarintType)
				val = protowire.AppendVarint(val, protowire.EncodeBool(true))
			case int64:
				val = protowire.AppendTag(val, valueInt, protowire.VarintType)
				val = protowire.AppendVarint(val, protowire.EncodeZigZag(v))
			case bool:
				val = protowire.AppendTag(val, valueBool, protowire.VarintType)
				val = protowire.AppendVarint(val, protowire.EncodeBool(v))
			case string:
				val = protowire.AppendTag(val, valueStr, protowire.BytesType)
				val = protowire.AppendString(val, v)
			case *Frame:
				val = protowire.AppendTag(val, valueFrame, protowire.VarintType)
				val = protowire.AppendVarint(val, uint64(index[v]+1))
			}
			rec = protowire.AppendTag(rec, frameSlots, protowire.BytesType)
			rec = protowire.AppendBytes(rec, val)
		}
		b = protowire.AppendTag(b, snapshotFrames, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	return b, nil
}

// UnmarshalFrame decodes a snapshot produced by MarshalAppend and returns
// its root frame.
func UnmarshalFrame(b []byte) (*Frame, error) {
	type pending struct {
		frame  *Frame
		parent uint64
		refs   map[int]uint64
	}
	var records []*pending

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num != snapshotFrames || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		rec, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		p := &pending{frame: &Frame{}, refs: map[int]uint64{}}
		if err := unmarshalRecord(rec, p.frame, &p.parent, p.refs); err != nil {
			return nil, fmt.Errorf("frame record %d: %w", len(records), err)
		}
		records = append(records, p)
	}
	if len(records) == 0 {
		return nil, errors.New("empty frame snapshot")
	}

	resolve := func(ref uint64) (*Frame, error) {
		if ref == 0 || ref > uint64(len(records)) {
			return nil, fmt.Errorf("invalid frame reference %d", ref)
		}
		return records[ref-1].frame, nil
	}
	for _, p := range records {
		if p.parent != 0 {
			parent, err := resolve(p.parent)
			if err != nil {
				return nil, err
			}
			p.frame.Parent = parent
		}
		for slot, ref := range p.refs {
			frame, err := resolve(ref)
			if err != nil {
				return nil, err
			}
			p.frame.Slots[slot] = frame
		}
	}
	return records[0].frame, nil
}

func unmarshalRecord(b []byte, f *Frame, parent *uint64, refs map[int]uint64) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == frameName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Name, b = s, b[n:]
		case num == frameParent && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			*parent, b = v, b[n:]
		case num == frameSlots && typ == protowire.BytesType:
			val, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			v, ref, err := unmarshalValue(val)
			if err != nil {
				return err
			}
			if ref != 0 {
				refs[len(f.Slots)] = ref
			}
			f.Slots = append(f.Slots, v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func unmarshalValue(b []byte) (v any, ref uint64, err error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	b = b[n:]
	switch {
	case typ == protowire.VarintType:
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		switch num {
		case valueNull:
			return nil, 0, nil
		case valueInt:
			return protowire.DecodeZigZag(x), 0, nil
		case valueBool:
			return protowire.DecodeBool(x), 0, nil
		case valueFrame:
			return nil, x, nil
		}
	case num == valueStr && typ == protowire.BytesType:
		s, n := protowire.ConsumeString(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return s, 0, nil
	}
	return nil, 0, fmt.Errorf("unexpected slot value field %d (wire type %d)", num, typ)
}
