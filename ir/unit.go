package ir

import "fmt"

// UnitKind is the tag of a Unit's code variant.
type UnitKind uint8

const (
	ClosureUnit UnitKind = iota
	IteratorUnit
	AsyncUnit
)

func (k UnitKind) String() string {
	switch k {
	case ClosureUnit:
		return "closure"
	case IteratorUnit:
		return "iterator"
	case AsyncUnit:
		return "async"
	default:
		return fmt.Sprintf("UnitKind(%d)", k)
	}
}

// Unit is an anonymous function or resumable body after lowering: an
// ordinary named type with ordinary method bodies.
type Unit struct {
	Name string

	// Method owns the bindings referenced by the unit's code.
	Method *Method

	// Env is the type of the frame a closure unit is bound to, or the
	// parent type of a machine frame. Nil when the unit reaches no frame.
	Env *FrameType

	CapturesThis bool
	Captures     []BindingID

	Code UnitCode
}

// Kind returns the variant tag of the unit.
func (u *Unit) Kind() UnitKind { return u.Code.Kind() }

// UnitCode is implemented by *ClosureCode, *IteratorCode and *AsyncCode.
type UnitCode interface {
	Kind() UnitKind
}

// ClosureCode is the entry point of a callable unit.
type ClosureCode struct {
	Params []BindingID
	Invoke *Block
}

// Drive selects how a machine is resumed.
type Drive uint8

const (
	// Pull machines are resumed by their consumer calling MoveNext.
	Pull Drive = iota
	// Push machines are resumed by continuations registered on awaited
	// values.
	Push
)

// Output selects what a machine produces.
type Output uint8

const (
	Sequence Output = iota
	Single
)

// MachineCode is the part of a resumable unit shared by iterators and async
// bodies.
type MachineCode struct {
	Drive  Drive
	Output Output

	// Frame is the machine frame type. Its slots hold the hoisted
	// bindings and the machine fields.
	Frame *FrameType

	StateSlot int
	// ValueSlot holds the current element (iterators) or the result
	// handle (async bodies).
	ValueSlot int

	MoveNext    *Block
	Suspensions []SuspensionPoint
	Regions     []Region
}

// Machine returns the shared part of a resumable unit, or nil for closures.
func (u *Unit) Machine() *MachineCode {
	switch c := u.Code.(type) {
	case *IteratorCode:
		return &c.MachineCode
	case *AsyncCode:
		return &c.MachineCode
	}
	return nil
}

// IteratorCode implements the pull-based enumeration protocol.
type IteratorCode struct {
	MachineCode
	Dispose *Block

	// Enumerable is set when the body produces a factory that copies the
	// initial machine frame for every enumeration.
	Enumerable bool
}

// AsyncCode implements the push-driven single result protocol.
type AsyncCode struct {
	MachineCode

	// StartedSlot records whether the machine has suspended at least once.
	StartedSlot int
}

func (*ClosureCode) Kind() UnitKind  { return ClosureUnit }
func (*IteratorCode) Kind() UnitKind { return IteratorUnit }
func (*AsyncCode) Kind() UnitKind    { return AsyncUnit }

// Machine states outside the range of suspension ids.
const (
	StateInitial  = 0
	StateTerminal = -1
	StateRunning  = -2
)

// SuspensionPoint is a place where a machine body can pause.
type SuspensionPoint struct {
	State int
	Live  []BindingID

	// Regions lists the finally regions active at the point, innermost
	// first.
	Regions []RegionID
}

type RegionID uint32

// Region is a try statement with a finally block that encloses at least one
// suspension point.
type Region struct {
	ID     RegionID
	Parent RegionID
}

// Ownership is how a frame slot holds its binding.
type Ownership uint8

const (
	ByValue Ownership = iota
	ByReference
)

// FrameType is a synthesized record type holding captured or hoisted
// bindings.
type FrameType struct {
	Name   string
	Parent *FrameType
	Slots  []FrameSlot

	Machine      bool
	PerIteration bool
}

type FrameSlot struct {
	Name      string
	Binding   BindingID
	Ownership Ownership
}

// SlotOf returns the index of the slot holding b, or -1.
func (t *FrameType) SlotOf(b BindingID) int {
	for i, s := range t.Slots {
		if s.Binding == b {
			return i
		}
	}
	return -1
}
