package ir

import "fmt"

// BindingID identifies a Binding within its Method. The zero value is not a
// valid id.
type BindingID uint32

// IsValid reports whether id refers to a binding.
func (id BindingID) IsValid() bool { return id != 0 }

// ScopeID identifies a Scope within its Method. The zero value is not a
// valid id.
type ScopeID uint32

// IsValid reports whether id refers to a scope.
func (id ScopeID) IsValid() bool { return id != 0 }

// BindingKind classifies a named storage location.
type BindingKind uint8

const (
	LocalBinding BindingKind = iota
	ParamBinding
	ThisBinding
	// TempBinding is a compiler generated local.
	TempBinding
	// FieldBinding is a synthesized state machine field (program counter,
	// current value, result handle).
	FieldBinding
)

func (k BindingKind) String() string {
	switch k {
	case LocalBinding:
		return "local"
	case ParamBinding:
		return "param"
	case ThisBinding:
		return "this"
	case TempBinding:
		return "temp"
	case FieldBinding:
		return "field"
	default:
		return fmt.Sprintf("BindingKind(%d)", k)
	}
}

// Binding is a named storage location after name resolution.
type Binding struct {
	ID    BindingID
	Name  string
	Kind  BindingKind
	Scope ScopeID
	Type  Type

	// ByRef marks bindings that alias storage owned by a caller. Such
	// bindings cannot outlive the current call frame.
	ByRef bool

	// Readonly marks bindings that are never written after initialization.
	Readonly bool
}

func (b *Binding) String() string {
	return fmt.Sprintf("%s#%d", b.Name, b.ID)
}

// ScopeKind describes the construct that introduced a scope.
type ScopeKind uint8

const (
	BlockScope ScopeKind = iota
	MethodScope
	// LambdaScope is the root scope of an anonymous function body.
	LambdaScope
	// LoopHeaderScope declares the iteration variables of a loop.
	LoopHeaderScope
	// LoopBodyScope is entered once per loop iteration.
	LoopBodyScope
	CatchScope
)

func (k ScopeKind) String() string {
	switch k {
	case BlockScope:
		return "block"
	case MethodScope:
		return "method"
	case LambdaScope:
		return "lambda"
	case LoopHeaderScope:
		return "loop-header"
	case LoopBodyScope:
		return "loop-body"
	case CatchScope:
		return "catch"
	default:
		return fmt.Sprintf("ScopeKind(%d)", k)
	}
}

// Scope is a lexical block. Scopes form a tree through Parent.
type Scope struct {
	ID       ScopeID
	Parent   ScopeID
	Kind     ScopeKind
	Bindings []BindingID
}

// Iterates reports whether the scope is entered once per loop iteration
// rather than once per activation of its parent.
func (s *Scope) Iterates() bool {
	return s.Kind == LoopHeaderScope || s.Kind == LoopBodyScope
}

// Type is the declared type of a binding or unit result. The pass only
// needs to distinguish a handful of shapes.
type Type string

const (
	Void       Type = "void"
	Int        Type = "int"
	Bool       Type = "bool"
	String     Type = "string"
	Any        Type = "any"
	Func       Type = "func"
	Enumerable Type = "enumerable"
	Enumerator Type = "enumerator"
	TaskType   Type = "task"
	FrameRef   Type = "frame"
)
