package ir

import "fmt"

// Mode is the classification of a method or lambda body.
type Mode uint8

const (
	Plain Mode = iota
	IteratorMode
	AsyncMode
)

func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case IteratorMode:
		return "iterator"
	case AsyncMode:
		return "async"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Resumable reports whether bodies of this mode can suspend.
func (m Mode) Resumable() bool { return m == IteratorMode || m == AsyncMode }

// Method is a named function of the program together with the binding and
// scope tables that its body (including nested lambdas) refers to.
type Method struct {
	Name   string
	Mode   Mode
	Result Type
	Scope  ScopeID
	This   BindingID
	Params []BindingID
	Body   *Block

	Bindings []*Binding
	Scopes   []*Scope

	// Units and Frames are produced by lowering.
	Units   []*Unit
	Frames  []*FrameType
	Lowered bool
}

// Binding returns the binding with the given id.
func (m *Method) Binding(id BindingID) *Binding {
	if !id.IsValid() || int(id) > len(m.Bindings) {
		panic(fmt.Sprintf("%s: binding %d out of range", m.Name, id))
	}
	return m.Bindings[id-1]
}

// LookupScope returns the scope with the given id.
func (m *Method) LookupScope(id ScopeID) *Scope {
	if !id.IsValid() || int(id) > len(m.Scopes) {
		panic(fmt.Sprintf("%s: scope %d out of range", m.Name, id))
	}
	return m.Scopes[id-1]
}

// NewScope appends a scope to the method's table.
func (m *Method) NewScope(parent ScopeID, kind ScopeKind) ScopeID {
	id := ScopeID(len(m.Scopes) + 1)
	m.Scopes = append(m.Scopes, &Scope{ID: id, Parent: parent, Kind: kind})
	return id
}

// NewBinding appends a binding declared in scope to the method's table.
func (m *Method) NewBinding(name string, kind BindingKind, scope ScopeID, typ Type) BindingID {
	id := BindingID(len(m.Bindings) + 1)
	m.Bindings = append(m.Bindings, &Binding{ID: id, Name: name, Kind: kind, Scope: scope, Type: typ})
	if scope.IsValid() {
		s := m.LookupScope(scope)
		s.Bindings = append(s.Bindings, id)
	}
	return id
}

// Encloses reports whether outer is inner or one of its ancestors.
func (m *Method) Encloses(outer, inner ScopeID) bool {
	for s := inner; s.IsValid(); s = m.LookupScope(s).Parent {
		if s == outer {
			return true
		}
	}
	return false
}

// Program is a set of methods.
type Program struct {
	Methods []*Method
}

// Method returns the method with the given name, or nil.
func (p *Program) Method(name string) *Method {
	for _, m := range p.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Units returns the units of all methods in declaration order.
func (p *Program) Units() []*Unit {
	var units []*Unit
	for _, m := range p.Methods {
		units = append(units, m.Units...)
	}
	return units
}
