package compiler

import (
	"golang.org/x/tools/container/intsets"

	"github.com/stealthrocket/lowering/ir"
)

// UnitInfo describes a body that becomes a unit: a lambda, or the method
// body itself when the method is an iterator or async method.
type UnitInfo struct {
	// Root is the root scope of the body: the lambda scope, or the
	// method scope.
	Root   ir.ScopeID
	Parent *UnitInfo
	Mode   ir.Mode

	// Lambda is nil for the method body.
	Lambda *ir.Lambda

	// Captured holds the bindings declared outside of the unit and
	// referenced by it or by a unit nested in it.
	Captured     intsets.Sparse
	CapturesThis bool
}

// HasCaptures reports whether the unit reaches any binding outside of it.
func (u *UnitInfo) HasCaptures() bool { return !u.Captured.IsEmpty() }

// Resumable reports whether the unit compiles to a state machine.
func (u *UnitInfo) Resumable() bool { return u.Mode.Resumable() }

// CaptureEdge records that Binding is referenced across the boundary of
// the unit rooted at Unit.
type CaptureEdge struct {
	Binding ir.BindingID
	Unit    ir.ScopeID
}

// Captures is the result of capture analysis for one method.
type Captures struct {
	Edges []CaptureEdge

	// Units lists the method unit first, then the lambdas in pre-order.
	Units []*UnitInfo

	// Captured holds every binding with at least one capture edge.
	Captured intsets.Sparse

	// RequiresFrame holds the scopes declaring captured bindings.
	RequiresFrame intsets.Sparse

	// PerIteration holds the loop header scopes whose bindings are fresh
	// on every iteration.
	PerIteration intsets.Sparse

	m      *ir.Method
	byRoot map[ir.ScopeID]*UnitInfo
}

// Unit returns the unit rooted at scope root, or nil.
func (c *Captures) Unit(root ir.ScopeID) *UnitInfo { return c.byRoot[root] }

// UnitOf returns the unit whose body declares scope.
func (c *Captures) UnitOf(scope ir.ScopeID) *UnitInfo {
	for s := scope; s.IsValid(); s = c.m.LookupScope(s).Parent {
		if u := c.byRoot[s]; u != nil {
			return u
		}
	}
	return c.byRoot[c.m.Scope]
}

// IsCaptured reports whether b is referenced from a unit other than the
// one declaring it.
func (c *Captures) IsCaptured(b ir.BindingID) bool { return c.Captured.Has(int(b)) }

// AnalyzeCaptures finds the units of m and the bindings they capture.
//
// An edge is recorded for every unit boundary crossed between the
// referencing unit and the declaring one, so an outer lambda carries the
// bindings that its inner lambdas reach. The analysis is a pure function of
// the method.
func AnalyzeCaptures(m *ir.Method, perIteration bool) *Captures {
	c := &Captures{m: m, byRoot: map[ir.ScopeID]*UnitInfo{}}
	root := &UnitInfo{Root: m.Scope, Mode: m.Mode}
	c.add(root)

	if perIteration {
		for _, s := range m.Scopes {
			if s.Kind == ir.LoopHeaderScope {
				c.PerIteration.Insert(int(s.ID))
			}
		}
	}

	c.walk(root, m.Body)
	return c
}

func (c *Captures) add(u *UnitInfo) {
	c.Units = append(c.Units, u)
	c.byRoot[u.Root] = u
}

func (c *Captures) walk(u *UnitInfo, n ir.Node) {
	ir.Inspect(n, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Lambda:
			inner := &UnitInfo{Root: n.Scope, Parent: u, Mode: n.Mode, Lambda: n}
			c.add(inner)
			c.walk(inner, n.Body)
			return false
		case *ir.Ref:
			c.reference(u, n.Binding)
		}
		return true
	})
}

func (c *Captures) reference(u *UnitInfo, id ir.BindingID) {
	b := c.m.Binding(id)
	owner := c.UnitOf(b.Scope)
	for unit := u; unit != nil && unit != owner; unit = unit.Parent {
		if !unit.Captured.Insert(int(id)) {
			continue
		}
		c.Edges = append(c.Edges, CaptureEdge{Binding: id, Unit: unit.Root})
		if b.Kind == ir.ThisBinding {
			unit.CapturesThis = true
		}
	}
	if owner != u {
		c.Captured.Insert(int(id))
		c.RequiresFrame.Insert(int(b.Scope))
	}
}

// rejectRefCaptures reports by-reference bindings referenced from a unit
// other than the one declaring them. Such bindings alias storage owned by
// a caller frame that the capturing unit can outlive. The offending
// references are replaced with placeholders so the bindings stay in their
// declaring body. It reports whether any reference was replaced.
func (c *Captures) rejectRefCaptures(diags *diagnostics) bool {
	reported := map[ir.BindingID]bool{}
	replaced := false

	var expr func(u *UnitInfo, e ir.Expr) ir.Expr
	var block func(u *UnitInfo, b *ir.Block)
	var stmt func(u *UnitInfo, s ir.Stmt)

	expr = func(u *UnitInfo, e ir.Expr) ir.Expr {
		switch e := e.(type) {
		case nil:
			return nil
		case *ir.Ref:
			b := c.m.Binding(e.Binding)
			if !b.ByRef || c.UnitOf(b.Scope) == u {
				return e
			}
			if !reported[e.Binding] {
				reported[e.Binding] = true
				diags.report(ErrRefCapture, "cannot capture by-reference binding %s in an anonymous function or resumable body", b.Name)
			}
			replaced = true
			return &ir.Bad{Code: string(ErrRefCapture)}
		case *ir.Lambda:
			block(c.byRoot[e.Scope], e.Body)
			return e
		}
		mapChildren(e, func(x ir.Expr) ir.Expr { return expr(u, x) })
		return e
	}

	block = func(u *UnitInfo, b *ir.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			stmt(u, s)
		}
	}

	stmt = func(u *UnitInfo, s ir.Stmt) {
		mapStmtExprs(s, func(e ir.Expr) ir.Expr { return expr(u, e) })
		switch s := s.(type) {
		case *ir.Block:
			block(u, s)
		case *ir.If:
			block(u, s.Then)
			block(u, s.Else)
		case *ir.Loop:
			for _, init := range s.Init {
				stmt(u, init)
			}
			block(u, s.Body)
			for _, post := range s.Post {
				stmt(u, post)
			}
		case *ir.Foreach:
			block(u, s.Body)
		case *ir.Using:
			block(u, s.Body)
		case *ir.Try:
			block(u, s.Body)
			if s.Catch != nil {
				block(u, s.Catch.Body)
			}
			block(u, s.Finally)
		}
	}

	var ids []int
	for _, id := range c.Captured.AppendTo(ids) {
		if c.m.Binding(ir.BindingID(id)).ByRef {
			block(c.Units[0], c.m.Body)
			break
		}
	}
	return replaced
}
