package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuilderScopes(t *testing.T) {
	b := NewMethod("m", Plain, Void)
	n := b.Param("n", Int)
	var i, x BindingID
	b.Count("i", 0, 3, func(id BindingID) {
		i = id
		x = b.Local("x", Int, Use(id))
	})
	m := b.Method()

	if got, want := m.Params, []BindingID{n}; !cmp.Equal(got, want) {
		t.Errorf("params: got %v, want %v", got, want)
	}
	header := m.Binding(i).Scope
	body := m.Binding(x).Scope
	if k := m.LookupScope(header).Kind; k != LoopHeaderScope {
		t.Errorf("iteration variable declared in %s scope", k)
	}
	if k := m.LookupScope(body).Kind; k != LoopBodyScope {
		t.Errorf("body local declared in %s scope", k)
	}
	if !m.Encloses(m.Scope, body) || !m.Encloses(header, body) {
		t.Error("loop body is not enclosed by the method and loop header scopes")
	}
	if m.Encloses(body, header) {
		t.Error("loop body encloses its header")
	}
	if !m.LookupScope(header).Iterates() || !m.LookupScope(body).Iterates() {
		t.Error("loop scopes do not iterate")
	}
}

func TestBuilderTry(t *testing.T) {
	b := NewMethod("m", Plain, Void)
	var caught BindingID
	b.Try(func() {
		b.Throw(StrLit("boom"))
	}, func(e BindingID) {
		caught = e
		b.Rethrow()
	}, func() {
		b.Print(StrLit("done"))
	})
	m := b.Method()

	if len(m.Body.Stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(m.Body.Stmts))
	}
	try, ok := m.Body.Stmts[0].(*Try)
	if !ok {
		t.Fatalf("got %T, want *Try", m.Body.Stmts[0])
	}
	if try.Catch == nil || try.Catch.Var != caught {
		t.Fatalf("catch variable not bound")
	}
	if try.Catch.Body.Scope != m.Binding(caught).Scope {
		t.Error("catch body and catch variable are in different scopes")
	}
	if try.Finally == nil || len(try.Finally.Stmts) != 1 {
		t.Error("finally block not built")
	}
}

func TestSprint(t *testing.T) {
	b := NewMethod("m", Plain, Void)
	x := b.Local("x", Int, IntLit(1))
	m := b.Method()

	for _, test := range []struct {
		name   string
		node   Node
		expect string
	}{
		{
			name:   "binary",
			node:   BinOp(Add, Use(x), IntLit(2)),
			expect: "(x#1 + 2)",
		},
		{
			name:   "negation",
			node:   UnOp(Neg, Use(x)),
			expect: "-x#1",
		},
		{
			name:   "builtin",
			node:   Host("print", StrLit("a"), NilLit()),
			expect: `@print("a", nil)`,
		},
		{
			name:   "method call",
			node:   CallMethod(InvokeMethod("gen"), "GetEnumerator"),
			expect: "gen().GetEnumerator()",
		},
		{
			name:   "slot",
			node:   &Slot{Frame: &Env{}, Hops: 2, Index: 1},
			expect: "env.parent.parent[1]",
		},
		{
			name:   "declare",
			node:   &Declare{Binding: x, Init: IntLit(1)},
			expect: "var x#1 = 1\n",
		},
		{
			name:   "yield",
			node:   &YieldReturn{Value: Use(x)},
			expect: "yield return x#1\n",
		},
		{
			name:   "unknown binding",
			node:   Use(42),
			expect: "?42",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := Sprint(m, test.node); got != test.expect {
				t.Errorf("got %q, want %q", got, test.expect)
			}
		})
	}
}

func TestFprint(t *testing.T) {
	b := NewMethod("squares", IteratorMode, Enumerator)
	n := b.Param("n", Int)
	b.Yield(Use(n))

	var out strings.Builder
	if err := Fprint(&out, b.Method()); err != nil {
		t.Fatal(err)
	}
	expect := "iterator method squares(n#1) enumerator {\n\tyield return n#1\n}\n"
	if diff := cmp.Diff(expect, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneMethod(t *testing.T) {
	b := NewMethod("m", Plain, Void)
	x := b.Local("x", Int, IntLit(1))
	b.Set(x, BinOp(Add, Use(x), IntLit(1)))
	m := b.Method()

	c := CloneMethod(m)
	c.Binding(x).Name = "renamed"
	c.NewBinding("t", TempBinding, c.Scope, Any)
	c.Body.Stmts[1].(*Assign).Value = IntLit(0)

	if m.Binding(x).Name != "x" {
		t.Error("renaming a binding of the clone renamed the original")
	}
	if len(m.Bindings) != 1 || len(m.LookupScope(m.Scope).Bindings) != 1 {
		t.Error("declaring a binding in the clone changed the original tables")
	}
	if _, ok := m.Body.Stmts[1].(*Assign).Value.(*Binary); !ok {
		t.Error("modifying the clone body modified the original")
	}
	if got, want := Sprint(c, c.Body.Stmts[0]), "var renamed#1 = 1\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestContains(t *testing.T) {
	b := NewMethod("m", AsyncMode, TaskType)
	l := b.Lambda(AsyncMode, TaskType, nil, func(lb *Builder, _ []BindingID) {
		lb.Await(Host("delay", IntLit(1)))
	})
	b.Local("f", Func, l)
	m := b.Method()

	if Contains(m.Body, IsSuspension) {
		t.Error("suspensions inside a lambda body are attributed to the enclosing method")
	}
	if !Contains(l.Body, IsSuspension) {
		t.Error("lambda body suspension not found")
	}
	if !Contains(m.Body, IsSpecial) {
		t.Error("lambda not reported as a special form")
	}

	seen := 0
	Inspect(m.Body, func(n Node) bool {
		if _, ok := n.(*Await); ok {
			seen++
		}
		return true
	})
	if seen != 1 {
		t.Errorf("Inspect visited %d awaits, want 1", seen)
	}
}

func TestFrameTypeSlotOf(t *testing.T) {
	ft := &FrameType{Name: "f", Slots: []FrameSlot{
		{Name: "a", Binding: 3},
		{Name: "b", Binding: 5, Ownership: ByReference},
	}}
	for _, test := range []struct {
		binding BindingID
		expect  int
	}{
		{3, 0},
		{5, 1},
		{4, -1},
	} {
		if got := ft.SlotOf(test.binding); got != test.expect {
			t.Errorf("SlotOf(%d): got %d, want %d", test.binding, got, test.expect)
		}
	}
}
