package fixtures

import "github.com/stealthrocket/lowering/ir"

func init() {
	register(Scenario{
		Name:   "loop-capture",
		Doc:    "closures created in a counting loop capture the iteration variable",
		Entry:  "main",
		Build:  loopCapture,
		Output: "0\n1\n2\n",
	})
	register(Scenario{
		Name:   "shared-binding",
		Doc:    "two closures share one mutable local",
		Entry:  "main",
		Build:  sharedBinding,
		Output: "2\n",
	})
	register(Scenario{
		Name:   "nested-closures",
		Doc:    "a closure returned by a closure reaches both enclosing frames",
		Entry:  "main",
		Build:  nestedClosures,
		Output: "13\n",
	})
	register(Scenario{
		Name:   "this-capture",
		Doc:    "a lambda in an instance method captures the receiver",
		Entry:  "main",
		Build:  thisCapture,
		Output: "hello world\n",
	})
	register(Scenario{
		Name:   "static-lambda",
		Doc:    "a lambda capturing nothing is materialized once",
		Entry:  "main",
		Build:  staticLambda,
		Output: "true 1\n",
	})
	register(Scenario{
		Name:   "foreach-capture",
		Doc:    "closures created in a foreach capture the element",
		Entry:  "main",
		Build:  foreachCapture,
		Output: "a\nb\n",
	})
}

// main:
//
//	fs := list()
//	for i := 0; i < 3; i++ { append(fs, func() { return i }) }
//	foreach f in fs { print(f()) }
func loopCapture() *ir.Program {
	b := ir.NewMethod("main", ir.Plain, ir.Void)
	fs := b.Local("fs", ir.Any, ir.Host("list"))
	b.Count("i", 0, 3, func(i ir.BindingID) {
		b.Do(ir.Host("append", ir.Use(fs), b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
			lb.Return(ir.Use(i))
		})))
	})
	b.Foreach("f", ir.Func, ir.Use(fs), func(f ir.BindingID) {
		b.Print(ir.Apply(ir.Use(f)))
	})
	return ir.NewProgram(b.Method())
}

// main:
//
//	n := 0
//	inc := func() { n = n + 1 }
//	get := func() { return n }
//	inc(); inc(); print(get())
func sharedBinding() *ir.Program {
	b := ir.NewMethod("main", ir.Plain, ir.Void)
	n := b.Local("n", ir.Int, lit(0))
	inc := b.Local("inc", ir.Func, b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Set(n, ir.BinOp(ir.Add, ir.Use(n), lit(1)))
	}))
	get := b.Local("get", ir.Func, b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Return(ir.Use(n))
	}))
	b.Do(ir.Apply(ir.Use(inc)))
	b.Do(ir.Apply(ir.Use(inc)))
	b.Print(ir.Apply(ir.Use(get)))
	return ir.NewProgram(b.Method())
}

// main:
//
//	x := 10
//	adder := func(y) { return func(z) { return x + y + z } }
//	print(adder(1)(2))
func nestedClosures() *ir.Program {
	b := ir.NewMethod("main", ir.Plain, ir.Void)
	x := b.Local("x", ir.Int, lit(10))
	adder := b.Local("adder", ir.Func, b.Func([]string{"y"}, func(lb *ir.Builder, ys []ir.BindingID) {
		lb.Return(lb.Func([]string{"z"}, func(lb *ir.Builder, zs []ir.BindingID) {
			lb.Return(ir.BinOp(ir.Add, ir.BinOp(ir.Add, ir.Use(x), ir.Use(ys[0])), ir.Use(zs[0])))
		}))
	}))
	b.Print(ir.Apply(ir.Apply(ir.Use(adder), lit(1)), lit(2)))
	return ir.NewProgram(b.Method())
}

// greet (instance):
//
//	f := func() { return "hello " + this }
//	print(f())
func thisCapture() *ir.Program {
	g := ir.NewMethod("greet", ir.Plain, ir.Void)
	this := g.This()
	f := g.Local("f", ir.Func, g.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Return(ir.BinOp(ir.Add, str("hello "), ir.Use(this)))
	}))
	g.Print(ir.Apply(ir.Use(f)))

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Do(&ir.Invoke{Method: "greet", This: str("world")})
	return ir.NewProgram(m.Method(), g.Method())
}

// mk: return func() { return 1 }
//
// main: a := mk(); b := mk(); print(a == b, a())
func staticLambda() *ir.Program {
	mk := ir.NewMethod("mk", ir.Plain, ir.Func)
	mk.Return(mk.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Return(lit(1))
	}))

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	a := m.Local("a", ir.Func, invoke("mk"))
	c := m.Local("b", ir.Func, invoke("mk"))
	m.Print(ir.BinOp(ir.Eql, ir.Use(a), ir.Use(c)), ir.Apply(ir.Use(a)))
	return ir.NewProgram(m.Method(), mk.Method())
}

// main:
//
//	fs := list()
//	foreach s in list("a", "b") { append(fs, func() { return s }) }
//	foreach f in fs { print(f()) }
func foreachCapture() *ir.Program {
	b := ir.NewMethod("main", ir.Plain, ir.Void)
	fs := b.Local("fs", ir.Any, ir.Host("list"))
	b.Foreach("s", ir.String, ir.Host("list", str("a"), str("b")), func(s ir.BindingID) {
		b.Do(ir.Host("append", ir.Use(fs), b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
			lb.Return(ir.Use(s))
		})))
	})
	b.Foreach("f", ir.Func, ir.Use(fs), func(f ir.BindingID) {
		b.Print(ir.Apply(ir.Use(f)))
	})
	return ir.NewProgram(b.Method())
}
