package fixtures

import "github.com/stealthrocket/lowering/ir"

func init() {
	register(Scenario{
		Name:   "squares",
		Doc:    "an iterator method with a parameter and a loop",
		Entry:  "main",
		Build:  squares,
		Output: "0\n1\n4\n9\n",
	})
	register(Scenario{
		Name:   "iterator-finally",
		Doc:    "breaking out of a foreach disposes the iterator and runs its finally block",
		Entry:  "main",
		Build:  iteratorFinally,
		Output: "1\n2\ncleanup\nafter\n",
	})
	register(Scenario{
		Name:   "dispose-first",
		Doc:    "disposing an enumerator before MoveNext runs no body code",
		Entry:  "main",
		Build:  disposeFirst,
		Output: "false\n",
	})
	register(Scenario{
		Name:   "iterator-lambda",
		Doc:    "an iterator lambda capturing a local of its method",
		Entry:  "main",
		Build:  iteratorLambda,
		Output: "0\n10\n20\n",
	})
	register(Scenario{
		Name:   "using-resource",
		Doc:    "a using block in an iterator disposes its resource on early exit",
		Entry:  "main",
		Build:  usingResource,
		Output: "1\ndispose file\ndone\n",
	})
	register(Scenario{
		Name:   "yield-break",
		Doc:    "yield break ends the enumeration and runs the active finally block",
		Entry:  "main",
		Build:  yieldBreak,
		Output: "0\n1\nstop\n",
	})
	register(Scenario{
		Name:   "yield-in-if",
		Doc:    "yields inside both branches of a conditional resume into the same branch",
		Entry:  "main",
		Build:  yieldInIf,
		Output: "5\n6\n0\n",
	})
	register(Scenario{
		Name:   "yield-continue",
		Doc:    "a yield followed by continue inside a conditional of an iterator loop",
		Entry:  "main",
		Build:  yieldContinue,
		Output: "0\n1\n20\n30\n",
	})
}

// squares(n): for i := 0; i < n; i++ { yield return i * i }
func squaresMethod() *ir.Method {
	b := ir.NewMethod("squares", ir.IteratorMode, ir.Enumerator)
	n := b.Param("n", ir.Int)
	b.For("i", lit(0),
		func(i ir.BindingID) ir.Expr { return ir.BinOp(ir.Lss, ir.Use(i), ir.Use(n)) },
		func(i ir.BindingID) { b.Set(i, ir.BinOp(ir.Add, ir.Use(i), lit(1))) },
		func(i ir.BindingID) { b.Yield(ir.BinOp(ir.Mul, ir.Use(i), ir.Use(i))) })
	return b.Method()
}

func squares() *ir.Program {
	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Foreach("x", ir.Int, invoke("squares", lit(4)), func(x ir.BindingID) {
		m.Print(ir.Use(x))
	})
	return ir.NewProgram(m.Method(), squaresMethod())
}

// gen: try { yield return 1; yield return 2; yield return 3 } finally { print("cleanup") }
func genMethod() *ir.Method {
	b := ir.NewMethod("gen", ir.IteratorMode, ir.Enumerable)
	b.Try(func() {
		b.Yield(lit(1))
		b.Yield(lit(2))
		b.Yield(lit(3))
	}, nil, func() {
		b.Print(str("cleanup"))
	})
	return b.Method()
}

// main: foreach x in gen() { print(x); if x == 2 { break } }; print("after")
func iteratorFinally() *ir.Program {
	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Foreach("x", ir.Int, invoke("gen"), func(x ir.BindingID) {
		m.Print(ir.Use(x))
		m.If(ir.BinOp(ir.Eql, ir.Use(x), lit(2)), func() { m.Break("") }, nil)
	})
	m.Print(str("after"))
	return ir.NewProgram(m.Method(), genMethod())
}

// main: e := gen().GetEnumerator(); e.Dispose(); print(e.MoveNext())
func disposeFirst() *ir.Program {
	m := ir.NewMethod("main", ir.Plain, ir.Void)
	e := m.Local("e", ir.Enumerator, ir.CallMethod(invoke("gen"), "GetEnumerator"))
	m.Do(ir.CallMethod(ir.Use(e), "Dispose"))
	m.Print(ir.CallMethod(ir.Use(e), "MoveNext"))
	return ir.NewProgram(m.Method(), genMethod())
}

// main:
//
//	limit := 3
//	gen := iterator func() { for i := 0; i < limit; i++ { yield return i * 10 } }
//	foreach x in gen() { print(x) }
func iteratorLambda() *ir.Program {
	m := ir.NewMethod("main", ir.Plain, ir.Void)
	limit := m.Local("limit", ir.Int, lit(3))
	gen := m.Local("gen", ir.Func, m.Lambda(ir.IteratorMode, ir.Enumerable, nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.For("i", lit(0),
			func(i ir.BindingID) ir.Expr { return ir.BinOp(ir.Lss, ir.Use(i), ir.Use(limit)) },
			func(i ir.BindingID) { lb.Set(i, ir.BinOp(ir.Add, ir.Use(i), lit(1))) },
			func(i ir.BindingID) { lb.Yield(ir.BinOp(ir.Mul, ir.Use(i), lit(10))) })
	}))
	m.Foreach("x", ir.Int, ir.Apply(ir.Use(gen)), func(x ir.BindingID) {
		m.Print(ir.Use(x))
	})
	return ir.NewProgram(m.Method())
}

// lines: using r = resource("file") { yield return 1; yield return 2 }
//
// main: foreach x in lines() { print(x); break }; print("done")
func usingResource() *ir.Program {
	it := ir.NewMethod("lines", ir.IteratorMode, ir.Enumerable)
	it.Using("r", ir.Host("resource", str("file")), func(ir.BindingID) {
		it.Yield(lit(1))
		it.Yield(lit(2))
	})

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Foreach("x", ir.Int, invoke("lines"), func(x ir.BindingID) {
		m.Print(ir.Use(x))
		m.Break("")
	})
	m.Print(str("done"))
	return ir.NewProgram(m.Method(), it.Method())
}

// upto: try { for i := 0; ; i++ { if i == 2 { yield break }; yield return i } } finally { print("stop") }
func yieldBreak() *ir.Program {
	it := ir.NewMethod("upto", ir.IteratorMode, ir.Enumerator)
	it.Try(func() {
		it.For("i", lit(0),
			func(ir.BindingID) ir.Expr { return nil },
			func(i ir.BindingID) { it.Set(i, ir.BinOp(ir.Add, ir.Use(i), lit(1))) },
			func(i ir.BindingID) {
				it.If(ir.BinOp(ir.Eql, ir.Use(i), lit(2)), func() { it.YieldBreak() }, nil)
				it.Yield(ir.Use(i))
			})
	}, nil, func() {
		it.Print(str("stop"))
	})

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Foreach("x", ir.Int, invoke("upto"), func(x ir.BindingID) {
		m.Print(ir.Use(x))
	})
	return ir.NewProgram(m.Method(), it.Method())
}

// pair(n): if n > 0 { yield return n; yield return n + 1 } else { yield return 0 }
//
// main: foreach x in pair(5) { print(x) }; foreach x in pair(0) { print(x) }
func yieldInIf() *ir.Program {
	it := ir.NewMethod("pair", ir.IteratorMode, ir.Enumerator)
	n := it.Param("n", ir.Int)
	it.If(ir.BinOp(ir.Gtr, ir.Use(n), lit(0)), func() {
		it.Yield(ir.Use(n))
		it.Yield(ir.BinOp(ir.Add, ir.Use(n), lit(1)))
	}, func() {
		it.Yield(lit(0))
	})

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	for _, arg := range []int64{5, 0} {
		m.Foreach("x", ir.Int, invoke("pair", lit(arg)), func(x ir.BindingID) {
			m.Print(ir.Use(x))
		})
	}
	return ir.NewProgram(m.Method(), it.Method())
}

// tens(n): for i := 0; i < n; i++ { if i < 2 { yield return i; continue }; yield return i * 10 }
//
// main: foreach x in tens(4) { print(x) }
func yieldContinue() *ir.Program {
	it := ir.NewMethod("tens", ir.IteratorMode, ir.Enumerator)
	n := it.Param("n", ir.Int)
	it.For("i", lit(0),
		func(i ir.BindingID) ir.Expr { return ir.BinOp(ir.Lss, ir.Use(i), ir.Use(n)) },
		func(i ir.BindingID) { it.Set(i, ir.BinOp(ir.Add, ir.Use(i), lit(1))) },
		func(i ir.BindingID) {
			it.If(ir.BinOp(ir.Lss, ir.Use(i), lit(2)), func() {
				it.Yield(ir.Use(i))
				it.Continue("")
			}, nil)
			it.Yield(ir.BinOp(ir.Mul, ir.Use(i), lit(10)))
		})

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Foreach("x", ir.Int, invoke("tens", lit(4)), func(x ir.BindingID) {
		m.Print(ir.Use(x))
	})
	return ir.NewProgram(m.Method(), it.Method())
}
