package fixtures

import "github.com/stealthrocket/lowering/ir"

func init() {
	register(Scenario{
		Name:   "async-sum",
		Doc:    "an async loop resumed by timers of the scheduler",
		Entry:  "main",
		Build:  asyncSum,
		Output: "total 3 at 3\n",
	})
	register(Scenario{
		Name:   "async-finally",
		Doc:    "a finally block that awaits completes before the exception reaches the task",
		Entry:  "main",
		Build:  asyncFinally,
		Output: "finally done\ncaught boom\n",
	})
	register(Scenario{
		Name:   "async-sync-exception",
		Doc:    "an exception raised before the first suspension propagates to the caller",
		Entry:  "main",
		Build:  asyncSyncException,
		Output: "sync negative\ntask(pending)\n",
	})
	register(Scenario{
		Name:   "cancellation",
		Doc:    "awaiting a canceled task raises a cancellation exception",
		Entry:  "main",
		Build:  cancellation,
		Output: "true operation canceled: stop\n",
	})
	register(Scenario{
		Name:   "async-loop-finally",
		Doc:    "continue inside a try with a finally block in an async loop",
		Entry:  "main",
		Build:  asyncLoopFinally,
		Output: "step 0\nfinally 0\nfinally 1\nstep 2\nfinally 2\n",
	})
	register(Scenario{
		Name:   "async-lambda",
		Doc:    "an async lambda capturing a local and awaiting a task",
		Entry:  "main",
		Build:  asyncLambda,
		Output: "got 42\n",
	})
	register(Scenario{
		Name:   "await-in-if",
		Doc:    "an await inside a conditional of an async loop resumes into the taken branch",
		Entry:  "main",
		Build:  awaitInIf,
		Output: "skip 1\ntotal 2 at 2\n",
	})
}

// main (async):
//
//	total := 0
//	for i := 0; i < 3; i++ { await delay(1); total = total + i }
//	print("total", total, "at", now())
//	return total
func asyncSum() *ir.Program {
	b := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	total := b.Local("total", ir.Int, lit(0))
	b.Count("i", 0, 3, func(i ir.BindingID) {
		b.Await(ir.Host("delay", lit(1)))
		b.Set(total, ir.BinOp(ir.Add, ir.Use(total), ir.Use(i)))
	})
	b.Print(str("total"), ir.Use(total), str("at"), ir.Host("now"))
	b.Return(ir.Use(total))
	return ir.NewProgram(b.Method())
}

// work (async): try { await fail("boom") } finally { await delay(1); print("finally done") }
//
// main (async): try { await work() } catch e { print("caught", e) }
func asyncFinally() *ir.Program {
	w := ir.NewMethod("work", ir.AsyncMode, ir.TaskType)
	w.Try(func() {
		w.Await(ir.Host("fail", str("boom")))
	}, nil, func() {
		w.Await(ir.Host("delay", lit(1)))
		w.Print(str("finally done"))
	})

	m := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	m.Try(func() {
		m.Await(invoke("work"))
	}, func(e ir.BindingID) {
		m.Print(str("caught"), ir.Use(e))
	}, nil)
	return ir.NewProgram(m.Method(), w.Method())
}

// check(x) (async): if x < 0 { throw "negative" }; await delay(1); return x
//
// main: try { check(-1) } catch e { print("sync", e) }; print(check(5))
func asyncSyncException() *ir.Program {
	c := ir.NewMethod("check", ir.AsyncMode, ir.TaskType)
	x := c.Param("x", ir.Int)
	c.If(ir.BinOp(ir.Lss, ir.Use(x), lit(0)), func() { c.Throw(str("negative")) }, nil)
	c.Await(ir.Host("delay", lit(1)))
	c.Return(ir.Use(x))

	m := ir.NewMethod("main", ir.Plain, ir.Void)
	m.Try(func() {
		m.Do(invoke("check", lit(-1)))
		m.Print(str("unreachable"))
	}, func(e ir.BindingID) {
		m.Print(str("sync"), ir.Use(e))
	}, nil)
	m.Print(invoke("check", lit(5)))
	return ir.NewProgram(m.Method(), c.Method())
}

// main (async): try { await canceled("stop") } catch e { print(iscanceled(e), e) }
func cancellation() *ir.Program {
	m := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	m.Try(func() {
		m.Await(ir.Host("canceled", str("stop")))
	}, func(e ir.BindingID) {
		m.Print(ir.Host("iscanceled", ir.Use(e)), ir.Use(e))
	}, nil)
	return ir.NewProgram(m.Method())
}

// main (async):
//
//	for i := 0; i < 3; i++ {
//	  try {
//	    if i == 1 { continue }
//	    await delay(1)
//	    print("step", i)
//	  } finally {
//	    print("finally", i)
//	  }
//	}
func asyncLoopFinally() *ir.Program {
	m := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	m.Count("i", 0, 3, func(i ir.BindingID) {
		m.Try(func() {
			m.If(ir.BinOp(ir.Eql, ir.Use(i), lit(1)), func() { m.Continue("") }, nil)
			m.Await(ir.Host("delay", lit(1)))
			m.Print(str("step"), ir.Use(i))
		}, nil, func() {
			m.Print(str("finally"), ir.Use(i))
		})
	})
	return ir.NewProgram(m.Method())
}

// main (async):
//
//	answer := 42
//	f := async func(t) { await t; return answer }
//	print("got", await f(delay(2)))
func asyncLambda() *ir.Program {
	m := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	answer := m.Local("answer", ir.Int, lit(42))
	f := m.Local("f", ir.Func, m.Lambda(ir.AsyncMode, ir.TaskType, []string{"t"}, func(lb *ir.Builder, ps []ir.BindingID) {
		lb.Await(ir.Use(ps[0]))
		lb.Return(ir.Use(answer))
	}))
	m.Print(str("got"), ir.AwaitOf(ir.Apply(ir.Use(f), ir.Host("delay", lit(2)))))
	return ir.NewProgram(m.Method())
}

// main (async):
//
//	total := 0
//	for i := 0; i < 3; i++ {
//	  if i != 1 { await delay(1); total = total + i } else { print("skip", i) }
//	}
//	print("total", total, "at", now())
func awaitInIf() *ir.Program {
	b := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	total := b.Local("total", ir.Int, lit(0))
	b.Count("i", 0, 3, func(i ir.BindingID) {
		b.If(ir.BinOp(ir.Neq, ir.Use(i), lit(1)), func() {
			b.Await(ir.Host("delay", lit(1)))
			b.Set(total, ir.BinOp(ir.Add, ir.Use(total), ir.Use(i)))
		}, func() {
			b.Print(str("skip"), ir.Use(i))
		})
	})
	b.Print(str("total"), ir.Use(total), str("at"), ir.Host("now"))
	return ir.NewProgram(b.Method())
}
