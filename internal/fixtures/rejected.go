package fixtures

import "github.com/stealthrocket/lowering/ir"

func init() {
	register(Scenario{
		Name:  "rejected",
		Doc:   "constructs reported with diagnostics",
		Entry: "main",
		Build: rejected,
		Codes: []string{"L1001", "L1002", "L1003", "L1004", "L1005", "L1006", "L1007"},
	})
}

func rejected() *ir.Program {
	// yield and await in a plain method.
	plain := ir.NewMethod("main", ir.Plain, ir.Void)
	plain.Yield(lit(1))
	plain.Await(ir.Host("completed"))

	// A lambda capturing a by-reference parameter.
	refcap := ir.NewMethod("refcap", ir.Plain, ir.Func)
	r := refcap.RefParam("r", ir.Int)
	refcap.Return(refcap.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Return(ir.Use(r))
	}))

	// A by-reference parameter on an iterator, and a return with a value.
	iter := ir.NewMethod("iter", ir.IteratorMode, ir.Enumerator)
	iter.RefParam("r", ir.Int)
	iter.Yield(lit(1))
	iter.Return(lit(2))

	// yield in the body of a try with a catch, and in the catch block.
	handler := ir.NewMethod("handler", ir.IteratorMode, ir.Enumerator)
	handler.Try(func() {
		handler.Yield(lit(1))
	}, func(ir.BindingID) {
		handler.Yield(lit(2))
	}, nil)

	return ir.NewProgram(plain.Method(), refcap.Method(), iter.Method(), handler.Method())
}
