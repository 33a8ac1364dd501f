package compiler

import (
	"strings"
	"testing"

	"github.com/stealthrocket/lowering/ir"
)

func TestDesugar(t *testing.T) {
	for _, test := range []struct {
		name   string
		build  func() *ir.Method
		shared bool
		expect string
	}{
		{
			name: "using",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.Plain, ir.Void)
				b.Using("r", ir.Host("resource", ir.StrLit("f")), func(r ir.BindingID) {
					b.Print(ir.Use(r))
				})
				return b.Method()
			},
			expect: `
{
	{
		var r#1 = @resource("f")
		try {
			@print(r#1)
		} finally {
			if (r#1 != nil) {
				r#1.Dispose()
			}
		}
	}
}`,
		},
		{
			name: "foreach per iteration",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.Plain, ir.Void)
				b.Foreach("x", ir.Int, ir.InvokeMethod("gen"), func(x ir.BindingID) {
					b.Print(ir.Use(x))
				})
				return b.Method()
			},
			expect: `
{
	{
		var ~e1#2 = gen().GetEnumerator()
		try {
			loop {
				while ~e1#2.MoveNext()
				var x#1 = ~e1#2.Current()
				{
					@print(x#1)
				}
			}
		} finally {
			~e1#2.Dispose()
		}
	}
}`,
		},
		{
			name:   "foreach shared",
			shared: true,
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.Plain, ir.Void)
				b.Foreach("x", ir.Int, ir.InvokeMethod("gen"), func(x ir.BindingID) {
					b.Print(ir.Use(x))
				})
				return b.Method()
			},
			expect: `
{
	{
		var ~e1#2 = gen().GetEnumerator()
		try {
			{
				var x#1
				loop {
					while ~e1#2.MoveNext()
					x#1 = ~e1#2.Current()
					@print(x#1)
				}
			}
		} finally {
			~e1#2.Dispose()
		}
	}
}`,
		},
		{
			name: "suspending loop",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.AsyncMode, ir.TaskType)
				b.Count("i", 0, 2, func(i ir.BindingID) {
					b.Await(ir.Host("delay", ir.Use(i)))
				})
				return b.Method()
			},
			expect: `
{
	~loop1:
	loop {
		var i#1 = 0
		if !(i#1 < 2) {
			break ~loop1
		}
		{
			await @delay(i#1)
		}
	} post {
		i#1 = (i#1 + 1)
	}
}`,
		},
		{
			name: "await operand",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.AsyncMode, ir.TaskType)
				b.Print(ir.StrLit("x"), ir.AwaitOf(ir.Host("delay", ir.IntLit(1))))
				return b.Method()
			},
			expect: `
{
	var ~t1#1 = await @delay(1)
	@print("x", ~t1#1)
}`,
		},
		{
			name: "await after operand",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.AsyncMode, ir.TaskType)
				x := b.Local("x", ir.Int, ir.IntLit(1))
				b.Print(ir.Use(x), ir.AwaitOf(ir.Host("delay", ir.IntLit(1))))
				return b.Method()
			},
			expect: `
{
	var x#1 = 1
	var ~t1#2 = x#1
	var ~t2#3 = await @delay(1)
	@print(~t1#2, ~t2#3)
}`,
		},
		{
			name: "suspending if without else",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.IteratorMode, ir.Enumerator)
				n := b.Param("n", ir.Int)
				b.If(ir.BinOp(ir.Gtr, ir.Use(n), ir.IntLit(0)), func() {
					b.Yield(ir.Use(n))
				}, nil)
				return b.Method()
			},
			expect: `
{
	var ~t1#2 = (n#1 > 0)
	if ~t1#2 {
		yield return n#1
	}
}`,
		},
		{
			name: "plain loop",
			build: func() *ir.Method {
				b := ir.NewMethod("m", ir.Plain, ir.Void)
				b.Count("i", 0, 2, func(i ir.BindingID) {
					b.Print(ir.Use(i))
				})
				return b.Method()
			},
			expect: `
{
	loop {
		var i#1 = 0
		while (i#1 < 2)
		@print(i#1)
	} post {
		i#1 = (i#1 + 1)
	}
}`,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			m := test.build()
			desugar(m, !test.shared)

			expect := strings.TrimSpace(test.expect)
			actual := strings.TrimSpace(ir.Sprint(m, m.Body))
			if actual != expect {
				t.Errorf("unexpected desugared result")
				t.Logf("expect:\n%s", expect)
				t.Logf("actual:\n%s", actual)
			}
		})
	}
}
