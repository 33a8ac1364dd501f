package interp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stealthrocket/lowering"
	"github.com/stealthrocket/lowering/compiler"
	"github.com/stealthrocket/lowering/internal/fixtures"
	"github.com/stealthrocket/lowering/ir"
)

func compile(t *testing.T, prog *ir.Program, opts ...compiler.Option) *ir.Program {
	t.Helper()
	res, err := compiler.Compile(context.Background(), prog, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Errors(); err != nil {
		t.Fatal(err)
	}
	return res.Program
}

func run(t *testing.T, prog *ir.Program, entry string) (string, any, error) {
	t.Helper()
	var out bytes.Buffer
	in, err := New(prog, WithOutput(&out))
	if err != nil {
		t.Fatal(err)
	}
	v, err := in.Run(context.Background(), entry)
	return out.String(), v, err
}

func TestScenarios(t *testing.T) {
	for _, scenario := range fixtures.Runnable() {
		t.Run(scenario.Name, func(t *testing.T) {
			output, _, err := run(t, compile(t, scenario.Build()), scenario.Entry)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(scenario.Output, output); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScenarioOptions(t *testing.T) {
	for _, test := range []struct {
		scenario string
		opts     []compiler.Option
		expect   string
	}{
		{
			scenario: "loop-capture",
			opts:     []compiler.Option{compiler.WithPerIterationCapture(false)},
			expect:   "3\n3\n3\n",
		},
		{
			scenario: "foreach-capture",
			opts:     []compiler.Option{compiler.WithPerIterationCapture(false)},
			expect:   "b\nb\n",
		},
		{
			scenario: "static-lambda",
			opts:     []compiler.Option{compiler.WithCachedStaticLambdas(false)},
			expect:   "false 1\n",
		},
		{
			scenario: "async-sum",
			opts:     []compiler.Option{compiler.WithWorkers(1)},
			expect:   "total 3 at 3\n",
		},
	} {
		t.Run(test.scenario, func(t *testing.T) {
			scenario, ok := fixtures.Lookup(test.scenario)
			if !ok {
				t.Fatalf("missing scenario %s", test.scenario)
			}
			output, _, err := run(t, compile(t, scenario.Build(), test.opts...), scenario.Entry)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.expect, output); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAsyncResult(t *testing.T) {
	scenario, _ := fixtures.Lookup("async-sum")
	_, v, err := run(t, compile(t, scenario.Build()), scenario.Entry)
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(3) {
		t.Errorf("got %v, want 3", v)
	}
}

func TestAsyncUnhandledException(t *testing.T) {
	// main (async): await delay(1); throw "late"
	b := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	b.Await(ir.Host("delay", ir.IntLit(1)))
	b.Throw(ir.StrLit("late"))

	_, _, err := run(t, compile(t, ir.NewProgram(b.Method())), "main")
	var e *lowering.Exception
	if !errors.As(err, &e) {
		t.Fatalf("got %v, want an exception", err)
	}
	if e.Value != "late" {
		t.Errorf("exception value: got %v, want late", e.Value)
	}
}

func TestAsyncStalled(t *testing.T) {
	// main (async): await task()
	b := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
	b.Await(ir.Host("task"))

	_, _, err := run(t, compile(t, ir.NewProgram(b.Method())), "main")
	if !errors.Is(err, ErrStalled) {
		t.Errorf("got %v, want ErrStalled", err)
	}
}

func TestIteratorCollect(t *testing.T) {
	scenario, _ := fixtures.Lookup("squares")
	prog := compile(t, scenario.Build())
	in, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	v, err := in.Call(context.Background(), "squares", nil, int64(3))
	if err != nil {
		t.Fatal(err)
	}
	e, ok := v.(*Enumerator)
	if !ok {
		t.Fatalf("squares returned %T, want *Enumerator", v)
	}
	if s := e.Status(); s != lowering.NotStarted {
		t.Errorf("status before MoveNext: %s", s)
	}
	values, err := lowering.Collect(e)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{int64(0), int64(1), int64(4)}, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if s := e.Status(); s != lowering.Terminated {
		t.Errorf("status after enumeration: %s", s)
	}
}

func TestEnumerableRestarts(t *testing.T) {
	scenario, _ := fixtures.Lookup("iterator-finally")
	var out bytes.Buffer
	in, err := New(compile(t, scenario.Build()), WithOutput(&out))
	if err != nil {
		t.Fatal(err)
	}
	v, err := in.Call(context.Background(), "gen", nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		values, err := in.Resolve(context.Background(), v)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]any{int64(1), int64(2), int64(3)}, values); diff != "" {
			t.Errorf("enumeration %d mismatch (-want +got):\n%s", i, diff)
		}
	}
	if got := out.String(); got != "cleanup\ncleanup\n" {
		t.Errorf("got output %q", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	scenario, _ := fixtures.Lookup("squares")
	prog := compile(t, scenario.Build())
	in, err := New(prog)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	v, err := in.Call(ctx, "squares", nil, int64(4))
	if err != nil {
		t.Fatal(err)
	}
	e := v.(*Enumerator)
	for i := 0; i < 2; i++ {
		if ok, err := e.MoveNext(); !ok || err != nil {
			t.Fatalf("MoveNext %d: (%t, %v)", i, ok, err)
		}
	}
	if s := e.Status(); s != lowering.Suspended {
		t.Errorf("status: got %s, want suspended", s)
	}

	b, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := in.Restore(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Current() != e.Current() {
		t.Errorf("current: got %v, want %v", restored.Current(), e.Current())
	}

	original, err := lowering.Collect(e)
	if err != nil {
		t.Fatal(err)
	}
	resumed, err := lowering.Collect(restored)
	if err != nil {
		t.Fatal(err)
	}
	expect := []any{int64(4), int64(9)}
	if diff := cmp.Diff(expect, original); diff != "" {
		t.Errorf("original mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(expect, resumed); diff != "" {
		t.Errorf("restored mismatch (-want +got):\n%s", diff)
	}
}

func TestRestoreErrors(t *testing.T) {
	scenario, _ := fixtures.Lookup("squares")
	in, err := New(compile(t, scenario.Build()))
	if err != nil {
		t.Fatal(err)
	}
	frame, err := lowering.NewFrame("other", 1, nil).MarshalAppend(nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0xff}},
		{"unknown unit", snapshot("nope.iterator1", frame)},
		{"frame mismatch", snapshot(in.prog.Method("squares").Units[0].Name, frame)},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := in.Restore(context.Background(), test.data); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func snapshot(unit string, frame []byte) []byte {
	var b []byte
	b = append(b, snapshotUnit<<3|2, byte(len(unit)))
	b = append(b, unit...)
	b = append(b, snapshotFrame<<3|2, byte(len(frame)))
	return append(b, frame...)
}

func TestNewRejectsUnlowered(t *testing.T) {
	scenario, _ := fixtures.Lookup("loop-capture")
	if _, err := New(scenario.Build()); err == nil {
		t.Error("New accepted a program that was not lowered")
	}
}

func TestCallErrors(t *testing.T) {
	scenario, _ := fixtures.Lookup("squares")
	in, err := New(compile(t, scenario.Build()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.Call(context.Background(), "missing", nil); err == nil {
		t.Error("calling a missing method succeeded")
	}
	if _, err := in.Call(context.Background(), "squares", nil); err == nil {
		t.Error("calling a method with missing arguments succeeded")
	}
}

func TestDispose(t *testing.T) {
	scenario, _ := fixtures.Lookup("iterator-finally")
	prog := compile(t, scenario.Build())

	for _, test := range []struct {
		name   string
		moves  int
		status lowering.Status
		output string
	}{
		{"before MoveNext", 0, lowering.Terminated, ""},
		{"suspended in try", 1, lowering.Disposed, "cleanup\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			in, err := New(prog, WithOutput(&out))
			if err != nil {
				t.Fatal(err)
			}
			v, err := in.Call(context.Background(), "gen", nil)
			if err != nil {
				t.Fatal(err)
			}
			it, err := v.(*Enumerable).GetEnumerator()
			if err != nil {
				t.Fatal(err)
			}
			e := it.(*Enumerator)
			for i := 0; i < test.moves; i++ {
				if _, err := e.MoveNext(); err != nil {
					t.Fatal(err)
				}
			}
			if err := e.Dispose(); err != nil {
				t.Fatal(err)
			}
			if s := e.Status(); s != test.status {
				t.Errorf("status: got %s, want %s", s, test.status)
			}
			if ok, err := e.MoveNext(); ok || err != nil {
				t.Errorf("MoveNext after Dispose: (%t, %v)", ok, err)
			}
			if diff := cmp.Diff(test.output, out.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBranchResume(t *testing.T) {
	t.Run("yield", func(t *testing.T) {
		// gen(n): if n > 0 { yield return 1; yield return 2 }
		b := ir.NewMethod("gen", ir.IteratorMode, ir.Enumerator)
		n := b.Param("n", ir.Int)
		b.If(ir.BinOp(ir.Gtr, ir.Use(n), ir.IntLit(0)), func() {
			b.Yield(ir.IntLit(1))
			b.Yield(ir.IntLit(2))
		}, nil)

		in, err := New(compile(t, ir.NewProgram(b.Method())))
		if err != nil {
			t.Fatal(err)
		}
		for _, test := range []struct {
			arg    int64
			expect []any
		}{
			{5, []any{int64(1), int64(2)}},
			{0, nil},
		} {
			v, err := in.Call(context.Background(), "gen", nil, test.arg)
			if err != nil {
				t.Fatal(err)
			}
			values, err := lowering.Collect(v.(*Enumerator))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.expect, values); diff != "" {
				t.Errorf("gen(%d) mismatch (-want +got):\n%s", test.arg, diff)
			}
		}
	})

	t.Run("await", func(t *testing.T) {
		// main (async): flag := true; if flag { await delay(1); print("a") }
		b := ir.NewMethod("main", ir.AsyncMode, ir.TaskType)
		flag := b.Local("flag", ir.Bool, ir.BoolLit(true))
		b.If(ir.Use(flag), func() {
			b.Await(ir.Host("delay", ir.IntLit(1)))
			b.Print(ir.StrLit("a"))
		}, nil)

		output, _, err := run(t, compile(t, ir.NewProgram(b.Method())), "main")
		if err != nil {
			t.Fatal(err)
		}
		if output != "a\n" {
			t.Errorf("got output %q, want %q", output, "a\n")
		}
	})
}
