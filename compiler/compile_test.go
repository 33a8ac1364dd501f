package compiler

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stealthrocket/lowering/internal/fixtures"
	"github.com/stealthrocket/lowering/ir"
)

// loopCapture builds:
//
//	fs := list()
//	for i := 0; i < 3; i++ { append(fs, func() { return i }) }
func loopCapture() (*ir.Method, ir.BindingID) {
	b := ir.NewMethod("m", ir.Plain, ir.Void)
	fs := b.Local("fs", ir.Any, ir.Host("list"))
	var i ir.BindingID
	b.Count("i", 0, 3, func(id ir.BindingID) {
		i = id
		b.Do(ir.Host("append", ir.Use(fs), b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
			lb.Return(ir.Use(id))
		})))
	})
	return b.Method(), i
}

func TestMethodWithoutUnits(t *testing.T) {
	b := ir.NewMethod("plain", ir.Plain, ir.Int)
	x := b.Local("x", ir.Int, ir.IntLit(1))
	b.Return(ir.Use(x))
	m := b.Method()

	got, diags, err := Method(m)
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Error("a method without units was copied")
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
}

func TestMethodLowerOnce(t *testing.T) {
	m, _ := loopCapture()

	lowered, _, err := Method(m)
	if err != nil {
		t.Fatal(err)
	}
	if lowered == m {
		t.Fatal("lowering returned the input method")
	}
	if m.Lowered || len(m.Units) != 0 {
		t.Error("lowering modified the input method")
	}
	if !lowered.Lowered || len(lowered.Units) != 1 {
		t.Fatalf("lowered method has %d units", len(lowered.Units))
	}
	ir.Inspect(lowered.Body, func(n ir.Node) bool {
		if ir.IsSpecial(n) {
			t.Errorf("lowered body still contains %s", ir.Sprint(lowered, n))
		}
		return true
	})

	again, _, err := Method(lowered)
	if err != nil {
		t.Fatal(err)
	}
	if again != lowered {
		t.Error("lowering a lowered method produced a new method")
	}
}

func TestAnalyzeCapturesNested(t *testing.T) {
	b := ir.NewMethod("m", ir.Plain, ir.Func)
	x := b.Local("x", ir.Int, ir.IntLit(1))
	var inner *ir.Lambda
	outer := b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		inner = lb.Func(nil, func(ib *ir.Builder, _ []ir.BindingID) {
			ib.Return(ir.Use(x))
		})
		g := lb.Local("g", ir.Func, inner)
		lb.Return(ir.Use(g))
	})
	b.Return(outer)
	m := b.Method()

	caps := AnalyzeCaptures(m, true)
	if len(caps.Units) != 3 {
		t.Fatalf("got %d units, want 3", len(caps.Units))
	}
	expect := []CaptureEdge{
		{Binding: x, Unit: inner.Scope},
		{Binding: x, Unit: outer.Scope},
	}
	if diff := cmp.Diff(expect, caps.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if !caps.Unit(outer.Scope).Captured.Has(int(x)) {
		t.Error("outer lambda does not carry the binding captured by the inner one")
	}
	if !caps.RequiresFrame.Has(int(m.Scope)) || caps.RequiresFrame.Len() != 1 {
		t.Errorf("scopes requiring a frame: %s", caps.RequiresFrame.String())
	}
	if caps.Units[0].HasCaptures() {
		t.Error("method unit captures bindings")
	}
}

func TestAnalyzeCapturesThis(t *testing.T) {
	b := ir.NewMethod("m", ir.Plain, ir.Func)
	this := b.This()
	l := b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Return(ir.CallMethod(ir.Use(this), "Name"))
	})
	b.Return(l)

	caps := AnalyzeCaptures(b.Method(), true)
	if u := caps.Unit(l.Scope); !u.CapturesThis {
		t.Error("lambda using the receiver does not capture it")
	}
}

func TestPlanFramesLoopCapture(t *testing.T) {
	for _, test := range []struct {
		name         string
		perIteration bool
	}{
		{"per-iteration", true},
		{"shared", false},
	} {
		t.Run(test.name, func(t *testing.T) {
			m, i := loopCapture()
			caps := AnalyzeCaptures(m, test.perIteration)
			plan, err := PlanFrames(m, caps, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(plan.Frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(plan.Frames))
			}
			f := plan.Holder(i)
			if f == nil {
				t.Fatal("captured loop variable has no frame")
			}
			if f.Scope != m.Binding(i).Scope {
				t.Error("loop variable frame is not allocated by the loop header")
			}
			if f.PerIteration != test.perIteration {
				t.Errorf("per-iteration: got %t, want %t", f.PerIteration, test.perIteration)
			}
			if env := plan.Env(caps.Units[1]); env != f {
				t.Error("lambda is not bound to the loop variable frame")
			}
		})
	}
}

func TestCompileDiagnostics(t *testing.T) {
	scenario, ok := fixtures.Lookup("rejected")
	if !ok {
		t.Fatal("missing rejected scenario")
	}
	res, err := Compile(context.Background(), scenario.Build())
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	var codes []string
	for _, d := range res.Diagnostics {
		if d.Method == "" || d.Message == "" {
			t.Errorf("incomplete diagnostic %+v", d)
		}
		if !seen[string(d.Code)] {
			seen[string(d.Code)] = true
			codes = append(codes, string(d.Code))
		}
	}
	sort.Strings(codes)
	if diff := cmp.Diff(scenario.Codes, codes); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	if res.Errors() == nil {
		t.Error("result with diagnostics reports no errors")
	}
}

func TestCompileFixtures(t *testing.T) {
	for _, scenario := range fixtures.Runnable() {
		t.Run(scenario.Name, func(t *testing.T) {
			prog := scenario.Build()
			res, err := Compile(context.Background(), prog, WithWorkers(2))
			if err != nil {
				t.Fatal(err)
			}
			if err := res.Errors(); err != nil {
				t.Fatal(err)
			}
			if len(res.Program.Methods) != len(prog.Methods) {
				t.Fatalf("got %d methods, want %d", len(res.Program.Methods), len(prog.Methods))
			}
			for i, m := range res.Program.Methods {
				if m.Name != prog.Methods[i].Name {
					t.Errorf("method %d: got %s, want %s", i, m.Name, prog.Methods[i].Name)
				}
				for _, f := range m.Frames {
					if f.PerIteration && f.Machine {
						t.Errorf("%s: machine frame %s is per-iteration", m.Name, f.Name)
					}
				}
			}
		})
	}
}

func TestCompileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, _ := loopCapture()
	if _, err := Compile(ctx, ir.NewProgram(m)); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestInternalError(t *testing.T) {
	var err error = internalf("m", "slot %d missing", 3)
	var internal *InternalError
	if !errors.As(err, &internal) {
		t.Fatal("not an InternalError")
	}
	if got, want := err.Error(), "internal error lowering m: slot 3 missing"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	for _, test := range []struct {
		name   string
		opts   []Option
		expect MethodReport
	}{
		{
			name: "per-iteration",
			expect: MethodReport{
				Name:    "m",
				Mode:    "plain",
				Lowered: true,
				Units: []UnitReport{
					{Name: "m.closure1", Kind: "closure", Env: "m.frame1", Captures: []string{"i"}},
				},
				Frames: []FrameReport{
					{Name: "m.frame1", Slots: []string{"i"}, PerIteration: true},
				},
			},
		},
		{
			name: "shared",
			opts: []Option{WithPerIterationCapture(false)},
			expect: MethodReport{
				Name:    "m",
				Mode:    "plain",
				Lowered: true,
				Units: []UnitReport{
					{Name: "m.closure1", Kind: "closure", Env: "m.frame1", Captures: []string{"i"}},
				},
				Frames: []FrameReport{
					{Name: "m.frame1", Slots: []string{"i"}},
				},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			m, _ := loopCapture()
			res, err := Compile(context.Background(), ir.NewProgram(m), test.opts...)
			if err != nil {
				t.Fatal(err)
			}
			rep := res.Report()
			if diff := cmp.Diff(test.expect, rep.Methods[0]); diff != "" {
				t.Errorf("report mismatch (-want +got):\n%s", diff)
			}

			b, err := rep.MarshalCBOR()
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := UnmarshalReport(b)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(rep, decoded); diff != "" {
				t.Errorf("decoded report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReportCachedLambda(t *testing.T) {
	b := ir.NewMethod("m", ir.Plain, ir.Func)
	b.Return(b.Func([]string{"x"}, func(lb *ir.Builder, ps []ir.BindingID) {
		lb.Return(ir.BinOp(ir.Add, ir.Use(ps[0]), ir.IntLit(1)))
	}))

	for _, test := range []struct {
		cache  bool
		expect bool
	}{
		{true, true},
		{false, false},
	} {
		res, err := Compile(context.Background(), ir.NewProgram(b.Method()), WithCachedStaticLambdas(test.cache))
		if err != nil {
			t.Fatal(err)
		}
		units := res.Report().Methods[0].Units
		if len(units) != 1 {
			t.Fatalf("got %d units, want 1", len(units))
		}
		if units[0].Cached != test.expect {
			t.Errorf("cache=%t: cached unit reported as %t", test.cache, units[0].Cached)
		}
		if units[0].Env != "" {
			t.Errorf("static lambda bound to %s", units[0].Env)
		}
	}
}

func TestLowerIfWithoutElse(t *testing.T) {
	for _, test := range []struct {
		name  string
		mode  ir.Mode
		build func(b *ir.Builder, n ir.BindingID)
	}{
		{
			name: "iterator",
			mode: ir.IteratorMode,
			build: func(b *ir.Builder, n ir.BindingID) {
				b.If(ir.BinOp(ir.Gtr, ir.Use(n), ir.IntLit(0)), func() { b.Print(ir.Use(n)) }, nil)
				b.Yield(ir.Use(n))
			},
		},
		{
			name: "async",
			mode: ir.AsyncMode,
			build: func(b *ir.Builder, n ir.BindingID) {
				b.If(ir.BinOp(ir.Gtr, ir.Use(n), ir.IntLit(0)), func() { b.Print(ir.Use(n)) }, nil)
				b.Await(ir.Host("delay", ir.Use(n)))
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			typ := ir.Enumerator
			if test.mode == ir.AsyncMode {
				typ = ir.TaskType
			}
			b := ir.NewMethod("m", test.mode, typ)
			test.build(b, b.Param("n", ir.Int))

			lowered, diags, err := Method(b.Method())
			if err != nil {
				t.Fatal(err)
			}
			if len(diags) != 0 {
				t.Errorf("unexpected diagnostics: %v", diags)
			}
			if len(lowered.Units) != 1 {
				t.Fatalf("got %d units, want 1", len(lowered.Units))
			}
		})
	}
}

func TestConditionLiveAcrossBranchSuspension(t *testing.T) {
	// pair(n): if n > 0 { yield return n; yield return n + 1 } else { yield return 0 }
	b := ir.NewMethod("pair", ir.IteratorMode, ir.Enumerator)
	n := b.Param("n", ir.Int)
	b.If(ir.BinOp(ir.Gtr, ir.Use(n), ir.IntLit(0)), func() {
		b.Yield(ir.Use(n))
		b.Yield(ir.BinOp(ir.Add, ir.Use(n), ir.IntLit(1)))
	}, func() {
		b.Yield(ir.IntLit(0))
	})

	lowered, _, err := Method(b.Method())
	if err != nil {
		t.Fatal(err)
	}
	code, ok := lowered.Units[0].Code.(*ir.IteratorCode)
	if !ok {
		t.Fatalf("got %T, want *ir.IteratorCode", lowered.Units[0].Code)
	}
	if len(code.Suspensions) != 3 {
		t.Fatalf("got %d suspension points, want 3", len(code.Suspensions))
	}
	for _, p := range code.Suspensions {
		found := false
		for _, id := range p.Live {
			if lowered.Binding(id).Name == "~t1" {
				found = true
			}
		}
		if !found {
			t.Errorf("state %d: branch condition is not live", p.State)
		}
	}
}

func TestRefCapturePlaceholder(t *testing.T) {
	b := ir.NewMethod("refcap", ir.Plain, ir.Func)
	r := b.RefParam("r", ir.Int)
	b.Return(b.Func(nil, func(lb *ir.Builder, _ []ir.BindingID) {
		lb.Return(ir.BinOp(ir.Add, ir.Use(r), ir.Use(r)))
	}))

	lowered, diags, err := Method(b.Method())
	if err != nil {
		t.Fatal(err)
	}
	var codes []Code
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	if diff := cmp.Diff([]Code{ErrRefCapture}, codes); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	if len(lowered.Frames) != 0 {
		t.Errorf("by-reference binding moved to frame %s", lowered.Frames[0].Name)
	}
	if len(lowered.Units) != 1 {
		t.Fatalf("got %d units, want 1", len(lowered.Units))
	}
	code := lowered.Units[0].Code.(*ir.ClosureCode)
	bad := 0
	ir.Inspect(code.Invoke, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Bad:
			if n.Code == string(ErrRefCapture) {
				bad++
			}
		case *ir.Slot:
			t.Errorf("closure still reads %s", ir.Sprint(lowered, n))
		}
		return true
	})
	if bad != 2 {
		t.Errorf("got %d placeholders, want 2", bad)
	}
}
