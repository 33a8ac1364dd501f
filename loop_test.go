package lowering

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoop(t *testing.T) {
	var loop Loop
	var events []string
	record := func(name string) func() {
		return func() { events = append(events, fmt.Sprintf("%s@%d", name, loop.Now())) }
	}

	loop.Delay(2).OnCompleted(record("b"))
	loop.Delay(1).OnCompleted(record("a"))
	loop.Delay(2).OnCompleted(record("c"))
	loop.Post(record("posted"))
	if !loop.Delay(0).IsCompleted() {
		t.Error("zero delay returned a pending task")
	}

	loop.Run()

	expect := []string{"posted@0", "a@1", "b@2", "c@2"}
	if diff := cmp.Diff(expect, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if loop.Step() {
		t.Error("idle loop reported work")
	}
}

func TestLoopPostFromContinuation(t *testing.T) {
	var loop Loop
	var order []string
	loop.Delay(1).OnCompleted(func() {
		order = append(order, "timer")
		loop.Post(func() { order = append(order, "posted") })
	})
	loop.Delay(5).OnCompleted(func() { order = append(order, "late") })
	loop.Run()

	expect := []string{"timer", "posted", "late"}
	if diff := cmp.Diff(expect, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if loop.Now() != 5 {
		t.Errorf("clock: got %d, want 5", loop.Now())
	}
}
