package lowering

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTaskResult(t *testing.T) {
	task := NewTask()
	if _, err := task.GetResult(); !errors.Is(err, ErrPending) {
		t.Fatalf("pending task: got %v, want ErrPending", err)
	}

	var ran []string
	task.OnCompleted(func() { ran = append(ran, "first") })
	if len(ran) != 0 {
		t.Fatal("continuation ran before completion")
	}
	if err := task.SetResult(int64(3)); err != nil {
		t.Fatal(err)
	}
	task.OnCompleted(func() { ran = append(ran, "late") })

	if fmt.Sprint(ran) != "[first late]" {
		t.Errorf("continuations: got %v", ran)
	}
	if v, err := task.GetResult(); err != nil || v != int64(3) {
		t.Errorf("got (%v, %v), want (3, nil)", v, err)
	}
	if err := task.SetResult(nil); err == nil {
		t.Error("completing a task twice succeeded")
	}
}

func TestTaskException(t *testing.T) {
	for _, test := range []struct {
		name     string
		complete func(*Task) error
		status   TaskStatus
		canceled bool
	}{
		{
			name:     "exception",
			complete: func(t *Task) error { return t.SetException(Throw("boom")) },
			status:   Faulted,
		},
		{
			name:     "go error",
			complete: func(t *Task) error { return t.SetException(errors.New("io")) },
			status:   Faulted,
		},
		{
			name:     "cancel",
			complete: func(t *Task) error { return t.Cancel("stop") },
			status:   TaskCanceled,
			canceled: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			task := NewTask()
			if err := test.complete(task); err != nil {
				t.Fatal(err)
			}
			if s := task.Status(); s != test.status {
				t.Errorf("status: got %s, want %s", s, test.status)
			}
			_, err := task.GetResult()
			var e *Exception
			if !errors.As(err, &e) {
				t.Fatalf("result error %v is not an exception", err)
			}
			if IsCanceled(err) != test.canceled {
				t.Errorf("IsCanceled: got %t, want %t", IsCanceled(err), test.canceled)
			}
		})
	}
}

func TestTaskWait(t *testing.T) {
	task := Completed("done")
	if v, err := task.Wait(context.Background()); err != nil || v != "done" {
		t.Errorf("got (%v, %v)", v, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTask().Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestThrowIdentity(t *testing.T) {
	e := Throw("boom")
	if Throw(e) != e {
		t.Error("rethrowing an exception created a new one")
	}
	if Throw(fmt.Errorf("wrapped: %w", e)) != e {
		t.Error("throwing an error wrapping an exception created a new one")
	}
	if got := Cancel("").Error(); got != "operation canceled" {
		t.Errorf("got %q", got)
	}
	if got := e.Error(); got != "exception: boom" {
		t.Errorf("got %q", got)
	}
}
