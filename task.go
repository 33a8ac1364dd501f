package lowering

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// TaskStatus is the completion state of a Task.
type TaskStatus uint8

const (
	Pending TaskStatus = iota
	Succeeded
	Faulted
	TaskCanceled
)

func (s TaskStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Faulted:
		return "faulted"
	case TaskCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("TaskStatus(%d)", s)
	}
}

// ErrPending is returned by GetResult on a task that has not completed.
var ErrPending = errors.New("task has not completed")

// Task is the result handle of an async machine and the awaitable value
// consumed by await. A task completes once, with a result or an exception;
// cancellation is an exception carrying Canceled.
//
// Continuations run on the goroutine that completes the task, after the
// task's lock is released.
type Task struct {
	mu            sync.Mutex
	status        TaskStatus
	result        any
	err           *Exception
	continuations []func()
	done          chan struct{}
}

// NewTask returns a pending task.
func NewTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Completed returns a task that succeeded with v.
func Completed(v any) *Task {
	t := NewTask()
	t.SetResult(v)
	return t
}

// Failed returns a task that completed with err.
func Failed(err error) *Task {
	t := NewTask()
	t.SetException(err)
	return t
}

// Status returns the completion state of the task.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// IsCompleted reports whether the task has completed in any way.
func (t *Task) IsCompleted() bool {
	return t.Status() != Pending
}

// SetResult completes the task with v.
func (t *Task) SetResult(v any) error {
	return t.complete(Succeeded, v, nil)
}

// SetException completes the task with err. A cancellation exception
// moves the task to the TaskCanceled status.
func (t *Task) SetException(err error) error {
	e := Throw(err)
	status := Faulted
	if IsCanceled(e) {
		status = TaskCanceled
	}
	return t.complete(status, nil, e)
}

// Cancel completes the task with a cancellation exception.
func (t *Task) Cancel(reason string) error {
	return t.SetException(Cancel(reason))
}

func (t *Task) complete(status TaskStatus, v any, err *Exception) error {
	t.mu.Lock()
	if t.status != Pending {
		t.mu.Unlock()
		return fmt.Errorf("task already %s", t.status)
	}
	t.status, t.result, t.err = status, v, err
	continuations := t.continuations
	t.continuations = nil
	close(t.done)
	t.mu.Unlock()

	for _, k := range continuations {
		k()
	}
	return nil
}

// OnCompleted registers k to run when the task completes. If the task has
// already completed, k runs immediately.
func (t *Task) OnCompleted(k func()) {
	t.mu.Lock()
	if t.status == Pending {
		t.continuations = append(t.continuations, k)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	k()
}

// GetResult returns the outcome of a completed task.
func (t *Task) GetResult() (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case Pending:
		return nil, ErrPending
	case Succeeded:
		return t.result, nil
	default:
		return nil, t.err
	}
}

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.GetResult()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
