package lowering

import (
	"container/heap"
	"sync"
)

// Loop is a deterministic scheduler with a logical clock. Tasks created by
// Delay complete when the clock reaches their deadline; their continuations
// run on the goroutine driving the loop.
type Loop struct {
	mu     sync.Mutex
	now    int64
	seq    int64
	timers timerHeap
	posted []func()
}

// Now returns the logical time of the loop.
func (l *Loop) Now() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Delay returns a task that completes with nil after ticks steps of the
// clock. A non-positive delay returns a completed task.
func (l *Loop) Delay(ticks int64) *Task {
	if ticks <= 0 {
		return Completed(nil)
	}
	t := NewTask()
	l.mu.Lock()
	l.seq++
	heap.Push(&l.timers, timer{at: l.now + ticks, seq: l.seq, task: t})
	l.mu.Unlock()
	return t
}

// Post schedules f to run on the next step.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	l.posted = append(l.posted, f)
	l.mu.Unlock()
}

// Step runs posted functions, then advances the clock to the next
// deadline and completes the tasks due. It reports whether any work was
// done.
func (l *Loop) Step() bool {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	var due []*Task
	if len(posted) == 0 && l.timers.Len() > 0 {
		l.now = l.timers[0].at
		for l.timers.Len() > 0 && l.timers[0].at <= l.now {
			due = append(due, heap.Pop(&l.timers).(timer).task)
		}
	}
	l.mu.Unlock()

	for _, f := range posted {
		f()
	}
	for _, t := range due {
		t.SetResult(nil)
	}
	return len(posted) > 0 || len(due) > 0
}

// Run steps the loop until no work remains.
func (l *Loop) Run() {
	for l.Step() {
	}
}

type timer struct {
	at   int64
	seq  int64
	task *Task
}

type timerHeap []timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
