package lowering

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingEnumerator struct {
	*Slice
	disposed int
}

func (r *recordingEnumerator) Dispose() error {
	r.disposed++
	return nil
}

func TestCollect(t *testing.T) {
	e := &recordingEnumerator{Slice: NewSlice([]any{int64(1), "two", nil})}
	values, err := Collect(e)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{int64(1), "two", nil}, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if e.disposed != 1 {
		t.Errorf("disposed %d times, want 1", e.disposed)
	}
	if ok, _ := e.MoveNext(); ok {
		t.Error("exhausted enumerator moved")
	}
}

func TestRunStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	e := &recordingEnumerator{Slice: NewSlice([]any{1, 2, 3})}
	var seen []any
	err := Run(e, func(v any) error {
		seen = append(seen, v)
		if v == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("got %v, want %v", err, stop)
	}
	if diff := cmp.Diff([]any{1, 2}, seen); diff != "" {
		t.Errorf("seen mismatch (-want +got):\n%s", diff)
	}
	if e.disposed != 1 {
		t.Errorf("disposed %d times, want 1", e.disposed)
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{
		NotStarted: "not-started",
		Suspended:  "suspended",
		Disposed:   "disposed",
		Status(9):  "Status(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
