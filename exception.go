package lowering

import (
	"errors"
	"fmt"
)

// Exception is a value thrown by lowered code. It travels as a Go error
// through MoveNext, task results and the evaluator.
type Exception struct {
	Value any
}

func (e *Exception) Error() string {
	if c, ok := e.Value.(Canceled); ok {
		return c.Error()
	}
	return fmt.Sprintf("exception: %v", e.Value)
}

// Throw wraps v into an Exception. Exceptions and errors wrapping one are
// returned unchanged so that rethrowing preserves identity.
func Throw(v any) *Exception {
	switch v := v.(type) {
	case *Exception:
		return v
	case error:
		var e *Exception
		if errors.As(v, &e) {
			return e
		}
	}
	return &Exception{Value: v}
}

// Canceled is the value of the exception delivered to code awaiting a
// canceled operation.
type Canceled struct {
	Reason string
}

func (c Canceled) Error() string {
	if c.Reason == "" {
		return "operation canceled"
	}
	return "operation canceled: " + c.Reason
}

// Cancel returns the exception signalling cancellation.
func Cancel(reason string) *Exception {
	return &Exception{Value: Canceled{Reason: reason}}
}

// IsCanceled reports whether err carries a cancellation exception.
func IsCanceled(err error) bool {
	var e *Exception
	if !errors.As(err, &e) {
		return false
	}
	_, ok := e.Value.(Canceled)
	return ok
}
