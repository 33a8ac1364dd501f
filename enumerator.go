package lowering

import (
	"errors"
	"fmt"
)

// Enumerator is the pull-based protocol implemented by iterator machines.
// Enumerators are single-consumer: MoveNext, Current and Dispose must not
// be called concurrently.
type Enumerator interface {
	MoveNext() (bool, error)
	Current() any
	Dispose() error
}

// Enumerable produces a fresh Enumerator for each enumeration.
type Enumerable interface {
	GetEnumerator() (Enumerator, error)
}

// Status is the lifecycle state of a machine.
type Status uint8

const (
	NotStarted Status = iota
	Running
	Suspended
	Terminated
	Disposed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Run enumerates e to completion, calling f for each element. The
// enumerator is disposed when Run returns, including when f fails, so that
// finally blocks active in the enumerator run.
func Run(e Enumerator, f func(any) error) (err error) {
	defer func() {
		err = errors.Join(err, e.Dispose())
	}()
	for {
		ok, err := e.MoveNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := f(e.Current()); err != nil {
			return err
		}
	}
}

// Collect returns all elements of e.
func Collect(e Enumerator) ([]any, error) {
	var values []any
	err := Run(e, func(v any) error {
		values = append(values, v)
		return nil
	})
	return values, err
}

// Slice enumerates the elements of a Go slice.
type Slice struct {
	values []any
	index  int
}

// NewSlice returns an enumerator over values.
func NewSlice(values []any) *Slice {
	return &Slice{values: values, index: -1}
}

func (s *Slice) MoveNext() (bool, error) {
	if s.index+1 >= len(s.values) {
		s.index = len(s.values)
		return false, nil
	}
	s.index++
	return true, nil
}

func (s *Slice) Current() any {
	if s.index < 0 || s.index >= len(s.values) {
		return nil
	}
	return s.values[s.index]
}

func (s *Slice) Dispose() error { return nil }
