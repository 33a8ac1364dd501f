package compiler

import "fmt"

// Code is the stable identifier of a user-facing diagnostic.
type Code string

const (
	// ErrRefCapture: a by-reference binding is used inside a unit that can
	// outlive the frame owning it.
	ErrRefCapture Code = "L1001"
	// ErrYieldInTryCatch: yield inside the body of a try with a catch.
	ErrYieldInTryCatch Code = "L1002"
	// ErrYieldInHandler: yield inside a catch or finally block.
	ErrYieldInHandler Code = "L1003"
	// ErrYieldOutsideIterator: yield in a body that is not an iterator.
	ErrYieldOutsideIterator Code = "L1004"
	// ErrAwaitOutsideAsync: await in a body that is not async.
	ErrAwaitOutsideAsync Code = "L1005"
	// ErrRefParamInResumable: by-reference parameter on an iterator or
	// async body.
	ErrRefParamInResumable Code = "L1006"
	// ErrReturnValueInIterator: return with a value in an iterator body.
	ErrReturnValueInIterator Code = "L1007"
)

// Diagnostic is a user-facing error. Compilation continues past a
// diagnostic with a placeholder node in place of the offending one.
type Diagnostic struct {
	Method  string `cbor:"method"`
	Code    Code   `cbor:"code"`
	Message string `cbor:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Method, d.Code, d.Message)
}

// diagnostics accumulates the diagnostics of one method.
type diagnostics struct {
	method string
	list   []Diagnostic
}

func (d *diagnostics) report(code Code, format string, args ...any) {
	d.list = append(d.list, Diagnostic{
		Method:  d.method,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// InternalError reports a violated invariant of the pass itself. It aborts
// the whole compilation.
type InternalError struct {
	Method string
	Msg    string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error lowering %s: %s", e.Method, e.Msg)
}

func internalf(method, format string, args ...any) *InternalError {
	return &InternalError{Method: method, Msg: fmt.Sprintf(format, args...)}
}
