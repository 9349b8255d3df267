package errors

import "github.com/pkg/errors"

// ErrorTracer tags an underlying error with one of the engine's error codes,
// keeping a stack trace for the log.
type ErrorTracer struct {
	Code ErrorCode
	Err  error
}

// NewTracer creates an ErrorTracer for the given code. Wrap attaches the
// underlying error.
func NewTracer(code ErrorCode) *ErrorTracer {
	return &ErrorTracer{Code: code}
}

// StackTracer is implemented by errors carrying a pkg/errors stack trace.
type StackTracer interface {
	StackTrace() errors.StackTrace
}

func (e *ErrorTracer) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Err.Error()
}

func (e *ErrorTracer) Unwrap() error {
	return e.Err
}

// Wrap attaches the underlying error, adding a stack trace when it has none.
func (e *ErrorTracer) Wrap(err error) *ErrorTracer {
	e.Err = err
	if _, ok := err.(StackTracer); !ok {
		e.Err = errors.WithStack(err)
	}
	return e
}

// StackTrace returns the stack trace of the underlying error if it has one.
func (e *ErrorTracer) StackTrace() errors.StackTrace {
	if err, ok := e.Unwrap().(StackTracer); ok {
		return err.StackTrace()
	}
	return nil
}
