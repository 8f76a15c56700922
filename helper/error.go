package helper

import "fmt"

// Error wraps an error with the operation that produced it.
type Error struct {
	Operation string
	Err       error
}

// NewError returns a new Error for the given operation.
// A nil err yields an Error that only carries the operation name.
func NewError(operation string, err error) *Error {
	return &Error{
		Operation: operation,
		Err:       err,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("error %s", e.Operation)
	}
	return fmt.Sprintf("error %s: %v", e.Operation, e.Err)
}

// Unwrap makes the wrapped error available to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}
