package storage

import "fmt"

// UnavailableError wraps a transient persistence failure. The logical
// operation it interrupted was rolled back in full; the caller may retry
// the whole operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as an UnavailableError, passing nil through.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}

	return UnavailableError{Op: op, Err: err}
}
