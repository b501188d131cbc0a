package deleter

import "errors"

// structuralError marks failures that must abort the whole run: unresolvable
// type lookups, audit-table failures, malformed reports. Row-local failures
// are returned unwrapped and the run continues with the next unit.
type structuralError struct {
	err error
}

func (e *structuralError) Error() string { return e.err.Error() }
func (e *structuralError) Unwrap() error { return e.err }

func structural(err error) error {
	if err == nil {
		return nil
	}
	return &structuralError{err: err}
}

// IsStructural reports whether err must abort the run.
func IsStructural(err error) bool {
	var se *structuralError
	return errors.As(err, &se)
}
