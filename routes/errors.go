package routes

import "fmt"

// InvalidFileNameError indicates a file name that does not follow the
// segment naming convention.
type InvalidFileNameError struct {
	Name   string
	Reason string
}

func (e *InvalidFileNameError) Error() string {
	return fmt.Sprintf("invalid segment file name %q: %s", e.Name, e.Reason)
}

func NewInvalidFileNameError(name, reason string) error {
	return &InvalidFileNameError{Name: name, Reason: reason}
}

func IsInvalidFileNameError(err error) bool {
	_, ok := err.(*InvalidFileNameError)
	return ok
}
