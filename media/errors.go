package media

import "fmt"

// ProbeError indicates an unreadable or malformed source file. It is fatal
// for that file; the caller skips it and moves on.
type ProbeError struct {
	Path       string
	Reason     string
	InnerError error
}

func (e *ProbeError) Error() string {
	if e.InnerError != nil {
		return fmt.Sprintf("failed to probe %s: %s: %v", e.Path, e.Reason, e.InnerError)
	}
	return fmt.Sprintf("failed to probe %s: %s", e.Path, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.InnerError
}

func NewProbeError(path, reason string, inner error) error {
	return &ProbeError{Path: path, Reason: reason, InnerError: inner}
}

func IsProbeError(err error) bool {
	_, ok := err.(*ProbeError)
	return ok
}
