package uploading

import "fmt"

// TransportError represents a failed delivery attempt. Every transport
// failure is recoverable for the item: the range is re-extracted from the
// ledger offset on a later discovery pass.
type TransportError struct {
	StatusCode  int
	Description string
	InnerError  error
}

func (e *TransportError) Error() string {
	if e.InnerError != nil {
		return fmt.Sprintf("transport error (status %d): %s: %v", e.StatusCode, e.Description, e.InnerError)
	}
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Description)
}

func (e *TransportError) Unwrap() error {
	return e.InnerError
}

func NewTransportError(statusCode int, description string, inner error) error {
	return &TransportError{StatusCode: statusCode, Description: description, InnerError: inner}
}

func IsTransportError(err error) bool {
	_, ok := err.(*TransportError)
	return ok
}
