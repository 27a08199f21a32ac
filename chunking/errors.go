package chunking

import "fmt"

// ChunkTooLargeError indicates a range that exceeds the byte cap even at the
// smallest width the shrink step allows. The content's local bitrate is
// higher than the cap can accommodate; the rest of the file's plan is
// abandoned.
type ChunkTooLargeError struct {
	Source       string
	StartSeconds float64
	CapBytes     int64
}

func (e *ChunkTooLargeError) Error() string {
	return fmt.Sprintf("chunk of %s starting at %.1fs cannot fit under %d bytes", e.Source, e.StartSeconds, e.CapBytes)
}

func NewChunkTooLargeError(source string, startSeconds float64, capBytes int64) error {
	return &ChunkTooLargeError{Source: source, StartSeconds: startSeconds, CapBytes: capBytes}
}

func IsChunkTooLargeError(err error) bool {
	_, ok := err.(*ChunkTooLargeError)
	return ok
}
