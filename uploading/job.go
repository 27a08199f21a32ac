package uploading

import (
	"context"

	"github.com/duongdev/comma-sync/routes"
)

// UploadJob represents one chunk file ready for delivery. Its completion
// handle is signaled exactly once: nil after the transport call and its
// ledger side effect completed, or the terminal error otherwise.
type UploadJob struct {
	FilePath string
	Key      routes.RouteKey
	// RangeEndSeconds is the ledger candidate confirmed by this chunk.
	RangeEndSeconds float64
	Meta            VideoMeta

	done chan error
}

// NewUploadJob creates a job for one chunk file.
func NewUploadJob(filePath string, key routes.RouteKey, rangeEndSeconds float64, meta VideoMeta) *UploadJob {
	return &UploadJob{
		FilePath:        filePath,
		Key:             key,
		RangeEndSeconds: rangeEndSeconds,
		Meta:            meta,
		done:            make(chan error, 1),
	}
}

// resolve signals the completion handle. The queue worker calls this
// exactly once per job.
func (j *UploadJob) resolve(err error) {
	j.done <- err
}

// Wait blocks until the job is fully processed or the context ends.
func (j *UploadJob) Wait(ctx context.Context) error {
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
