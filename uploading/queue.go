package uploading

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/duongdev/comma-sync/ledger"
	"github.com/duongdev/comma-sync/logging"
)

// advanceAttempts bounds how often a failed ledger write is retried before
// the worker gives up and relies on a later pass re-sending the chunk.
const advanceAttempts = 3

// UploadQueue serializes chunk delivery. At most one transport call is in
// flight at any time, and jobs are dispatched in strict enqueue order.
type UploadQueue interface {
	// Enqueue adds a job in FIFO position, blocking while the buffer is
	// full. The job's handle resolves once it is fully processed.
	Enqueue(ctx context.Context, job *UploadJob) error

	// Len returns the number of jobs waiting for dispatch.
	Len() int

	// Start begins processing the queue
	Start(stopChan <-chan struct{}, wg *sync.WaitGroup)

	// Drain processes remaining uploads during shutdown with timeout
	Drain(timeout time.Duration)
}

// uploadQueue implements UploadQueue with a single worker goroutine.
type uploadQueue struct {
	logger       logging.Logger
	transport    Transport
	ledger       ledger.ProgressLedger
	chatID       int64
	jobs         chan *UploadJob
	sendTimeout  time.Duration
	drainTimeout time.Duration
}

// NewUploadQueue creates a new upload queue. Completed jobs advance the
// ledger and delete their chunk file before the handle resolves.
func NewUploadQueue(logger logging.Logger, transport Transport, progressLedger ledger.ProgressLedger, chatID int64, bufferSize int, sendTimeout, drainTimeout time.Duration) UploadQueue {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &uploadQueue{
		logger:       logger,
		transport:    transport,
		ledger:       progressLedger,
		chatID:       chatID,
		jobs:         make(chan *UploadJob, bufferSize),
		sendTimeout:  sendTimeout,
		drainTimeout: drainTimeout,
	}
}

// Enqueue adds a job in FIFO position, blocking while the buffer is full.
func (q *uploadQueue) Enqueue(ctx context.Context, job *UploadJob) error {
	select {
	case q.jobs <- job:
		q.logger.Debug("queued chunk for upload", "file", job.FilePath, "key", job.Key.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of jobs waiting for dispatch.
func (q *uploadQueue) Len() int {
	return len(q.jobs)
}

// Start begins processing the queue
func (q *uploadQueue) Start(stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job := <-q.jobs:
			q.process(job)
		case <-stopChan:
			// Process remaining uploads with timeout
			q.drain(q.drainTimeout)
			return
		}
	}
}

// Drain processes remaining uploads during shutdown with timeout
func (q *uploadQueue) Drain(timeout time.Duration) {
	q.drain(timeout)
}

func (q *uploadQueue) drain(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case job := <-q.jobs:
			q.process(job)
		case <-timer.C:
			q.logger.Warn("upload queue drain timeout, forcing shutdown")
			return
		default:
			// No more uploads in queue
			return
		}
	}
}

// process sends one chunk and performs its ledger side effect. It resolves
// the job's handle exactly once, then returns so the worker can move to the
// next queue position.
func (q *uploadQueue) process(job *UploadJob) {
	q.logger.Info("uploading chunk",
		"file", job.FilePath, "key", job.Key.String(), "range_end", job.RangeEndSeconds)

	ctx, cancel := context.WithTimeout(context.Background(), q.sendTimeout)
	err := q.transport.SendVideo(ctx, q.chatID, job.FilePath, job.Meta)
	cancel()

	if err != nil {
		// The chunk file is left for the caller: the completion handle
		// carries the failure, and the producer decides whether to
		// reclaim or re-offer the file.
		q.logger.Error("failed to upload chunk", "file", job.FilePath, "error", err)
		job.resolve(err)
		return
	}

	q.confirmDelivery(job)

	if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
		q.logger.Warn("failed to remove uploaded chunk", "file", job.FilePath, "error", err)
	}

	q.logger.Info("uploaded chunk", "file", job.FilePath, "key", job.Key.String())
	job.resolve(nil)
}

// confirmDelivery advances the ledger with bounded retries. A persistently
// failing write is logged and skipped: delivery is at-least-once, so the
// worst case is a re-send from the previous confirmed offset.
func (q *uploadQueue) confirmDelivery(job *UploadJob) {
	var err error
	for attempt := 1; attempt <= advanceAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = q.ledger.Advance(ctx, job.Key, job.RangeEndSeconds)
		cancel()
		if err == nil {
			return
		}
		q.logger.Warn("failed to advance ledger",
			"key", job.Key.String(), "candidate", job.RangeEndSeconds,
			"attempt", attempt, "error", err)
		time.Sleep(500 * time.Millisecond)
	}
	q.logger.Error("progress not recorded, chunk may be re-sent later",
		"key", job.Key.String(), "candidate", job.RangeEndSeconds, "error", err)
}
