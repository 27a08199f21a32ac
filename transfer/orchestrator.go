// Package transfer drives the chunked transfer pipeline: probing sources,
// planning chunks, gating on scratch capacity, and feeding the upload queue.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/duongdev/comma-sync/chunking"
	"github.com/duongdev/comma-sync/ledger"
	"github.com/duongdev/comma-sync/logging"
	"github.com/duongdev/comma-sync/media"
	"github.com/duongdev/comma-sync/routes"
	"github.com/duongdev/comma-sync/scratch"
	"github.com/duongdev/comma-sync/uploading"
)

// Options configures per-file transfer behavior.
type Options struct {
	CapBytes          int64
	WindowSeconds     float64
	ShrinkStepSeconds float64
	// DeleteAfterUpload removes the source file once its stream is fully
	// uploaded and housekeeping is done.
	DeleteAfterUpload bool
}

// Orchestrator transfers one source file at a time: probe, resume lookup,
// chunk production, and per-chunk enqueue-and-wait.
type Orchestrator struct {
	logger    logging.Logger
	prober    media.Prober
	extractor media.RangeExtractor
	guard     *scratch.Guard
	queue     uploading.UploadQueue
	ledger    ledger.ProgressLedger
	opts      Options
}

// NewOrchestrator creates a new transfer orchestrator.
func NewOrchestrator(logger logging.Logger, prober media.Prober, extractor media.RangeExtractor, guard *scratch.Guard, queue uploading.UploadQueue, progressLedger ledger.ProgressLedger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &Orchestrator{
		logger:    logger,
		prober:    prober,
		extractor: extractor,
		guard:     guard,
		queue:     queue,
		ledger:    progressLedger,
		opts:      opts,
	}
}

// ProcessFile transfers the remainder of one source file. Errors are local
// to the file: the caller logs them and retries the file on a later cycle.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) error {
	seg, err := routes.ParseSegmentFileName(filepath.Base(path))
	if err != nil {
		return err
	}
	key := seg.Key()

	info, err := o.prober.Probe(path)
	if err != nil {
		return err
	}

	resumeFrom, err := o.ledger.Get(ctx, key)
	if err != nil {
		// Degrade to assuming nothing was uploaded yet; the max-merge on
		// confirmation keeps a re-send harmless.
		o.logger.Warn("failed to read ledger, assuming no progress", "key", key.String(), "error", err)
		resumeFrom = 0
	}

	planner := chunking.NewPlanner(o.logger, o.extractor, path, info.DurationSeconds, resumeFrom, chunking.Options{
		CapBytes:          o.opts.CapBytes,
		WindowSeconds:     o.opts.WindowSeconds,
		ShrinkStepSeconds: o.opts.ShrinkStepSeconds,
	})

	sent := 0
	for {
		if err := o.guard.AwaitCapacity(ctx); err != nil {
			return err
		}

		chunk, err := planner.Next(ctx)
		if err != nil {
			return err
		}
		if chunk == nil {
			break
		}

		job := uploading.NewUploadJob(chunk.Path, key, chunk.EndSeconds, uploading.VideoMeta{
			Caption:           formatCaption(seg, chunk, info),
			Width:             info.Width,
			Height:            info.Height,
			DurationSeconds:   int(chunk.EndSeconds - chunk.StartSeconds),
			SupportsStreaming: true,
		})

		if err := o.queue.Enqueue(ctx, job); err != nil {
			os.Remove(chunk.Path)
			return err
		}

		// Block until the queue resolves the item. This bounds how far
		// chunk production can run ahead of the upload.
		if err := job.Wait(ctx); err != nil {
			// The next cycle re-extracts this range from the ledger
			// offset; a stale copy would only hold scratch space.
			os.Remove(chunk.Path)
			return err
		}
		sent++
	}

	if sent == 0 {
		o.logger.Info("stream already fully uploaded", "key", key.String(), "file", path)
	} else {
		o.logger.Info("stream fully uploaded", "key", key.String(), "file", path, "chunks", sent)
	}

	return o.finish(ctx, key, path)
}

// finish performs the housekeeping that marks a stream processed, distinct
// from fully uploaded.
func (o *Orchestrator) finish(ctx context.Context, key routes.RouteKey, path string) error {
	if err := o.ledger.MarkProcessed(ctx, key); err != nil {
		return err
	}

	if o.opts.DeleteAfterUpload {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete source %s: %w", path, err)
		}
		o.logger.Info("deleted uploaded source", "file", path)
	}

	return nil
}

// formatCaption renders the human-readable chunk caption.
func formatCaption(seg routes.SegmentFile, chunk *chunking.Chunk, info *media.MediaInfo) string {
	return fmt.Sprintf("%s %s [%s - %s / %s]",
		seg.RouteID, seg.Camera,
		formatClock(int(chunk.StartSeconds)),
		formatClock(int(chunk.EndSeconds)),
		formatClock(info.DisplayDurationSeconds()))
}

// formatClock renders seconds as H:MM:SS.
func formatClock(totalSeconds int) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}
