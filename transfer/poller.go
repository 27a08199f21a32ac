package transfer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/duongdev/comma-sync/fleet"
	"github.com/duongdev/comma-sync/ledger"
	"github.com/duongdev/comma-sync/logging"
	"github.com/duongdev/comma-sync/routes"
)

// UploadPoller repeatedly discovers unfinished source files in the clips
// directory and runs the orchestrator once per file. Per-file errors never
// abort the loop; the file is retried on the next cycle.
type UploadPoller struct {
	logger       logging.Logger
	clipsDir     string
	orchestrator *Orchestrator
	ledger       ledger.ProgressLedger
	interval     time.Duration
	cycles       atomic.Uint64
}

// NewUploadPoller creates a new upload poller.
func NewUploadPoller(logger logging.Logger, clipsDir string, orchestrator *Orchestrator, progressLedger ledger.ProgressLedger, interval time.Duration) *UploadPoller {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &UploadPoller{
		logger:       logger,
		clipsDir:     clipsDir,
		orchestrator: orchestrator,
		ledger:       progressLedger,
		interval:     interval,
	}
}

// Run loops until the context ends, with a fixed delay between cycles.
func (p *UploadPoller) Run(ctx context.Context) {
	for {
		p.RunCycle(ctx)
		p.cycles.Add(1)

		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle performs one discovery pass over the clips directory.
func (p *UploadPoller) RunCycle(ctx context.Context) {
	entries, err := os.ReadDir(p.clipsDir)
	if err != nil {
		p.logger.Error("failed to read clips directory", "dir", p.clipsDir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		seg, err := routes.ParseSegmentFileName(entry.Name())
		if err != nil {
			p.logger.Debug("skipping non-segment file", "file", entry.Name())
			continue
		}

		processed, err := p.ledger.IsProcessed(ctx, seg.Key())
		if err != nil {
			p.logger.Warn("failed to read processed flag", "key", seg.Key().String(), "error", err)
		}
		if processed {
			continue
		}

		path := filepath.Join(p.clipsDir, entry.Name())
		if err := p.orchestrator.ProcessFile(ctx, path); err != nil {
			p.logger.Error("failed to transfer file, will retry next cycle", "file", path, "error", err)
		}
	}
}

// Cycles returns the number of completed discovery cycles.
func (p *UploadPoller) Cycles() uint64 {
	return p.cycles.Load()
}

// DownloadPoller repeatedly lists remote routes and downloads segment files
// that are not yet present locally and not already processed.
type DownloadPoller struct {
	logger   logging.Logger
	client   fleet.Client
	clipsDir string
	ledger   ledger.ProgressLedger
	interval time.Duration
	cycles   atomic.Uint64
}

// NewDownloadPoller creates a new download poller.
func NewDownloadPoller(logger logging.Logger, client fleet.Client, clipsDir string, progressLedger ledger.ProgressLedger, interval time.Duration) *DownloadPoller {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &DownloadPoller{
		logger:   logger,
		client:   client,
		clipsDir: clipsDir,
		ledger:   progressLedger,
		interval: interval,
	}
}

// Run loops until the context ends, with a fixed delay between cycles.
func (p *DownloadPoller) Run(ctx context.Context) {
	for {
		p.RunCycle(ctx)
		p.cycles.Add(1)

		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle performs one listing-and-download pass.
func (p *DownloadPoller) RunCycle(ctx context.Context) {
	listings, err := p.client.ListRoutes(ctx)
	if err != nil {
		p.logger.Error("failed to list remote routes", "error", err)
		return
	}

	for _, listing := range listings {
		for _, file := range listing.Files {
			if ctx.Err() != nil {
				return
			}

			seg, err := routes.ParseSegmentFileName(file.Name)
			if err != nil {
				p.logger.Debug("skipping remote file with unexpected name", "file", file.Name)
				continue
			}

			processed, err := p.ledger.IsProcessed(ctx, seg.Key())
			if err != nil {
				p.logger.Warn("failed to read processed flag", "key", seg.Key().String(), "error", err)
			}
			if processed {
				continue
			}

			destPath := filepath.Join(p.clipsDir, file.Name)
			if _, err := os.Stat(destPath); err == nil {
				continue
			}

			p.logger.Info("downloading segment", "file", file.Name, "size", file.SizeBytes)
			if err := p.client.Download(ctx, file.URL, destPath); err != nil {
				p.logger.Error("failed to download segment, will retry next cycle", "file", file.Name, "error", err)
			}
		}
	}
}

// Cycles returns the number of completed listing cycles.
func (p *DownloadPoller) Cycles() uint64 {
	return p.cycles.Load()
}
