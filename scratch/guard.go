// Package scratch manages the temporary chunk directory: bootstrapping,
// orphan cleanup, and the byte-budget gate that stalls chunk production
// while uploads lag behind.
package scratch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/duongdev/comma-sync/logging"
)

// pollInterval is how often the guard re-checks directory usage while
// waiting for capacity.
const pollInterval = 2 * time.Second

// Guard gates chunk production on scratch directory usage.
type Guard struct {
	logger   logging.Logger
	dir      string
	maxBytes int64
}

// NewGuard creates a guard for dir. A maxBytes of 0 disables the gate.
func NewGuard(logger logging.Logger, dir string, maxBytes int64) *Guard {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &Guard{logger: logger, dir: dir, maxBytes: maxBytes}
}

// EnsureDir creates the scratch directory if it doesn't exist
func (g *Guard) EnsureDir() error {
	return os.MkdirAll(g.dir, 0755)
}

// AwaitCapacity blocks until the scratch directory is below the configured
// budget, polling at a fixed interval. It is a no-op when no budget is set.
func (g *Guard) AwaitCapacity(ctx context.Context) error {
	if g.maxBytes <= 0 {
		return nil
	}

	for {
		used, err := g.DirSize()
		if err != nil {
			return err
		}
		if used < g.maxBytes {
			return nil
		}

		g.logger.Info("scratch budget exceeded, waiting for uploads to catch up",
			"dir", g.dir, "used", used, "max", g.maxBytes)

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DirSize returns the total size in bytes of all files under the scratch
// directory.
func (g *Guard) DirSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(g.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A file removed mid-walk by the upload worker is expected.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// CleanOrphans removes every file in the scratch directory. Chunks found at
// startup are never reflected in the ledger, so they are always safe to
// delete.
func (g *Guard) CleanOrphans() {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		g.logger.Warn("failed to read scratch directory", "dir", g.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(g.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			g.logger.Warn("failed to remove orphaned scratch file", "file", path, "error", err)
			continue
		}
		g.logger.Info("removed orphaned scratch file", "file", path)
	}
}
