package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duongdev/comma-sync/ledger"
	"github.com/duongdev/comma-sync/media"
	"github.com/duongdev/comma-sync/routes"
	"github.com/duongdev/comma-sync/scratch"
	"github.com/duongdev/comma-sync/uploading"
)

// fakeProber returns a canned result regardless of path.
type fakeProber struct {
	info *media.MediaInfo
	err  error
}

func (f *fakeProber) Probe(path string) (*media.MediaInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	info.Path = path
	return &info, nil
}

// fakeExtractor writes real files whose size sizeFor controls.
type fakeExtractor struct {
	mu      sync.Mutex
	dir     string
	sizeFor func(start, end float64) int
	calls   int
}

func (f *fakeExtractor) ExtractRange(ctx context.Context, src string, start, end float64) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	path := filepath.Join(f.dir, fmt.Sprintf("fake_%d.mp4", n))
	size := 10
	if f.sizeFor != nil {
		size = f.sizeFor(start, end)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, size), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	orchestrator *Orchestrator
	transport    *uploading.MockTransport
	ledger       ledger.ProgressLedger
	extractor    *fakeExtractor
	scratchDir   string
}

func setupHarness(t *testing.T, prober media.Prober, opts Options) *harness {
	return setupHarnessWithBudget(t, prober, opts, 0)
}

func setupHarnessWithBudget(t *testing.T, prober media.Prober, opts Options, scratchBudget int64) *harness {
	t.Helper()

	db, err := ledger.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	progressLedger, err := ledger.NewSQLiteProgressLedger(db)
	require.NoError(t, err)

	transport := uploading.NewMockTransport()
	queue := uploading.NewUploadQueue(nil, transport, progressLedger, 42, 4, 5*time.Second, time.Second)

	stopChan := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go queue.Start(stopChan, &wg)
	t.Cleanup(func() {
		close(stopChan)
		wg.Wait()
	})

	scratchDir := t.TempDir()
	extractor := &fakeExtractor{dir: scratchDir}
	guard := scratch.NewGuard(nil, scratchDir, scratchBudget)

	return &harness{
		orchestrator: NewOrchestrator(nil, prober, extractor, guard, queue, progressLedger, opts),
		transport:    transport,
		ledger:       progressLedger,
		extractor:    extractor,
		scratchDir:   scratchDir,
	}
}

func defaultOptions() Options {
	return Options{
		CapBytes:          1 << 30,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	}
}

func routeInfo(duration float64) *media.MediaInfo {
	return &media.MediaInfo{
		SizeBytes:       100000,
		DurationSeconds: duration,
		Width:           1928,
		Height:          1208,
	}
}

const segmentName = "route-1|2024-03-02--11-26-48--0-fcamera.mp4"

func segmentKey() routes.RouteKey {
	return routes.RouteKey{RouteID: "route-1|2024-03-02--11-26-48", Camera: routes.CameraForward}
}

func TestProcessFile_FullTransfer(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(3700)}, defaultOptions())
	ctx := context.Background()

	err := h.orchestrator.ProcessFile(ctx, filepath.Join("clips", segmentName))
	require.NoError(t, err)

	calls := h.transport.Calls()
	require.Len(t, calls, 3)

	progress, err := h.ledger.Get(ctx, segmentKey())
	require.NoError(t, err)
	assert.Equal(t, 3700.0, progress)

	processed, err := h.ledger.IsProcessed(ctx, segmentKey())
	require.NoError(t, err)
	assert.True(t, processed)

	// All chunk files consumed and deleted.
	entries, err := os.ReadDir(h.scratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Captions describe the covered ranges.
	assert.Contains(t, calls[0].Meta.Caption, "[0:00:00 - 0:30:00 / 1:01:40]")
	assert.Contains(t, calls[2].Meta.Caption, "[1:00:00 - 1:01:40 / 1:01:40]")
}

func TestProcessFile_ResumesFromLedger(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(3700)}, defaultOptions())
	ctx := context.Background()

	require.NoError(t, h.ledger.Advance(ctx, segmentKey(), 1800))

	err := h.orchestrator.ProcessFile(ctx, segmentName)
	require.NoError(t, err)

	// Only [1800,3600) and [3600,3700) remain.
	assert.Len(t, h.transport.Calls(), 2)

	progress, err := h.ledger.Get(ctx, segmentKey())
	require.NoError(t, err)
	assert.Equal(t, 3700.0, progress)
}

func TestProcessFile_AlreadyComplete(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(3700)}, defaultOptions())
	ctx := context.Background()

	require.NoError(t, h.ledger.Advance(ctx, segmentKey(), 3700))

	err := h.orchestrator.ProcessFile(ctx, segmentName)
	require.NoError(t, err)

	assert.Zero(t, h.extractor.callCount(), "a complete stream must not be re-extracted")
	assert.Empty(t, h.transport.Calls())

	processed, err := h.ledger.IsProcessed(ctx, segmentKey())
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestProcessFile_InvalidName(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(3700)}, defaultOptions())

	err := h.orchestrator.ProcessFile(context.Background(), "notes.txt")
	require.Error(t, err)
	assert.True(t, routes.IsInvalidFileNameError(err))
	assert.Zero(t, h.extractor.callCount())
}

func TestProcessFile_ProbeErrorSkipsFile(t *testing.T) {
	probeErr := media.NewProbeError("broken.mp4", "no video stream found", nil)
	h := setupHarness(t, &fakeProber{err: probeErr}, defaultOptions())

	err := h.orchestrator.ProcessFile(context.Background(), segmentName)
	require.Error(t, err)
	assert.True(t, media.IsProbeError(err))
	assert.Empty(t, h.transport.Calls())

	processed, perr := h.ledger.IsProcessed(context.Background(), segmentKey())
	require.NoError(t, perr)
	assert.False(t, processed, "a failed file must not be marked processed")
}

func TestProcessFile_TransportFailureStopsFile(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(3700)}, defaultOptions())
	h.transport.FailWith(uploading.NewTransportError(500, "Internal Server Error", nil))

	err := h.orchestrator.ProcessFile(context.Background(), segmentName)
	require.Error(t, err)
	assert.True(t, uploading.IsTransportError(err))

	// Progress untouched; the failed chunk is reclaimed because the next
	// cycle re-extracts the same range from the ledger offset.
	progress, lerr := h.ledger.Get(context.Background(), segmentKey())
	require.NoError(t, lerr)
	assert.Equal(t, 0.0, progress)

	entries, rerr := os.ReadDir(h.scratchDir)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
}

func TestProcessFile_RecoversAfterTransportOutage(t *testing.T) {
	// Budget fits one chunk but not two: leaked failed chunks would wedge
	// the capacity gate permanently.
	h := setupHarnessWithBudget(t, &fakeProber{info: routeInfo(1000)}, defaultOptions(), 150)
	h.extractor.sizeFor = func(start, end float64) int { return 100 }

	h.transport.FailWith(uploading.NewTransportError(502, "Bad Gateway", nil))
	require.Error(t, h.orchestrator.ProcessFile(context.Background(), segmentName))
	require.Error(t, h.orchestrator.ProcessFile(context.Background(), segmentName))

	entries, err := os.ReadDir(h.scratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed attempts must not accumulate in scratch")

	h.transport.FailWith(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orchestrator.ProcessFile(ctx, segmentName))

	progress, err := h.ledger.Get(context.Background(), segmentKey())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, progress)
}

func TestProcessFile_DeleteAfterUpload(t *testing.T) {
	opts := defaultOptions()
	opts.DeleteAfterUpload = true
	h := setupHarness(t, &fakeProber{info: routeInfo(1000)}, opts)

	clipsDir := t.TempDir()
	sourcePath := filepath.Join(clipsDir, segmentName)
	require.NoError(t, os.WriteFile(sourcePath, []byte("source"), 0644))

	err := h.orchestrator.ProcessFile(context.Background(), sourcePath)
	require.NoError(t, err)

	_, statErr := os.Stat(sourcePath)
	assert.True(t, os.IsNotExist(statErr), "source must be deleted after upload when configured")
}

func TestProcessFile_LedgerMergeKeepsMax(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(3700)}, defaultOptions())
	ctx := context.Background()

	require.NoError(t, h.orchestrator.ProcessFile(ctx, segmentName))

	// A stale confirmation arriving afterwards must not regress progress.
	require.NoError(t, h.ledger.Advance(ctx, segmentKey(), 1200))

	progress, err := h.ledger.Get(ctx, segmentKey())
	require.NoError(t, err)
	assert.Equal(t, 3700.0, progress)
}
