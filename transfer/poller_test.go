package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duongdev/comma-sync/fleet"
	"github.com/duongdev/comma-sync/routes"
)

func TestUploadPoller_RunCycle(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(1000)}, defaultOptions())
	ctx := context.Background()

	clipsDir := t.TempDir()
	valid := "route-1|2024-03-02--11-26-48--0-fcamera.mp4"
	doneName := "route-1|2024-03-02--12-44-10--0-fcamera.mp4"
	for _, name := range []string{valid, doneName, "notes.txt", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(clipsDir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(clipsDir, "subdir"), 0755))

	doneSeg, err := routes.ParseSegmentFileName(doneName)
	require.NoError(t, err)
	require.NoError(t, h.ledger.MarkProcessed(ctx, doneSeg.Key()))

	poller := NewUploadPoller(nil, clipsDir, h.orchestrator, h.ledger, 0)
	poller.RunCycle(ctx)

	// Only the valid, unprocessed segment was transferred.
	calls := h.transport.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].FilePath, "fake_")

	processed, err := h.ledger.IsProcessed(ctx, segmentKey())
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestUploadPoller_ErrorDoesNotAbortCycle(t *testing.T) {
	probeErr := fmt.Errorf("probe blew up")
	h := setupHarness(t, &fakeProber{err: probeErr}, defaultOptions())

	clipsDir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("route-1|2024-03-02--11-26-48--%d-fcamera.mp4", i)
		require.NoError(t, os.WriteFile(filepath.Join(clipsDir, name), []byte("x"), 0644))
	}

	poller := NewUploadPoller(nil, clipsDir, h.orchestrator, h.ledger, 0)
	poller.RunCycle(context.Background())

	// Every file was attempted despite each one failing.
	// No chunks were produced, so nothing reached the transport.
	assert.Empty(t, h.transport.Calls())
	assert.Zero(t, h.extractor.callCount())
}

// fakeFleetClient serves canned listings and records download destinations.
type fakeFleetClient struct {
	mu        sync.Mutex
	listings  []fleet.RouteListing
	listErr   error
	downloads []string
}

func (f *fakeFleetClient) ListRoutes(ctx context.Context) ([]fleet.RouteListing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings, nil
}

func (f *fakeFleetClient) Download(ctx context.Context, url, destPath string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, destPath)
	f.mu.Unlock()
	return os.WriteFile(destPath, []byte("video"), 0644)
}

func TestDownloadPoller_RunCycle(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(1000)}, defaultOptions())
	ctx := context.Background()

	clipsDir := t.TempDir()

	present := "route-1|2024-03-02--11-26-48--0-fcamera.mp4"
	missing := "route-1|2024-03-02--11-26-48--0-dcamera.mp4"
	doneName := "route-1|2024-03-02--12-44-10--0-fcamera.mp4"
	require.NoError(t, os.WriteFile(filepath.Join(clipsDir, present), []byte("x"), 0644))

	doneSeg, err := routes.ParseSegmentFileName(doneName)
	require.NoError(t, err)
	require.NoError(t, h.ledger.MarkProcessed(ctx, doneSeg.Key()))

	client := &fakeFleetClient{listings: []fleet.RouteListing{{
		RouteID: "route-1|2024-03-02--11-26-48",
		Files: []fleet.RemoteFile{
			{Name: present, URL: "https://fleet/0", SizeBytes: 10},
			{Name: missing, URL: "https://fleet/1", SizeBytes: 10},
			{Name: doneName, URL: "https://fleet/2", SizeBytes: 10},
			{Name: "bootlog.bz2", URL: "https://fleet/b", SizeBytes: 10},
		},
	}}}

	poller := NewDownloadPoller(nil, client, clipsDir, h.ledger, 0)
	poller.RunCycle(ctx)

	// Only the missing, unprocessed segment was fetched.
	require.Len(t, client.downloads, 1)
	assert.Equal(t, filepath.Join(clipsDir, missing), client.downloads[0])

	_, statErr := os.Stat(filepath.Join(clipsDir, missing))
	assert.NoError(t, statErr)
}

func TestDownloadPoller_ListErrorSkipsCycle(t *testing.T) {
	h := setupHarness(t, &fakeProber{info: routeInfo(1000)}, defaultOptions())

	client := &fakeFleetClient{listErr: fmt.Errorf("fleet unreachable")}
	poller := NewDownloadPoller(nil, client, t.TempDir(), h.ledger, 0)
	poller.RunCycle(context.Background())

	assert.Empty(t, client.downloads)
}
