package chunking

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor writes a real file whose size is determined by sizeFor, so
// the planner's stat-based measurement works unmodified.
type fakeExtractor struct {
	dir     string
	sizeFor func(start, end float64) int
	calls   []extractCall
}

type extractCall struct {
	start, end float64
}

func (f *fakeExtractor) ExtractRange(ctx context.Context, src string, start, end float64) (string, error) {
	f.calls = append(f.calls, extractCall{start: start, end: end})
	path := filepath.Join(f.dir, fmt.Sprintf("fake_%d.mp4", len(f.calls)))
	data := bytes.Repeat([]byte{0}, f.sizeFor(start, end))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func collectPlan(t *testing.T, p *Planner) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	for {
		chunk, err := p.Next(context.Background())
		require.NoError(t, err)
		if chunk == nil {
			return chunks
		}
		chunks = append(chunks, chunk)
	}
}

func TestPlanner_CoversDurationContiguously(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return 10 },
	}
	planner := NewPlanner(nil, extractor, "src.mp4", 3700, 0, Options{
		CapBytes:          1 << 30,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunks := collectPlan(t, planner)

	require.Len(t, chunks, 3)
	assert.Equal(t, 0.0, chunks[0].StartSeconds)
	assert.Equal(t, 1800.0, chunks[0].EndSeconds)
	assert.Equal(t, 1800.0, chunks[1].StartSeconds)
	assert.Equal(t, 3600.0, chunks[1].EndSeconds)
	assert.Equal(t, 3600.0, chunks[2].StartSeconds)
	assert.Equal(t, 3700.0, chunks[2].EndSeconds)

	// No gaps, no overlaps, full coverage.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndSeconds, chunks[i].StartSeconds)
	}
}

func TestPlanner_ResumeFrom(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return 10 },
	}
	planner := NewPlanner(nil, extractor, "src.mp4", 3700, 3000, Options{
		CapBytes:          1 << 30,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunks := collectPlan(t, planner)

	require.Len(t, chunks, 1)
	assert.Equal(t, 3000.0, chunks[0].StartSeconds)
	assert.Equal(t, 3700.0, chunks[0].EndSeconds)
}

func TestPlanner_ResumeAtDuration_EmptyPlan(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return 10 },
	}
	planner := NewPlanner(nil, extractor, "src.mp4", 3700, 3700, Options{
		CapBytes:          1 << 30,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunks := collectPlan(t, planner)
	assert.Empty(t, chunks)
	assert.Empty(t, extractor.calls, "an empty plan must not extract anything")
}

func TestPlanner_ShrinksOversizedRange(t *testing.T) {
	// One byte per covered second: [0,1800) realizes 1800 bytes against a
	// 1700-byte cap, so the planner must retry as [0,1680).
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return int(end - start) },
	}
	planner := NewPlanner(nil, extractor, "src.mp4", 3700, 0, Options{
		CapBytes:          1700,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunk, err := planner.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, chunk)

	require.Len(t, extractor.calls, 2)
	assert.Equal(t, extractCall{start: 0, end: 1800}, extractor.calls[0])
	assert.Equal(t, extractCall{start: 0, end: 1680}, extractor.calls[1])
	assert.Equal(t, 1680.0, chunk.EndSeconds)

	// The next chunk starts where the shrunk one ended.
	next, err := planner.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 1680.0, next.StartSeconds)
}

func TestPlanner_OversizedAttemptDeleted(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return int(end - start) },
	}
	planner := NewPlanner(nil, extractor, "src.mp4", 3700, 0, Options{
		CapBytes:          1700,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunk, err := planner.Next(context.Background())
	require.NoError(t, err)

	// First attempt was over cap and must be gone; the accepted one remains.
	entries, err := os.ReadDir(extractor.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(chunk.Path), entries[0].Name())
}

func TestPlanner_IrreducibleRange(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return 100000 },
	}
	planner := NewPlanner(nil, extractor, "src.mp4", 3700, 0, Options{
		CapBytes:          100,
		WindowSeconds:     600,
		ShrinkStepSeconds: 120,
	})

	chunk, err := planner.Next(context.Background())
	require.Error(t, err)
	assert.Nil(t, chunk)
	assert.True(t, IsChunkTooLargeError(err))

	// Bounded shrink: 600s window at 120s steps allows exactly 5 attempts.
	assert.Len(t, extractor.calls, 5)

	// Every rejected attempt was cleaned up.
	entries, readErr := os.ReadDir(extractor.dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPlanner_ShortSourceFromStart(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return 10 },
	}
	// A fresh source shorter than the tail epsilon still gets one chunk
	// covering all of it.
	planner := NewPlanner(nil, extractor, "src.mp4", 1.5, 0, Options{
		CapBytes:          1 << 30,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunks := collectPlan(t, planner)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0.0, chunks[0].StartSeconds)
	assert.Equal(t, 1.5, chunks[0].EndSeconds)
}

func TestPlanner_TailEpsilon(t *testing.T) {
	extractor := &fakeExtractor{
		dir:     t.TempDir(),
		sizeFor: func(start, end float64) int { return 10 },
	}
	// A cursor within the epsilon of the duration ends the plan rather than
	// producing a degenerate sliver.
	planner := NewPlanner(nil, extractor, "src.mp4", 1801, 1800, Options{
		CapBytes:          1 << 30,
		WindowSeconds:     1800,
		ShrinkStepSeconds: 120,
	})

	chunks := collectPlan(t, planner)
	assert.Empty(t, chunks)
}
