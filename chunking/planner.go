// Package chunking turns a probed source file into a lazy sequence of
// byte-capped, stream-copied chunk files.
package chunking

import (
	"context"
	"fmt"
	"os"

	"github.com/duongdev/comma-sync/logging"
	"github.com/duongdev/comma-sync/media"
)

// tailEpsilonSeconds absorbs encoder rounding at the end of a file: a plan
// is complete once the cursor is within this margin of the total duration.
const tailEpsilonSeconds = 2.0

// Chunk is one accepted element of a plan: an extracted file covering
// [StartSeconds, EndSeconds) of the source.
type Chunk struct {
	Path         string
	StartSeconds float64
	EndSeconds   float64
	SizeBytes    int64
}

// Options bounds the planner's output.
type Options struct {
	// CapBytes is the maximum realized size of a chunk file.
	CapBytes int64
	// WindowSeconds is the nominal range width tried first. A fixed window
	// is used rather than a size-proportional estimate because it is robust
	// to variable bitrate.
	WindowSeconds float64
	// ShrinkStepSeconds is subtracted from the range end on every oversized
	// attempt.
	ShrinkStepSeconds float64
}

// Planner lazily produces contiguous chunks covering [resumeFrom, duration]
// of a single source file. It is not safe for concurrent use.
type Planner struct {
	logger    logging.Logger
	extractor media.RangeExtractor
	source    string
	duration  float64
	opts      Options
	cursor    float64
}

// NewPlanner creates a planner starting at resumeFrom seconds into the
// source. If resumeFrom already reaches the duration the plan is empty.
func NewPlanner(logger logging.Logger, extractor media.RangeExtractor, source string, durationSeconds, resumeFromSeconds float64, opts Options) *Planner {
	if logger == nil {
		logger = logging.NopLogger
	}
	if resumeFromSeconds < 0 {
		resumeFromSeconds = 0
	}
	return &Planner{
		logger:    logger,
		extractor: extractor,
		source:    source,
		duration:  durationSeconds,
		opts:      opts,
		cursor:    resumeFromSeconds,
	}
}

// Next extracts and returns the next chunk, or (nil, nil) when the plan is
// exhausted. An oversized range is re-extracted with a strictly smaller end
// until it fits the cap; if it cannot shrink further a ChunkTooLargeError is
// returned and the plan is abandoned.
func (p *Planner) Next(ctx context.Context) (*Chunk, error) {
	if p.cursor >= p.duration {
		return nil, nil
	}
	// The epsilon absorbs sliver tails left by float imprecision between
	// recorded offsets and the container duration. It must not apply at
	// zero, or a source shorter than the epsilon would never upload.
	if p.cursor > 0 && p.cursor >= p.duration-tailEpsilonSeconds {
		return nil, nil
	}

	start := p.cursor
	end := start + p.opts.WindowSeconds
	if end > p.duration {
		end = p.duration
	}

	for {
		if end <= start {
			return nil, NewChunkTooLargeError(p.source, start, p.opts.CapBytes)
		}

		path, err := p.extractor.ExtractRange(ctx, p.source, start, end)
		if err != nil {
			return nil, err
		}

		stat, err := os.Stat(path)
		if err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("failed to measure chunk %s: %w", path, err)
		}

		if stat.Size() <= p.opts.CapBytes {
			p.cursor = end
			p.logger.Debug("chunk accepted",
				"source", p.source, "start", start, "end", end, "size", stat.Size())
			return &Chunk{
				Path:         path,
				StartSeconds: start,
				EndSeconds:   end,
				SizeBytes:    stat.Size(),
			}, nil
		}

		// Over the cap: the realized bitrate was higher than the window
		// assumed. Drop the attempt and retry a shorter range.
		p.logger.Info("chunk over cap, shrinking range",
			"source", p.source, "start", start, "end", end,
			"size", stat.Size(), "cap", p.opts.CapBytes)
		os.Remove(path)
		end -= p.opts.ShrinkStepSeconds
	}
}
