package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/xfrr/goffmpeg/transcoder"

	"github.com/duongdev/comma-sync/logging"
)

// RangeExtractor extracts a time range of a source file into a standalone
// output file. Implementations must not re-encode the streams.
type RangeExtractor interface {
	// ExtractRange writes [startSec, endSec) of src to a uniquely named
	// file and returns its path. The caller owns the output file.
	ExtractRange(ctx context.Context, src string, startSec, endSec float64) (string, error)
}

// FFmpegRangeExtractor implements RangeExtractor with ffmpeg stream copy.
type FFmpegRangeExtractor struct {
	logger    logging.Logger
	outputDir string
}

// NewFFmpegRangeExtractor creates an extractor that writes its outputs to
// outputDir.
func NewFFmpegRangeExtractor(logger logging.Logger, outputDir string) *FFmpegRangeExtractor {
	if logger == nil {
		logger = logging.NopLogger
	}
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &FFmpegRangeExtractor{logger: logger, outputDir: outputDir}
}

// ExtractRange extracts [startSec, endSec) of src via stream copy.
func (e *FFmpegRangeExtractor) ExtractRange(ctx context.Context, src string, startSec, endSec float64) (string, error) {
	if endSec <= startSec {
		return "", fmt.Errorf("invalid range [%f, %f)", startSec, endSec)
	}

	outputPath := filepath.Join(e.outputDir, fmt.Sprintf("chunk_%s.mp4", uuid.NewString()))

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(src, outputPath); err != nil {
		return "", fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	// Seek on the input side so stream copy starts at the nearest keyframe
	// before the requested offset.
	trans.MediaFile().SetSeekTimeInput(formatSeconds(startSec))
	trans.MediaFile().SetDuration(formatSeconds(endSec - startSec))
	trans.MediaFile().SetVideoCodec("copy")
	trans.MediaFile().SetAudioCodec("copy")
	trans.MediaFile().SetOutputFormat("mp4")

	e.logger.Debug("extracting range",
		"src", src, "start", startSec, "end", endSec, "output", outputPath)

	done := trans.Run(false)

	select {
	case err := <-done:
		if err != nil {
			os.Remove(outputPath)
			return "", fmt.Errorf("failed to extract range [%f, %f) of %s: %w", startSec, endSec, src, err)
		}
	case <-ctx.Done():
		os.Remove(outputPath)
		return "", ctx.Err()
	}

	return outputPath, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
