package media

import (
	"math"
	"os"
	"strconv"

	"github.com/xfrr/goffmpeg/transcoder"

	"github.com/duongdev/comma-sync/logging"
)

// MediaInfo describes a probed source file. DurationSeconds is the raw
// container duration; all planning arithmetic must use it unrounded.
type MediaInfo struct {
	Path            string
	SizeBytes       int64
	DurationSeconds float64
	Width           int
	Height          int
}

// DisplayDurationSeconds returns the duration rounded up to whole seconds,
// for captions and logs only.
func (m *MediaInfo) DisplayDurationSeconds() int {
	return int(math.Ceil(m.DurationSeconds))
}

// Prober extracts container and stream metadata from a media file.
type Prober interface {
	Probe(path string) (*MediaInfo, error)
}

// FFmpegProber implements Prober using goffmpeg
type FFmpegProber struct {
	logger logging.Logger
}

// NewFFmpegProber creates a new FFmpeg-based prober
func NewFFmpegProber(logger logging.Logger) *FFmpegProber {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &FFmpegProber{logger: logger}
}

// Probe reads duration, size and dimensions from the file at path.
func (p *FFmpegProber) Probe(path string) (*MediaInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, NewProbeError(path, "file is not readable", err)
	}

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(path, ""); err != nil {
		return nil, NewProbeError(path, "failed to probe container", err)
	}

	metadata := trans.MediaFile().Metadata()

	duration, err := strconv.ParseFloat(metadata.Format.Duration, 64)
	if err != nil {
		return nil, NewProbeError(path, "container reports no duration", err)
	}
	if duration <= 0 {
		return nil, NewProbeError(path, "container reports zero duration", nil)
	}

	var width, height int
	for _, stream := range metadata.Streams {
		if stream.CodecType == "video" {
			width = stream.Width
			height = stream.Height
			break // Use first video stream
		}
	}
	if width == 0 || height == 0 {
		return nil, NewProbeError(path, "no video stream found", nil)
	}

	p.logger.Debug("probed media file",
		"path", path, "size", stat.Size(), "duration", duration,
		"width", width, "height", height)

	return &MediaInfo{
		Path:            path,
		SizeBytes:       stat.Size(),
		DurationSeconds: duration,
		Width:           width,
		Height:          height,
	}, nil
}
