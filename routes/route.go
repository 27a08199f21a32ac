// Package routes provides typed identifiers for drive routes and their
// camera streams, plus the single parser for segment file names.
package routes

import (
	"fmt"
	"strconv"
	"strings"
)

// Camera identifies one video stream within a route.
type Camera string

const (
	// CameraForward is the forward-facing road camera
	CameraForward Camera = "fcamera"
	// CameraDriver is the driver-facing camera
	CameraDriver Camera = "dcamera"
	// CameraWide is the wide-angle road camera
	CameraWide Camera = "ecamera"
	// CameraLowRes is the low-resolution preview stream
	CameraLowRes Camera = "qcamera"
)

// knownCameras lists every camera the recorder produces.
var knownCameras = map[Camera]bool{
	CameraForward: true,
	CameraDriver:  true,
	CameraWide:    true,
	CameraLowRes:  true,
}

// IsValid reports whether the camera is one the recorder produces.
func (c Camera) IsValid() bool {
	return knownCameras[c]
}

// RouteKey identifies one recording session stream: a route captured by one
// camera. It is the key for ledger entries.
type RouteKey struct {
	RouteID string
	Camera  Camera
}

func (k RouteKey) String() string {
	return fmt.Sprintf("%s/%s", k.RouteID, k.Camera)
}

// SegmentFile is the parsed form of a segment file name.
type SegmentFile struct {
	RouteID string
	Segment int
	Camera  Camera
}

// Key returns the ledger key for the segment's stream.
func (s SegmentFile) Key() RouteKey {
	return RouteKey{RouteID: s.RouteID, Camera: s.Camera}
}

// FileName renders the canonical "<routeId>--<segment>-<camera>.mp4" name.
func (s SegmentFile) FileName() string {
	return fmt.Sprintf("%s--%d-%s.mp4", s.RouteID, s.Segment, s.Camera)
}

const fileExtension = ".mp4"

// ParseSegmentFileName parses "<routeId>--<segment>-<camera>.mp4" into its
// typed parts. Route IDs may themselves contain "--", so the separator is
// the last occurrence. Returns an InvalidFileNameError for anything that
// does not match the convention.
func ParseSegmentFileName(name string) (SegmentFile, error) {
	if !strings.HasSuffix(name, fileExtension) {
		return SegmentFile{}, NewInvalidFileNameError(name, "missing .mp4 extension")
	}
	stem := strings.TrimSuffix(name, fileExtension)

	sep := strings.LastIndex(stem, "--")
	if sep <= 0 {
		return SegmentFile{}, NewInvalidFileNameError(name, "missing route separator")
	}

	routeID := stem[:sep]
	rest := stem[sep+2:]

	dash := strings.LastIndex(rest, "-")
	if dash <= 0 || dash == len(rest)-1 {
		return SegmentFile{}, NewInvalidFileNameError(name, "missing segment-camera separator")
	}

	segment, err := strconv.Atoi(rest[:dash])
	if err != nil || segment < 0 {
		return SegmentFile{}, NewInvalidFileNameError(name, "segment is not a non-negative integer")
	}

	camera := Camera(rest[dash+1:])
	if !camera.IsValid() {
		return SegmentFile{}, NewInvalidFileNameError(name, fmt.Sprintf("unknown camera %q", camera))
	}

	return SegmentFile{RouteID: routeID, Segment: segment, Camera: camera}, nil
}
