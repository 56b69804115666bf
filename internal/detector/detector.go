// Package detector finds fiducial markers in grayscale frames.
package detector

import (
	"errors"

	"github.com/ayusman/tagfollower/internal/geometry"
	"gocv.io/x/gocv"
)

// ErrDetectorUnavailable is returned when a detector cannot be constructed.
// It is fatal at startup.
var ErrDetectorUnavailable = errors.New("marker detector unavailable")

// Detection is a single marker found in one frame.
type Detection struct {
	// ID is the decoded marker identifier. It is not unique across frames.
	ID int `json:"id"`

	// Corners are ordered left-bottom, right-bottom, right-top, left-top.
	Corners geometry.Quad `json:"corners"`
}

// Center returns the diagonal midpoint used by the command policy.
func (d Detection) Center() (x, y int) {
	c := geometry.Center(d.Corners)
	return c.X, c.Y
}

// ApparentWidth returns the marker's on-image width in pixels.
func (d Detection) ApparentWidth() float64 {
	return geometry.ApparentWidth(d.Corners)
}

// Detector defines the interface for marker detection implementations.
type Detector interface {
	// Detect analyzes a grayscale frame and returns the markers in it.
	// Returns an empty slice if no markers are visible.
	Detect(gray *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for marker detection.
type Config struct {
	// Dictionary names the marker family, e.g. "apriltag_36h11" or "4x4_50".
	Dictionary string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Dictionary: "apriltag_36h11",
	}
}
