// Package geometry derives image-plane measurements from a marker's corner quad:
// its center, its apparent width in pixels, and a monocular range estimate.
package geometry

import (
	"errors"
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// Corner indices in the fixed winding order reported for every detection.
const (
	LeftBottom  = 0
	RightBottom = 1
	RightTop    = 2
	LeftTop     = 3
	NumCorners  = 4
)

// ErrDegenerateGeometry is returned when a measurement cannot be derived,
// e.g. a zero apparent width makes the range undefined.
var ErrDegenerateGeometry = errors.New("degenerate marker geometry")

// Quad is a marker outline in pixel coordinates, ordered
// left-bottom, right-bottom, right-top, left-top.
type Quad [NumCorners]r2.Point

// Points returns the corners as integer pixel positions, truncated toward zero.
func (q Quad) Points() []image.Point {
	pts := make([]image.Point, NumCorners)
	for i, c := range q {
		pts[i] = pixel(c)
	}
	return pts
}

// pixel truncates a sub-pixel corner toward zero. Every measurement below
// works on truncated corners, never on the raw detector output.
func pixel(p r2.Point) image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// Center returns the midpoint of the diagonal between the first and third
// corner. Both corners are truncated to pixels first and the halved sum is
// truncated again. Corners 2 and 4 do not participate, so for a skewed quad
// this is not the centroid.
func Center(q Quad) image.Point {
	a, b := pixel(q[LeftBottom]), pixel(q[RightTop])
	return image.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
}

// ApparentWidth is the horizontal pixel distance between the first two
// truncated corners. It stands in for the marker's on-image width.
func ApparentWidth(q Quad) float64 {
	w := pixel(q[LeftBottom]).X - pixel(q[RightBottom]).X
	if w < 0 {
		w = -w
	}
	return float64(w)
}

// Distance estimates range from the pinhole relation
// tagSize * focalLength / apparentWidth. The result is in the unit of tagSize.
func Distance(apparentWidth, tagSize, focalLength float64) (float64, error) {
	if apparentWidth <= 0 || math.IsNaN(apparentWidth) || math.IsInf(apparentWidth, 0) {
		return 0, ErrDegenerateGeometry
	}
	return tagSize * focalLength / apparentWidth, nil
}

// Estimate bundles the per-detection measurements recorded as telemetry.
type Estimate struct {
	Center        image.Point
	ApparentWidth float64
	Distance      float64
	// DistanceKnown is false when Distance could not be computed.
	DistanceKnown bool
}

// Measure computes the Estimate for q. A degenerate width leaves the
// distance unknown instead of failing.
func Measure(q Quad, tagSize, focalLength float64) Estimate {
	est := Estimate{
		Center:        Center(q),
		ApparentWidth: ApparentWidth(q),
	}
	if d, err := Distance(est.ApparentWidth, tagSize, focalLength); err == nil {
		est.Distance = d
		est.DistanceKnown = true
	}
	return est
}
