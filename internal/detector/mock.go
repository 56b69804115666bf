package detector

import (
	"sync"

	"github.com/ayusman/tagfollower/internal/geometry"
	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	err        error
	calls      int
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(gray *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

// Calls reports how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SquareAt returns an axis-aligned detection of the given side length whose
// diagonal midpoint is (cx, cy). Image y grows downward, so the bottom
// corners have the larger y.
func SquareAt(id int, cx, cy, side float64) Detection {
	h := side / 2
	return Detection{
		ID: id,
		Corners: geometry.Quad{
			geometry.LeftBottom:  r2.Point{X: cx - h, Y: cy + h},
			geometry.RightBottom: r2.Point{X: cx + h, Y: cy + h},
			geometry.RightTop:    r2.Point{X: cx + h, Y: cy - h},
			geometry.LeftTop:     r2.Point{X: cx - h, Y: cy - h},
		},
	}
}
