// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultWidth  = 160
	DefaultHeight = 120
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// ErrFrameUnavailable is returned when the source yields no frame or a
// malformed one. The caller should skip the iteration.
var ErrFrameUnavailable = errors.New("frame unavailable")

// ErrEndOfStream is returned once a finite source such as a video file has
// no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns a BGR frame of exactly Size(). The caller is
	// responsible for closing the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	Size() image.Point
	IsOpen() bool
}

// cameraImpl manages video capture from a device or a video file using GoCV.
type cameraImpl struct {
	source  string
	size    image.Point
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for source, which is either a device index
// such as "0" or a path to a video file. Frames are delivered at width x height.
func NewCamera(source string, width, height int) Camera {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &cameraImpl{
		source: source,
		size:   image.Pt(width, height),
	}
}

// Open opens the source and requests the configured resolution. Devices
// may ignore the request; ReadFrame resizes in that case.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.source)
	if err != nil {
		return fmt.Errorf("open video source %q: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open video source %q: device not available", c.source)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.size.X))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.size.Y))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the source.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		if !IsDevice(c.source) {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("%w: read from %q failed", ErrFrameUnavailable, c.source)
	}

	if err := Fit(&mat, c.size); err != nil {
		mat.Close()
		return nil, err
	}

	return &mat, nil
}

// Size returns the size of delivered frames.
func (c *cameraImpl) Size() image.Point {
	return c.size
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// IsDevice reports whether source names a capture device index rather
// than a file or stream URL.
func IsDevice(source string) bool {
	n, err := strconv.Atoi(source)
	return err == nil && n >= 0
}

// Fit validates a captured frame and resizes it in place to size when the
// source delivered something else.
func Fit(frame *gocv.Mat, size image.Point) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("%w: captured frame is empty", ErrFrameUnavailable)
	}
	if frame.Channels() != 3 {
		return fmt.Errorf("%w: expected 3 channels, got %d", ErrFrameUnavailable, frame.Channels())
	}
	if frame.Cols() == size.X && frame.Rows() == size.Y {
		return nil
	}

	resized := gocv.NewMat()
	gocv.Resize(*frame, &resized, size, 0, 0, gocv.InterpolationLinear)
	frame.Close()
	*frame = resized

	return nil
}
