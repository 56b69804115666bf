package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing. A nil entry in
// the sequence simulates a failed acquisition.
type MockCamera struct {
	frames  []*gocv.Mat
	size    image.Point
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
	openErr error
	reads   int
	closes  int
}

func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		size:   image.Pt(DefaultWidth, DefaultHeight),
		loop:   loop,
	}
}

// SetOpenError makes the next Open calls fail with err.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.closes++
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.index >= len(c.frames) {
		if c.loop && len(c.frames) > 0 {
			c.index = 0
		} else {
			return nil, ErrEndOfStream
		}
	}

	src := c.frames[c.index]
	c.index++
	c.reads++

	if src == nil {
		return nil, fmt.Errorf("%w: simulated read failure", ErrFrameUnavailable)
	}

	// Clone the frame so the original isn't modified
	frame := src.Clone()
	if err := Fit(&frame, c.size); err != nil {
		frame.Close()
		return nil, err
	}

	return &frame, nil
}

func (c *MockCamera) Size() image.Point { return c.size }

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns how many frames have been requested since creation.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Closes returns how many times Close was called.
func (c *MockCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
