package render

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer keeps the most recent frame as JPEG for HTTP viewers. It is
// a Renderer, so the control loop feeds it and the server never touches
// the camera.
type FrameBuffer struct {
	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Show encodes and stores frame. It never asks the loop to stop.
func (b *FrameBuffer) Show(frame *gocv.Mat) (bool, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return false, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	b.Set(data)
	return false, nil
}

// Set stores an already-encoded JPEG.
func (b *FrameBuffer) Set(jpeg []byte) {
	b.mu.Lock()
	b.jpeg = jpeg
	b.seq++
	b.mu.Unlock()
}

// Latest returns the last stored JPEG and its sequence number. The
// sequence is 0 before the first frame. The returned slice must not be
// modified.
func (b *FrameBuffer) Latest() ([]byte, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jpeg, b.seq
}

func (b *FrameBuffer) Close() error { return nil }
