package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	// Create test frames at a foreign size; playback resizes them
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() #%d error = %v", i, err)
		}
		if f.Cols() != DefaultWidth || f.Rows() != DefaultHeight {
			t.Errorf("frame #%d size = %dx%d, want %dx%d", i, f.Cols(), f.Rows(), DefaultWidth, DefaultHeight)
		}
		f.Close()
	}

	// Third read should report the end (no loop)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("ReadFrame() after last frame error = %v, want ErrEndOfStream", err)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	// Should loop indefinitely
	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
	if got := cam.Reads(); got != 5 {
		t.Errorf("Reads() = %d, want 5", got)
	}
}

func TestMockCamera_NilEntryIsUnavailable(t *testing.T) {
	cam := NewMockCamera([]*gocv.Mat{nil}, false)
	cam.Open()
	defer cam.Close()

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrFrameUnavailable) {
		t.Errorf("ReadFrame() error = %v, want ErrFrameUnavailable", err)
	}
}

func TestMockCamera_EmptyFrameIsUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	empty := gocv.NewMat()
	defer empty.Close()

	cam := NewMockCamera([]*gocv.Mat{&empty}, false)
	cam.Open()
	defer cam.Close()

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrFrameUnavailable) {
		t.Errorf("ReadFrame() error = %v, want ErrFrameUnavailable", err)
	}
}

func TestMockCamera_NotOpen(t *testing.T) {
	cam := NewMockCamera(nil, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestMockCamera_OpenError(t *testing.T) {
	cam := NewMockCamera(nil, false)
	want := errors.New("no device")
	cam.SetOpenError(want)

	if err := cam.Open(); !errors.Is(err, want) {
		t.Errorf("Open() error = %v, want %v", err, want)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should be false after failed Open()")
	}
}

func TestMockCamera_CountsCloses(t *testing.T) {
	cam := NewMockCamera(nil, false)
	cam.Open()
	cam.Close()
	cam.Close()

	if got := cam.Closes(); got != 2 {
		t.Errorf("Closes() = %d, want 2", got)
	}
}
