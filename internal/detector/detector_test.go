package detector

import (
	"errors"
	"image"
	"testing"

	"github.com/ayusman/tagfollower/internal/geometry"
	"gocv.io/x/gocv"
)

func TestSquareAt(t *testing.T) {
	d := SquareAt(3, 79, 60, 20)

	x, y := d.Center()
	if x != 79 || y != 60 {
		t.Errorf("Center() = (%d,%d), want (79,60)", x, y)
	}
	if d.ApparentWidth() != 20 {
		t.Errorf("ApparentWidth() = %f, want 20", d.ApparentWidth())
	}
	if d.Corners[geometry.LeftBottom].Y <= d.Corners[geometry.LeftTop].Y {
		t.Error("left-bottom corner should have a larger y than left-top")
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty detections by default", func(t *testing.T) {
		mock := NewMockDetector()

		dets, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if dets != nil {
			t.Errorf("expected nil detections, got %v", dets)
		}
	})

	t.Run("returns configured detections", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetDetections([]Detection{SquareAt(1, 40, 60, 10), SquareAt(2, 120, 60, 10)})

		dets, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(dets) != 2 {
			t.Errorf("expected 2 detections, got %d", len(dets))
		}
		if mock.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetDetections([]Detection{SquareAt(1, 40, 60, 10)})

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		dets, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if dets != nil {
			t.Errorf("expected nil detections when error is set, got %v", dets)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		mock := NewMockDetector()

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		if !mock.Closed() {
			t.Error("Closed() = false after Close()")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*ArucoDetector)(nil)
	})
}

func TestDictionaryCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"default family", "apriltag_36h11", false},
		{"case and spaces", "  AprilTag_36h11 ", false},
		{"aruco family", "4x4_50", false},
		{"unsupported family", "tagStandard41h12", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DictionaryCode(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrDetectorUnavailable) {
					t.Errorf("DictionaryCode(%q) error = %v, want ErrDetectorUnavailable", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("DictionaryCode(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestNewArucoDetector_UnknownDictionary(t *testing.T) {
	_, err := NewArucoDetector(Config{Dictionary: "nope"})
	if !errors.Is(err, ErrDetectorUnavailable) {
		t.Fatalf("NewArucoDetector() error = %v, want ErrDetectorUnavailable", err)
	}
}

func TestDictionaries_Sorted(t *testing.T) {
	names := Dictionaries()
	if len(names) == 0 {
		t.Fatal("Dictionaries() returned nothing")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Dictionaries() not sorted at %d: %q > %q", i, names[i-1], names[i])
		}
	}
}

func TestQuadFromOpenCV(t *testing.T) {
	// OpenCV reports top-left, top-right, bottom-right, bottom-left.
	cv := []gocv.Point2f{{X: 10, Y: 5}, {X: 30, Y: 5}, {X: 30, Y: 25}, {X: 10, Y: 25}}

	q := quadFromOpenCV(cv)

	want := map[int][2]float64{
		geometry.LeftBottom:  {10, 25},
		geometry.RightBottom: {30, 25},
		geometry.RightTop:    {30, 5},
		geometry.LeftTop:     {10, 5},
	}
	for idx, w := range want {
		if q[idx].X != w[0] || q[idx].Y != w[1] {
			t.Errorf("corner %d = %v, want %v", idx, q[idx], w)
		}
	}

	if c := geometry.Center(q); c != image.Pt(20, 15) {
		t.Errorf("Center() = %v, want (20,15)", c)
	}
}

func TestArucoDetector_GeneratedMarker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV integration test in short mode")
	}

	det, err := NewArucoDetector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewArucoDetector() error = %v", err)
	}
	defer det.Close()

	marker := gocv.NewMat()
	defer marker.Close()
	gocv.ArucoGenerateImageMarker(gocv.ArucoDictAprilTag_36h11, 7, 60, marker, 1)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 120, 160, gocv.MatTypeCV8U)
	defer frame.Close()

	roi := frame.Region(image.Rect(50, 30, 110, 90))
	marker.CopyTo(&roi)
	roi.Close()

	dets, err := det.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("Detect() found %d markers, want 1", len(dets))
	}
	if dets[0].ID != 7 {
		t.Errorf("ID = %d, want 7", dets[0].ID)
	}

	x, y := dets[0].Center()
	if x < 77 || x > 82 || y < 57 || y > 62 {
		t.Errorf("Center() = (%d,%d), want near (80,60)", x, y)
	}
	if w := dets[0].ApparentWidth(); w < 55 || w > 62 {
		t.Errorf("ApparentWidth() = %f, want near 60", w)
	}
}

func TestArucoDetector_EmptyFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV integration test in short mode")
	}

	det, err := NewArucoDetector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewArucoDetector() error = %v", err)
	}
	defer det.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := det.Detect(&empty); err == nil {
		t.Error("Detect() on empty frame should return an error")
	}
	if _, err := det.Detect(nil); err == nil {
		t.Error("Detect(nil) should return an error")
	}
}
