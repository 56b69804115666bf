package detector

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ayusman/tagfollower/internal/geometry"
	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

var dictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":         gocv.ArucoDict4x4_50,
	"4x4_100":        gocv.ArucoDict4x4_100,
	"4x4_250":        gocv.ArucoDict4x4_250,
	"5x5_50":         gocv.ArucoDict5x5_50,
	"5x5_100":        gocv.ArucoDict5x5_100,
	"6x6_50":         gocv.ArucoDict6x6_50,
	"6x6_250":        gocv.ArucoDict6x6_250,
	"apriltag_16h5":  gocv.ArucoDictAprilTag_16h5,
	"apriltag_25h9":  gocv.ArucoDictAprilTag_25h9,
	"apriltag_36h10": gocv.ArucoDictAprilTag_36h10,
	"apriltag_36h11": gocv.ArucoDictAprilTag_36h11,
}

// Dictionaries returns the supported dictionary names, sorted.
func Dictionaries() []string {
	names := make([]string, 0, len(dictionaries))
	for name := range dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DictionaryCode resolves a dictionary name to its OpenCV code.
func DictionaryCode(name string) (gocv.ArucoDictionaryCode, error) {
	code, ok := dictionaries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown dictionary %q", ErrDetectorUnavailable, name)
	}
	return code, nil
}

// ArucoDetector implements Detector with OpenCV's ArUco module, which also
// decodes the AprilTag families.
type ArucoDetector struct {
	config   Config
	detector gocv.ArucoDetector
	mu       sync.Mutex
	closed   bool
}

// NewArucoDetector creates a detector for the configured dictionary.
func NewArucoDetector(config Config) (*ArucoDetector, error) {
	code, err := DictionaryCode(config.Dictionary)
	if err != nil {
		return nil, err
	}

	dict := gocv.GetPredefinedDictionary(code)
	params := gocv.NewArucoDetectorParameters()

	return &ArucoDetector{
		config:   config,
		detector: gocv.NewArucoDetectorWithParams(dict, params),
	}, nil
}

// Detect finds markers in a grayscale frame.
func (d *ArucoDetector) Detect(gray *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("%w: detector closed", ErrDetectorUnavailable)
	}
	if gray == nil || gray.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	corners, ids, _ := d.detector.DetectMarkers(*gray)

	result := make([]Detection, 0, len(ids))
	for i, id := range ids {
		if i >= len(corners) || len(corners[i]) != geometry.NumCorners {
			continue
		}
		result = append(result, Detection{ID: id, Corners: quadFromOpenCV(corners[i])})
	}

	return result, nil
}

// Close releases the OpenCV detector.
func (d *ArucoDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.detector.Close()
	d.closed = true
	return nil
}

// quadFromOpenCV reorders OpenCV's clockwise top-left-first corners
// into left-bottom, right-bottom, right-top, left-top.
func quadFromOpenCV(c []gocv.Point2f) geometry.Quad {
	pt := func(p gocv.Point2f) r2.Point {
		return r2.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return geometry.Quad{
		geometry.LeftBottom:  pt(c[3]),
		geometry.RightBottom: pt(c[2]),
		geometry.RightTop:    pt(c[1]),
		geometry.LeftTop:     pt(c[0]),
	}
}
