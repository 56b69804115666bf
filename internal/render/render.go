// Package render draws detections onto frames and shows them. Rendering is
// diagnostic only and never influences the command.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/tagfollower/internal/detector"
	"gocv.io/x/gocv"
)

// QuitKey stops the follower when pressed in the window.
const QuitKey = 'q'

var labelColor = color.RGBA{0, 255, 0, 0}

const (
	labelFont      = gocv.FontHersheySimplex
	labelScale     = 0.5
	labelThickness = 2
	outlineWidth   = 2
	labelLift      = 10
)

// Renderer shows annotated frames. Show reports stop = true when the user
// asked to terminate.
type Renderer interface {
	Show(frame *gocv.Mat) (stop bool, err error)
	Close() error
}

// Label returns the text drawn next to a marker.
func Label(d detector.Detection) string {
	return fmt.Sprintf("ID: %d", d.ID)
}

// LabelOrigin returns where Label's baseline starts: horizontally centered
// on the marker and lifted above its center.
func LabelOrigin(d detector.Detection, textSize image.Point) image.Point {
	x, y := d.Center()
	return image.Pt(x-textSize.X/2, y-labelLift)
}

// Annotate outlines each detection and labels it with its ID.
func Annotate(frame *gocv.Mat, detections []detector.Detection) {
	for _, d := range detections {
		outline := gocv.NewPointsVectorFromPoints([][]image.Point{d.Corners.Points()})
		gocv.Polylines(frame, outline, true, labelColor, outlineWidth)
		outline.Close()

		text := Label(d)
		size := gocv.GetTextSize(text, labelFont, labelScale, labelThickness)
		gocv.PutText(frame, text, LabelOrigin(d, size), labelFont, labelScale, labelColor, labelThickness)
	}
}

// Window shows frames in a native OpenCV window. It must be used from the
// goroutine that created it.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a window titled title.
func NewWindow(title string) *Window {
	return &Window{window: gocv.NewWindow(title)}
}

// Show displays frame and polls the keyboard for the quit key.
func (w *Window) Show(frame *gocv.Mat) (bool, error) {
	w.window.IMShow(*frame)
	key := w.window.WaitKey(1)
	return key&0xFF == QuitKey, nil
}

func (w *Window) Close() error {
	return w.window.Close()
}

// Multi shows a frame on several renderers and stops when any of them
// asks to. An empty Multi renders nothing.
type Multi []Renderer

func (m Multi) Show(frame *gocv.Mat) (bool, error) {
	stop := false
	var errs []error
	for _, r := range m {
		s, err := r.Show(frame)
		if err != nil {
			errs = append(errs, err)
		}
		stop = stop || s
	}
	return stop, errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
