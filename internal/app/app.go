// Package app runs the follower's control loop: capture, detect, decide,
// publish and render, one frame at a time.
package app

import (
	"sync"
	"time"

	"github.com/ayusman/tagfollower/internal/capture"
	"github.com/ayusman/tagfollower/internal/detector"
	"github.com/ayusman/tagfollower/internal/geometry"
	"github.com/ayusman/tagfollower/internal/policy"
	"github.com/ayusman/tagfollower/internal/publish"
	"github.com/ayusman/tagfollower/internal/render"
	"github.com/ayusman/tagfollower/internal/store"
)

// DefaultRetryDelay is how long the loop waits after a failed acquisition.
const DefaultRetryDelay = 100 * time.Millisecond

// StopReason says why Run returned.
type StopReason string

const (
	StopSignal      StopReason = "signal"
	StopQuitKey     StopReason = "quit"
	StopEndOfStream StopReason = "end_of_stream"
	StopError       StopReason = "error"
)

// Config holds configuration options for the application.
type Config struct {
	// Store records telemetry when set.
	Store *store.Store

	Topic       string
	TagSize     float64 // meters
	FocalLength float64 // pixels
	Policy      policy.Config

	// StopOnExit publishes a zero command before the publisher closes.
	StopOnExit bool
	RetryDelay time.Duration

	// Source and Dictionary are recorded with the run.
	Source     string
	Dictionary string
}

// Status is a snapshot of the most recent frame.
type Status struct {
	RunID      string                 `json:"run_id,omitempty"`
	Running    bool                   `json:"running"`
	Seq        int                    `json:"seq"`
	Detections []detector.Detection   `json:"detections"`
	Zone       string                 `json:"zone"`
	Command    policy.VelocityCommand `json:"command"`
	Twist      publish.Twist          `json:"twist"`
	Distance   *float64               `json:"distance_m,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StopReason StopReason             `json:"stop_reason,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Result is the outcome of evaluating one frame.
type Result struct {
	Detections []detector.Detection
	Estimates  []geometry.Estimate
	Decision   policy.Decision
	// Err is set when the frame could not be evaluated; the command is
	// then zero.
	Err error
}

// Deciding returns the estimate of the detection that decided the frame.
func (r Result) Deciding() (geometry.Estimate, bool) {
	i := r.Decision.Index
	if i < 0 || i >= len(r.Estimates) {
		return geometry.Estimate{}, false
	}
	return r.Estimates[i], true
}

// App owns the loop state: the camera, the detector, the publisher and the
// renderer. The camera and the publisher are released by Run.
type App struct {
	config    Config
	camera    capture.Camera
	detector  detector.Detector
	publisher publish.Publisher
	renderer  render.Renderer

	mu     sync.RWMutex
	status Status
	seq    int
}

// New creates an App. A nil publisher or renderer disables that output.
func New(config Config, camera capture.Camera, det detector.Detector, pub publish.Publisher, r render.Renderer) *App {
	if pub == nil {
		pub = publish.Multi{}
	}
	if r == nil {
		r = render.Multi{}
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}

	return &App{
		config:    config,
		camera:    camera,
		detector:  det,
		publisher: pub,
		renderer:  r,
		status:    Status{Zone: policy.ZoneNone.String()},
	}
}

// Status returns the latest frame snapshot. It is safe to call from other
// goroutines while Run is active.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.status
	s.Detections = append([]detector.Detection(nil), a.status.Detections...)
	return s
}
