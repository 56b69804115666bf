package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/tagfollower/internal/capture"
	"github.com/ayusman/tagfollower/internal/detector"
	"github.com/ayusman/tagfollower/internal/geometry"
	"github.com/ayusman/tagfollower/internal/log"
	"github.com/ayusman/tagfollower/internal/policy"
	"github.com/ayusman/tagfollower/internal/publish"
	"github.com/ayusman/tagfollower/internal/render"
	"github.com/ayusman/tagfollower/internal/store"
	"gocv.io/x/gocv"
)

// Run opens the camera and processes frames until ctx is cancelled, the
// renderer reports the quit key, or a finite source ends. The camera and
// the publisher are released exactly once before Run returns, on every
// path. Run must be called at most once.
//
// Pipeline per iteration:
// 1. Check for cancellation (an iteration in progress always completes)
// 2. Acquire a frame; on failure publish a zero command and skip
// 3. Convert to grayscale and detect markers
// 4. Estimate geometry and decide the command
// 5. Publish and record telemetry
// 6. Annotate and render; stop on the quit key
func (a *App) Run(ctx context.Context) (reason StopReason, err error) {
	defer func() {
		if cerr := a.publisher.Close(); cerr != nil {
			log.Warn("close publisher", "error", cerr)
		}
	}()

	if err := a.camera.Open(); err != nil {
		return StopError, fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		if cerr := a.camera.Close(); cerr != nil {
			log.Warn("close camera", "error", cerr)
		}
	}()

	// Runs before the publisher closes
	defer func() {
		if a.config.StopOnExit {
			a.publish(policy.VelocityCommand{})
		}
	}()

	runID := a.startRun()
	defer func() {
		if r := recover(); r != nil {
			reason = StopError
			a.finishRun(runID, reason)
			panic(r)
		}
		a.finishRun(runID, reason)
	}()

	log.With("run", runID).Info("follower started", "topic", a.config.Topic)

	for {
		select {
		case <-ctx.Done():
			return StopSignal, nil
		default:
		}

		stop, err := a.step()
		switch {
		case errors.Is(err, capture.ErrEndOfStream):
			return StopEndOfStream, nil
		case err != nil:
			a.wait(ctx)
		case stop:
			return StopQuitKey, nil
		}
	}
}

// step runs one iteration. It returns stop when the renderer asked to
// terminate, and the acquisition error when the frame was skipped.
func (a *App) step() (bool, error) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		if errors.Is(err, capture.ErrEndOfStream) {
			return false, err
		}
		log.Warn("frame acquisition failed", "error", err)
		a.commit(Result{Err: err, Decision: policy.Decision{Zone: policy.ZoneNone, Index: -1}})
		return false, err
	}
	defer frame.Close()

	result := a.ProcessFrame(frame)
	a.commit(result)

	render.Annotate(frame, result.Detections)
	stop, err := a.renderer.Show(frame)
	if err != nil {
		log.Warn("render frame", "error", err)
	}
	return stop, nil
}

// wait pauses after a failed acquisition so a dead device does not spin.
func (a *App) wait(ctx context.Context) {
	t := time.NewTimer(a.config.RetryDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ProcessFrame converts a BGR frame to grayscale, detects markers and
// evaluates them. A detector failure yields a zero command.
func (a *App) ProcessFrame(frame *gocv.Mat) Result {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	detections, err := a.detector.Detect(&gray)
	if err != nil {
		log.Warn("marker detection failed", "error", err)
		return Result{Err: err, Decision: policy.Decision{Zone: policy.ZoneNone, Index: -1}}
	}

	return a.Evaluate(detections)
}

// Evaluate measures each detection and decides the frame's command.
// Distance is telemetry only and never affects the decision.
func (a *App) Evaluate(detections []detector.Detection) Result {
	estimates := make([]geometry.Estimate, len(detections))
	for i, d := range detections {
		est := geometry.Measure(d.Corners, a.config.TagSize, a.config.FocalLength)
		estimates[i] = est

		if est.DistanceKnown {
			log.Debug("marker", "id", d.ID, "x", est.Center.X, "y", est.Center.Y, "distance_m", est.Distance)
		} else {
			log.Debug("marker", "id", d.ID, "x", est.Center.X, "y", est.Center.Y, "distance_m", "unknown")
		}
	}

	return Result{
		Detections: detections,
		Estimates:  estimates,
		Decision:   policy.Decide(detections, a.config.Policy),
	}
}

// commit publishes the frame's command, records it and updates the
// status snapshot.
func (a *App) commit(result Result) {
	cmd := result.Decision.Command
	if result.Err != nil {
		cmd = policy.VelocityCommand{}
	}
	msg := a.publish(cmd)

	a.mu.Lock()
	a.seq++
	seq := a.seq
	runID := a.status.RunID

	a.status.Seq = seq
	a.status.Detections = result.Detections
	a.status.Zone = result.Decision.Zone.String()
	a.status.Command = cmd
	a.status.Twist = msg
	a.status.Distance = nil
	if est, ok := result.Deciding(); ok && est.DistanceKnown {
		d := est.Distance
		a.status.Distance = &d
	}
	a.status.Error = ""
	if result.Err != nil {
		a.status.Error = result.Err.Error()
	}
	a.status.UpdatedAt = time.Now()
	a.mu.Unlock()

	a.record(runID, seq, cmd, result)
}

func (a *App) publish(cmd policy.VelocityCommand) publish.Twist {
	msg := publish.FromCommand(a.config.Topic, cmd)
	if err := a.publisher.Publish(msg); err != nil {
		log.Warn("publish command", "topic", a.config.Topic, "error", err)
	}
	return msg
}

func (a *App) record(runID string, seq int, cmd policy.VelocityCommand, result Result) {
	if a.config.Store == nil || runID == "" {
		return
	}

	f := &store.Frame{
		RunID:      runID,
		Seq:        seq,
		Detections: len(result.Detections),
		Zone:       result.Decision.Zone.String(),
		Angular:    cmd.Angular,
		Linear:     cmd.Linear,
	}
	if result.Err != nil {
		f.Error = result.Err.Error()
	}
	if est, ok := result.Deciding(); ok {
		id := result.Detections[result.Decision.Index].ID
		cx, cy, w := est.Center.X, est.Center.Y, est.ApparentWidth
		f.MarkerID, f.CenterX, f.CenterY, f.ApparentWidth = &id, &cx, &cy, &w
		if est.DistanceKnown {
			d := est.Distance
			f.Distance = &d
		}
	}

	if err := a.config.Store.Frames().Insert(f); err != nil {
		log.Warn("record frame", "run", runID, "seq", seq, "error", err)
	}
}

func (a *App) startRun() string {
	var runID string
	if a.config.Store != nil {
		run := &store.Run{
			Source:     a.config.Source,
			Dictionary: a.config.Dictionary,
			Selection:  a.config.Policy.Selection.String(),
			Topic:      a.config.Topic,
		}
		if err := a.config.Store.Runs().Create(run); err != nil {
			log.Warn("create run", "error", err)
		} else {
			runID = run.ID
		}
	}

	a.mu.Lock()
	a.status.RunID = runID
	a.status.Running = true
	a.status.StopReason = ""
	a.mu.Unlock()

	return runID
}

func (a *App) finishRun(runID string, reason StopReason) {
	a.mu.Lock()
	a.status.Running = false
	a.status.StopReason = reason
	frames := a.seq
	a.mu.Unlock()

	log.With("run", runID).Info("follower stopped", "reason", reason, "frames", frames)

	if a.config.Store == nil || runID == "" {
		return
	}
	if err := a.config.Store.Runs().Finish(runID, frames, string(reason)); err != nil {
		log.Warn("finish run", "run", runID, "error", err)
	}
}
