package server

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultStreamFPS is the MJPEG rate used when none is configured.
const DefaultStreamFPS = 15

// StreamHandler serves the follower's annotated frames as MJPEG. It reads
// from the frame buffer fed by the control loop and never touches the camera.
type StreamHandler struct {
	frames   FrameSource
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler polling frames at fps.
func NewStreamHandler(frames FrameSource, fps int) *StreamHandler {
	if fps <= 0 {
		fps = DefaultStreamFPS
	}
	return &StreamHandler{
		frames:   frames,
		interval: time.Second / time.Duration(fps),
	}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last uint64
	for {
		if data, seq := h.frames.Latest(); seq != last && len(data) > 0 {
			last = seq
			if err := writePart(w, data); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writePart writes one JPEG as a multipart section.
func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
