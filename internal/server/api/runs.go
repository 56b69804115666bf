package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/tagfollower/internal/store"
)

// Paging defaults for list endpoints.
const (
	DefaultRunLimit   = 50
	DefaultFrameLimit = 500
)

// RunHandler handles HTTP requests for run resources.
type RunHandler struct {
	store *store.Store
}

// NewRunHandler creates a new RunHandler with the given store.
func NewRunHandler(s *store.Store) *RunHandler {
	return &RunHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/runs, /api/runs/{id} or /api/runs/{id}/frames
	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.Trim(path, "/")

	if path == "" {
		// Collection endpoint: /api/runs
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "frames":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.frames(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Response types

type runResponse struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Dictionary string         `json:"dictionary"`
	Selection  string         `json:"selection"`
	Topic      string         `json:"topic"`
	Frames     int            `json:"frames"`
	StopReason string         `json:"stop_reason,omitempty"`
	StartedAt  string         `json:"started_at"`
	EndedAt    string         `json:"ended_at,omitempty"`
	Zones      map[string]int `json:"zones,omitempty"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

type listFramesResponse struct {
	RunID  string         `json:"run_id"`
	Offset int            `json:"offset"`
	Frames []*store.Frame `json:"frames"`
}

// toResponse converts a store.Run to a runResponse.
func toResponse(run *store.Run) runResponse {
	resp := runResponse{
		ID:         run.ID,
		Source:     run.Source,
		Dictionary: run.Dictionary,
		Selection:  run.Selection,
		Topic:      run.Topic,
		Frames:     run.Frames,
		StopReason: run.StopReason,
		StartedAt:  formatTime(run.StartedAt),
	}
	if run.EndedAt != nil {
		resp.EndedAt = formatTime(*run.EndedAt)
	}
	return resp
}

// list handles GET /api/runs and returns the newest runs.
func (h *RunHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", DefaultRunLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{
		Runs: make([]runResponse, 0, len(runs)),
	}

	for _, run := range runs {
		response.Runs = append(response.Runs, toResponse(run))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/runs/{id} and returns a single run with its zone histogram.
func (h *RunHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	resp := toResponse(run)
	zones, err := h.store.Frames().ZoneCounts(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count frames")
		return
	}
	resp.Zones = zones

	writeJSON(w, http.StatusOK, resp)
}

// delete handles DELETE /api/runs/{id} and removes a run with its frames.
func (h *RunHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Runs().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// frames handles GET /api/runs/{id}/frames?offset=&limit= and returns a
// page of frame telemetry in capture order.
func (h *RunHandler) frames(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Runs().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}
	limit, ok := queryInt(r, "limit", DefaultFrameLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	frames, err := h.store.Frames().ListByRun(id, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list frames")
		return
	}
	if frames == nil {
		frames = []*store.Frame{}
	}

	writeJSON(w, http.StatusOK, listFramesResponse{RunID: id, Offset: offset, Frames: frames})
}
