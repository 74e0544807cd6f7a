package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/gesture"
)

// ControlHandler serves the training and run controls.
type ControlHandler struct {
	ctrl Controller
	// runCtx outlives the request that starts a run.
	runCtx context.Context
}

// NewControlHandler creates a ControlHandler. Runs started over HTTP stop
// when runCtx is done.
func NewControlHandler(ctrl Controller, runCtx context.Context) *ControlHandler {
	if runCtx == nil {
		runCtx = context.Background()
	}
	return &ControlHandler{ctrl: ctrl, runCtx: runCtx}
}

// Register adds the control routes to mux.
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.state)
	mux.HandleFunc("/api/train", h.train)
	mux.HandleFunc("/api/run", h.run)
	mux.HandleFunc("/api/stop", h.stop)
	mux.HandleFunc("/api/examples", h.examples)
}

type trainRequest struct {
	Label       string `json:"label"`
	Repetitions int    `json:"repetitions"`
}

type trainResponse struct {
	Label     string         `json:"label"`
	Added     int            `json:"added"`
	Requested int            `json:"requested,omitempty"`
	Examples  map[string]int `json:"examples"`
	Error     string         `json:"error,omitempty"`
}

type examplesResponse struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
	Dim    int            `json:"dim"`
	K      int            `json:"k"`
	Metric string         `json:"metric"`
}

// state handles GET /api/state.
func (h *ControlHandler) state(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// train handles POST /api/train. It blocks until the burst is over; a
// client disconnect aborts the burst.
func (h *ControlHandler) train(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	label, err := gesture.ParseLabel(req.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, "label must be not_touching or touching")
		return
	}
	if req.Repetitions < 0 {
		writeError(w, http.StatusBadRequest, "repetitions must not be negative")
		return
	}

	added, err := h.ctrl.Train(r.Context(), label, req.Repetitions)
	resp := trainResponse{Label: string(label), Added: added, Examples: h.ctrl.State().Examples}

	var burstErr *gesture.BurstError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &burstErr):
		resp.Requested = burstErr.Requested
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeControlError(w, err)
	}
}

// run handles POST /api/run.
func (h *ControlHandler) run(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.ctrl.StartRun(h.runCtx); err != nil {
		writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctrl.State())
}

// stop handles POST /api/stop.
func (h *ControlHandler) stop(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.ctrl.StopRun(); err != nil {
		writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// examples handles GET /api/examples.
func (h *ControlHandler) examples(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	ex := h.ctrl.Examples()
	resp := examplesResponse{
		Total:  ex.Len(),
		Counts: make(map[string]int, 2),
		Dim:    ex.Dim(),
		K:      ex.K(),
		Metric: string(ex.Metric()),
	}
	for _, l := range gesture.Labels() {
		resp.Counts[string(l)] = ex.Count(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotOpen):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, gesture.ErrInvalidLabel):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
