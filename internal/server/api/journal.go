package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/handsoff/internal/store"
)

// JournalHandler lists journaled alerts and training bursts.
type JournalHandler struct {
	store *store.Store
}

// NewJournalHandler creates a JournalHandler with the given store.
func NewJournalHandler(s *store.Store) *JournalHandler {
	return &JournalHandler{store: s}
}

// Register adds the journal routes to mux.
func (h *JournalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/alerts", h.alerts)
	mux.HandleFunc("/api/bursts", h.bursts)
}

type listAlertsResponse struct {
	Alerts []*store.Alert `json:"alerts"`
}

type listBurstsResponse struct {
	Bursts []*store.Burst `json:"bursts"`
}

// alerts handles GET /api/alerts?limit=N.
func (h *JournalHandler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	alerts, err := h.store.Alerts().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*store.Alert{}
	}
	writeJSON(w, http.StatusOK, listAlertsResponse{Alerts: alerts})
}

// bursts handles GET /api/bursts?limit=N.
func (h *JournalHandler) bursts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	bursts, err := h.store.Bursts().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list training bursts")
		return
	}
	if bursts == nil {
		bursts = []*store.Burst{}
	}
	writeJSON(w, http.StatusOK, listBurstsResponse{Bursts: bursts})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
