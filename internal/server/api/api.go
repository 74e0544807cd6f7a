// Package api provides the HTTP handlers behind the Hands Off local API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/gesture"
)

// Controller is the part of the application the handlers drive.
type Controller interface {
	Train(ctx context.Context, label gesture.Label, repetitions int) (int, error)
	StartRun(ctx context.Context) error
	StopRun() error
	State() app.State
	Examples() *gesture.ExampleStore
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
