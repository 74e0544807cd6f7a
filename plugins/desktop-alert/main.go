// Package main provides the desktop alert plugin for macOS and Linux.
// It plays the alert sound and shows a desktop notification.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	Label      string          `json:"label,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Title      string          `json:"title,omitempty"`
	Body       string          `json:"body,omitempty"`
	Sound      string          `json:"sound,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type actionHandler func(req Request) error

var actionHandlers = map[string]actionHandler{
	"play-sound": playSound,
	"notify":     notify,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := handler(req); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// playSound blocks until the sound has finished playing. The executor treats
// the process exit as the end of playback.
func playSound(req Request) error {
	if req.Sound == "" {
		return errors.New("no sound file given")
	}
	if _, err := os.Stat(req.Sound); err != nil {
		return err
	}

	switch runtime.GOOS {
	case "darwin":
		return run("afplay", req.Sound)
	case "linux":
		if _, err := exec.LookPath("paplay"); err == nil {
			return run("paplay", req.Sound)
		}
		return run("aplay", "-q", req.Sound)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

func notify(req Request) error {
	if req.Title == "" {
		return errors.New("notification needs a title")
	}

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", req.Body, req.Title)
		return run("osascript", "-e", script)
	case "linux":
		return run("notify-send", req.Title, req.Body)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}
