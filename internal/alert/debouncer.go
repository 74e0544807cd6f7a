// Package alert decides when a detected touch becomes an audible and visual
// alert, and delivers that alert through sound and notification sinks.
package alert

import "sync/atomic"

// State is the debouncer's replay state.
type State int

const (
	// Armed means the next alert-worthy observation fires.
	Armed State = iota
	// Cooling means an alert is playing and further observations are suppressed.
	Cooling
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "cooling"
}

// Debouncer fires at most one alert per playback. It starts Armed, moves to
// Cooling when an alert fires and returns to Armed only on PlaybackFinished.
type Debouncer struct {
	armed atomic.Bool
}

// NewDebouncer returns an Armed debouncer.
func NewDebouncer() *Debouncer {
	d := &Debouncer{}
	d.armed.Store(true)
	return d
}

// Observe reports whether this observation fires an alert.
func (d *Debouncer) Observe(worthy bool) bool {
	if !worthy {
		return false
	}
	return d.armed.CompareAndSwap(true, false)
}

// PlaybackFinished re-arms the debouncer. It is called by the sound sink
// when the alert sound has finished.
func (d *Debouncer) PlaybackFinished() {
	d.armed.Store(true)
}

// State returns the current state.
func (d *Debouncer) State() State {
	if d.armed.Load() {
		return Armed
	}
	return Cooling
}
