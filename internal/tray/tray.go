// Package tray provides the system tray controls for Hands Off: training,
// run/stop and the touched indicator.
package tray

import (
	"fmt"
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/gesture"
)

var log = logrus.WithField("component", "tray")

const (
	titleIdle    = "Hands Off"
	titleTouched = "Hands Off ✋"
)

// Tray represents the system tray application.
type Tray struct {
	onTrain     func(label gesture.Label)
	onRun       func()
	onStop      func()
	onDashboard func()
	onQuit      func()
	running     bool
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuTrain   map[gesture.Label]*systray.MenuItem
	menuRun     *systray.MenuItem
	menuStatus  *systray.MenuItem
	menuExample *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{menuTrain: make(map[gesture.Label]*systray.MenuItem)}
}

// OnTrain sets the callback for the "Train" menu items. It runs on its own
// goroutine because a burst blocks for seconds.
func (t *Tray) OnTrain(fn func(label gesture.Label)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrain = fn
}

// OnRun sets the callback for "Run".
func (t *Tray) OnRun(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRun = fn
}

// OnStop sets the callback for "Stop".
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnDashboard sets the callback for "Open Dashboard...".
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle(titleIdle)
	systray.SetTooltip("Hands Off face-touch alerts")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusTitle(app.State{Mode: app.ModeIdle}), "Last decision")
	t.menuStatus.Disable()
	t.menuExample = systray.AddMenuItem(examplesTitle(nil), "Stored examples")
	t.menuExample.Disable()
	systray.AddSeparator()

	trainNot := systray.AddMenuItem("Train: not touching", "Record examples with your hands away from your face")
	trainTouch := systray.AddMenuItem("Train: touching", "Record examples while touching your face")
	t.menuTrain[gesture.NotTouching] = trainNot
	t.menuTrain[gesture.Touching] = trainTouch
	t.menuRun = systray.AddMenuItem("Run", "Start or stop the classifier")
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Hands Off")
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-trainNot.ClickedCh:
				t.handleTrain(gesture.NotTouching)
			case <-trainTouch.ClickedCh:
				t.handleTrain(gesture.Touching)
			case <-t.menuRun.ClickedCh:
				t.handleRunToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	log.Debug("tray exited")
}

func (t *Tray) handleTrain(label gesture.Label) {
	t.mu.RLock()
	callback := t.onTrain
	t.mu.RUnlock()

	if callback != nil {
		go callback(label)
	}
}

// handleRunToggle calls onRun or onStop depending on the last reported mode.
func (t *Tray) handleRunToggle() {
	t.mu.RLock()
	callback := t.onRun
	if t.running {
		callback = t.onStop
	}
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// HandleEvent updates the menu from an App event. It is meant to be passed to
// App.Subscribe and never blocks.
func (t *Tray) HandleEvent(ev app.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.menuRun == nil {
		return // not ready yet
	}

	switch ev.Type {
	case app.EventState:
		s := *ev.State
		t.running = s.Mode == app.ModeRunning
		if t.running {
			t.menuRun.SetTitle("Stop")
		} else {
			t.menuRun.SetTitle("Run")
		}
		for _, item := range t.menuTrain {
			if s.Mode == app.ModeIdle {
				item.Enable()
			} else {
				item.Disable()
			}
		}
		t.menuStatus.SetTitle(statusTitle(s))
		t.menuExample.SetTitle(examplesTitle(s.Examples))
		if s.Mode == app.ModeTraining {
			return // the progress title stays until the burst ends
		}
		if s.Touched {
			systray.SetTitle(titleTouched)
		} else {
			systray.SetTitle(titleIdle)
		}
	case app.EventProgress:
		systray.SetTitle(progressTitle(ev.Progress.Label, ev.Percent))
	}
}

func statusTitle(s app.State) string {
	switch {
	case s.Mode == app.ModeTraining:
		return "Training..."
	case s.Mode != app.ModeRunning:
		return "Stopped"
	case s.Label == "" || s.Label == gesture.LabelNone.String():
		return "No decision yet"
	case s.Touched:
		return fmt.Sprintf("Touching (%.0f%%)", s.Confidence*100)
	default:
		return fmt.Sprintf("Not touching (touch %.0f%%)", s.Confidence*100)
	}
}

func examplesTitle(counts map[string]int) string {
	return fmt.Sprintf("Examples: %d not touching, %d touching",
		counts[string(gesture.NotTouching)], counts[string(gesture.Touching)])
}

func progressTitle(label gesture.Label, percent int) string {
	return fmt.Sprintf("Training %s %d%%", strings.ReplaceAll(string(label), "_", " "), percent)
}
