// Package app ties the camera, embedder, example store, trainer, classifier
// loop and alert sinks into the Hands Off application.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/embed"
	"github.com/ayusman/handsoff/internal/gesture"
	"github.com/ayusman/handsoff/internal/store"
)

var log = logrus.WithField("component", "app")

var (
	// ErrBusy is returned when training or running is requested while
	// another operation holds the camera.
	ErrBusy = errors.New("another operation is in progress")

	// ErrNotRunning is returned by StopRun when the classifier is not running.
	ErrNotRunning = errors.New("classifier is not running")

	// ErrNotOpen is returned when an operation needs the camera before Open.
	ErrNotOpen = errors.New("app is not open")
)

// Mode is the App's active operation.
type Mode string

// Modes. Only one operation may hold the camera at a time.
const (
	ModeIdle     Mode = "idle"
	ModeTraining Mode = "training"
	ModeRunning  Mode = "running"
)

// State is what the user sees: the active operation, the last decision and
// the example counts.
type State struct {
	Mode       Mode           `json:"mode"`
	Touched    bool           `json:"touched"`
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"` // share of touching votes
	Alert      string         `json:"alert"`
	Examples   map[string]int `json:"examples"`
	Session    string         `json:"session,omitempty"`
}

// Config holds the App's collaborators and tuning values.
type Config struct {
	Camera   capture.Camera
	Embedder embed.Embedder
	Examples *gesture.ExampleStore

	Training    gesture.TrainerConfig
	Threshold   float64
	RunInterval time.Duration

	Player   alert.Player
	Notifier alert.Notifier
	Alert    alert.Config

	// Journal records bursts, sessions and alerts when set.
	Journal *store.Store
	// Frames receives every frame the run loop captures when set.
	Frames *capture.FrameMailbox
}

// App is the main application. It owns the camera and guarantees that
// training and classification never use it at the same time.
type App struct {
	config     Config
	examples   *gesture.ExampleStore
	trainer    *gesture.Trainer
	alerter    *alert.Alerter
	classifier *Classifier
	listeners  listeners

	mu      sync.Mutex
	open    bool
	mode    Mode
	session string
	run     uint64 // incremented by StartRun
	ended   uint64 // last run claimed by endRun
	last    Decision
}

// New creates a new App. Nil sinks fall back to a SilentPlayer and a LogNotifier.
func New(config Config) *App {
	if config.Examples == nil {
		config.Examples = gesture.NewExampleStore(gesture.DefaultK, gesture.MetricCosine)
	}
	if config.Player == nil {
		config.Player = alert.SilentPlayer{Cooldown: alert.DefaultSilentCooldown}
	}
	if config.Notifier == nil {
		config.Notifier = alert.LogNotifier{}
	}

	a := &App{
		config:   config,
		examples: config.Examples,
		mode:     ModeIdle,
	}
	a.trainer = gesture.NewTrainer(config.Camera, config.Embedder, config.Examples, config.Training)
	a.alerter = alert.NewAlerter(config.Player, config.Notifier, config.Alert)
	a.classifier = NewClassifier(config.Camera, config.Embedder, config.Examples, a.alerter, ClassifierConfig{
		Threshold:  config.Threshold,
		Interval:   config.RunInterval,
		OnDecision: a.onDecision,
		OnFrame:    a.onFrame,
	})
	return a
}

// Open opens the camera. A missing or denied camera returns an error
// wrapping capture.ErrCameraUnavailable.
func (a *App) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open {
		return nil
	}
	if err := a.config.Camera.Open(); err != nil {
		return err
	}
	a.open = true

	log.Info("ready: keep your hands away from your face and train \"not touching\" first")
	return nil
}

// Close stops the classifier and releases the camera and embedder.
func (a *App) Close() error {
	if err := a.StopRun(); err != nil && !errors.Is(err, ErrNotRunning) {
		log.WithError(err).Warn("stop on close failed")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.open {
		errs = append(errs, a.config.Camera.Close())
		a.open = false
	}
	if a.config.Embedder != nil {
		errs = append(errs, a.config.Embedder.Close())
	}
	return errors.Join(errs...)
}

// claim takes the active operation slot.
func (a *App) claim(mode Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open {
		return ErrNotOpen
	}
	if a.mode != ModeIdle {
		return fmt.Errorf("%w: %s", ErrBusy, a.mode)
	}
	a.mode = mode
	return nil
}

func (a *App) release() {
	a.mu.Lock()
	a.mode = ModeIdle
	a.session = ""
	a.mu.Unlock()
	a.publishState()
}

// Train runs one training burst for label. It blocks until the burst
// completes, fails or ctx is done, and returns the number of examples added.
// repetitions <= 0 uses the configured default.
func (a *App) Train(ctx context.Context, label gesture.Label, repetitions int) (int, error) {
	if !label.Valid() {
		return 0, fmt.Errorf("%w: %q", gesture.ErrInvalidLabel, string(label))
	}
	if err := a.claim(ModeTraining); err != nil {
		return 0, err
	}
	defer a.release()
	a.publishState()

	if repetitions <= 0 {
		repetitions = a.trainer.Repetitions()
	}

	started := time.Now()
	added, err := a.trainer.Train(ctx, label, repetitions, func(p gesture.Progress) {
		a.listeners.publish(Event{Type: EventProgress, Progress: &p, Percent: p.Percent()})
	})

	a.journalBurst(label, repetitions, added, err, started)
	return added, err
}

// StartRun starts the classifier loop. It runs until StopRun or until ctx is done.
func (a *App) StartRun(ctx context.Context) error {
	if err := a.claim(ModeRunning); err != nil {
		return err
	}

	session := a.journalSessionStart()
	a.mu.Lock()
	a.session = session
	a.run++
	run := a.run
	a.mu.Unlock()

	if err := a.classifier.Start(ctx); err != nil {
		a.journalSessionStop(session)
		a.release()
		return err
	}
	a.publishState()

	// Release the slot if the loop ends because ctx was cancelled.
	done := a.classifier.Done()
	go func() {
		<-done
		if session, ok := a.endRun(run); ok {
			a.classifier.Stop()
			a.journalSessionStop(session)
			a.release()
		}
	}()
	return nil
}

// StopRun stops the classifier loop and waits for the current iteration.
func (a *App) StopRun() error {
	session, ok := a.endRun(0)
	if !ok {
		return ErrNotRunning
	}

	a.classifier.Stop()
	a.journalSessionStop(session)
	a.release()
	return nil
}

// endRun marks the current run as ending exactly once. A non-zero run only
// matches that run.
func (a *App) endRun(run uint64) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mode != ModeRunning || a.ended == a.run || (run != 0 && run != a.run) {
		return "", false
	}
	a.ended = a.run
	return a.session, true
}

// Mode returns the active operation.
func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// State returns a snapshot of the user-visible state.
func (a *App) State() State {
	a.mu.Lock()
	mode, session, last := a.mode, a.session, a.last
	a.mu.Unlock()

	s := State{
		Mode:       mode,
		Touched:    last.Touched(),
		Label:      last.Result.Label.String(),
		Confidence: last.Result.Confidence(gesture.Touching),
		Alert:      a.alerter.State().String(),
		Examples:   make(map[string]int, 2),
		Session:    session,
	}
	for _, l := range gesture.Labels() {
		s.Examples[string(l)] = a.examples.Count(l)
	}
	return s
}

// Examples returns the example store.
func (a *App) Examples() *gesture.ExampleStore {
	return a.examples
}

// Subscribe registers a listener. The returned func removes it.
func (a *App) Subscribe(fn Listener) func() {
	return a.listeners.add(fn)
}

func (a *App) publishState() {
	s := a.State()
	a.listeners.publish(Event{Type: EventState, State: &s})
}

func (a *App) onDecision(d Decision) {
	a.mu.Lock()
	a.last = d
	session := a.session
	a.mu.Unlock()

	// The displayed state follows every iteration, fired or not.
	a.publishState()

	if d.Fired {
		rec := &store.Alert{
			SessionID:  session,
			Label:      string(d.Result.Label),
			Confidence: d.Result.Confidence(gesture.Touching),
			CreatedAt:  d.At,
		}
		a.journalAlert(rec)
		a.listeners.publish(Event{Type: EventAlert, Alert: rec})
	}
}

func (a *App) onFrame(frame *gocv.Mat) {
	if a.config.Frames != nil {
		a.config.Frames.Publish(frame)
	}
}
