package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/embed"
	"github.com/ayusman/handsoff/internal/gesture"
)

// Classifier defaults.
const (
	DefaultThreshold   = 0.8
	DefaultRunInterval = 200 * time.Millisecond
)

// ErrAlreadyRunning is returned by Start when the loop is already running.
var ErrAlreadyRunning = errors.New("classifier already running")

// Decision is the outcome of one classifier iteration.
type Decision struct {
	Result gesture.Result
	Worthy bool
	Fired  bool
	At     time.Time
}

// Touched reports whether the frame counts as a touch: the touching vote
// won by more than the threshold. A touching majority at or below the
// threshold is shown as not touched.
func (d Decision) Touched() bool {
	return d.Worthy
}

// ClassifierConfig controls the decision threshold and loop cadence.
type ClassifierConfig struct {
	Threshold float64
	Interval  time.Duration
	// OnDecision is called on the loop goroutine after every iteration.
	OnDecision func(Decision)
	// OnFrame sees every captured frame before it is closed.
	OnFrame func(*gocv.Mat)
}

// Classifier is the run loop: capture, embed, query, decide, debounce,
// then wait Interval before the next iteration. Iterations are strictly
// sequential and cancellation takes effect between them.
type Classifier struct {
	source   gesture.FrameSource
	embedder embed.Embedder
	examples *gesture.ExampleStore
	alerter  *alert.Alerter
	config   ClassifierConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClassifier creates a stopped Classifier.
func NewClassifier(source gesture.FrameSource, embedder embed.Embedder, examples *gesture.ExampleStore, alerter *alert.Alerter, config ClassifierConfig) *Classifier {
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Interval <= 0 {
		config.Interval = DefaultRunInterval
	}
	return &Classifier{
		source:   source,
		embedder: embedder,
		examples: examples,
		alerter:  alerter,
		config:   config,
	}
}

// Start launches the loop on its own goroutine. It runs until Stop is
// called or ctx is done.
func (c *Classifier) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return ErrAlreadyRunning
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx, c.done)

	log.WithFields(logrus.Fields{
		"threshold": c.config.Threshold,
		"interval":  c.config.Interval,
	}).Info("classifier started")
	return nil
}

// Stop cancels the loop and waits for the in-flight iteration to finish.
// Stopping a stopped Classifier is a no-op.
func (c *Classifier) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info("classifier stopped")
}

// Running reports whether the loop goroutine is active.
func (c *Classifier) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}

// Done returns a channel closed when the current loop exits, or nil when stopped.
func (c *Classifier) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Classifier) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if d, err := c.Step(); err == nil && c.config.OnDecision != nil {
			c.config.OnDecision(d)
		}

		timer.Reset(c.config.Interval)
	}
}

// Step runs one iteration. Capture and embed failures are logged and
// returned; the loop skips the iteration and keeps its cadence.
func (c *Classifier) Step() (Decision, error) {
	frame, err := c.source.ReadFrame()
	if err != nil {
		log.WithError(err).Warn("frame capture failed")
		return Decision{}, err
	}
	defer frame.Close()

	if c.config.OnFrame != nil {
		c.config.OnFrame(frame)
	}

	embedding, err := c.embedder.Embed(frame)
	if err != nil {
		log.WithError(err).Warn("embedding failed")
		return Decision{}, err
	}

	d := Decision{At: time.Now()}
	d.Result, err = c.examples.Query(embedding)
	switch {
	case errors.Is(err, gesture.ErrNoExamples):
		log.Debug("no examples yet")
	case err != nil:
		log.WithError(err).Debug("query failed")
	default:
		d.Worthy = d.Result.AlertWorthy(c.config.Threshold)
	}

	d.Fired = c.alerter.Observe(d.Worthy)
	if d.Fired {
		log.WithFields(logrus.Fields{
			"label":      d.Result.Label,
			"confidence": d.Result.Confidence(gesture.Touching),
		}).Info("alert fired")
	}
	return d, nil
}
