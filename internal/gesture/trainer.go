package gesture

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/embed"
)

// Training defaults.
const (
	DefaultRepetitions = 50
	DefaultInterval    = 100 * time.Millisecond
)

var log = logrus.WithField("component", "gesture")

// FrameSource supplies camera frames. The caller closes each returned Mat.
type FrameSource interface {
	ReadFrame() (*gocv.Mat, error)
}

// Progress reports how far a training burst has advanced.
type Progress struct {
	Label Label `json:"label"`
	Index int   `json:"index"` // Repetitions completed, 1-based
	Total int   `json:"total"`
}

// Percent returns completion as a whole percentage.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Index * 100 / p.Total
}

// ProgressFunc is called after every completed repetition.
type ProgressFunc func(Progress)

// BurstError reports a training burst that stopped early. Examples added
// before the failure stay in the store.
type BurstError struct {
	Label     Label
	Completed int
	Requested int
	Err       error
}

func (e *BurstError) Error() string {
	return fmt.Sprintf("training %s stopped after %d/%d repetitions: %v", e.Label, e.Completed, e.Requested, e.Err)
}

func (e *BurstError) Unwrap() error {
	return e.Err
}

// TrainerConfig controls burst size and pacing.
type TrainerConfig struct {
	Repetitions int
	Interval    time.Duration
}

// Trainer fills an ExampleStore with labeled embeddings captured from a
// frame source.
type Trainer struct {
	source   FrameSource
	embedder embed.Embedder
	examples *ExampleStore
	config   TrainerConfig
}

// NewTrainer creates a new Trainer. Zero config values fall back to 50
// repetitions spaced 100ms apart.
func NewTrainer(source FrameSource, embedder embed.Embedder, examples *ExampleStore, config TrainerConfig) *Trainer {
	if config.Repetitions <= 0 {
		config.Repetitions = DefaultRepetitions
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Trainer{
		source:   source,
		embedder: embedder,
		examples: examples,
		config:   config,
	}
}

// Repetitions returns the default burst size.
func (t *Trainer) Repetitions() int {
	return t.config.Repetitions
}

// Train runs repetitions capture-embed-add cycles for label, pausing for
// the configured interval between cycles. repetitions <= 0 uses the
// configured default. It returns the number of examples added; on failure
// the error is a *BurstError and the examples already added are kept.
func (t *Trainer) Train(ctx context.Context, label Label, repetitions int, onProgress ProgressFunc) (int, error) {
	if !label.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, string(label))
	}
	if repetitions <= 0 {
		repetitions = t.config.Repetitions
	}

	log.WithFields(logrus.Fields{"label": label, "repetitions": repetitions}).Info("training started")

	fail := func(done int, err error) (int, error) {
		log.WithFields(logrus.Fields{"label": label, "completed": done, "requested": repetitions}).
			WithError(err).Warn("training aborted")
		return done, &BurstError{Label: label, Completed: done, Requested: repetitions, Err: err}
	}

	for i := 0; i < repetitions; i++ {
		if i > 0 {
			if err := sleep(ctx, t.config.Interval); err != nil {
				return fail(i, err)
			}
		} else if err := ctx.Err(); err != nil {
			return fail(0, err)
		}

		if err := t.step(label); err != nil {
			return fail(i, err)
		}

		p := Progress{Label: label, Index: i + 1, Total: repetitions}
		log.WithField("label", label).Debugf("progress %d%%", p.Percent())
		if onProgress != nil {
			onProgress(p)
		}
	}

	log.WithFields(logrus.Fields{"label": label, "examples": t.examples.Count(label)}).Info("training finished")
	return repetitions, nil
}

// step captures one frame, embeds it and stores the example.
func (t *Trainer) step(label Label) error {
	frame, err := t.source.ReadFrame()
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	emb, err := t.embedder.Embed(frame)
	frame.Close()
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	return t.examples.Add(emb, label)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
