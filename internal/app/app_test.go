package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/embed"
	"github.com/ayusman/handsoff/internal/gesture"
	"github.com/ayusman/handsoff/internal/store"
)

const testDim = 16

// heldPlayer counts plays and never reports playback finished on its own.
type heldPlayer struct {
	plays atomic.Int32
	mu    sync.Mutex
	done  func()
}

func (p *heldPlayer) Play(done func()) error {
	p.plays.Add(1)
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()
	return nil
}

func (p *heldPlayer) finish() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		done()
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(title, body string) error { return nil }

type testApp struct {
	*App
	camera   *capture.MockCamera
	embedder *embed.MockEmbedder
	player   *heldPlayer
	journal  *store.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	journal, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	cam := capture.NewBlankCamera()
	t.Cleanup(cam.Release)

	ta := &testApp{
		camera:   cam,
		embedder: embed.NewMockEmbedder(),
		player:   &heldPlayer{},
		journal:  journal,
	}
	ta.App = New(Config{
		Camera:      cam,
		Embedder:    ta.embedder,
		Examples:    gesture.NewExampleStore(gesture.DefaultK, gesture.MetricCosine),
		Training:    gesture.TrainerConfig{Repetitions: 50, Interval: time.Millisecond},
		Threshold:   0.8,
		RunInterval: 5 * time.Millisecond,
		Player:      ta.player,
		Notifier:    nopNotifier{},
		Journal:     journal,
	})
	if err := ta.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { ta.Close() })
	return ta
}

// trainClusters trains 50 not_touching examples near the origin and 50
// touching examples near the all-ones vector.
func (ta *testApp) trainClusters(t *testing.T) {
	t.Helper()

	ta.embedder.Push(embed.Jitter(embed.Constant(testDim, 0), 50, 0.05, 1)...)
	if n, err := ta.Train(context.Background(), gesture.NotTouching, 50); err != nil || n != 50 {
		t.Fatalf("Train(not_touching) = %d, %v", n, err)
	}

	ta.embedder.Push(embed.Jitter(embed.Constant(testDim, 1), 50, 0.05, 2)...)
	if n, err := ta.Train(context.Background(), gesture.Touching, 50); err != nil || n != 50 {
		t.Fatalf("Train(touching) = %d, %v", n, err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestApp_TouchFiresExactlyOneAlert(t *testing.T) {
	ta := newTestApp(t)
	ta.trainClusters(t)

	var states, alerts atomic.Int32
	var touchedStates atomic.Int32
	ta.Subscribe(func(ev Event) {
		switch ev.Type {
		case EventState:
			if ev.State.Mode == ModeRunning {
				states.Add(1)
				if ev.State.Touched {
					touchedStates.Add(1)
				}
			}
		case EventAlert:
			alerts.Add(1)
		}
	})

	ta.embedder.Push(embed.Jitter(embed.Constant(testDim, 1), 5, 0.05, 3)...)
	if err := ta.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	eventually(t, "ten touched iterations", func() bool { return touchedStates.Load() >= 10 })

	if got := ta.player.plays.Load(); got != 1 {
		t.Errorf("plays = %d, want 1", got)
	}
	if got := alerts.Load(); got != 1 {
		t.Errorf("alert events = %d, want 1", got)
	}

	s := ta.State()
	if !s.Touched || s.Label != "touching" || s.Confidence <= 0.8 {
		t.Errorf("State() = %+v, want touched with confidence > 0.8", s)
	}
	if s.Alert != "cooling" {
		t.Errorf("alert state = %q, want cooling", s.Alert)
	}

	// Playback finished re-arms, and the next worthy iteration fires again.
	ta.player.finish()
	eventually(t, "second alert", func() bool { return ta.player.plays.Load() == 2 })

	if err := ta.StopRun(); err != nil {
		t.Fatalf("StopRun() error = %v", err)
	}

	recorded, err := ta.journal.Alerts().List(0)
	if err != nil {
		t.Fatalf("Alerts().List() error = %v", err)
	}
	if len(recorded) != 2 {
		t.Errorf("journaled %d alerts, want 2", len(recorded))
	}
	bursts, _ := ta.journal.Bursts().List(0)
	if len(bursts) != 2 {
		t.Errorf("journaled %d bursts, want 2", len(bursts))
	}
}

func TestApp_NotTouchingNeverAlerts(t *testing.T) {
	ta := newTestApp(t)
	ta.trainClusters(t)

	var iterations, touched atomic.Int32
	ta.Subscribe(func(ev Event) {
		if ev.Type == EventState && ev.State.Mode == ModeRunning {
			iterations.Add(1)
			if ev.State.Touched {
				touched.Add(1)
			}
		}
	})

	ta.embedder.Push(embed.Jitter(embed.Constant(testDim, 0), 5, 0.05, 4)...)
	if err := ta.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	eventually(t, "not-touched iterations", func() bool { return iterations.Load() >= 5 })
	ta.StopRun()

	if got := touched.Load(); got != 0 {
		t.Errorf("%d state events showed touched, want 0", got)
	}
	if got := ta.player.plays.Load(); got != 0 {
		t.Errorf("plays = %d, want 0", got)
	}
	if ta.State().Alert != "armed" {
		t.Errorf("alert state = %q, want armed", ta.State().Alert)
	}
}

func TestApp_TouchingBelowThresholdShownNotTouched(t *testing.T) {
	ta := newTestApp(t)

	// One not_touching and two touching examples: every query gets 2/3 touching.
	ta.embedder.Push(embed.Constant(testDim, 0.5))
	if _, err := ta.Train(context.Background(), gesture.NotTouching, 1); err != nil {
		t.Fatalf("Train(not_touching) error = %v", err)
	}
	ta.embedder.Push(embed.Constant(testDim, 1), embed.Constant(testDim, 1))
	if _, err := ta.Train(context.Background(), gesture.Touching, 2); err != nil {
		t.Fatalf("Train(touching) error = %v", err)
	}

	var iterations, touched atomic.Int32
	ta.Subscribe(func(ev Event) {
		if ev.Type == EventState && ev.State.Mode == ModeRunning && ev.State.Label == "touching" {
			iterations.Add(1)
			if ev.State.Touched {
				touched.Add(1)
			}
		}
	})

	ta.embedder.Push(embed.Constant(testDim, 1))
	if err := ta.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	eventually(t, "touching-majority iterations", func() bool { return iterations.Load() >= 5 })

	s := ta.State()
	if err := ta.StopRun(); err != nil {
		t.Fatalf("StopRun() error = %v", err)
	}

	if got := touched.Load(); got != 0 {
		t.Errorf("%d state events showed touched, want 0", got)
	}
	if s.Touched || s.Label != "touching" {
		t.Errorf("State() = %+v, want not touched with a touching label", s)
	}
	if s.Confidence <= 0.6 || s.Confidence >= 0.7 {
		t.Errorf("confidence = %v, want 2/3", s.Confidence)
	}
	if got := ta.player.plays.Load(); got != 0 {
		t.Errorf("plays = %d, want 0", got)
	}
}

func TestApp_RunWithoutExamples(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.Push(embed.Constant(testDim, 1))

	var iterations atomic.Int32
	ta.Subscribe(func(ev Event) {
		if ev.Type == EventState && ev.State.Mode == ModeRunning {
			iterations.Add(1)
		}
	})

	if err := ta.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	eventually(t, "iterations", func() bool { return iterations.Load() >= 3 })
	ta.StopRun()

	if ta.player.plays.Load() != 0 {
		t.Error("empty example store must never alert")
	}
	if s := ta.State(); s.Touched || s.Label != "none" {
		t.Errorf("State() = %+v, want untouched and indeterminate", s)
	}
}

func TestApp_Busy(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.Push(embed.Constant(testDim, 1))

	if err := ta.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	if _, err := ta.Train(context.Background(), gesture.Touching, 5); !errors.Is(err, ErrBusy) {
		t.Errorf("Train() while running error = %v, want ErrBusy", err)
	}
	if err := ta.StartRun(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartRun() error = %v, want ErrBusy", err)
	}
	if ta.Mode() != ModeRunning {
		t.Errorf("Mode() = %v, want running", ta.Mode())
	}

	if err := ta.StopRun(); err != nil {
		t.Fatalf("StopRun() error = %v", err)
	}
	if err := ta.StopRun(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second StopRun() error = %v, want ErrNotRunning", err)
	}
	if ta.Mode() != ModeIdle {
		t.Errorf("Mode() = %v, want idle", ta.Mode())
	}
}

func TestApp_TrainingHoldsCamera(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.Push(embed.Constant(testDim, 0))

	started := make(chan struct{})
	var once sync.Once
	ta.Subscribe(func(ev Event) {
		if ev.Type == EventProgress {
			once.Do(func() { close(started) })
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := ta.Train(context.Background(), gesture.NotTouching, 50)
		done <- err
	}()

	<-started
	if err := ta.StartRun(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("StartRun() during training error = %v, want ErrBusy", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if err := ta.StartRun(context.Background()); err != nil {
		t.Errorf("StartRun() after training error = %v", err)
	}
}

func TestApp_TrainCaptureFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.Push(embed.Constant(testDim, 1))
	ta.camera.FailOnRead(5, capture.ErrCameraUnavailable)

	added, err := ta.Train(context.Background(), gesture.Touching, 50)

	var burstErr *gesture.BurstError
	if !errors.As(err, &burstErr) {
		t.Fatalf("Train() error = %v, want BurstError", err)
	}
	if !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Errorf("error should unwrap to ErrCameraUnavailable: %v", err)
	}
	if added != 4 || ta.Examples().Count(gesture.Touching) != 4 {
		t.Errorf("added = %d, stored = %d, want 4", added, ta.Examples().Count(gesture.Touching))
	}
	if ta.Mode() != ModeIdle {
		t.Errorf("Mode() = %v after failed burst, want idle", ta.Mode())
	}

	bursts, _ := ta.journal.Bursts().List(0)
	if len(bursts) != 1 || bursts[0].Completed != 4 || bursts[0].Error == "" {
		t.Errorf("journaled bursts = %+v", bursts)
	}
}

func TestApp_TrainProgress(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.Push(embed.Constant(testDim, 0))

	var percents []int
	ta.Subscribe(func(ev Event) {
		if ev.Type == EventProgress {
			percents = append(percents, ev.Percent)
		}
	})

	if _, err := ta.Train(context.Background(), gesture.NotTouching, 4); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	want := []int{25, 50, 75, 100}
	if len(percents) != len(want) {
		t.Fatalf("progress = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, percents[i], want[i])
		}
	}
}

func TestApp_TrainInvalidLabel(t *testing.T) {
	ta := newTestApp(t)

	if _, err := ta.Train(context.Background(), gesture.Label("waving"), 5); !errors.Is(err, gesture.ErrInvalidLabel) {
		t.Errorf("Train() error = %v, want ErrInvalidLabel", err)
	}
}

func TestApp_CancelledRunReleasesCamera(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.Push(embed.Constant(testDim, 1))

	ctx, cancel := context.WithCancel(context.Background())
	if err := ta.StartRun(ctx); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	cancel()

	eventually(t, "idle after cancel", func() bool { return ta.Mode() == ModeIdle })
	if err := ta.StartRun(context.Background()); err != nil {
		t.Errorf("StartRun() after cancel error = %v", err)
	}
}

func TestApp_OpenCameraUnavailable(t *testing.T) {
	cam := capture.NewBlankCamera()
	defer cam.Release()
	cam.SetOpenError(errors.New("permission denied"))

	a := New(Config{Camera: cam, Embedder: embed.NewMockEmbedder()})
	if err := a.Open(); !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("Open() error = %v, want ErrCameraUnavailable", err)
	}
	if _, err := a.Train(context.Background(), gesture.Touching, 1); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Train() before Open error = %v, want ErrNotOpen", err)
	}
}

func TestApp_DefaultSinks(t *testing.T) {
	a := New(Config{Camera: capture.NewMockCamera(nil, false), Embedder: embed.NewMockEmbedder()})

	if _, ok := a.config.Player.(alert.SilentPlayer); !ok {
		t.Errorf("default player = %T, want SilentPlayer", a.config.Player)
	}
	if _, ok := a.config.Notifier.(alert.LogNotifier); !ok {
		t.Errorf("default notifier = %T, want LogNotifier", a.config.Notifier)
	}
}
