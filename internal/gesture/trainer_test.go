package gesture

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsoff/internal/embed"
)

// stubSource serves empty Mats and fails on the configured read.
type stubSource struct {
	reads  int
	failAt int
	err    error
}

func (s *stubSource) ReadFrame() (*gocv.Mat, error) {
	s.reads++
	if s.failAt > 0 && s.reads == s.failAt {
		return nil, s.err
	}
	m := gocv.NewMat()
	return &m, nil
}

func newTestTrainer(src FrameSource, emb embed.Embedder, store *ExampleStore) *Trainer {
	return NewTrainer(src, emb, store, TrainerConfig{Repetitions: 50, Interval: time.Millisecond})
}

func TestTrainer_Train(t *testing.T) {
	store := NewExampleStore(DefaultK, MetricCosine)
	src := &stubSource{}
	emb := embed.NewMockEmbedder(embed.Jitter(embed.Constant(4, 1), 50, 0.01, 1)...)

	var progress []Progress
	added, err := newTestTrainer(src, emb, store).Train(context.Background(), Touching, 50, func(p Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if added != 50 {
		t.Errorf("added = %d, want 50", added)
	}
	if store.Count(Touching) != 50 || store.Len() != 50 {
		t.Errorf("store has %d touching of %d, want 50 of 50", store.Count(Touching), store.Len())
	}
	if src.reads != 50 {
		t.Errorf("reads = %d, want 50", src.reads)
	}

	if len(progress) != 50 {
		t.Fatalf("progress callbacks = %d, want 50", len(progress))
	}
	for i, p := range progress {
		if p.Index != i+1 || p.Total != 50 || p.Label != Touching {
			t.Errorf("progress[%d] = %+v", i, p)
		}
	}
	if progress[49].Percent() != 100 {
		t.Errorf("final Percent() = %d, want 100", progress[49].Percent())
	}
}

func TestTrainer_Train_DefaultRepetitions(t *testing.T) {
	store := NewExampleStore(DefaultK, MetricCosine)
	emb := embed.NewMockEmbedder(embed.Constant(4, 0.5))
	tr := NewTrainer(&stubSource{}, emb, store, TrainerConfig{Repetitions: 7, Interval: time.Millisecond})

	added, err := tr.Train(context.Background(), NotTouching, 0, nil)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if added != 7 || store.Count(NotTouching) != 7 {
		t.Errorf("added = %d, stored = %d, want 7", added, store.Count(NotTouching))
	}
}

func TestTrainer_Train_CaptureFailure(t *testing.T) {
	for _, k := range []int{1, 2, 25, 50} {
		store := NewExampleStore(DefaultK, MetricCosine)
		boom := errors.New("camera unplugged")
		src := &stubSource{failAt: k, err: boom}
		emb := embed.NewMockEmbedder(embed.Constant(4, 1))

		added, err := newTestTrainer(src, emb, store).Train(context.Background(), Touching, 50, nil)

		var burstErr *BurstError
		if !errors.As(err, &burstErr) {
			t.Fatalf("k=%d: error = %v, want *BurstError", k, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("k=%d: error should wrap the capture failure", k)
		}
		if burstErr.Completed != k-1 || burstErr.Requested != 50 {
			t.Errorf("k=%d: BurstError = %d/%d, want %d/50", k, burstErr.Completed, burstErr.Requested, k-1)
		}
		if added != k-1 || store.Count(Touching) != k-1 {
			t.Errorf("k=%d: added = %d, stored = %d, want %d", k, added, store.Count(Touching), k-1)
		}
	}
}

func TestTrainer_Train_EmbedFailure(t *testing.T) {
	store := NewExampleStore(DefaultK, MetricCosine)
	emb := embed.NewMockEmbedder()
	emb.SetError(errors.New("model crashed"))

	added, err := newTestTrainer(&stubSource{}, emb, store).Train(context.Background(), NotTouching, 5, nil)
	if err == nil {
		t.Fatal("Train() should fail when embedding fails")
	}
	if added != 0 || store.Len() != 0 {
		t.Errorf("added = %d, Len() = %d, want 0", added, store.Len())
	}
}

func TestTrainer_Train_InvalidLabel(t *testing.T) {
	store := NewExampleStore(DefaultK, MetricCosine)
	src := &stubSource{}
	tr := newTestTrainer(src, embed.NewMockEmbedder(embed.Constant(4, 1)), store)

	if _, err := tr.Train(context.Background(), "waving", 5, nil); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("Train() error = %v, want ErrInvalidLabel", err)
	}
	if src.reads != 0 {
		t.Errorf("invalid label should not touch the camera, reads = %d", src.reads)
	}
}

func TestTrainer_Train_Cancelled(t *testing.T) {
	store := NewExampleStore(DefaultK, MetricCosine)
	emb := embed.NewMockEmbedder(embed.Constant(4, 1))
	tr := NewTrainer(&stubSource{}, emb, store, TrainerConfig{Repetitions: 50, Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	added, err := tr.Train(ctx, Touching, 50, func(p Progress) {
		if p.Index == 3 {
			cancel()
		}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Train() error = %v, want context.Canceled", err)
	}
	if added != 3 || store.Len() != 3 {
		t.Errorf("added = %d, Len() = %d, want 3", added, store.Len())
	}
}

func TestTrainer_Train_Interval(t *testing.T) {
	store := NewExampleStore(DefaultK, MetricCosine)
	emb := embed.NewMockEmbedder(embed.Constant(4, 1))
	tr := NewTrainer(&stubSource{}, emb, store, TrainerConfig{Interval: 20 * time.Millisecond})

	start := time.Now()
	if _, err := tr.Train(context.Background(), Touching, 4, nil); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	// Three gaps between four repetitions.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Train() took %v, want at least 60ms", elapsed)
	}
}

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{p: Progress{Index: 1, Total: 50}, want: 2},
		{p: Progress{Index: 25, Total: 50}, want: 50},
		{p: Progress{Index: 50, Total: 50}, want: 100},
		{p: Progress{Index: 1, Total: 0}, want: 0},
	}

	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %d, want %d", tt.p, got, tt.want)
		}
	}
}
