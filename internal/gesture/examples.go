package gesture

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ayusman/handsoff/internal/embed"
)

// DefaultK is the number of neighbours consulted per vote.
const DefaultK = 3

var (
	// ErrNoExamples is returned when querying a store that has no examples.
	ErrNoExamples = errors.New("no training examples")

	// ErrDimensionMismatch is returned for embeddings whose length differs
	// from the examples already stored.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Example is a labeled embedding.
type Example struct {
	Embedding embed.Embedding
	Label     Label
}

// Result is the outcome of one k-NN vote.
type Result struct {
	Label       Label             // Winning label, LabelNone when indeterminate
	Confidences map[Label]float64 // Vote share per label; sums to 1 when K > 0
	K           int               // Neighbours actually consulted
}

// Confidence returns the vote share of l.
func (r Result) Confidence(l Label) float64 {
	return r.Confidences[l]
}

// AlertWorthy reports whether the result is a touching vote whose share
// strictly exceeds threshold.
func (r Result) AlertWorthy(threshold float64) bool {
	return r.Label == Touching && r.Confidences[Touching] > threshold
}

// indeterminate is returned for queries that cannot be answered.
func indeterminate() Result {
	conf := make(map[Label]float64, 2)
	for _, l := range Labels() {
		conf[l] = 0
	}
	return Result{Label: LabelNone, Confidences: conf}
}

// ExampleStore is an append-only set of labeled embeddings queried by
// k-nearest-neighbour vote. It is safe for concurrent use.
type ExampleStore struct {
	k        int
	metric   Metric
	mu       sync.RWMutex
	examples []Example
	counts   map[Label]int
}

// NewExampleStore creates an empty store voting over k neighbours with the
// given metric. k < 1 falls back to DefaultK.
func NewExampleStore(k int, metric Metric) *ExampleStore {
	if k < 1 {
		k = DefaultK
	}
	if metric == "" {
		metric = MetricCosine
	}
	return &ExampleStore{
		k:      k,
		metric: metric,
		counts: make(map[Label]int),
	}
}

// Add appends one example. The embedding is copied.
func (s *ExampleStore) Add(e embed.Embedding, label Label) error {
	if !label.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, string(label))
	}
	if len(e) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.examples) > 0 && len(e) != len(s.examples[0].Embedding) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e), len(s.examples[0].Embedding))
	}

	s.examples = append(s.examples, Example{Embedding: e.Clone(), Label: label})
	s.counts[label]++
	return nil
}

// Query votes among the k nearest stored examples. Confidence per label is
// its share of the k votes. Ties go to the label listed first by Labels.
// An empty store yields an indeterminate result and ErrNoExamples.
func (s *ExampleStore) Query(e embed.Embedding) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.examples) == 0 {
		return indeterminate(), ErrNoExamples
	}
	if len(e) != len(s.examples[0].Embedding) {
		return indeterminate(), fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e), len(s.examples[0].Embedding))
	}

	type neighbour struct {
		label Label
		dist  float64
	}
	neighbours := make([]neighbour, len(s.examples))
	for i, ex := range s.examples {
		neighbours[i] = neighbour{label: ex.Label, dist: s.metric.distance(e, ex.Embedding)}
	}
	// Stable so equidistant examples keep insertion order.
	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].dist < neighbours[j].dist
	})

	k := s.k
	if k > len(neighbours) {
		k = len(neighbours)
	}

	votes := make(map[Label]int, 2)
	for _, n := range neighbours[:k] {
		votes[n.label]++
	}

	result := Result{Label: LabelNone, Confidences: make(map[Label]float64, 2), K: k}
	best := 0
	for _, l := range Labels() {
		result.Confidences[l] = float64(votes[l]) / float64(k)
		if votes[l] > best {
			best = votes[l]
			result.Label = l
		}
	}

	return result, nil
}

// Len returns the number of stored examples.
func (s *ExampleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples)
}

// Count returns the number of stored examples with the given label.
func (s *ExampleStore) Count(label Label) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[label]
}

// Dim returns the embedding dimensionality, or 0 when empty.
func (s *ExampleStore) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.examples) == 0 {
		return 0
	}
	return len(s.examples[0].Embedding)
}

// K returns the configured neighbour count.
func (s *ExampleStore) K() int {
	return s.k
}

// Metric returns the configured distance metric.
func (s *ExampleStore) Metric() Metric {
	return s.metric
}
