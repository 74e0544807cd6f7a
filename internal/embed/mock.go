package embed

import (
	"math/rand"
	"sync"

	"gocv.io/x/gocv"
)

// MockEmbedder is a test implementation of the Embedder interface.
// It ignores frame content and returns scripted embeddings in order,
// repeating the last one once the script is exhausted.
type MockEmbedder struct {
	mu     sync.Mutex
	queue  []Embedding
	last   Embedding
	err    error
	calls  int
	closed bool
}

// NewMockEmbedder creates a new MockEmbedder returning the given embeddings.
func NewMockEmbedder(embeddings ...Embedding) *MockEmbedder {
	m := &MockEmbedder{}
	m.Push(embeddings...)
	return m
}

// Push appends embeddings to the script.
func (m *MockEmbedder) Push(embeddings ...Embedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range embeddings {
		m.queue = append(m.queue, e.Clone())
	}
}

// SetError sets the error that will be returned by Embed.
func (m *MockEmbedder) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Embed calls made so far.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed returns the next scripted embedding or the configured error.
func (m *MockEmbedder) Embed(frame *gocv.Mat) (Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if len(m.queue) > 0 {
		m.last = m.queue[0]
		m.queue = m.queue[1:]
	}
	if m.last == nil {
		return nil, ErrEmptyFrame
	}
	return m.last.Clone(), nil
}

// Close is a no-op for the mock embedder.
func (m *MockEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Constant returns a dim-length embedding with every component set to v.
func Constant(dim int, v float32) Embedding {
	e := make(Embedding, dim)
	for i := range e {
		e[i] = v
	}
	return e
}

// Jitter returns n embeddings scattered uniformly within ±spread of center.
// The generator is seeded so fixtures are reproducible.
func Jitter(center Embedding, n int, spread float32, seed int64) []Embedding {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Embedding, n)
	for i := range out {
		e := center.Clone()
		for j := range e {
			e[j] += (rng.Float32()*2 - 1) * spread
		}
		out[i] = e
	}
	return out
}
