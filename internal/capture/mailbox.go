package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// FrameMailbox holds the most recent frame as JPEG for preview consumers.
// Publishing never blocks and overwrites an unread frame. Frames are only
// encoded while someone is watching.
type FrameMailbox struct {
	watchers atomic.Int32

	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	changed chan struct{}
}

// NewFrameMailbox creates an empty mailbox.
func NewFrameMailbox() *FrameMailbox {
	return &FrameMailbox{changed: make(chan struct{})}
}

// Publish encodes frame as JPEG and stores it. The caller keeps ownership of frame.
func (m *FrameMailbox) Publish(frame *gocv.Mat) {
	if m.watchers.Load() == 0 || frame == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	defer buf.Close()

	m.PublishJPEG(append([]byte(nil), buf.GetBytes()...))
}

// PublishJPEG stores an already encoded frame. data must not be modified afterwards.
func (m *FrameMailbox) PublishJPEG(data []byte) {
	m.mu.Lock()
	m.jpeg = data
	m.seq++
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
}

// Watch registers a consumer. The returned func unregisters it.
func (m *FrameMailbox) Watch() func() {
	m.watchers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { m.watchers.Add(-1) })
	}
}

// Watchers returns the number of registered consumers.
func (m *FrameMailbox) Watchers() int {
	return int(m.watchers.Load())
}

// Next blocks until a frame newer than after is available and returns it
// with its sequence number. Pass 0 to get the current frame if any.
func (m *FrameMailbox) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		m.mu.Lock()
		if m.seq > after {
			data, seq := m.jpeg, m.seq
			m.mu.Unlock()
			return data, seq, nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-changed:
		}
	}
}
