package app

import (
	"sync"
	"time"

	"github.com/ayusman/handsoff/internal/gesture"
	"github.com/ayusman/handsoff/internal/store"
)

// EventType names the kind of an Event.
type EventType string

// Event types published by the App.
const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventAlert    EventType = "alert"
)

// Event is published to listeners on state changes, training progress and
// fired alerts.
type Event struct {
	Type     EventType         `json:"type"`
	Time     time.Time         `json:"time"`
	State    *State            `json:"state,omitempty"`
	Progress *gesture.Progress `json:"progress,omitempty"`
	Percent  int               `json:"percent,omitempty"`
	Alert    *store.Alert      `json:"alert,omitempty"`
}

// Listener receives events. Listeners are called synchronously and must not block.
type Listener func(Event)

type listeners struct {
	mu   sync.RWMutex
	next int
	fns  map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, fn := range l.fns {
		fn(ev)
	}
}
