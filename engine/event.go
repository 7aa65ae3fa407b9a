package engine

import (
	"log"
	"time"
)

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventSignal    EventKind = "signal"
	EventTrade     EventKind = "trade"
	EventStopped   EventKind = "stopped"
	EventCompleted EventKind = "completed"
	EventError     EventKind = "error"
)

// Event is delivered synchronously to every subscriber during a run.
type Event struct {
	Kind    EventKind `json:"kind"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

type Handler func(Event)

// Subscribe registers a handler for all events of subsequent runs.
func (e *Engine) Subscribe(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

func (e *Engine) emit(kind EventKind, payload any) {
	e.mu.Lock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	ev := Event{Kind: kind, Time: time.Now(), Payload: payload}
	for _, h := range handlers {
		deliver(h, ev)
	}
}

// deliver isolates a panicking subscriber so it cannot abort the run or
// starve its siblings.
func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: event subscriber panic on %s: %v", ev.Kind, r)
		}
	}()
	h(ev)
}

// ProgressPayload accompanies progress events, emitted roughly every 10%
// of total bars.
type ProgressPayload struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}
