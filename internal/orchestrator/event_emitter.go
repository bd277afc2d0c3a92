package orchestrator

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// EventEmitter handles event emission for the orchestrator.
// It provides a simple, thread-safe way to emit events to subscribers.
// A nil *EventEmitter discards everything.
type EventEmitter struct {
	events       chan Event
	sendTimeout  time.Duration
	droppedCount atomic.Uint64
	logger       *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, sendTimeout time.Duration, logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EventEmitter{
		events:      make(chan Event, bufferSize),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(e.sendTimeout)
	defer timer.Stop()
	select {
	case e.events <- event:
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn("event channel full, dropping event", "type", event.Type, "dropped", count)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	if e == nil {
		return 0
	}
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	if e == nil {
		return nil
	}
	return e.events
}

// Close closes the events channel. Later calls to Emit are ignored.
func (e *EventEmitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}
