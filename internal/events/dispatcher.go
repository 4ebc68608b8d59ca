package events

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the dispatcher queue length used when none is given.
const DefaultBufferSize = 256

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// Dispatcher queues events on a buffered channel and delivers them to sinks
// from a single goroutine, in publish order. When the queue is full the event
// is dropped and counted.
type Dispatcher struct {
	queue  chan Event
	sinks  []Sink
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewDispatcher starts a dispatcher. buffer <= 0 uses DefaultBufferSize.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	d := &Dispatcher{
		queue:  make(chan Event, buffer),
		sinks:  sinks,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues event without blocking.
func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		d.logger.Debug("event queue full, dropping event", "kind", event.Kind(), "id", event.ID())
	}
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events, delivers everything already queued, then
// closes any sink that implements io.Closer-style Close.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done

	var firstErr error
	for _, s := range d.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, event)
		}
	}
}

// deliver calls one sink and recovers from a panic so a misbehaving sink
// cannot stop delivery to the others.
func (d *Dispatcher) deliver(s Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panicked", "kind", event.Kind(), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := s.Log(event); err != nil {
		d.logger.Warn("event sink failed", "kind", event.Kind(), "error", err)
	}
}

// Recorder keeps every published event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Log lets a Recorder also serve as a Sink.
func (r *Recorder) Log(event Event) error {
	r.Publish(event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind()
	}
	return kinds
}
