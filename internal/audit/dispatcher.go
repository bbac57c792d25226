package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// Now stamps events emitted without a Timestamp. Defaults to time.Now.
	Now func() time.Time
	// Logger receives sink panics. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Stats counts what happened to emitted events.
type Stats struct {
	Delivered  uint64
	Dropped    uint64
	SinkPanics uint64
}

// Dispatcher forwards audit events to a sink from a single worker so that
// login and validate never wait on sink I/O. A nil Dispatcher is valid and
// drops everything.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// mu guards closing queue: emitters hold the read side while sending.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	stop   chan struct{}
	idle   chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher starts the worker. It returns nil when cfg.Enabled is false.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
		idle:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.idle)
	for event := range d.queue {
		d.deliver(event)
	}
}

// deliver hands one event to the sink. A panicking sink loses that event
// but the worker keeps going.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.cfg.Logger.WithFields(logrus.Fields{
				"event_type": event.EventType,
				"panic":      r,
			}).Error("audit sink panicked")
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event. With DropIfFull a full buffer drops the event;
// otherwise Emit waits for room until ctx ends or the dispatcher closes,
// and an event abandoned that way is counted as dropped too.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Close stops accepting events, drains the buffer into the sink and waits
// for the worker. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		<-d.idle
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
		SinkPanics: d.panics.Load(),
	}
}
