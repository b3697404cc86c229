// Package dispatcher routes stream events to handlers by kind. A handler
// runs inline or behind its own buffered worker goroutine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Softhook/elite-sub000/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownKind = errors.New("no handler for event kind")
	ErrQueueFull   = errors.New("queue full")
	ErrClosed      = errors.New("dispatcher closed")
)

type HandlerFunc func(core.Event) error

// Logger is satisfied by logging.DispatcherLogger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type Option func(*routeConfig)

type routeConfig struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered hands events to a worker goroutine through a queue of size.
func Buffered(size int) Option {
	return func(c *routeConfig) { c.bufferSize = size }
}

// Blocking makes a full buffer stall the caller instead of dropping.
// Without Buffered it has no effect.
func Blocking() Option {
	return func(c *routeConfig) { c.blocking = true }
}

// Logged logs each event at debug level with its handling time.
func Logged() Option {
	return func(c *routeConfig) { c.logged = true }
}

// route is one registered handler.
type route struct {
	kind     core.EventKind
	attr     attribute.KeyValue
	handle   HandlerFunc
	buffer   chan core.Event
	blocking bool
	dropped  atomic.Uint64
}

type Dispatcher struct {
	logger  Logger
	metrics *instruments

	// mu guards routes and closed; senders hold it for reading so Close
	// cannot close a buffer under them.
	mu      sync.RWMutex
	routes  map[core.EventKind]*route
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher reporting to the global OTel meter provider,
// which is a no-op until one is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		routes: make(map[core.EventKind]*route),
	}
	m, err := newInstruments(d.QueueLengths)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Register installs h for kind. A replaced buffered route stops taking
// events and its worker finishes what is already queued.
func (d *Dispatcher) Register(kind core.EventKind, h HandlerFunc, opts ...Option) {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &route{
		kind:     kind,
		attr:     attribute.String("kind", string(kind)),
		handle:   h,
		blocking: cfg.blocking,
	}
	if cfg.logged {
		r.handle = d.logged(kind, h)
	}
	if cfg.bufferSize > 0 {
		r.buffer = make(chan core.Event, cfg.bufferSize)
		d.workers.Add(1)
		go d.drain(r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.routes[kind]; ok && old.buffer != nil && !d.closed {
		close(old.buffer)
	}
	if d.closed && r.buffer != nil {
		close(r.buffer)
	}
	d.routes[kind] = r
}

func (d *Dispatcher) drain(r *route) {
	defer d.workers.Done()
	for e := range r.buffer {
		if err := r.handle(e); err != nil {
			d.logger.Error("buffered handler failed", "kind", r.kind, "tick", e.Tick, "error", err)
		}
		d.metrics.processed.Add(context.Background(), 1, metric.WithAttributes(r.attr))
	}
}

// Dispatch routes e to its handler. Inline handlers return their error;
// buffered ones only report ErrQueueFull or ErrClosed.
func (d *Dispatcher) Dispatch(e core.Event) error {
	d.mu.RLock()
	r, ok := d.routes[e.Kind]
	if !ok || r.buffer == nil {
		d.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKind, e.Kind)
		}
		err := r.handle(e)
		d.metrics.processed.Add(context.Background(), 1, metric.WithAttributes(r.attr))
		return err
	}
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	if r.blocking {
		r.buffer <- e
		return nil
	}
	select {
	case r.buffer <- e:
		return nil
	default:
		r.dropped.Add(1)
		d.metrics.dropped.Add(context.Background(), 1, metric.WithAttributes(r.attr))
		return fmt.Errorf("%w: %s", ErrQueueFull, e.Kind)
	}
}

// Publish is Dispatch for the stream manager's sink. Kinds nobody
// registered for are ignored; other failures are logged.
func (d *Dispatcher) Publish(e core.Event) {
	err := d.Dispatch(e)
	if err != nil && !errors.Is(err, ErrUnknownKind) {
		d.logger.Error("publish failed", "kind", e.Kind, "tick", e.Tick, "error", err)
	}
}

func (d *Dispatcher) HasHandler(kind core.EventKind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[kind]
	return ok
}

// QueueLengths reports the events waiting in each buffered route.
func (d *Dispatcher) QueueLengths() map[core.EventKind]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[core.EventKind]int)
	for kind, r := range d.routes {
		if r.buffer != nil {
			out[kind] = len(r.buffer)
		}
	}
	return out
}

// Dropped reports how many events each non-blocking buffered route has
// discarded because its queue was full.
func (d *Dispatcher) Dropped() map[core.EventKind]uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[core.EventKind]uint64)
	for kind, r := range d.routes {
		if r.buffer != nil && !r.blocking {
			out[kind] = r.dropped.Load()
		}
	}
	return out
}

// Close refuses further buffered events and waits for every queued one
// to be handled. Inline routes keep working. Close is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		closeBuffers(d.routes)
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func closeBuffers(routes map[core.EventKind]*route) {
	for _, r := range routes {
		if r.buffer != nil {
			close(r.buffer)
		}
	}
}

func (d *Dispatcher) logged(kind core.EventKind, h HandlerFunc) HandlerFunc {
	return func(e core.Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "kind", kind, "tick", e.Tick, "descriptor", e.DescriptorID)
		if err := h(e); err != nil {
			d.logger.Error("event failed", "kind", kind, "took", time.Since(start), "error", err)
			return err
		}
		d.logger.Debug("event handled", "kind", kind, "took", time.Since(start))
		return nil
	}
}
