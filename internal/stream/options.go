package stream

import (
	"log/slog"

	"github.com/Softhook/elite-sub000/internal/spatial"
	"github.com/Softhook/elite-sub000/pkg/core"
)

// Sink receives the events produced by Advance. Publish is called
// synchronously from Advance and must not call back into the manager.
type Sink interface {
	Publish(e core.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(core.Event)

func (f SinkFunc) Publish(e core.Event) { f(e) }

// Option configures a Manager.
type Option func(*options)

type options struct {
	indexKind        string
	gridCellSize     float64
	persistDrift     bool
	respawnDestroyed bool
	sink             Sink
	logger           *slog.Logger
}

func defaultOptions() options {
	return options{
		indexKind:    spatial.KindLinear,
		gridCellSize: 200,
		logger:       slog.Default(),
	}
}

// WithIndex selects the spatial index used to gather activation
// candidates. cellSize only applies to the grid index.
func WithIndex(kind string, cellSize float64) Option {
	return func(o *options) {
		o.indexKind = kind
		o.gridCellSize = cellSize
	}
}

// WithPersistDrift keeps a deactivated instance's simulated state and
// resumes from it on the next activation instead of resetting to the
// anchor.
func WithPersistDrift(enabled bool) Option {
	return func(o *options) {
		o.persistDrift = enabled
	}
}

// WithRespawnDestroyed lets destroyed descriptors be activated again.
func WithRespawnDestroyed(enabled bool) Option {
	return func(o *options) {
		o.respawnDestroyed = enabled
	}
}

// WithSink sets the receiver of per-tick events.
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
