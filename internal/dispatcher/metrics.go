package dispatcher

import (
	"context"
	"fmt"

	"github.com/Softhook/elite-sub000/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Softhook/elite-sub000/internal/dispatcher"

type instruments struct {
	queued    metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

// newInstruments creates the dispatcher's counters and a queue depth
// gauge observed through lengths.
func newInstruments(lengths func() map[core.EventKind]int) (*instruments, error) {
	m := otel.Meter(meterName)
	var (
		in  instruments
		err error
	)

	if in.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handed to a handler")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events discarded because a queue was full")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if in.queued, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered route")); err != nil {
		return nil, fmt.Errorf("creating queue gauge: %w", err)
	}

	observe := func(_ context.Context, o metric.Observer) error {
		for kind, n := range lengths() {
			o.ObserveInt64(in.queued, int64(n), metric.WithAttributes(attribute.String("kind", string(kind))))
		}
		return nil
	}
	if _, err := m.RegisterCallback(observe, in.queued); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	return &in, nil
}
