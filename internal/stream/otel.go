package stream

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Softhook/elite-sub000/internal/stream"

type instruments struct {
	active        metric.Int64ObservableGauge
	activations   metric.Int64Counter
	deactivations metric.Int64Counter
	destroyed     metric.Int64Counter
	tickDuration  metric.Float64Histogram

	// read by the gauge callback from the exporter goroutine
	activeCount atomic.Int64
	reg         metric.Registration
}

func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)
	in := &instruments{}

	var err error
	in.active, err = m.Int64ObservableGauge(
		"stream.active",
		metric.WithDescription("Current number of live debris instances"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active gauge: %w", err)
	}

	in.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(in.active, in.activeCount.Load())
			return nil
		},
		in.active,
	)
	if err != nil {
		return nil, fmt.Errorf("registering active callback: %w", err)
	}

	in.activations, err = m.Int64Counter(
		"stream.activations",
		metric.WithDescription("Total descriptors activated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating activations counter: %w", err)
	}

	in.deactivations, err = m.Int64Counter(
		"stream.deactivations",
		metric.WithDescription("Total instances discarded for distance"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating deactivations counter: %w", err)
	}

	in.destroyed, err = m.Int64Counter(
		"stream.destroyed",
		metric.WithDescription("Total instances destroyed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating destroyed counter: %w", err)
	}

	in.tickDuration, err = m.Float64Histogram(
		"stream.tick.duration",
		metric.WithDescription("Duration of Advance"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	return in, nil
}

func (in *instruments) record(rep TickReport) {
	ctx := context.Background()
	in.activeCount.Store(int64(rep.Active))
	in.activations.Add(ctx, int64(len(rep.Activated)))
	in.deactivations.Add(ctx, int64(len(rep.Deactivated)))
	in.destroyed.Add(ctx, int64(len(rep.Destroyed)))
	in.tickDuration.Record(ctx, float64(rep.Duration.Microseconds())/1000)
}
