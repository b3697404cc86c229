package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultMetricInterval is used when Config.MetricInterval is unset.
const DefaultMetricInterval = 10 * time.Second

// Config selects the exporters. Logs need LogWriter or Endpoint; metrics
// are exported only when MetricWriter is set.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	BatchTimeout   time.Duration
	LogWriter      io.Writer
	MetricWriter   io.Writer
	MetricInterval time.Duration
	// Endpoint is an OTLP/HTTP collector for logs.
	Endpoint string
	Insecure bool
}

// Provider owns the log and metric providers of one process.
type Provider struct {
	logProvider    *sdklog.LoggerProvider
	meterProvider  *sdkmetric.MeterProvider
	previousMeters metric.MeterProvider
	config         Config
}

// New builds the providers described by cfg and installs the meter
// provider globally, so the stream and dispatcher instruments report
// through it. A disabled config yields a provider whose methods are
// no-ops.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("building OTel resource: %w", err)
	}

	exporters, err := logExporters(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		logOpts = append(logOpts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))))
	}
	p.logProvider = sdklog.NewLoggerProvider(logOpts...)

	if err := p.setupMetrics(res); err != nil {
		_ = p.logProvider.Shutdown(context.Background())
		return nil, err
	}
	return p, nil
}

func logExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating file log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	return out, nil
}

func (p *Provider) setupMetrics(res *resource.Resource) error {
	if p.config.MetricWriter == nil {
		return nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(p.config.MetricWriter))
	if err != nil {
		return fmt.Errorf("creating metric exporter: %w", err)
	}
	interval := p.config.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	p.previousMeters = otel.GetMeterProvider()
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

// LoggerProvider feeds the otelslog bridge; nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a no-op meter when metrics are off.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// stage is one provider's flush or shutdown step.
type stage struct {
	name string
	fn   func(context.Context) error
}

func run(ctx context.Context, action string, stages []stage) error {
	var errs []error
	for _, s := range stages {
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", s.name, action, err))
		}
	}
	return errors.Join(errs...)
}

// Flush exports everything pending.
func (p *Provider) Flush(ctx context.Context) error {
	var stages []stage
	if p.logProvider != nil {
		stages = append(stages, stage{"log", p.logProvider.ForceFlush})
	}
	if p.meterProvider != nil {
		stages = append(stages, stage{"metric", p.meterProvider.ForceFlush})
	}
	return run(ctx, "flush", stages)
}

// Shutdown stops both providers and puts back the global meter provider
// that was installed before New. Later calls do nothing.
func (p *Provider) Shutdown(ctx context.Context) error {
	var stages []stage
	if p.logProvider != nil {
		stages = append(stages, stage{"log", p.logProvider.Shutdown})
		p.logProvider = nil
	}
	if p.meterProvider != nil {
		stages = append(stages, stage{"metric", p.meterProvider.Shutdown})
		otel.SetMeterProvider(p.previousMeters)
		p.meterProvider = nil
	}
	return run(ctx, "shutdown", stages)
}
