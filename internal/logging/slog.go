package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager owns the process slog.Logger: a text handler on the log
// file, the OTel bridge, any extra sinks, and the stream context attrs.
type SlogManager struct {
	logger  *slog.Logger
	level   slog.LevelVar
	context ContextProvider
	console io.Writer

	logProvider *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{console: os.Stdout}
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// handlerOptions stamps records in UTC RFC3339.
func handlerOptions(lvl slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
			}
			return a
		},
	}
}

// SetContextProvider installs attrs added to every record. It applies
// from the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// SetLevel changes the file and console level without rebuilding the
// handler chain.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(ParseLevel(level))
}

func (m *SlogManager) Level() slog.Level {
	return m.level.Level()
}

// Setup builds the handler chain. Records go to file, or to the console
// when file is nil. provider adds the OTel bridge when non-nil.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	m.SetLevel(level)
	m.logProvider = provider

	out := file
	if out == nil {
		out = m.console
	}
	handlers := []slog.Handler{slog.NewTextHandler(out, handlerOptions(&m.level))}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("debrisfield", otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	var h slog.Handler = NewMultiHandler(handlers...)
	if m.context != nil {
		h = NewContextHandler(h, m.context)
	}
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", m.level.Level())
}

// Logger returns slog.Default until Setup has run.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}

// WriteLog logs data at the named level, tagged with the calling
// component. It is a no-op before Setup.
func (m *SlogManager) WriteLog(component, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), ParseLevel(level), data, "component", component)
}
