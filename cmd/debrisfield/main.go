package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/dispatcher"
	"github.com/Softhook/elite-sub000/internal/logging"
	"github.com/Softhook/elite-sub000/internal/monitor"
	intOtel "github.com/Softhook/elite-sub000/internal/otel"
	"github.com/Softhook/elite-sub000/internal/session"
	"github.com/Softhook/elite-sub000/internal/worker"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"

	AppName string = "debrisfield"
)

// flags holds the command-line options that are not bound into viper.
type flags struct {
	configDir      string
	ticks          int
	frame          time.Duration
	view           bool
	name           string
	statusInterval time.Duration
	version        bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// parseFlags parses args and binds the config-backed flags into viper so
// that flags given explicitly win over the config file.
func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.StringVarP(&f.configDir, "config-dir", "c", ".", "directory containing "+config.FileName)
	fs.IntVarP(&f.ticks, "ticks", "t", 600, "frames to simulate in headless mode")
	fs.DurationVar(&f.frame, "frame", 0, "delay between headless frames")
	fs.BoolVar(&f.view, "view", false, "run the interactive terminal view")
	fs.StringVarP(&f.name, "name", "n", "debris run", "session name")
	fs.DurationVar(&f.statusInterval, "status-interval", monitor.DefaultInterval, "how often to log stream status")
	fs.BoolVarP(&f.version, "version", "v", false, "print version and exit")

	fs.Uint64("seed", 0, "field seed, 0 seeds from the clock")
	fs.String("storage", "", "storage backend: memory, sqlite, postgres or influx")
	fs.String("category", "", "debris category")
	fs.Float64("radius", 0, "field radius")
	fs.String("log-level", "", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return f, err
	}

	bindings := map[string]string{
		"seed":      "field.seed",
		"storage":   "storage.type",
		"category":  "field.category",
		"radius":    "field.radius",
		"log-level": "logLevel",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return f, fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return f, nil
}

// app holds everything run wires together.
type app struct {
	start      time.Time
	logManager *logging.SlogManager
	logger     *slog.Logger
	zl         zerolog.Logger
	otel       *intOtel.Provider
	closers    []io.Closer

	sessionContext *session.Context
	tick           atomic.Uint64
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if f.version {
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
		return nil
	}

	a := &app{
		start:          time.Now(),
		logManager:     logging.NewSlogManager(),
		sessionContext: session.NewContext(),
	}
	defer a.close()

	configErr := config.Load(f.configDir)
	if err := a.setupLogging(); err != nil {
		return err
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		a.logger.Info("Loaded config", "path", filepath.Join(f.configDir, config.FileName))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zl))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	backend, err := a.initStorage(config.GetStorageConfig())
	if err != nil {
		d.Close()
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	wm := worker.NewManager(worker.Dependencies{
		LogManager:     a.logManager,
		SessionContext: a.sessionContext,
	}, backend)
	wm.RegisterHandlers(d)

	sim, err := a.newSimulation(f, d)
	if err != nil {
		d.Close()
		return err
	}
	defer sim.close()

	if err := wm.StartSession(sim.session, &sim.info, sim.descriptors); err != nil {
		d.Close()
		return err
	}

	mon := monitor.NewService(monitor.Dependencies{
		LogManager:     a.logManager,
		SessionContext: a.sessionContext,
		Dispatcher:     d,
		WorkerManager:  wm,
		StatusFile:     filepath.Join(config.GetLoggingConfig().Dir, "status.json"),
		Interval:       f.statusInterval,
	})
	if err := mon.Start(); err != nil {
		a.logger.Warn("Failed to start status monitor", "error", err)
	}

	if f.view {
		err = a.runView(ctx, sim, mon)
	} else {
		err = a.runHeadless(ctx, sim, mon, f.ticks, f.frame)
	}

	mon.Stop()
	// drain buffered events before the backend finalises the session
	d.Close()
	if endErr := wm.EndSession(); endErr != nil {
		a.logger.Error("Failed to end session", "error", endErr)
		err = errors.Join(err, endErr)
	}

	st := mon.Status()
	a.logger.Info("Session finished",
		"session", sim.session.UUID,
		"ticks", sim.mgr.Tick(),
		"activations", st.Activations,
		"deactivations", st.Deactivations,
		"destructions", st.Destructions,
		"recorded", wm.Recorded(),
		"failed", wm.Failed())
	if !f.view {
		fmt.Println(mon.JSON())
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.otel.Flush(flushCtx); err != nil {
		a.logger.Warn("Failed to flush OTel", "error", err)
	}
	return err
}

// setupLogging opens the log files and configures slog, OTel, Graylog and
// the zerolog logger used by the database layer and dispatcher.
func (a *app) setupLogging() error {
	logCfg := config.GetLoggingConfig()
	logFile, logPath, err := logging.OpenLogFile(logCfg.Dir, AppName, a.start)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, logFile)

	otelCfg := config.GetOTelConfig()
	providerCfg := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		MetricInterval: otelCfg.MetricInterval,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	}
	if otelCfg.Enabled {
		otelLog, err := os.Create(logging.LogFilePath(logCfg.Dir, AppName+".otel", a.start))
		if err != nil {
			return fmt.Errorf("opening OTel log file: %w", err)
		}
		metricsLog, err := os.Create(logging.LogFilePath(logCfg.Dir, AppName+".metrics", a.start))
		if err != nil {
			otelLog.Close()
			return fmt.Errorf("opening metrics file: %w", err)
		}
		a.closers = append(a.closers, otelLog, metricsLog)
		providerCfg.LogWriter = otelLog
		providerCfg.MetricWriter = metricsLog
	}
	a.otel, err = intOtel.New(providerCfg)
	if err != nil {
		return fmt.Errorf("setting up OTel: %w", err)
	}

	var extra []slog.Handler
	if logCfg.GraylogEnabled {
		h, closer, err := logging.NewGraylogHandler(logCfg.GraylogAddress, logCfg.Level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			extra = append(extra, h)
			a.closers = append(a.closers, closer)
		}
	}

	a.logManager.SetContextProvider(logging.StreamAttrs(
		func() string { return a.sessionContext.GetSession().UUID },
		a.tick.Load,
	))
	a.logManager.Setup(logFile, logCfg.Level, a.otel.LoggerProvider(), extra...)
	a.logger = a.logManager.Logger()
	a.logger.Info("Starting", "app", AppName, "version", Version, "build", BuildDate, "log", logPath)

	a.zl = logging.NewZerolog(logFile, logCfg.Level, AppName)
	return nil
}

func (a *app) close() {
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otel.Shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("Failed to shut down OTel", "error", err)
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}
