package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/internal/field"
	"github.com/Softhook/elite-sub000/internal/monitor"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/internal/session"
	"github.com/Softhook/elite-sub000/internal/storage"
	"github.com/Softhook/elite-sub000/internal/stream"
	"github.com/Softhook/elite-sub000/internal/view"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/gdamore/tcell/v2"
)

// streamSeedOffset decorrelates instance silhouettes from field generation.
const streamSeedOffset = 0x9e3779b97f4a7c15

// simulation is one generated field and the stream over it.
type simulation struct {
	session     *core.Session
	info        core.FieldInfo
	descriptors []core.DescriptorInfo
	mgr         *stream.Manager
}

func (s *simulation) close() {
	_ = s.mgr.Close()
}

// fieldParams converts the config section, falling back to the default
// category when none is set.
func fieldParams(cfg config.FieldConfig) field.Params {
	cat := core.Category(cfg.Category)
	if cat == "" {
		cat = content.DefaultCategory
	}
	return field.Params{
		Center:             core.Vec2{X: cfg.CenterX, Y: cfg.CenterY},
		Radius:             cfg.Radius,
		Density:            cfg.Density,
		Category:           cat,
		ActivationDistance: cfg.ActivationDistance,
		MaxActive:          cfg.MaxActive,
	}
}

func streamOptions(cfg config.StreamConfig, sink stream.Sink, a *app) []stream.Option {
	return []stream.Option{
		stream.WithIndex(cfg.Index, cfg.GridCellSize),
		stream.WithPersistDrift(cfg.PersistDrift),
		stream.WithRespawnDestroyed(cfg.RespawnDestroyed),
		stream.WithSink(sink),
		stream.WithLogger(a.logger),
	}
}

func (a *app) newSimulation(f flags, sink stream.Sink) (*simulation, error) {
	fieldCfg := config.GetFieldConfig()
	seed := fieldCfg.Seed
	if seed == 0 {
		seed = uint64(a.start.UnixNano())
	}

	table, err := config.GetCategoryTable()
	if err != nil {
		return nil, err
	}

	fld, err := field.Generate(fieldParams(fieldCfg), table, rng.New(seed))
	if err != nil {
		return nil, fmt.Errorf("generating field: %w", err)
	}
	mgr, err := stream.New(fld, rng.New(seed^streamSeedOffset), streamOptions(config.GetStreamConfig(), sink, a)...)
	if err != nil {
		return nil, fmt.Errorf("creating stream manager: %w", err)
	}

	descs := mgr.Descriptors()
	sim := &simulation{
		session:     session.New(f.name, seed, Version, a.start),
		info:        mgr.Field(),
		descriptors: make([]core.DescriptorInfo, len(descs)),
		mgr:         mgr,
	}
	for i, d := range descs {
		sim.descriptors[i] = d.Info()
	}

	a.logger.Info("Field generated",
		"seed", seed,
		"category", sim.info.Category,
		"radius", sim.info.Radius,
		"descriptors", len(descs))
	return sim, nil
}

// initStorage creates and initialises the configured backend.
func (a *app) initStorage(cfg config.StorageConfig) (storage.Backend, error) {
	backend, err := storage.NewBackend(cfg, storage.Dependencies{
		LogManager: a.logManager,
		Logger:     a.zl,
	})
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend", "type", cfg.Type, "error", err)
		return nil, err
	}
	a.logger.Info("Storage backend initialized", "type", cfg.Type)
	return backend, nil
}

// observerPath flies from well outside the field on one side to well
// outside on the other, weaving across the centre line. t runs over [0, 1].
func observerPath(center core.Vec2, radius, t float64) core.Vec2 {
	t = math.Max(0, math.Min(1, t))
	return core.Vec2{
		X: center.X - 1.5*radius + 3*radius*t,
		Y: center.Y + 0.25*radius*math.Sin(2*math.Pi*t),
	}
}

func (a *app) runHeadless(ctx context.Context, sim *simulation, mon *monitor.Service, ticks int, frame time.Duration) error {
	a.logger.Info("Running headless", "ticks", ticks)
	center := sim.info.Center

	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			a.logger.Info("Interrupted", "tick", i)
			return nil
		}

		t := 0.0
		if ticks > 1 {
			t = float64(i) / float64(ticks-1)
		}
		obs := observerPath(center, sim.info.Radius, t)
		rep := sim.mgr.Advance(&obs)
		a.tick.Store(rep.Tick)
		mon.Update(sim.mgr.Stats())

		if frame > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(frame):
			}
		}
	}
	return nil
}

func (a *app) runView(ctx context.Context, sim *simulation, mon *monitor.Service) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	start := observerPath(sim.info.Center, sim.info.Radius, 0)
	return view.Run(ctx, screen, sim.mgr, start, view.Options{
		OnTick: func(rep stream.TickReport) {
			a.tick.Store(rep.Tick)
			mon.Update(sim.mgr.Stats())
		},
	})
}
