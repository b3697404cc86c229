package worker

import (
	"fmt"

	"github.com/Softhook/elite-sub000/internal/dispatcher"
	"github.com/Softhook/elite-sub000/pkg/core"
)

// Queue sizes for the buffered handlers.
const (
	eventBufferSize = 1000
	tickBufferSize  = 100
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Lifecycle events - buffered, never dropped
	d.Register(core.EventActivated, m.handleActivation, dispatcher.Buffered(eventBufferSize), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventDeactivated, m.handleDeactivation, dispatcher.Buffered(eventBufferSize), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventDestroyed, m.handleDestruction, dispatcher.Buffered(eventBufferSize), dispatcher.Blocking(), dispatcher.Logged())

	// Per-tick summaries - buffered, dropped under pressure
	d.Register(core.EventTick, m.handleTick, dispatcher.Buffered(tickBufferSize))
}

// record counts the outcome of a backend write.
func (m *Manager) record(err error) error {
	if err != nil {
		m.failed.Inc()
		return err
	}
	m.recorded.Inc()
	return nil
}

// diameter falls back to the cached descriptor when the event carries none.
func (m *Manager) diameter(e core.Event) float64 {
	if e.Diameter > 0 {
		return e.Diameter
	}
	if d, ok := m.deps.DescriptorCache.Get(e.DescriptorID); ok {
		return d.Diameter
	}
	return 0
}

func (m *Manager) handleActivation(e core.Event) error {
	if !m.started.Load() {
		return ErrNoSession
	}
	if _, ok := m.deps.DescriptorCache.Get(e.DescriptorID); !ok {
		return fmt.Errorf("activation of unknown descriptor %d", e.DescriptorID)
	}

	a := core.Activation{
		DescriptorID: e.DescriptorID,
		Tick:         e.Tick,
		Time:         e.Time,
		Position:     e.Position,
		Distance:     e.Distance,
		Diameter:     m.diameter(e),
		Silhouette:   e.Silhouette,
	}
	return m.record(m.backend.RecordActivation(&a))
}

func (m *Manager) handleDeactivation(e core.Event) error {
	if !m.started.Load() {
		return ErrNoSession
	}

	d := core.Deactivation{
		DescriptorID: e.DescriptorID,
		Tick:         e.Tick,
		Time:         e.Time,
		Position:     e.Position,
		Distance:     e.Distance,
	}
	return m.record(m.backend.RecordDeactivation(&d))
}

func (m *Manager) handleDestruction(e core.Event) error {
	if !m.started.Load() {
		return ErrNoSession
	}

	d := core.Destruction{
		DescriptorID: e.DescriptorID,
		Tick:         e.Tick,
		Time:         e.Time,
		Position:     e.Position,
		Diameter:     m.diameter(e),
		Value:        e.Value,
	}
	return m.record(m.backend.RecordDestruction(&d))
}

func (m *Manager) handleTick(e core.Event) error {
	if !m.started.Load() {
		return ErrNoSession
	}
	if e.Stats == nil {
		return fmt.Errorf("tick %d without stats", e.Tick)
	}

	stats := *e.Stats
	return m.record(m.backend.RecordTickStats(&stats))
}
