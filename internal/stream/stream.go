// Package stream keeps a bounded set of live debris instances in sync with
// an observer's position.
//
// Descriptors within the activation distance of the observer are turned
// into live instances, nearest first, up to the field's cap. Live instances
// are discarded once their anchor is more than 1.2 times the activation
// distance away, so an observer hovering near the boundary does not cause
// churn. Distances are always measured to the anchor, never to the drifted
// position.
package stream

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Softhook/elite-sub000/internal/debris"
	"github.com/Softhook/elite-sub000/internal/field"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/internal/spatial"
	"github.com/Softhook/elite-sub000/pkg/core"
)

// ErrInvalidConfig is returned by New for an unusable field or options.
var ErrInvalidConfig = errors.New("invalid stream configuration")

// TickReport describes what one Advance call changed. The id slices are
// owned by the caller.
type TickReport struct {
	Tick        uint64
	Activated   []int
	Deactivated []int
	Destroyed   []int
	Active      int
	Duration    time.Duration
}

// Stats are running totals since the manager was created.
type Stats struct {
	Tick          uint64 `json:"tick"`
	Descriptors   int    `json:"descriptors"`
	Active        int    `json:"active"`
	Destroyed     int    `json:"destroyed"`
	Activations   uint64 `json:"activations"`
	Deactivations uint64 `json:"deactivations"`
	Destructions  uint64 `json:"destructions"`
}

// Renderer draws one live instance.
type Renderer interface {
	DrawInstance(inst *debris.Instance)
}

// Manager owns a field and its live instances. It is not safe for
// concurrent use; call Advance once per frame from a single goroutine.
type Manager struct {
	field *field.Field
	owner *field.Owner
	src   rng.Source
	opts  options
	index spatial.Index
	log   *slog.Logger
	in    *instruments

	activation   float64
	deactivation float64
	maxActive    int

	active []live
	tick   uint64
	stats  Stats

	candidates []candidate
	queryBuf   []int
}

// live pairs an instance with the step function only the manager holds.
type live struct {
	inst *debris.Instance
	step func()
}

type candidate struct {
	id   int
	dist float64
}

// New claims f, so a field can back only one manager. Descriptor flags
// change only inside Advance from then on.
func New(f *field.Field, src rng.Source, opts ...Option) (*Manager, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil field", ErrInvalidConfig)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	descs := f.Descriptors()
	ids := make([]int, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	index, err := spatial.New(o.indexKind, ids, f.Anchors(), o.gridCellSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	owner, err := f.Claim()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	in, err := newInstruments()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		field:        f,
		owner:        owner,
		src:          src,
		opts:         o,
		index:        index,
		log:          o.logger.With("component", "stream"),
		in:           in,
		activation:   f.ActivationDistance(),
		deactivation: f.DeactivationDistance(),
		maxActive:    f.MaxActive(),
		active:       make([]live, 0, f.MaxActive()),
	}
	m.stats.Descriptors = len(descs)
	for _, d := range descs {
		if d.Destroyed() {
			m.stats.Destroyed++
		}
	}

	m.log.Debug("stream manager ready",
		"descriptors", len(descs),
		"activationDistance", m.activation,
		"deactivationDistance", m.deactivation,
		"maxActive", m.maxActive,
		"index", o.indexKind)
	return m, nil
}

// Advance runs one tick: reap destroyed instances, discard distant ones,
// admit the nearest candidates and step the simulation. A nil (or
// non-finite) observer skips the distance checks but still steps the
// simulation.
func (m *Manager) Advance(observer *core.Vec2) TickReport {
	start := time.Now()
	m.tick++
	rep := TickReport{Tick: m.tick}

	m.reap(&rep, start)

	var obs *core.Vec2
	if observer != nil && observer.IsFinite() {
		o := *observer
		obs = &o
		m.deactivate(o, &rep, start)
		m.activate(o, &rep, start)
	}

	for _, l := range m.active {
		l.step()
	}

	rep.Active = len(m.active)
	rep.Duration = time.Since(start)

	m.stats.Tick = m.tick
	m.stats.Active = rep.Active
	m.stats.Activations += uint64(len(rep.Activated))
	m.stats.Deactivations += uint64(len(rep.Deactivated))
	m.stats.Destructions += uint64(len(rep.Destroyed))
	m.in.record(rep)

	m.publish(core.Event{
		Kind: core.EventTick,
		Tick: m.tick,
		Time: start,
		Stats: &core.TickStats{
			Tick:        m.tick,
			Time:        start,
			Active:      rep.Active,
			Activated:   len(rep.Activated),
			Deactivated: len(rep.Deactivated),
			Destroyed:   len(rep.Destroyed),
			Duration:    rep.Duration,
			Observer:    obs,
		},
	})
	return rep
}

// reap removes instances destroyed since the previous tick.
func (m *Manager) reap(rep *TickReport, now time.Time) {
	kept := m.active[:0]
	for _, l := range m.active {
		inst := l.inst
		if !inst.Destroyed() {
			kept = append(kept, l)
			continue
		}
		id := inst.DescriptorID()
		m.owner.SetActive(id, false)
		if m.opts.respawnDestroyed {
			m.owner.SetResume(id, nil)
		} else {
			m.owner.MarkDestroyed(id)
			m.stats.Destroyed++
		}
		rep.Destroyed = append(rep.Destroyed, id)
		m.publish(core.Event{
			Kind:         core.EventDestroyed,
			Tick:         m.tick,
			Time:         now,
			DescriptorID: id,
			Position:     inst.Position(),
			Diameter:     inst.Diameter(),
			Value:        inst.Value(),
		})
		m.log.Debug("debris destroyed", "id", id, "tick", m.tick)
	}
	clear(m.active[len(kept):])
	m.active = kept
}

func (m *Manager) deactivate(observer core.Vec2, rep *TickReport, now time.Time) {
	kept := m.active[:0]
	for _, l := range m.active {
		inst := l.inst
		id := inst.DescriptorID()
		d, ok := m.field.Descriptor(id)
		if !ok {
			kept = append(kept, l)
			continue
		}
		dist := d.Anchor.Dist(observer)
		if dist <= m.deactivation {
			kept = append(kept, l)
			continue
		}

		if m.opts.persistDrift {
			rs := inst.ResumeState()
			m.owner.SetResume(id, &rs)
		}
		m.owner.SetActive(id, false)
		rep.Deactivated = append(rep.Deactivated, id)
		m.publish(core.Event{
			Kind:         core.EventDeactivated,
			Tick:         m.tick,
			Time:         now,
			DescriptorID: id,
			Position:     inst.Position(),
			Diameter:     inst.Diameter(),
			Distance:     dist,
		})
	}
	clear(m.active[len(kept):])
	m.active = kept
}

func (m *Manager) activate(observer core.Vec2, rep *TickReport, now time.Time) {
	free := m.maxActive - len(m.active)
	if free <= 0 {
		return
	}

	m.queryBuf = m.index.Query(observer, m.activation, m.queryBuf)
	m.candidates = m.candidates[:0]
	for _, id := range m.queryBuf {
		d, ok := m.field.Descriptor(id)
		if !ok || d.Active() || d.Destroyed() {
			continue
		}
		m.candidates = append(m.candidates, candidate{id: id, dist: d.Anchor.Dist(observer)})
	}
	slices.SortFunc(m.candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	for _, c := range m.candidates[:min(free, len(m.candidates))] {
		d, _ := m.field.Descriptor(c.id)
		inst, step := debris.New(d, m.field.Content(), m.src)
		m.owner.SetActive(c.id, true)
		m.active = append(m.active, live{inst: inst, step: step})
		rep.Activated = append(rep.Activated, c.id)
		m.publish(core.Event{
			Kind:         core.EventActivated,
			Tick:         m.tick,
			Time:         now,
			DescriptorID: c.id,
			Position:     inst.Position(),
			Diameter:     inst.Diameter(),
			Distance:     c.dist,
			Silhouette:   inst.Vertices(),
		})
	}
}

func (m *Manager) publish(e core.Event) {
	if m.opts.sink != nil {
		m.opts.sink.Publish(e)
	}
}

// ActiveInstances returns the live instances. The slice is a fresh copy;
// callers may damage instances but cannot add, remove or move them.
func (m *Manager) ActiveInstances() []*debris.Instance {
	out := make([]*debris.Instance, len(m.active))
	for i, l := range m.active {
		out[i] = l.inst
	}
	return out
}

// Render draws every live, non-destroyed instance whose bounding box
// intersects view and returns how many were drawn.
func (m *Manager) Render(view core.Rect, r Renderer) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, l := range m.active {
		if l.inst.Destroyed() || !l.inst.Bounds().Intersects(view) {
			continue
		}
		r.DrawInstance(l.inst)
		n++
	}
	return n
}

// Descriptors returns a copy of all descriptors in generation order.
func (m *Manager) Descriptors() []field.Descriptor { return m.field.Descriptors() }

// Descriptor looks up a descriptor by id.
func (m *Manager) Descriptor(id int) (field.Descriptor, bool) { return m.field.Descriptor(id) }

// Field returns the immutable field parameters.
func (m *Manager) Field() core.FieldInfo { return m.field.Info() }

func (m *Manager) Stats() Stats { return m.stats }

func (m *Manager) Tick() uint64 { return m.tick }

// Close unregisters the metric callback.
func (m *Manager) Close() error {
	return m.in.reg.Unregister()
}
