package stream

import (
	"math"
	"testing"

	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/internal/debris"
	"github.com/Softhook/elite-sub000/internal/field"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/internal/spatial"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(x, y float64) *core.Vec2 { return &core.Vec2{X: x, Y: y} }

// lineField places descriptors on the x axis at the given offsets.
func lineField(t *testing.T, activation float64, maxActive int, xs ...float64) *field.Field {
	t.Helper()
	descs := make([]field.Descriptor, len(xs))
	for i, x := range xs {
		descs[i] = field.Descriptor{ID: i, Anchor: core.Vec2{X: x}, Diameter: 20, Velocity: core.Vec2{X: 0.1}}
	}
	f, err := field.Restore(field.Params{Radius: 1000, Density: 1, ActivationDistance: activation, MaxActive: maxActive}, content.DefaultTable(), descs)
	require.NoError(t, err)
	return f
}

func generated(t *testing.T, seed uint64, activation float64, maxActive int) *field.Field {
	t.Helper()
	f, err := field.Generate(field.Params{Radius: 1000, Density: 1, ActivationDistance: activation, MaxActive: maxActive}, content.DefaultTable(), rng.New(seed))
	require.NoError(t, err)
	return f
}

func newManager(t *testing.T, f *field.Field, opts ...Option) *Manager {
	t.Helper()
	m, err := New(f, rng.New(1), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// assertConsistent checks the cap and the active-flag invariants.
func assertConsistent(t *testing.T, m *Manager) {
	t.Helper()
	active := m.ActiveInstances()
	require.LessOrEqual(t, len(active), m.maxActive)

	owners := map[int]int{}
	for _, inst := range active {
		owners[inst.DescriptorID()]++
	}
	for _, d := range m.Descriptors() {
		if d.Active() {
			assert.Equal(t, 1, owners[d.ID], "descriptor %d", d.ID)
		} else {
			assert.Zero(t, owners[d.ID], "descriptor %d", d.ID)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	f := lineField(t, 100, 2, 0)

	_, err := New(nil, rng.New(1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(f, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(f, rng.New(1), WithIndex("octree", 1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	m := newManager(t, f)
	require.NotNil(t, m)
	_, err = New(f, rng.New(1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, field.ErrClaimed)
}

func TestNew_FieldHolderCannotChangeFlags(t *testing.T) {
	f := lineField(t, 100, 2, 0, 20, 40)
	m := newManager(t, f)

	_, err := f.Claim()
	require.ErrorIs(t, err, field.ErrClaimed)
	assert.Equal(t, 2, f.MaxActive())

	for range 3 {
		m.Advance(vec(0, 0))
		assertConsistent(t, m)
	}
	assert.Len(t, m.ActiveInstances(), 2)
}

func TestActiveInstances_OnlyAdvanceMoves(t *testing.T) {
	m := newManager(t, lineField(t, 100, 2, 0, 20))
	m.Advance(vec(0, 0))

	inst := m.ActiveInstances()[0]
	before := inst.Position()
	inst.TakeDamage(1)
	_ = inst.CollidesWith(m.ActiveInstances()[1])
	assert.Equal(t, before, inst.Position())

	m.Advance(vec(0, 0))
	assert.InDelta(t, before.X+0.1, inst.Position().X, 1e-9)
}

func TestAdvance_NearestFirstUpToCap(t *testing.T) {
	f := lineField(t, 100, 2, 90, -30, 50, 101, 10)
	m := newManager(t, f)

	rep := m.Advance(vec(0, 0))
	assert.Equal(t, []int{4, 1}, rep.Activated)
	assert.Equal(t, 2, rep.Active)
	assert.Equal(t, uint64(1), rep.Tick)
	assertConsistent(t, m)
}

func TestAdvance_TiesBrokenByID(t *testing.T) {
	f := lineField(t, 100, 2, 50, -50, 50)
	m := newManager(t, f)

	rep := m.Advance(vec(0, 0))
	assert.Equal(t, []int{0, 1}, rep.Activated)
}

func TestAdvance_ActivationBoundaryInclusive(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 100, 100.001))
	rep := m.Advance(vec(0, 0))
	assert.Equal(t, []int{0}, rep.Activated)
}

func TestAdvance_Hysteresis(t *testing.T) {
	const a = 100.0
	m := newManager(t, lineField(t, a, 5, 0))

	rep := m.Advance(vec(a-0.5, 0))
	require.Equal(t, []int{0}, rep.Activated)

	// inside the band between A and 1.2A nothing changes
	for _, x := range []float64{a + 0.5, a * 1.1, a * 1.2, a + 0.5} {
		rep = m.Advance(vec(x, 0))
		assert.Empty(t, rep.Activated, "x=%v", x)
		assert.Empty(t, rep.Deactivated, "x=%v", x)
		assert.Equal(t, 1, rep.Active)
	}

	rep = m.Advance(vec(a*1.2+0.01, 0))
	assert.Equal(t, []int{0}, rep.Deactivated)
	assert.Zero(t, rep.Active)

	// back inside the band but outside A: stays inactive
	rep = m.Advance(vec(a*1.1, 0))
	assert.Empty(t, rep.Activated)
	assertConsistent(t, m)
}

func TestAdvance_DistanceUsesAnchor(t *testing.T) {
	m := newManager(t, lineField(t, 100, 1, 0))
	m.Advance(vec(0, 0))

	inst := m.ActiveInstances()[0]
	for range 500 {
		m.Advance(vec(0, 0))
	}
	assert.InDelta(t, 50.1, inst.Position().X, 1e-6)

	// 115 from the anchor but 65 from the drifted position
	rep := m.Advance(vec(-115, 0))
	assert.Empty(t, rep.Deactivated)
	rep = m.Advance(vec(-121, 0))
	assert.Equal(t, []int{0}, rep.Deactivated)
}

func TestAdvance_NilObserver(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0, 10))

	rep := m.Advance(nil)
	assert.Empty(t, rep.Activated)
	assert.Zero(t, rep.Active)

	m.Advance(vec(0, 0))
	inst := m.ActiveInstances()[0]
	before := inst.Position()

	rep = m.Advance(nil)
	assert.Empty(t, rep.Deactivated)
	assert.Equal(t, 2, rep.Active)
	assert.Equal(t, before.X+0.1, inst.Position().X)

	rep = m.Advance(vec(math.NaN(), 0))
	assert.Empty(t, rep.Deactivated)
	assert.Equal(t, 2, rep.Active)
}

func TestAdvance_ZeroDescriptors(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5))
	for range 3 {
		rep := m.Advance(vec(0, 0))
		assert.Zero(t, rep.Active)
	}
	assert.Empty(t, m.ActiveInstances())
	assert.Equal(t, uint64(3), m.Tick())
}

func TestAdvance_ZeroCap(t *testing.T) {
	m := newManager(t, lineField(t, 100, 0, 0, 1))
	rep := m.Advance(vec(0, 0))
	assert.Empty(t, rep.Activated)
}

func TestAdvance_CapInvariant_RandomWalk(t *testing.T) {
	for _, kind := range []string{spatial.KindLinear, spatial.KindGrid} {
		t.Run(kind, func(t *testing.T) {
			f := generated(t, 11, 300, 6)
			m := newManager(t, f, WithIndex(kind, 150))
			walk := rng.New(5)

			pos := core.Vec2{}
			for range 400 {
				pos = pos.Add(core.Polar(rng.Angle(walk), 40))
				if pos.Len() > 1400 {
					pos = core.Vec2{}
				}
				if rng.Chance(walk, 0.2) {
					for _, inst := range m.ActiveInstances() {
						inst.TakeDamage(rng.Uniform(walk, 0, 200))
					}
				}
				m.Advance(&pos)
				assertConsistent(t, m)
			}
		})
	}
}

func TestAdvance_GridMatchesLinear(t *testing.T) {
	linear := newManager(t, generated(t, 21, 250, 8))
	grid := newManager(t, generated(t, 21, 250, 8), WithIndex(spatial.KindGrid, 100))
	walk := rng.New(8)

	pos := core.Vec2{X: -1200}
	for range 300 {
		pos = pos.Add(core.Vec2{X: 8, Y: rng.Uniform(walk, -20, 20)})
		a := linear.Advance(&pos)
		b := grid.Advance(&pos)
		require.Equal(t, a.Activated, b.Activated)
		require.Equal(t, a.Deactivated, b.Deactivated)
		require.Equal(t, a.Active, b.Active)
	}
}

func TestScenarios(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		f := generated(t, seed, 400, 5)
		a := f.ActivationDistance()
		center := f.Center()
		within := 0
		for _, d := range f.Descriptors() {
			if d.Anchor.Dist(center) <= a {
				within++
			}
		}
		m := newManager(t, f)

		// A: one advance at the centre fills up to the cap
		rep := m.Advance(&center)
		require.Equal(t, min(5, within), rep.Active, "seed %d", seed)

		// C: repeating the same input changes nothing
		rep = m.Advance(&center)
		assert.Empty(t, rep.Activated)
		assert.Empty(t, rep.Deactivated)
		assert.Equal(t, min(5, within), rep.Active)

		// B: far from every active anchor everything is discarded
		far := core.Vec2{X: center.X + 100*a}
		for _, inst := range m.ActiveInstances() {
			d, ok := m.Descriptor(inst.DescriptorID())
			require.True(t, ok)
			require.Greater(t, d.Anchor.Dist(far), 1.3*a)
		}
		rep = m.Advance(&far)
		assert.Zero(t, rep.Active)
		assert.Len(t, rep.Deactivated, min(5, within))
		assertConsistent(t, m)
	}
}

func TestAdvance_DestroyedIsPermanent(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0, 10))
	m.Advance(vec(0, 0))

	inst := m.ActiveInstances()[0]
	id := inst.DescriptorID()
	require.True(t, inst.TakeDamage(inst.MaxHitPoints()))

	rep := m.Advance(vec(0, 0))
	assert.Equal(t, []int{id}, rep.Destroyed)
	assert.Empty(t, rep.Activated)
	assert.Equal(t, 1, rep.Active)

	d, _ := m.Descriptor(id)
	assert.True(t, d.Destroyed())
	assert.False(t, d.Active())

	m.Advance(vec(1000, 0))
	rep = m.Advance(vec(0, 0))
	assert.NotContains(t, rep.Activated, id)
	assert.Equal(t, 1, m.Stats().Destroyed)
	assertConsistent(t, m)
}

func TestAdvance_RespawnDestroyed(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0), WithRespawnDestroyed(true))
	m.Advance(vec(0, 0))
	m.ActiveInstances()[0].TakeDamage(1e9)

	rep := m.Advance(vec(0, 0))
	assert.Equal(t, []int{0}, rep.Destroyed)
	assert.Equal(t, []int{0}, rep.Activated)

	fresh := m.ActiveInstances()[0]
	assert.False(t, fresh.Destroyed())
	assert.Equal(t, fresh.MaxHitPoints(), fresh.HitPoints())
	assert.Zero(t, m.Stats().Destroyed)
}

func TestAdvance_DriftResetByDefault(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0))
	m.Advance(vec(0, 0))
	inst := m.ActiveInstances()[0]
	inst.TakeDamage(5)
	for range 10 {
		m.Advance(vec(0, 0))
	}

	m.Advance(vec(500, 0))
	m.Advance(vec(0, 0))
	again := m.ActiveInstances()[0]
	assert.NotSame(t, inst, again)
	assert.InDelta(t, 0.1, again.Position().X, 1e-9)
	assert.Equal(t, again.MaxHitPoints(), again.HitPoints())
}

func TestAdvance_PersistDrift(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0), WithPersistDrift(true))
	m.Advance(vec(0, 0))
	inst := m.ActiveInstances()[0]
	inst.TakeDamage(5)
	for range 10 {
		m.Advance(vec(0, 0))
	}
	pos := inst.Position()
	hp := inst.HitPoints()

	m.Advance(vec(500, 0))
	d, _ := m.Descriptor(0)
	rs, ok := d.Resume()
	require.True(t, ok)
	assert.Equal(t, pos, rs.Position)
	assert.Equal(t, core.Vec2{}, d.Anchor)

	m.Advance(vec(0, 0))
	again := m.ActiveInstances()[0]
	assert.InDelta(t, pos.X+0.1, again.Position().X, 1e-9)
	assert.Equal(t, hp, again.HitPoints())
}

func TestAdvance_Events(t *testing.T) {
	var events []core.Event
	sink := SinkFunc(func(e core.Event) { events = append(events, e) })
	m := newManager(t, lineField(t, 100, 5, 0, 50), WithSink(sink))

	m.Advance(vec(0, 0))
	require.Len(t, events, 3)
	assert.Equal(t, core.EventActivated, events[0].Kind)
	assert.Equal(t, 0, events[0].DescriptorID)
	assert.Equal(t, core.EventActivated, events[1].Kind)
	assert.Equal(t, 50.0, events[1].Distance)
	assert.Equal(t, core.EventTick, events[2].Kind)
	require.NotNil(t, events[2].Stats)
	assert.Equal(t, 2, events[2].Stats.Activated)
	assert.Equal(t, core.Vec2{}, *events[2].Stats.Observer)

	events = nil
	m.ActiveInstances()[1].TakeDamage(1e9)
	m.Advance(vec(300, 0))
	kinds := make([]core.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []core.EventKind{core.EventDestroyed, core.EventDeactivated, core.EventTick}, kinds)
	assert.Equal(t, 1, events[0].DescriptorID)
	assert.Equal(t, 0, events[1].DescriptorID)
}

func TestStats(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0, 50, 500))
	m.Advance(vec(0, 0))
	m.Advance(vec(1000, 0))

	st := m.Stats()
	assert.Equal(t, uint64(2), st.Tick)
	assert.Equal(t, 3, st.Descriptors)
	assert.Zero(t, st.Active)
	assert.Equal(t, uint64(2), st.Activations)
	assert.Equal(t, uint64(2), st.Deactivations)
	assert.Equal(t, 3, len(m.Descriptors()))
	assert.Equal(t, 3, m.Field().Descriptors)
}

func TestActiveInstances_IsACopy(t *testing.T) {
	m := newManager(t, lineField(t, 100, 5, 0, 10))
	m.Advance(vec(0, 0))

	view := m.ActiveInstances()
	view[0] = nil
	assert.Len(t, m.ActiveInstances(), 2)
	assert.NotNil(t, m.ActiveInstances()[0])
}

type recorder struct{ drawn []int }

func (r *recorder) DrawInstance(inst *debris.Instance) { r.drawn = append(r.drawn, inst.DescriptorID()) }

func TestRender(t *testing.T) {
	m := newManager(t, lineField(t, 1000, 5, 0, 300, 600))
	m.Advance(vec(0, 0))
	require.Len(t, m.ActiveInstances(), 3)

	r := &recorder{}
	n := m.Render(core.RectAround(core.Vec2{X: 300}, 50, 50), r)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1}, r.drawn)

	r = &recorder{}
	assert.Equal(t, 3, m.Render(core.RectAround(core.Vec2{X: 300}, 400, 50), r))

	// destroyed instances are not drawn even before they are reaped
	m.ActiveInstances()[0].TakeDamage(1e9)
	r = &recorder{}
	assert.Equal(t, 2, m.Render(core.RectAround(core.Vec2{X: 300}, 400, 50), r))

	assert.Zero(t, m.Render(core.RectAround(core.Vec2{X: 5000}, 10, 10), &recorder{}))
	assert.Zero(t, m.Render(core.RectAround(core.Vec2{}, 1000, 1000), nil))
}
