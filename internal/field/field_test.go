package field

import (
	"math"
	"testing"

	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		Center:             core.Vec2{X: 100, Y: -50},
		Radius:             1000,
		Density:            1.0,
		Category:           "rocky",
		ActivationDistance: 300,
		MaxActive:          5,
	}
}

func TestGenerate_PopulationSize(t *testing.T) {
	p := testParams()
	p.Radius = 500
	for seed := uint64(1); seed <= 200; seed++ {
		f, err := Generate(p, content.DefaultTable(), rng.New(seed))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f.Len(), 8, "seed %d", seed)
		assert.LessOrEqual(t, f.Len(), 12, "seed %d", seed)
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a, err := Generate(testParams(), content.DefaultTable(), rng.New(99))
	require.NoError(t, err)
	b, err := Generate(testParams(), content.DefaultTable(), rng.New(99))
	require.NoError(t, err)
	assert.Equal(t, a.Descriptors(), b.Descriptors())
}

func TestGenerate_DescriptorRanges(t *testing.T) {
	f, err := Generate(testParams(), content.DefaultTable(), rng.New(5))
	require.NoError(t, err)
	require.NotZero(t, f.Len())

	cat, _ := content.DefaultTable().Lookup("rocky")
	for i, d := range f.Descriptors() {
		assert.Equal(t, i, d.ID, "ids follow generation order")
		assert.LessOrEqual(t, d.Anchor.Dist(f.Center()), f.Radius()+1e-9)
		assert.GreaterOrEqual(t, d.Diameter, cat.MinSize)
		assert.LessOrEqual(t, d.Diameter, cat.MaxSize)
		speed := d.Velocity.Len()
		assert.GreaterOrEqual(t, speed, minDriftSpeed-1e-12)
		assert.LessOrEqual(t, speed, maxDriftSpeed+1e-12)
		assert.GreaterOrEqual(t, d.Spin, -maxSpin)
		assert.LessOrEqual(t, d.Spin, maxSpin)
		assert.False(t, d.Active())
		assert.False(t, d.Destroyed())
	}
}

func TestGenerate_PlacementMix(t *testing.T) {
	p := testParams()
	p.Radius = 50000
	p.Density = 2.0
	f, err := Generate(p, content.DefaultTable(), rng.New(11))
	require.NoError(t, err)

	inner := 0
	for _, d := range f.Descriptors() {
		if d.Anchor.Dist(f.Center()) < f.Radius()*(1-ringWidthFraction) {
			inner++
		}
	}
	// Only clustered placement lands inside the ring: 0.7 × 0.8 of the population.
	frac := float64(inner) / float64(f.Len())
	assert.InDelta(t, clusteredChance*(1-ringWidthFraction), frac, 0.06)
}

func TestGenerate_ClampsDensity(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.01, MinDensity},
		{5, MaxDensity},
		{1.3, 1.3},
		{math.NaN(), MinDensity},
	}
	for _, tt := range tests {
		p := testParams()
		p.Density = tt.in
		f, err := Generate(p, content.DefaultTable(), rng.New(1))
		require.NoError(t, err)
		assert.Equal(t, tt.want, f.Density())
	}
}

func TestGenerate_UnknownCategoryFallsBack(t *testing.T) {
	p := testParams()
	p.Category = "antimatter"
	f, err := Generate(p, content.DefaultTable(), rng.New(3))
	require.NoError(t, err)
	assert.Equal(t, content.DefaultConfig, f.Content())
	for _, d := range f.Descriptors() {
		assert.GreaterOrEqual(t, d.Diameter, content.DefaultConfig.MinSize)
		assert.LessOrEqual(t, d.Diameter, content.DefaultConfig.MaxSize)
	}
}

func TestGenerate_EmptyCategoryUsesDefault(t *testing.T) {
	p := testParams()
	p.Category = ""
	f, err := Generate(p, content.DefaultTable(), rng.New(3))
	require.NoError(t, err)
	assert.Equal(t, content.DefaultCategory, f.Category())
}

func TestGenerate_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero radius", func(p *Params) { p.Radius = 0 }},
		{"negative radius", func(p *Params) { p.Radius = -10 }},
		{"infinite radius", func(p *Params) { p.Radius = math.Inf(1) }},
		{"negative cap", func(p *Params) { p.MaxActive = -1 }},
		{"negative activation", func(p *Params) { p.ActivationDistance = -1 }},
		{"nan center", func(p *Params) { p.Center.X = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			_, err := Generate(p, content.DefaultTable(), rng.New(1))
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestGenerate_NilSource(t *testing.T) {
	_, err := Generate(testParams(), content.DefaultTable(), nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestField_TinyRadiusIsEmpty(t *testing.T) {
	p := testParams()
	p.Radius = 10
	f, err := Generate(p, content.DefaultTable(), rng.New(1))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.Empty(t, f.Descriptors())
}

func TestField_OwnerMutators(t *testing.T) {
	f, err := Generate(testParams(), content.DefaultTable(), rng.New(8))
	require.NoError(t, err)
	require.NotZero(t, f.Len())
	own, err := f.Claim()
	require.NoError(t, err)
	assert.Same(t, f, own.Field())

	assert.True(t, own.SetActive(0, true))
	d, ok := f.Descriptor(0)
	require.True(t, ok)
	assert.True(t, d.Active())

	assert.True(t, own.MarkDestroyed(0))
	d, _ = f.Descriptor(0)
	assert.True(t, d.Destroyed())

	rs := &ResumeState{Position: core.Vec2{X: 1, Y: 2}, HitPoints: 3}
	assert.True(t, own.SetResume(0, rs))
	rs.HitPoints = 99
	d, _ = f.Descriptor(0)
	got, ok := d.Resume()
	require.True(t, ok)
	assert.Equal(t, 3.0, got.HitPoints, "resume state is copied")

	assert.True(t, own.SetResume(0, nil))
	d, _ = f.Descriptor(0)
	_, ok = d.Resume()
	assert.False(t, ok)

	assert.False(t, own.SetActive(-1, true))
	assert.False(t, own.MarkDestroyed(f.Len()))
	assert.False(t, own.SetResume(f.Len()+5, rs))
	_, ok = f.Descriptor(f.Len())
	assert.False(t, ok)
}

func TestField_ClaimOnce(t *testing.T) {
	f, err := Generate(testParams(), content.DefaultTable(), rng.New(8))
	require.NoError(t, err)

	_, err = f.Claim()
	require.NoError(t, err)
	_, err = f.Claim()
	assert.ErrorIs(t, err, ErrClaimed)
}

func TestField_DescriptorsIsACopy(t *testing.T) {
	f, err := Generate(testParams(), content.DefaultTable(), rng.New(8))
	require.NoError(t, err)
	require.NotZero(t, f.Len())

	ds := f.Descriptors()
	ds[0].Diameter = -1
	d, _ := f.Descriptor(0)
	assert.NotEqual(t, -1.0, d.Diameter)
}

func TestField_InfoAndDeactivationDistance(t *testing.T) {
	f, err := Generate(testParams(), content.DefaultTable(), rng.New(8))
	require.NoError(t, err)
	info := f.Info()
	assert.Equal(t, f.Len(), info.Descriptors)
	assert.Equal(t, 5, info.MaxActive)
	assert.InDelta(t, 360.0, f.DeactivationDistance(), 1e-9)
	assert.Len(t, f.Anchors(), f.Len())
}

func TestRestore(t *testing.T) {
	p := Params{Radius: 500, Density: 1, ActivationDistance: 100, MaxActive: 3}
	descs := []Descriptor{
		{ID: 10, Anchor: core.Vec2{X: 1, Y: 2}, Diameter: 20},
		{ID: 4, Anchor: core.Vec2{X: -3, Y: 0}, Diameter: 30, Velocity: core.Vec2{X: 0.1}},
	}

	f, err := Restore(p, content.DefaultTable(), descs)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []core.Vec2{{X: 1, Y: 2}, {X: -3, Y: 0}}, f.Anchors())

	d, ok := f.Descriptor(4)
	require.True(t, ok)
	assert.Equal(t, 30.0, d.Diameter)
	assert.False(t, d.Active())

	_, err = Restore(p, content.DefaultTable(), append(descs, Descriptor{ID: 4, Diameter: 1}))
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Restore(p, content.DefaultTable(), []Descriptor{{ID: 1}})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Restore(p, content.DefaultTable(), []Descriptor{{ID: 1, Diameter: 0.2}})
	assert.ErrorIs(t, err, ErrInvalidParams, "too small for a single hit point")

	_, err = Restore(Params{Radius: -1}, content.DefaultTable(), descs)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
