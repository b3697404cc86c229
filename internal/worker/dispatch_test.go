package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/Softhook/elite-sub000/internal/cache"
	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/content"
	"github.com/Softhook/elite-sub000/internal/dispatcher"
	"github.com/Softhook/elite-sub000/internal/field"
	"github.com/Softhook/elite-sub000/internal/logging"
	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/internal/session"
	"github.com/Softhook/elite-sub000/internal/storage/memory"
	"github.com/Softhook/elite-sub000/internal/stream"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingBackend rejects every record.
type failingBackend struct {
	*memory.Backend
	lastWrite time.Duration
}

var errRejected = errors.New("rejected")

func (f *failingBackend) RecordActivation(*core.Activation) error     { return errRejected }
func (f *failingBackend) RecordDeactivation(*core.Deactivation) error { return errRejected }
func (f *failingBackend) RecordDestruction(*core.Destruction) error   { return errRejected }
func (f *failingBackend) RecordTickStats(*core.TickStats) error       { return errRejected }
func (f *failingBackend) LastWriteDuration() time.Duration           { return f.lastWrite }

func newTestManager(t *testing.T) (*Manager, *memory.Backend, Dependencies) {
	t.Helper()
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.Init())
	deps := Dependencies{
		DescriptorCache: cache.NewDescriptorCache(),
		LogManager:      logging.NewSlogManager(),
		SessionContext:  session.NewContext(),
	}
	return NewManager(deps, backend), backend, deps
}

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func testDescriptors() []core.DescriptorInfo {
	return []core.DescriptorInfo{
		{ID: 0, Anchor: core.Vec2{X: 10}, Diameter: 20},
		{ID: 1, Anchor: core.Vec2{X: 50}, Diameter: 35},
	}
}

func startSession(t *testing.T, m *Manager) *core.Session {
	t.Helper()
	s := session.New("worker test", 1, "test", time.Now())
	f := &core.FieldInfo{Radius: 100, Category: "rocky", MaxActive: 2, Descriptors: 2}
	require.NoError(t, m.StartSession(s, f, testDescriptors()))
	return s
}

func TestNewManager_DefaultsDependencies(t *testing.T) {
	m := NewManager(Dependencies{}, memory.New(config.MemoryConfig{}))
	assert.NotNil(t, m.deps.DescriptorCache)
	assert.NotNil(t, m.deps.LogManager)
	assert.NotNil(t, m.deps.SessionContext)
}

func TestStartSession(t *testing.T) {
	m, backend, deps := newTestManager(t)
	s := startSession(t, m)

	assert.NotZero(t, s.ID)
	assert.Equal(t, 2, deps.DescriptorCache.Len())
	assert.Equal(t, s, deps.SessionContext.GetSession())
	assert.Equal(t, 100.0, deps.SessionContext.GetField().Radius)

	descriptors, _, _, _, _ := backend.Counts()
	assert.Equal(t, 2, descriptors)
}

func TestHandlers_BeforeSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.ErrorIs(t, m.handleActivation(core.Event{Kind: core.EventActivated}), ErrNoSession)
	assert.ErrorIs(t, m.handleDeactivation(core.Event{Kind: core.EventDeactivated}), ErrNoSession)
	assert.ErrorIs(t, m.handleDestruction(core.Event{Kind: core.EventDestroyed}), ErrNoSession)
	assert.ErrorIs(t, m.handleTick(core.Event{Kind: core.EventTick}), ErrNoSession)
	assert.Zero(t, m.Recorded())

	// EndSession without a session is a no-op
	require.NoError(t, m.EndSession())
}

func TestHandleActivation_UnknownDescriptor(t *testing.T) {
	m, _, _ := newTestManager(t)
	startSession(t, m)

	err := m.handleActivation(core.Event{Kind: core.EventActivated, DescriptorID: 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "99")
	assert.Zero(t, m.Recorded())
}

func TestHandleTick_MissingStats(t *testing.T) {
	m, _, _ := newTestManager(t)
	startSession(t, m)
	assert.Error(t, m.handleTick(core.Event{Kind: core.EventTick, Tick: 3}))
}

func TestDiameterFallback(t *testing.T) {
	m, _, _ := newTestManager(t)
	startSession(t, m)

	assert.Equal(t, 12.0, m.diameter(core.Event{DescriptorID: 1, Diameter: 12}))
	assert.Equal(t, 35.0, m.diameter(core.Event{DescriptorID: 1}))
	assert.Zero(t, m.diameter(core.Event{DescriptorID: 7}))
}

func TestRegisterHandlers(t *testing.T) {
	m, _, _ := newTestManager(t)
	d := newTestDispatcher(t)
	m.RegisterHandlers(d)

	for _, kind := range []core.EventKind{core.EventActivated, core.EventDeactivated, core.EventDestroyed, core.EventTick} {
		assert.True(t, d.HasHandler(kind), "missing handler for %s", kind)
	}
}

func TestDispatchedEventsAreRecorded(t *testing.T) {
	m, backend, _ := newTestManager(t)
	d := newTestDispatcher(t)
	m.RegisterHandlers(d)
	startSession(t, m)

	events := []core.Event{
		{Kind: core.EventActivated, Tick: 1, DescriptorID: 0, Distance: 10},
		{Kind: core.EventTick, Tick: 1, Stats: &core.TickStats{Tick: 1, Active: 1, Activated: 1}},
		{Kind: core.EventDestroyed, Tick: 2, DescriptorID: 0, Value: 20},
		{Kind: core.EventActivated, Tick: 2, DescriptorID: 1, Distance: 50},
		{Kind: core.EventDeactivated, Tick: 3, DescriptorID: 1, Distance: 75},
		{Kind: core.EventTick, Tick: 2, Stats: &core.TickStats{Tick: 2}},
	}
	for _, e := range events {
		require.NoError(t, d.Dispatch(e))
	}

	d.Close()
	require.NoError(t, m.EndSession())

	descriptors, activations, deactivations, destructions, ticks := backend.Counts()
	assert.Equal(t, 2, descriptors)
	assert.Equal(t, 2, activations)
	assert.Equal(t, 1, deactivations)
	assert.Equal(t, 1, destructions)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 6, m.Recorded())
	assert.Zero(t, m.Failed())
	assert.NotEmpty(t, backend.ExportedFilePath())
}

func TestBackendFailuresAreCounted(t *testing.T) {
	backend := &failingBackend{Backend: memory.New(config.MemoryConfig{OutputDir: t.TempDir()}), lastWrite: 3 * time.Millisecond}
	m := NewManager(Dependencies{}, backend)
	startSession(t, m)

	assert.ErrorIs(t, m.handleActivation(core.Event{DescriptorID: 0}), errRejected)
	assert.ErrorIs(t, m.handleDeactivation(core.Event{DescriptorID: 0}), errRejected)
	assert.ErrorIs(t, m.handleDestruction(core.Event{DescriptorID: 0}), errRejected)
	assert.ErrorIs(t, m.handleTick(core.Event{Stats: &core.TickStats{}}), errRejected)
	assert.Equal(t, 4, m.Failed())
	assert.Zero(t, m.Recorded())
	assert.Equal(t, 3*time.Millisecond, m.GetLastDBWriteDuration())
}

func TestGetLastDBWriteDuration_Unsupported(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.Zero(t, m.GetLastDBWriteDuration())
}

func TestStreamToStorage(t *testing.T) {
	m, backend, _ := newTestManager(t)
	d := newTestDispatcher(t)
	m.RegisterHandlers(d)

	f, err := field.Generate(field.Params{Radius: 600, Density: 1, Category: "rocky", ActivationDistance: 250, MaxActive: 6}, content.DefaultTable(), rng.New(11))
	require.NoError(t, err)
	mgr, err := stream.New(f, rng.New(12), stream.WithSink(d))
	require.NoError(t, err)
	defer mgr.Close()

	descs := make([]core.DescriptorInfo, 0, f.Len())
	for _, desc := range f.Descriptors() {
		descs = append(descs, desc.Info())
	}
	info := mgr.Field()
	require.NoError(t, m.StartSession(session.New("e2e", 11, "test", time.Now()), &info, descs))

	const ticks = 120
	for i := 0; i < ticks; i++ {
		// sweep the observer across the field and back out
		obs := core.Vec2{X: -900 + float64(i)*15, Y: 0}
		mgr.Advance(&obs)
	}

	d.Close()
	require.NoError(t, m.EndSession())

	stats := mgr.Stats()
	_, activations, deactivations, destructions, recordedTicks := backend.Counts()
	assert.Equal(t, ticks, recordedTicks)
	assert.Equal(t, int(stats.Activations), activations)
	assert.Equal(t, int(stats.Deactivations), deactivations)
	assert.Equal(t, int(stats.Destructions), destructions)
	assert.Positive(t, activations)
}
