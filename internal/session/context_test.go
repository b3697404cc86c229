package session

import (
	"sync"
	"testing"
	"time"

	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext()

	require.NotNil(t, ctx.GetSession())
	require.NotNil(t, ctx.GetField())
	assert.Equal(t, "No session started", ctx.GetSession().Name)
	assert.Zero(t, ctx.Elapsed(time.Now()))
}

func TestNew(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := New("belt", 42, "dev", start)
	b := New("belt", 42, "dev", start)

	_, err := uuid.Parse(a.UUID)
	require.NoError(t, err)
	assert.NotEqual(t, a.UUID, b.UUID)
	assert.Equal(t, uint64(42), a.Seed)
	assert.Equal(t, start, a.StartTime)
}

func TestContext_Set(t *testing.T) {
	ctx := NewContext()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New("belt", 1, "dev", start)
	f := &core.FieldInfo{Radius: 500, Descriptors: 9}

	ctx.Set(s, f)

	assert.Same(t, s, ctx.GetSession())
	assert.Same(t, f, ctx.GetField())
	assert.Equal(t, 90*time.Second, ctx.Elapsed(start.Add(90*time.Second)))
}

func TestContext_ConcurrentAccess(t *testing.T) {
	ctx := NewContext()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ctx.Set(&core.Session{Seed: uint64(i)}, &core.FieldInfo{})
		}(i)
		go func() {
			defer wg.Done()
			_ = ctx.GetSession()
			_ = ctx.GetField()
		}()
	}
	wg.Wait()
}
