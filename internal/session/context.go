package session

import (
	"sync"
	"time"

	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/google/uuid"
)

// Context holds the current session and the field it streams.
type Context struct {
	mu      sync.RWMutex
	Session *core.Session
	Field   *core.FieldInfo
}

// NewContext creates a new Context with placeholder values
func NewContext() *Context {
	return &Context{
		Session: &core.Session{Name: "No session started"},
		Field:   &core.FieldInfo{},
	}
}

// New creates a session with a fresh UUID.
func New(name string, seed uint64, version string, start time.Time) *core.Session {
	return &core.Session{
		UUID:      uuid.NewString(),
		Name:      name,
		StartTime: start,
		Seed:      seed,
		Version:   version,
	}
}

// GetSession returns the current session
func (c *Context) GetSession() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Session
}

// GetField returns the current field
func (c *Context) GetField() *core.FieldInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Field
}

// Set replaces the current session and field
func (c *Context) Set(s *core.Session, f *core.FieldInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Session = s
	c.Field = f
}

// Elapsed returns the time since the session started.
func (c *Context) Elapsed(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Session.StartTime.IsZero() {
		return 0
	}
	return now.Sub(c.Session.StartTime)
}
