package worker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Softhook/elite-sub000/internal/cache"
	"github.com/Softhook/elite-sub000/internal/logging"
	"github.com/Softhook/elite-sub000/internal/session"
	"github.com/Softhook/elite-sub000/internal/storage"
	"github.com/Softhook/elite-sub000/pkg/core"
)

// ErrNoSession is returned when events arrive before StartSession.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	DescriptorCache *cache.DescriptorCache
	LogManager      *logging.SlogManager
	SessionContext  *session.Context
}

// Manager turns stream events into storage records
type Manager struct {
	deps     Dependencies
	backend  storage.Backend
	recorded cache.Counter
	failed   cache.Counter
	started  atomic.Bool
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.DescriptorCache == nil {
		deps.DescriptorCache = cache.NewDescriptorCache()
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.SessionContext == nil {
		deps.SessionContext = session.NewContext()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// StartSession stores the session and its descriptors and primes the
// descriptor cache used to enrich events. Must run before events are dispatched.
func (m *Manager) StartSession(s *core.Session, f *core.FieldInfo, descriptors []core.DescriptorInfo) error {
	if err := m.backend.StartSession(s, f); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if err := m.backend.AddDescriptors(descriptors); err != nil {
		return fmt.Errorf("failed to store descriptors: %w", err)
	}

	m.deps.DescriptorCache.Load(descriptors)
	m.deps.SessionContext.Set(s, f)
	m.started.Store(true)

	m.deps.LogManager.WriteLog("StartSession",
		fmt.Sprintf("Session %s started with %d descriptors", s.UUID, len(descriptors)), "INFO")
	return nil
}

// EndSession finalizes the backend's session.
// Close the dispatcher first so no buffered event is lost.
func (m *Manager) EndSession() error {
	if !m.started.Swap(false) {
		return nil
	}
	if err := m.backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if e, ok := m.backend.(storage.Exportable); ok && e.ExportedFilePath() != "" {
		m.deps.LogManager.WriteLog("EndSession", fmt.Sprintf("Session written to %s", e.ExportedFilePath()), "INFO")
	}
	return nil
}

// Recorded returns how many events were written to the backend.
func (m *Manager) Recorded() int {
	return m.recorded.Value()
}

// Failed returns how many events the backend rejected.
func (m *Manager) Failed() int {
	return m.failed.Value()
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(storage.WriteTimer); ok {
		return p.LastWriteDuration()
	}
	return 0
}
