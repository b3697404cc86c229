// internal/storage/memory/memory.go
package memory

import (
	"slices"
	"sync"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	field   *core.FieldInfo

	descriptors   []core.DescriptorInfo
	activations   []core.Activation
	deactivations []core.Deactivation
	destructions  []core.Destruction
	tickStats     []core.TickStats

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session, f *core.FieldInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	f.ID = b.idCounter

	sessionCopy := *s
	fieldCopy := *f
	b.session = &sessionCopy
	b.field = &fieldCopy

	// Reset all collections
	b.descriptors = nil
	b.activations = nil
	b.deactivations = nil
	b.destructions = nil
	b.tickStats = nil
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	return b.exportJSON()
}

// AddDescriptors registers the session's descriptors
func (b *Backend) AddDescriptors(ds []core.DescriptorInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.descriptors = append(b.descriptors, ds...)
	return nil
}

// RecordActivation records an activation
func (b *Backend) RecordActivation(a *core.Activation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := *a
	rec.Silhouette = slices.Clone(a.Silhouette)
	b.activations = append(b.activations, rec)
	return nil
}

// RecordDeactivation records a deactivation
func (b *Backend) RecordDeactivation(d *core.Deactivation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deactivations = append(b.deactivations, *d)
	return nil
}

// RecordDestruction records a destruction
func (b *Backend) RecordDestruction(d *core.Destruction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.destructions = append(b.destructions, *d)
	return nil
}

// RecordTickStats records a tick summary
func (b *Backend) RecordTickStats(s *core.TickStats) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := *s
	if s.Observer != nil {
		obs := *s.Observer
		rec.Observer = &obs
	}
	b.tickStats = append(b.tickStats, rec)
	return nil
}

// Counts returns how many records of each kind are held for the current session.
func (b *Backend) Counts() (descriptors, activations, deactivations, destructions, ticks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.descriptors), len(b.activations), len(b.deactivations), len(b.destructions), len(b.tickStats)
}
