// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/Softhook/elite-sub000/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session, field *core.FieldInfo) error
	EndSession() error

	// Descriptor registration, once per session after StartSession
	AddDescriptors(descriptors []core.DescriptorInfo) error

	// Stream recording
	RecordActivation(a *core.Activation) error
	RecordDeactivation(d *core.Deactivation) error
	RecordDestruction(d *core.Destruction) error
	RecordTickStats(s *core.TickStats) error
}

// Exportable is an optional interface for storage backends that produce
// a single file per session.
type Exportable interface {
	ExportedFilePath() string
}

// WriteTimer is an optional interface for backends that batch writes in
// the background and can report how long the last batch took.
type WriteTimer interface {
	LastWriteDuration() time.Duration
}
