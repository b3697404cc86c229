// Package gormstorage implements the storage.Backend interface on top of GORM
// with internal queues and a background DB writer goroutine. The postgres and
// sqlite backends embed it and only supply the connection.
package gormstorage

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Softhook/elite-sub000/internal/database"
	"github.com/Softhook/elite-sub000/internal/logging"
	"github.com/Softhook/elite-sub000/internal/model"
	"github.com/Softhook/elite-sub000/internal/model/convert"
	"github.com/Softhook/elite-sub000/internal/queue"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued records are written when
// Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// maxBatch bounds the records written per transaction and insertBatch
// the rows per INSERT statement, keeping SQLite under its bind limit.
const (
	maxBatch    = 5000
	insertBatch = 1000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as-is when set; otherwise Open is called by Init.
	DB   *gorm.DB
	Open func() (*gorm.DB, error)

	LogManager    *logging.SlogManager
	Logger        zerolog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Descriptors   *queue.Queue[model.Descriptor]
	Activations   *queue.Queue[model.Activation]
	Deactivations *queue.Queue[model.Deactivation]
	Destructions  *queue.Queue[model.Destruction]
	TickStats     *queue.Queue[model.TickStat]
}

func newQueues() *queues {
	return &queues{
		Descriptors:   queue.New[model.Descriptor](),
		Activations:   queue.New[model.Activation](),
		Deactivations: queue.New[model.Deactivation](),
		Destructions:  queue.New[model.Destruction](),
		TickStats:     queue.New[model.TickStat](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	lastWrite atomic.Int64

	// flushMu serialises the writer goroutine and explicit flushes.
	flushMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps: deps,
	}
}

// DB returns the connection in use, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// Without a DB or an Open func the backend runs queue-only.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil && b.deps.Open != nil {
		db, err := b.deps.Open()
		if err != nil {
			close(b.done)
			return fmt.Errorf("failed to open database: %w", err)
		}
		b.deps.DB = db
	}

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	if err := database.Migrate(b.deps.DB, b.deps.Logger); err != nil {
		close(b.done)
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
		if b.queues != nil {
			b.deps.Logger.Debug().
				Int("descriptors", b.queues.Descriptors.Peak()).
				Int("activations", b.queues.Activations.Peak()).
				Int("deactivations", b.queues.Deactivations.Peak()).
				Int("destructions", b.queues.Destructions.Peak()).
				Int("tickStats", b.queues.TickStats.Peak()).
				Int("unwritten", b.Pending()).
				Msg("Storage queues closed")
		}
	})
	return nil
}

// StartSession inserts the session together with its field and remembers
// the session ID for the DB writer.
func (b *Backend) StartSession(s *core.Session, f *core.FieldInfo) error {
	if b.deps.DB == nil {
		return nil
	}

	gormSession := convert.CoreToSession(*s, *f)
	if err := b.deps.DB.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	// Assign DB-generated IDs back to core types
	s.ID = gormSession.ID
	f.ID = gormSession.Field.ID

	b.sessionID.Store(uint64(gormSession.ID))
	b.deps.LogManager.WriteLog("StartSession", fmt.Sprintf("Session %s stored with id %d", s.UUID, s.ID), "INFO")
	return nil
}

// SetSessionID sets the current session ID for the DB writer.
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// SessionID returns the ID of the current session, 0 before StartSession.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// EndSession writes everything still queued and stamps the end time.
func (b *Backend) EndSession() error {
	if b.deps.DB == nil {
		return nil
	}

	b.Flush()

	id := b.sessionID.Load()
	if id == 0 {
		return nil
	}
	end := sql.NullTime{Time: time.Now(), Valid: true}
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", end).Error; err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	return nil
}

// AddDescriptors converts and queues the session's descriptors.
func (b *Backend) AddDescriptors(ds []core.DescriptorInfo) error {
	items := make([]model.Descriptor, len(ds))
	for i, d := range ds {
		items[i] = convert.CoreToDescriptor(d)
	}
	b.queues.Descriptors.Push(items...)
	return nil
}

// RecordActivation converts and queues an activation.
func (b *Backend) RecordActivation(a *core.Activation) error {
	b.queues.Activations.Push(convert.CoreToActivation(*a))
	return nil
}

// RecordDeactivation converts and queues a deactivation.
func (b *Backend) RecordDeactivation(d *core.Deactivation) error {
	b.queues.Deactivations.Push(convert.CoreToDeactivation(*d))
	return nil
}

// RecordDestruction converts and queues a destruction.
func (b *Backend) RecordDestruction(d *core.Destruction) error {
	b.queues.Destructions.Push(convert.CoreToDestruction(*d))
	return nil
}

// RecordTickStats converts and queues a tick summary.
func (b *Backend) RecordTickStats(s *core.TickStats) error {
	b.queues.TickStats.Push(convert.CoreToTickStat(*s))
	return nil
}

// LastWriteDuration returns how long the last non-empty flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Pending returns the number of records waiting for the writer.
func (b *Backend) Pending() int {
	if b.queues == nil {
		return 0
	}
	return b.queues.Descriptors.Len() +
		b.queues.Activations.Len() +
		b.queues.Deactivations.Len() +
		b.queues.Destructions.Len() +
		b.queues.TickStats.Len()
}

// writeQueue drains q into the database in transactions of at most
// maxBatch records. A failed batch goes back to the front of the queue
// for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) int {
	written := 0
	for {
		items := q.Take(maxBatch)
		if len(items) == 0 {
			return written
		}
		if prepare != nil {
			prepare(items)
		}

		tx := db.Begin()
		if err := tx.CreateInBatches(&items, insertBatch).Error; err != nil {
			log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
			tx.Rollback()
			q.Requeue(items...)
			return written
		}
		if err := tx.Commit().Error; err != nil {
			log(":DB:WRITER:", fmt.Sprintf("Error committing %s: %v", name, err), "ERROR")
			q.Requeue(items...)
			return written
		}
		written += len(items)
	}
}

// stamp sets the session foreign key on every queued record.
func stamp[T any](sessionID uint, set func(*T, uint)) func([]T) {
	return func(items []T) {
		for i := range items {
			set(&items[i], sessionID)
		}
	}
}

// Flush drains every queue into the database.
func (b *Backend) Flush() {
	if b.deps.DB == nil || b.queues == nil {
		return
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	db := b.deps.DB
	log := b.deps.LogManager.WriteLog
	// Read sessionID once per write cycle
	sessionID := uint(b.sessionID.Load())

	start := time.Now()
	written := writeQueue(db, b.queues.Descriptors, "descriptors", log, stamp(sessionID, func(d *model.Descriptor, id uint) { d.SessionID = id }))
	written += writeQueue(db, b.queues.Activations, "activations", log, stamp(sessionID, func(a *model.Activation, id uint) { a.SessionID = id }))
	written += writeQueue(db, b.queues.Deactivations, "deactivations", log, stamp(sessionID, func(d *model.Deactivation, id uint) { d.SessionID = id }))
	written += writeQueue(db, b.queues.Destructions, "destructions", log, stamp(sessionID, func(d *model.Destruction, id uint) { d.SessionID = id }))
	written += writeQueue(db, b.queues.TickStats, "tick stats", log, stamp(sessionID, func(s *model.TickStat, id uint) { s.SessionID = id }))

	if written > 0 {
		elapsed := time.Since(start)
		b.lastWrite.Store(int64(elapsed))
		b.deps.Logger.Debug().Int("records", written).Dur("duration", elapsed).Msg("Flushed queues")
	}
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
