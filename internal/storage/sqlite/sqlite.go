// Package sqlitestorage records into SQLite through the gorm backend and
// snapshots the database to a per-session file, periodically and when
// the session ends.
package sqlitestorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/database"
	"github.com/Softhook/elite-sub000/internal/logging"
	gormstorage "github.com/Softhook/elite-sub000/internal/storage/gorm"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Backend struct {
	*gormstorage.Backend
	db   *gorm.DB
	cfg  config.SQLiteConfig
	log  *logging.SlogManager
	zlog zerolog.Logger

	stop context.CancelFunc
	wg   sync.WaitGroup

	mu           sync.Mutex
	snapshotPath string
}

// New opens the database at path, or the shared in-memory one when path
// is empty, and wraps it in a gorm backend.
func New(cfg config.SQLiteConfig, path string, logManager *logging.SlogManager, log zerolog.Logger) (*Backend, error) {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	db, err := database.OpenSQLite(path, log)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:         db,
			LogManager: logManager,
			Logger:     log,
		}),
		db:   db,
		cfg:  cfg,
		log:  logManager,
		zlog: log.With().Str("backend", "sqlite").Logger(),
		stop: func() {},
	}, nil
}

// Init migrates the schema and, with a DumpInterval, starts periodic
// snapshots.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpInterval <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.snapshotLoop(ctx, b.cfg.DumpInterval)
	}()
	return nil
}

func (b *Backend) Close() error {
	b.stop()
	b.wg.Wait()
	return b.Backend.Close()
}

// StartSession stores the session and names its snapshot file after the
// session name and start time.
func (b *Backend) StartSession(s *core.Session, f *core.FieldInfo) error {
	if err := b.Backend.StartSession(s, f); err != nil {
		return err
	}
	if b.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	b.mu.Lock()
	b.snapshotPath = filepath.Join(b.cfg.OutputDir, snapshotName(s))
	b.mu.Unlock()
	return nil
}

// EndSession writes out queued records, then the final snapshot.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.snapshot()
}

// ExportedFilePath is the session's snapshot file, empty without an
// OutputDir.
func (b *Backend) ExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotPath
}

func (b *Backend) snapshot() error {
	path := b.ExportedFilePath()
	if path == "" {
		return nil
	}
	return database.Snapshot(b.db, path, b.zlog)
}

// snapshotLoop writes a snapshot every interval until ctx ends. VACUUM
// INTO reads a consistent view, so writers are not paused.
func (b *Backend) snapshotLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.ExportedFilePath() == "" {
				continue
			}
			start := time.Now()
			if err := b.snapshot(); err != nil {
				b.log.WriteLog("sqlite:snapshotLoop", fmt.Sprintf("Snapshot failed: %v", err), "ERROR")
				continue
			}
			b.log.WriteLog("sqlite:snapshotLoop", fmt.Sprintf("Snapshot written in %s", time.Since(start)), "DEBUG")
		}
	}
}

var fileNameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

func snapshotName(s *core.Session) string {
	return fmt.Sprintf("%s_%s.db", sanitize(s.Name), s.StartTime.Format("20060102_150405"))
}

// sanitize makes a session name safe for use in a file name.
func sanitize(name string) string {
	if name == "" {
		return "session"
	}
	return fileNameReplacer.Replace(name)
}
