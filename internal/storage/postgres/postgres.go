// Package postgres implements the storage.Backend interface on a PostgreSQL
// server. All recording logic lives in the embedded GORM backend; this
// package only owns the connection settings.
package postgres

import (
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/database"
	"github.com/Softhook/elite-sub000/internal/logging"
	gormstorage "github.com/Softhook/elite-sub000/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// Backend connects to Postgres at Init and writes through the GORM backend.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
}

// New creates a Postgres backend. No connection is made until Init.
func New(cfg config.DBConfig, logManager *logging.SlogManager, log zerolog.Logger, flushInterval time.Duration) *Backend {
	b := &Backend{cfg: cfg}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		Open: func() (*gorm.DB, error) {
			return database.OpenPostgres(cfg, log)
		},
		LogManager:    logManager,
		Logger:        log,
		FlushInterval: flushInterval,
	})
	return b
}

// DSN returns the connection string used by Init.
func (b *Backend) DSN() string {
	return database.PostgresDSN(b.cfg)
}
