// internal/storage/factory.go
package storage

import (
	"fmt"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/logging"
	influxstorage "github.com/Softhook/elite-sub000/internal/storage/influx"
	"github.com/Softhook/elite-sub000/internal/storage/memory"
	"github.com/Softhook/elite-sub000/internal/storage/postgres"
	sqlitestorage "github.com/Softhook/elite-sub000/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Storage type names accepted by NewBackend.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeInflux   = "influx"
)

// Dependencies are shared by every backend NewBackend can build.
type Dependencies struct {
	LogManager    *logging.SlogManager
	Logger        zerolog.Logger
	FlushInterval time.Duration
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case TypePostgres:
		return postgres.New(cfg.Postgres, deps.LogManager, deps.Logger, deps.FlushInterval), nil
	case TypeSQLite:
		return sqlitestorage.New(cfg.SQLite, "", deps.LogManager, deps.Logger)
	case TypeInflux:
		return influxstorage.New(cfg.Influx, deps.Logger), nil
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
