// Package database opens the gorm connections behind the SQL storage
// backends and owns the schema migration.
package database

import (
	"fmt"
	"os"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the shared-cache in-memory SQLite database that is
// snapshotted to disk.
const MemoryDSN = "file::memory:?cache=shared"

const (
	postgresBatch    = 10000
	postgresMaxConns = 10
	sqliteBatch      = 2000
)

// The stream writes small rows at a high rate and a lost in-memory
// database is recovered from the last snapshot, so durability is traded
// for throughput.
var sqlitePragmas = []string{
	"PRAGMA user_version = 1",
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -32000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA page_size = 32768",
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// PostgresDSN builds the key/value connection string for cfg.
func PostgresDSN(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

// OpenPostgres connects and pings the server.
func OpenPostgres(cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error) {
	log.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres")

	dialector := postgres.New(postgres.Config{DSN: PostgresDSN(cfg), PreferSimpleProtocol: true})
	db, err := gorm.Open(dialector, gormConfig(postgresBatch, false))
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	sqlDB.SetMaxOpenConns(postgresMaxConns)

	log.Info().Str("database", cfg.Database).Msg("Connected to Postgres")
	return db, nil
}

// OpenSQLite opens the database file at path, or the shared in-memory
// database when path is empty.
func OpenSQLite(path string, log zerolog.Logger) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(sqliteBatch, true))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	log.Info().Str("dsn", dsn).Msg("Opened SQLite")
	return db, nil
}

// Migrate creates or updates the tables for model.DatabaseModels.
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	start := time.Now()
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrating %s schema: %w", db.Dialector.Name(), err)
	}
	log.Info().Str("dialect", db.Dialector.Name()).Dur("took", time.Since(start)).Msg("Schema migrated")
	return nil
}

// Snapshot writes a consistent copy of db to path. The copy is built in a
// sibling file and renamed over path, so readers never see a partial one.
func Snapshot(db *gorm.DB, path string, log zerolog.Logger) error {
	if path == "" {
		return fmt.Errorf("snapshot path not set")
	}

	tmp := path + ".tmp"
	// VACUUM INTO refuses an existing target
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale snapshot: %w", err)
	}

	start := time.Now()
	if err := db.Exec("VACUUM INTO ?", tmp).Error; err != nil {
		return fmt.Errorf("vacuum into %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	log.Debug().Str("path", path).Dur("took", time.Since(start)).Msg("Snapshot written")
	return nil
}
