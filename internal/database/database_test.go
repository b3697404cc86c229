package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db.local",
		Port:     "5432",
		Username: "field",
		Password: "secret",
		Database: "debrisfield",
	})
	assert.Equal(t, "host=db.local port=5432 user=field password=secret dbname=debrisfield sslmode=disable", dsn)
}

func TestOpenSQLite_MigrateAndDump(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "live.db"), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, Migrate(db, zerolog.Nop()))
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}

	require.NoError(t, db.Create(&model.Session{UUID: "abc", Name: "dump"}).Error)

	dumpPath := filepath.Join(dir, "dump.db")
	require.NoError(t, Snapshot(db, dumpPath, zerolog.Nop()))
	_, err = os.Stat(dumpPath)
	require.NoError(t, err)

	// a second snapshot replaces the first and leaves no temp file
	require.NoError(t, db.Create(&model.Session{UUID: "def", Name: "again"}).Error)
	require.NoError(t, Snapshot(db, dumpPath, zerolog.Nop()))
	assert.NoFileExists(t, dumpPath+".tmp")

	dumped, err := OpenSQLite(dumpPath, zerolog.Nop())
	require.NoError(t, err)
	var count int64
	require.NoError(t, dumped.Model(&model.Session{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSnapshot_NoPath(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, Snapshot(db, "", zerolog.Nop()))
}

func TestSnapshot_MemoryDB(t *testing.T) {
	db, err := OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db, zerolog.Nop()))

	path := filepath.Join(t.TempDir(), "mem.db")
	require.NoError(t, Snapshot(db, path, zerolog.Nop()))
	assert.FileExists(t, path)
}
