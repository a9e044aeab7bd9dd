package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDB(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// CREATE TABLE IF NOT EXISTS must be idempotent
	db, err = NewDB(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()
}

func TestNewDB_InvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewDB(filepath.Join(file, "sub", "db.sqlite"), nil)
	assert.Error(t, err)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ctx := context.Background()

	_, err = db.GetBooking(ctx, "b1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = db.GetUsersByRole(ctx, "admin")
	assert.Error(t, err)

	err = db.IncrementEngineMetric(ctx, "ABE", true, testNow())
	assert.Error(t, err)
}

func testNow() time.Time {
	return time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
}
