//go:build !nodb

package infra

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/config"
)

func newMockDBHandle(t *testing.T) (*dbHandle, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return &dbHandle{pool: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func TestDBHandle_Ping(t *testing.T) {
	h, mock := newMockDBHandle(t)
	defer func() { _ = h.pool.Close() }()

	mock.ExpectPing()
	require.NoError(t, h.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBHandle_Close(t *testing.T) {
	h, mock := newMockDBHandle(t)

	mock.ExpectClose()
	require.NoError(t, h.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBHandle_WarningOnIdlePool(t *testing.T) {
	h, _ := newMockDBHandle(t)
	defer func() { _ = h.pool.Close() }()

	// An idle pool reports nothing.
	h.pool.SetMaxOpenConns(10)
	assert.Empty(t, h.Warning(context.Background()))
}

func TestRegistry_DBAccessor(t *testing.T) {
	h, _ := newMockDBHandle(t)
	defer func() { _ = h.pool.Close() }()

	r := &Registry{handles: map[config.Capability]Handle{config.CapabilityDB: h}}
	pool, ok := r.DB()
	require.True(t, ok)
	assert.Same(t, h.pool, pool)

	empty := &Registry{handles: map[config.Capability]Handle{}}
	_, ok = empty.DB()
	assert.False(t, ok)

	// A foreign handle under the db slot is not surfaced as a pool.
	wrong := &Registry{handles: map[config.Capability]Handle{config.CapabilityDB: opaqueHandle{}}}
	_, ok = wrong.DB()
	assert.False(t, ok)
}
