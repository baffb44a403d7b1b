package db

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteAndInitializeSchema(t *testing.T) {
	ctx := context.Background()
	pool, err := Connect(ctx, config.StatsBackendSQLite, ":memory:")
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, InitializeSchema(ctx, pool))
	// Running it twice must be harmless.
	require.NoError(t, InitializeSchema(ctx, pool))

	var count int
	require.NoError(t, pool.GetContext(ctx, &count, `SELECT COUNT(*) FROM game_stats`))
	assert.Equal(t, 0, count)
}

func TestConnect_UnknownBackend(t *testing.T) {
	_, err := Connect(context.Background(), config.StatsBackendRedis, "")
	assert.Error(t, err)
}
