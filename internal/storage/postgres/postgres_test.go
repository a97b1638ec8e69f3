package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/models"
)

// setupTestDB поднимает PostgreSQL в контейнере и применяет схему
func setupTestDB(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("интеграционный тест")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("trendgym"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("не удалось остановить контейнер: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Migrate(ctx))
	require.NoError(t, pool.Migrate(ctx), "схема применяется повторно")
	return pool
}

func exercise(id string, trend models.Trend) models.Exercise {
	start := time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)
	return models.Exercise{
		ID:       id,
		Symbol:   "BTCUSDT",
		Interval: "15m",
		Start:    start,
		Trend:    trend,
		Candles: models.Candles{{
			Symbol:   "BTCUSDT",
			Interval: "15m",
			OpenTime: start,
			Open:     1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
			CloseTime: start.Add(15*time.Minute - time.Millisecond),
		}},
	}
}

func TestStore_Pool(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	_, err := store.LoadPool(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pool := []models.Exercise{
		exercise("c", models.TrendDown),
		exercise("a", models.TrendUp),
		exercise("b", models.TrendRange),
	}
	require.NoError(t, store.SavePool(ctx, pool))

	got, err := store.LoadPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, pool, got, "порядок пула сохраняется")

	require.NoError(t, store.SavePool(ctx, pool[:1]))
	got, err = store.LoadPool(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_SavePoolRollsBack(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	original := []models.Exercise{exercise("a", models.TrendUp)}
	require.NoError(t, store.SavePool(ctx, original))

	duplicate := []models.Exercise{exercise("x", models.TrendUp), exercise("x", models.TrendDown)}
	require.Error(t, store.SavePool(ctx, duplicate))

	got, err := store.LoadPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestStore_Listings(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	_, err := store.LoadListings(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	listings := map[string]time.Time{
		"BTCUSDT": time.Date(2017, time.August, 17, 0, 0, 0, 0, time.UTC),
		"SOLUSDT": time.Date(2020, time.August, 11, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveListings(ctx, listings))

	got, err := store.LoadListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, listings, got)
}
