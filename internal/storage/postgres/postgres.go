// Package postgres пул упражнений и кэш листингов в PostgreSQL
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/models"
)

//go:embed schema.sql
var schema string

// Pool обертка над pgxpool.Pool
type Pool struct {
	*pgxpool.Pool
}

// NewPool создает пул соединений и проверяет подключение
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres недоступен: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate создает таблицы, если их нет
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ошибка применения схемы: %w", err)
	}
	return nil
}

// Store реализует storage.PoolStore и storage.ListingStore
type Store struct {
	pool *Pool
}

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// LoadPool читает упражнения в порядке позиции
func (s *Store) LoadPool(ctx context.Context) ([]models.Exercise, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, candle_interval, start_time, trend, candles
		FROM exercises
		ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пула: %w", err)
	}
	defer rows.Close()

	var exercises []models.Exercise
	for rows.Next() {
		var (
			ex      models.Exercise
			trend   int16
			candles []byte
		)
		if err := rows.Scan(&ex.ID, &ex.Symbol, &ex.Interval, &ex.Start, &trend, &candles); err != nil {
			return nil, fmt.Errorf("ошибка чтения упражнения: %w", err)
		}
		if err := json.Unmarshal(candles, &ex.Candles); err != nil {
			return nil, fmt.Errorf("ошибка разбора свечей %s: %w", ex.ID, err)
		}
		ex.Trend = models.Trend(trend)
		ex.Start = ex.Start.UTC()
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(exercises) == 0 {
		return nil, storage.ErrNotFound
	}
	return exercises, nil
}

// SavePool заменяет пул целиком в одной транзакции
func (s *Store) SavePool(ctx context.Context, exercises []models.Exercise) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exercises`); err != nil {
		return fmt.Errorf("ошибка очистки пула: %w", err)
	}

	batch := &pgx.Batch{}
	for i, ex := range exercises {
		candles, err := json.Marshal(ex.Candles)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO exercises (pos, id, symbol, candle_interval, start_time, trend, candles)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			i, ex.ID, ex.Symbol, ex.Interval, ex.Start, int16(ex.Trend), candles)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ошибка записи пула: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации пула: %w", err)
	}
	return nil
}

func (s *Store) LoadListings(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, listed_at FROM listings`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листингов: %w", err)
	}
	defer rows.Close()

	listings := make(map[string]time.Time)
	for rows.Next() {
		var (
			symbol string
			ts     time.Time
		)
		if err := rows.Scan(&symbol, &ts); err != nil {
			return nil, err
		}
		listings[symbol] = ts.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(listings) == 0 {
		return nil, storage.ErrNotFound
	}
	return listings, nil
}

// SaveListings upsert всех записей одной транзакцией
func (s *Store) SaveListings(ctx context.Context, listings map[string]time.Time) error {
	if listings == nil {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for symbol, ts := range listings {
		batch.Queue(`
			INSERT INTO listings (symbol, listed_at) VALUES ($1, $2)
			ON CONFLICT (symbol) DO UPDATE SET listed_at = EXCLUDED.listed_at`,
			symbol, ts)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ошибка записи листингов: %w", err)
	}

	return tx.Commit(ctx)
}
