// Package redisstore состояние пользователей и кэш листингов в Redis
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/models"
)

// Store хранилище поверх одного клиента Redis
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore подключается к Redis и проверяет соединение
func NewStore(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", addr, err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) modelKey(userID string) string {
	return s.prefix + "user:" + userID + ":model"
}

func (s *Store) statsKey(userID string) string {
	return s.prefix + "user:" + userID + ":stats"
}

func (s *Store) listingsKey() string {
	return s.prefix + "listings"
}

func (s *Store) LoadModel(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.modelKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения модели %s: %w", userID, err)
	}
	return data, nil
}

func (s *Store) LoadStats(ctx context.Context, userID string) (*models.UserStats, error) {
	data, err := s.client.Get(ctx, s.statsKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения статистики %s: %w", userID, err)
	}

	var stats models.UserStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("ошибка разбора статистики %s: %w", userID, err)
	}
	return &stats, nil
}

// SaveUserState записывает модель и статистику в одной транзакции MULTI/EXEC
func (s *Store) SaveUserState(ctx context.Context, userID string, model []byte, stats *models.UserStats) error {
	if userID == "" || model == nil || stats == nil {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.modelKey(userID), model, 0)
		pipe.Set(ctx, s.statsKey(userID), data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения состояния %s: %w", userID, err)
	}
	return nil
}

// LoadListings читает хэш symbol -> unix ms
func (s *Store) LoadListings(ctx context.Context) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.listingsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листингов: %w", err)
	}
	if len(raw) == 0 {
		return nil, storage.ErrNotFound
	}

	listings := make(map[string]time.Time, len(raw))
	for symbol, v := range raw {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректная дата листинга %s: %w", symbol, err)
		}
		listings[symbol] = time.UnixMilli(ms).UTC()
	}
	return listings, nil
}

// SaveListings заменяет хэш целиком
func (s *Store) SaveListings(ctx context.Context, listings map[string]time.Time) error {
	if listings == nil {
		return storage.ErrInvalidInput
	}

	values := make(map[string]interface{}, len(listings))
	for symbol, ts := range listings {
		values[symbol] = strconv.FormatInt(ts.UnixMilli(), 10)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.listingsKey())
		if len(values) > 0 {
			pipe.HSet(ctx, s.listingsKey(), values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения листингов: %w", err)
	}
	return nil
}
