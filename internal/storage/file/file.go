// Package file хранилища в JSON файлах на диске
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/models"
)

const (
	listingsFile = "listings.json"
	poolFile     = "pool.json"
	usersDir     = "users"
)

// Store хранит кэш листингов, пул и состояние пользователей в каталоге
type Store struct {
	dir string
}

// NewStore создает каталоги хранилища
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, usersDir), 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога хранилища: %w", err)
	}
	return &Store{dir: dir}, nil
}

type listingsDoc struct {
	Listings map[string]time.Time `json:"listings"`
}

func (s *Store) LoadListings(_ context.Context) (map[string]time.Time, error) {
	var doc listingsDoc
	if err := s.readJSON(filepath.Join(s.dir, listingsFile), &doc); err != nil {
		return nil, err
	}
	if doc.Listings == nil {
		doc.Listings = make(map[string]time.Time)
	}
	return doc.Listings, nil
}

func (s *Store) SaveListings(_ context.Context, listings map[string]time.Time) error {
	if listings == nil {
		return storage.ErrInvalidInput
	}
	return s.writeJSON(filepath.Join(s.dir, listingsFile), listingsDoc{Listings: listings})
}

type poolDoc struct {
	Exercises []models.Exercise `json:"exercises"`
}

func (s *Store) LoadPool(_ context.Context) ([]models.Exercise, error) {
	var doc poolDoc
	if err := s.readJSON(filepath.Join(s.dir, poolFile), &doc); err != nil {
		return nil, err
	}
	return doc.Exercises, nil
}

func (s *Store) SavePool(_ context.Context, exercises []models.Exercise) error {
	return s.writeJSON(filepath.Join(s.dir, poolFile), poolDoc{Exercises: exercises})
}

// userDoc модель и статистика лежат в одном файле, чтобы запись была атомарной
type userDoc struct {
	UserID string            `json:"user_id"`
	Model  []byte            `json:"model"`
	Stats  *models.UserStats `json:"stats"`
}

func (s *Store) LoadModel(_ context.Context, userID string) ([]byte, error) {
	doc, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	if doc.Model == nil {
		return nil, storage.ErrNotFound
	}
	return doc.Model, nil
}

func (s *Store) LoadStats(_ context.Context, userID string) (*models.UserStats, error) {
	doc, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	if doc.Stats == nil {
		return nil, storage.ErrNotFound
	}
	return doc.Stats, nil
}

func (s *Store) SaveUserState(_ context.Context, userID string, model []byte, stats *models.UserStats) error {
	if userID == "" || model == nil || stats == nil {
		return storage.ErrInvalidInput
	}
	return s.writeJSON(s.userPath(userID), userDoc{UserID: userID, Model: model, Stats: stats})
}

func (s *Store) loadUser(userID string) (*userDoc, error) {
	var doc userDoc
	if err := s.readJSON(s.userPath(userID), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// userPath идентификатор пользователя приходит извне, в имя файла идет только хэш
func (s *Store) userPath(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(s.dir, usersDir, hex.EncodeToString(sum[:])+".json")
}

func (s *Store) readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	return nil
}

// writeJSON пишет во временный файл и переименовывает его поверх целевого
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("ошибка переименования %s: %w", path, err)
	}
	return nil
}
