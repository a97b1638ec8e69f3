// Package memory хранилища в памяти процесса (тесты и storage.type=memory)
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/models"
)

// ListingStore реализация storage.ListingStore в памяти
type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]time.Time
	saves    int
}

// NewListingStore создает пустой кэш листингов
func NewListingStore() *ListingStore {
	return &ListingStore{}
}

func (s *ListingStore) LoadListings(_ context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listings == nil {
		return nil, storage.ErrNotFound
	}
	return copyListings(s.listings), nil
}

func (s *ListingStore) SaveListings(_ context.Context, listings map[string]time.Time) error {
	if listings == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings = copyListings(listings)
	s.saves++
	return nil
}

// Saves количество вызовов SaveListings
func (s *ListingStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// PoolStore реализация storage.PoolStore в памяти
type PoolStore struct {
	mu        sync.RWMutex
	exercises []models.Exercise
	saved     bool
}

// NewPoolStore создает пустое хранилище пула
func NewPoolStore() *PoolStore {
	return &PoolStore{}
}

func (s *PoolStore) LoadPool(_ context.Context) ([]models.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return nil, storage.ErrNotFound
	}
	return append([]models.Exercise(nil), s.exercises...), nil
}

func (s *PoolStore) SavePool(_ context.Context, exercises []models.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exercises = append([]models.Exercise(nil), exercises...)
	s.saved = true
	return nil
}

type userState struct {
	model []byte
	stats *models.UserStats
}

// UserStore реализация storage.UserStore в памяти
type UserStore struct {
	mu     sync.RWMutex
	users  map[string]userState
	writes int
}

// NewUserStore создает пустое хранилище пользователей
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]userState)}
}

func (s *UserStore) LoadModel(_ context.Context, userID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.users[userID]
	if !ok || st.model == nil {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), st.model...), nil
}

func (s *UserStore) LoadStats(_ context.Context, userID string) (*models.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.users[userID]
	if !ok || st.stats == nil {
		return nil, storage.ErrNotFound
	}
	return st.stats.Clone(), nil
}

func (s *UserStore) SaveUserState(_ context.Context, userID string, model []byte, stats *models.UserStats) error {
	if userID == "" || model == nil || stats == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[userID] = userState{
		model: append([]byte(nil), model...),
		stats: stats.Clone(),
	}
	s.writes++
	return nil
}

// Writes количество успешных SaveUserState
func (s *UserStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func copyListings(src map[string]time.Time) map[string]time.Time {
	dst := make(map[string]time.Time, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ArchivedAnswer ответ, записанный в Archive
type ArchivedAnswer struct {
	UserID     string
	ExerciseID string
	Choice     models.Trend
	Match      bool
}

// Archive реализация storage.CandleArchive в памяти
type Archive struct {
	mu        sync.Mutex
	exercises []models.Exercise
	answers   []ArchivedAnswer
}

func NewArchive() *Archive {
	return &Archive{}
}

func (a *Archive) ArchiveExercise(_ context.Context, exercise models.Exercise) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exercises = append(a.exercises, exercise)
	return nil
}

func (a *Archive) RecordAnswer(_ context.Context, userID string, exercise models.Exercise, choice models.Trend, match bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = append(a.answers, ArchivedAnswer{
		UserID:     userID,
		ExerciseID: exercise.ID,
		Choice:     choice,
		Match:      match,
	})
	return nil
}

func (a *Archive) Close() {}

func (a *Archive) Exercises() []models.Exercise {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Exercise(nil), a.exercises...)
}

func (a *Archive) Answers() []ArchivedAnswer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ArchivedAnswer(nil), a.answers...)
}
