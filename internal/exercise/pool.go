package exercise

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/skalibog/trendgym/pkg/models"
)

var (
	ErrEmptyPool       = errors.New("пул упражнений пуст")
	ErrUnknownExercise = errors.New("упражнение не найдено в пуле")
)

// Pool неизменяемый упорядоченный набор упражнений.
// Индекс стабилен на время жизни пула, ID стабилен между перезапусками.
type Pool struct {
	exercises []models.Exercise
	byID      map[string]int
}

// NewPool строит пул и таблицу ID -> индекс
func NewPool(exercises []models.Exercise) (*Pool, error) {
	p := &Pool{
		exercises: append([]models.Exercise(nil), exercises...),
		byID:      make(map[string]int, len(exercises)),
	}
	for i, ex := range p.exercises {
		if ex.ID == "" {
			return nil, fmt.Errorf("упражнение %d без идентификатора", i)
		}
		if _, dup := p.byID[ex.ID]; dup {
			return nil, fmt.Errorf("повторяющийся идентификатор упражнения %s", ex.ID)
		}
		p.byID[ex.ID] = i
	}
	return p, nil
}

func (p *Pool) Len() int {
	return len(p.exercises)
}

// At возвращает упражнение по индексу
func (p *Pool) At(index int) (models.Exercise, error) {
	if index < 0 || index >= len(p.exercises) {
		return models.Exercise{}, fmt.Errorf("индекс %d: %w", index, ErrUnknownExercise)
	}
	return p.exercises[index], nil
}

// ByID возвращает упражнение и его индекс
func (p *Pool) ByID(id string) (models.Exercise, int, error) {
	index, ok := p.byID[id]
	if !ok {
		return models.Exercise{}, 0, fmt.Errorf("id %s: %w", id, ErrUnknownExercise)
	}
	return p.exercises[index], index, nil
}

func (p *Pool) IndexOf(id string) (int, bool) {
	index, ok := p.byID[id]
	return index, ok
}

// Random случайное упражнение и его индекс
func (p *Pool) Random(rng *rand.Rand) (models.Exercise, int, error) {
	if len(p.exercises) == 0 {
		return models.Exercise{}, 0, ErrEmptyPool
	}
	index := rng.Intn(len(p.exercises))
	return p.exercises[index], index, nil
}

// Exercises копия упражнений в порядке пула
func (p *Pool) Exercises() []models.Exercise {
	return append([]models.Exercise(nil), p.exercises...)
}
