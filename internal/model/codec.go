package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrInvalidModel сохраненная модель повреждена или несовместима
var ErrInvalidModel = errors.New("некорректная модель")

// NetworkCodec создает Network и хранит веса в JSON
type NetworkCodec struct {
	Points       int
	Hidden       int
	LearningRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewNetworkCodec seed == 0 означает случайную инициализацию от времени
func NewNetworkCodec(points, hidden int, learningRate float64, seed int64) *NetworkCodec {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &NetworkCodec{
		Points:       points,
		Hidden:       hidden,
		LearningRate: learningRate,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (c *NetworkCodec) New() Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewNetwork(c.Points, c.Hidden, c.LearningRate, c.rng)
}

func (c *NetworkCodec) Decode(data []byte) (Model, error) {
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if !n.validShape() {
		return nil, fmt.Errorf("%w: неверные размерности", ErrInvalidModel)
	}
	if n.Points != c.Points {
		return nil, fmt.Errorf("%w: points=%d, ожидалось %d", ErrInvalidModel, n.Points, c.Points)
	}
	return &n, nil
}

func (c *NetworkCodec) Encode(m Model) ([]byte, error) {
	n, ok := m.(*Network)
	if !ok {
		return nil, fmt.Errorf("%w: неизвестный тип %T", ErrInvalidModel, m)
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации модели: %w", err)
	}
	return data, nil
}
