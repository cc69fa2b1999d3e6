package crdt

import (
	"math"
	"sync"

	"github.com/iudanet/scenesync/internal/models"
)

// Clock представляет логические часы для пар (entity, component).
// Каждая пара имеет свой монотонный счетчик: локальная сцена использует Tick
// при создании нового сообщения и Observe при получении чужого.
type Clock struct {
	counters map[models.Key]int32
	mu       sync.Mutex
}

// NewClock создает пустые логические часы.
func NewClock() *Clock {
	return &Clock{counters: make(map[models.Key]int32)}
}

// Tick увеличивает счетчик пары и возвращает новое значение.
// Счетчик насыщается на math.MaxInt32.
func (c *Clock) Tick(key models.Key) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counters[key] < math.MaxInt32 {
		c.counters[key]++
	}
	return c.counters[key]
}

// Observe учитывает удаленный timestamp: counter = max(counter, remote).
// Следующий Tick вернет значение строго больше remote.
func (c *Clock) Observe(key models.Key, remote int32) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.counters[key] {
		c.counters[key] = remote
	}
	return c.counters[key]
}

// Timestamp возвращает текущее значение счетчика пары без изменения.
func (c *Clock) Timestamp(key models.Key) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counters[key]
}

// Reset забывает все счетчики.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters = make(map[models.Key]int32)
}
