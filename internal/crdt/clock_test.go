package crdt

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/models"
)

func TestNewClock(t *testing.T) {
	clock := NewClock()

	require.NotNil(t, clock)
	assert.Equal(t, int32(0), clock.Timestamp(models.Key{EntityID: 1, ComponentID: 1}))
}

func TestClock_Tick(t *testing.T) {
	clock := NewClock()
	key := models.Key{EntityID: 1, ComponentID: 10}

	tests := []struct {
		name          string
		expectedValue int32
	}{
		{"First tick", 1},
		{"Second tick", 2},
		{"Third tick", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedValue, clock.Tick(key))
			assert.Equal(t, tt.expectedValue, clock.Timestamp(key))
		})
	}

	// Другие пары независимы
	assert.Equal(t, int32(1), clock.Tick(models.Key{EntityID: 2, ComponentID: 10}))
}

func TestClock_Observe(t *testing.T) {
	tests := []struct {
		name     string
		initial  int32
		remote   int32
		expected int32
	}{
		{"Remote greater", 3, 10, 10},
		{"Remote smaller", 10, 3, 10},
		{"Remote equal", 5, 5, 5},
		{"Remote negative", 0, -4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock()
			key := models.Key{EntityID: 1, ComponentID: 1}
			for i := int32(0); i < tt.initial; i++ {
				clock.Tick(key)
			}

			assert.Equal(t, tt.expected, clock.Observe(key, tt.remote))
			assert.Greater(t, clock.Tick(key), tt.remote)
		})
	}
}

func TestClock_TickSaturates(t *testing.T) {
	clock := NewClock()
	key := models.Key{EntityID: 1, ComponentID: 1}

	clock.Observe(key, math.MaxInt32)
	assert.Equal(t, int32(math.MaxInt32), clock.Tick(key))
}

func TestClock_Reset(t *testing.T) {
	clock := NewClock()
	key := models.Key{EntityID: 1, ComponentID: 1}
	clock.Tick(key)

	clock.Reset()
	assert.Equal(t, int32(0), clock.Timestamp(key))
}

func TestClock_Concurrent(t *testing.T) {
	clock := NewClock()
	key := models.Key{EntityID: 1, ComponentID: 1}

	var wg sync.WaitGroup
	const goroutines = 50
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Tick(key)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(goroutines), clock.Timestamp(key))
}
