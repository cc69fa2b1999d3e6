package nosync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	set := Default()

	assert.True(t, set.IsNoSync(NoSyncComponentID))
	assert.True(t, set.IsNoSync(2092194694))
	assert.False(t, set.IsNoSync(1))
	assert.Equal(t, 1, set.Len())
}

func TestSet_Add(t *testing.T) {
	set := NewSet()
	assert.False(t, set.IsNoSync(1000))

	set.Add(1000, 1001)

	assert.True(t, set.IsNoSync(1000))
	assert.True(t, set.IsNoSync(1001))
	assert.False(t, set.IsNoSync(NoSyncComponentID))
	assert.Equal(t, 2, set.Len())

	assert.True(t, set.Contains(1000))
	assert.False(t, set.Contains(NoSyncComponentID))
}

func TestFunc(t *testing.T) {
	var registry Registry = Func(func(id uint32) bool { return id%2 == 0 })

	assert.True(t, registry.IsNoSync(2))
	assert.False(t, registry.IsNoSync(3))
}
