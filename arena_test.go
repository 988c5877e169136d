package hpgp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocAlignment(t *testing.T) {
	a := NewArena(make([]byte, 256))

	b1, err := a.Alloc(1)
	require.NoError(t, err)
	require.Len(t, b1, 1)

	usageAfterB1 := a.Usage()
	b2, err := a.Alloc(8)
	require.NoError(t, err)
	require.Len(t, b2, 8)

	// b2 must start at an address aligned to the pointer width, so the
	// allocator must have padded past b1's single byte.
	start := usageAfterB1 + (int(alignment) - usageAfterB1%int(alignment))
	assert.Equal(t, start+8, a.Usage())
}

func TestArenaExhaustion(t *testing.T) {
	a := NewArena(make([]byte, 16))

	_, err := a.Alloc(16)
	require.NoError(t, err)

	_, err = a.Alloc(1)
	assert.ErrorIs(t, err, ErrNoMemory)
}

func TestArenaNegativeSize(t *testing.T) {
	a := NewArena(make([]byte, 16))
	_, err := a.Alloc(-1)
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestArenaUsageAndCapacity(t *testing.T) {
	a := NewArena(make([]byte, 64))
	assert.Equal(t, 64, a.Capacity())
	assert.Equal(t, 0, a.Usage())

	_, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Equal(t, 10, a.Usage())
	assert.Equal(t, 54, a.Remaining())
}

func TestArenaCurrentGlobal(t *testing.T) {
	a := NewArena(make([]byte, 16))
	SetCurrent(a)
	assert.Same(t, a, Current())

	ClearCurrent(a)
	assert.Nil(t, Current())
}

func TestArenaClearCurrentIgnoresMismatch(t *testing.T) {
	a1 := NewArena(make([]byte, 16))
	a2 := NewArena(make([]byte, 16))
	SetCurrent(a1)
	ClearCurrent(a2) // not current; must not clear a1
	assert.Same(t, a1, Current())
	ClearCurrent(a1)
}

func TestArenaConcurrentAlloc(t *testing.T) {
	a := NewArena(make([]byte, 8*1024))
	const n = 64
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := a.Alloc(32)
			done <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}
	assert.LessOrEqual(t, a.Usage(), a.Capacity())
}
