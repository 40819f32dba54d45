package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) Cache {
	t.Helper()
	c := NewCache(time.Minute, time.Minute)
	c.Flush()
	return c
}

func TestIncrementInt(t *testing.T) {
	c := testCache(t)

	v, err := c.IncrementInt("counter", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = c.IncrementInt("counter", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = c.IncrementInt("counter", 5)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestIncrementIntConcurrent(t *testing.T) {
	c := testCache(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.IncrementInt("shared", 1)
		}()
	}
	wg.Wait()

	v, found := c.Get("shared")
	require.True(t, found)
	assert.Equal(t, 50, v.(int))
}

func TestSetIfAbsent(t *testing.T) {
	c := testCache(t)

	assert.True(t, c.SetIfAbsent("claim", "owner-1", time.Minute))
	assert.False(t, c.SetIfAbsent("claim", "owner-2", time.Minute), "second claim must lose")

	v, found := c.Get("claim")
	require.True(t, found)
	assert.Equal(t, "owner-1", v)

	c.Delete("claim")
	assert.True(t, c.SetIfAbsent("claim", "owner-2", time.Minute), "deleting frees the claim")
}

func TestGetFromCache(t *testing.T) {
	c := testCache(t)
	c.Set("typed", 42, time.Minute)

	v, found := GetFromCache[int]("typed")
	require.True(t, found)
	assert.Equal(t, 42, v)

	_, found = GetFromCache[string]("typed")
	assert.False(t, found, "type mismatch reads as a miss")

	_, found = GetFromCache[int]("absent")
	assert.False(t, found)
}
