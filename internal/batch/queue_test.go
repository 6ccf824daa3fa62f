package batch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestQueue_PushDrain(t *testing.T) {
	q := NewQueue[int](10)

	for i := 0; i < 5; i++ {
		require.True(t, q.Push(i), "Push(%d)", i)
	}
	assert.Equal(t, 5, q.Len())

	assert.Equal(t, sequence(5), q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := NewQueue[int](10)

	assert.Nil(t, q.Drain())
}

func TestQueue_GrowAt70Percent(t *testing.T) {
	q := NewQueue[int](10)

	// Push 7 items (70% of 10)
	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	stats := q.Stats()
	assert.Greater(t, stats.Capacity, 10, "expected growth after 70%% fill")
	assert.Equal(t, 1, stats.ResizeCount)
	assert.Equal(t, sequence(7), q.Drain())
}

func TestQueue_MultipleGrows(t *testing.T) {
	q := NewQueue[int](4)

	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i), "Push(%d)", i)
	}

	stats := q.Stats()
	assert.Equal(t, 100, stats.Count)
	assert.GreaterOrEqual(t, stats.ResizeCount, 3)
	assert.Equal(t, sequence(100), q.Drain())
}

func TestQueue_ShrinksAfterBurst(t *testing.T) {
	q := NewQueue[int](4)

	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	require.Greater(t, q.Cap(), 16, "expected growth during burst")

	q.Drain()
	assert.Equal(t, 4, q.Cap(), "capacity returns to the initial size")

	// Still usable after shrinking.
	q.Push(7)
	assert.Equal(t, []int{7}, q.Drain())
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](10)

	q.Push(1)
	q.Push(2)
	q.Close()

	assert.False(t, q.Push(3), "Push after Close")

	// Can still drain existing items
	assert.Equal(t, []int{1, 2}, q.Drain())
	assert.True(t, q.Stats().Closed)
}

func TestQueue_ConcurrentPushDrain(t *testing.T) {
	q := NewQueue[int](10)
	const producers = 4
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}

	seen := make(map[int]bool)
	stop := make(chan struct{})
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for {
			for _, v := range q.Drain() {
				seen[v] = true
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-drained

	// Pick up anything pushed after the last concurrent drain.
	for _, v := range q.Drain() {
		seen[v] = true
	}

	assert.Len(t, seen, producers*perProducer)
}

func TestQueue_Stats(t *testing.T) {
	q := NewQueue[int](10)

	assert.Equal(t, QueueStats{Capacity: 10}, q.Stats())

	q.Push(1)
	q.Push(2)
	q.Push(3)

	stats := q.Stats()
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, int64(3), stats.TotalPushed)

	q.Drain()

	stats = q.Stats()
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, int64(3), stats.TotalDrained)
}

func TestNewQueue_MinCapacity(t *testing.T) {
	assert.Equal(t, 1, NewQueue[int](0).Cap())
	assert.Equal(t, 1, NewQueue[int](-5).Cap())
}
