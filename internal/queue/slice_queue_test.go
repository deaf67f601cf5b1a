package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// drain empties q one item at a time.
func drain[T any](q Queue[T]) []T {
	var out []T
	one := make([]T, 1)
	for q.DequeueInto(one) == 1 {
		out = append(out, one[0])
	}

	return out
}

func TestSliceQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSliceQueue[byte](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.DequeueInto(make([]byte, 4)))
		assert.Equal(0, q.DequeueInto(nil))
	})

	t.Run("Enqueue and DequeueInto", func(t *testing.T) {
		q := NewSliceQueue[byte](4)
		q.Enqueue(1, 2, 3, 4, 5)
		assert.False(q.IsEmpty())

		buf := make([]byte, 3)
		assert.Equal(3, q.DequeueInto(buf))
		assert.Equal([]byte{1, 2, 3}, buf)
		assert.False(q.IsEmpty())

		assert.Equal(2, q.DequeueInto(buf))
		assert.Equal([]byte{4, 5}, buf[:2])
		assert.True(q.IsEmpty())
		assert.Equal(0, q.DequeueInto(buf))
	})

	t.Run("Long-lived FIFO order", func(t *testing.T) {
		q := NewSliceQueue[int](8)
		one := make([]int, 1)
		next := 0
		for i := 0; i < 10000; i++ {
			q.Enqueue(i)
			if i%3 != 0 {
				assert.Equal(1, q.DequeueInto(one))
				assert.Equal(next, one[0])
				next++
			}
		}
		for _, got := range drain(q) {
			assert.Equal(next, got)
			next++
		}
		assert.Equal(10000, next)
		assert.True(q.IsEmpty())
	})

	t.Run("Concurrency", func(t *testing.T) {
		var mu sync.Mutex
		q := NewSliceQueue[byte](1)

		var wg sync.WaitGroup
		for i := 0; i < 1000; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				mu.Lock()
				q.Enqueue(byte(i))
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		total := 0
		wg.Add(100)
		for i := 0; i < 100; i++ {
			go func() {
				defer wg.Done()
				buf := make([]byte, 10)
				mu.Lock()
				total += q.DequeueInto(buf)
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(1000, total)
		assert.True(q.IsEmpty())
	})
}

func BenchmarkSliceQueue_Bytes(b *testing.B) {
	q := NewSliceQueue[byte](256)
	chunk := make([]byte, 64)
	buf := make([]byte, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(chunk...)
		for q.DequeueInto(buf) > 0 {
		}
	}
}
