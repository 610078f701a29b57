package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled, cfg.NumWorkers = true, 4
	var counter int64
	n := 1000
	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)
	assert.Equal(t, int64(n), counter)
}

func TestForPixels(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}
	height, width := 7, 5
	visits := make([]int32, height*width)
	ForPixels(height, width, func(y, x int) {
		atomic.AddInt32(&visits[y*width+x], 1)
	}, cfg)
	for i, v := range visits {
		assert.Equal(t, int32(1), v, "pixel %d", i)
	}
}

func TestForSequential(t *testing.T) {
	var order []int
	For(100, func(i int) {
		order = append(order, i)
	}, Sequential())
	assert.Len(t, order, 100)
	assert.IsIncreasing(t, order)
}

func TestForSmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()
	var counter int64
	n := cfg.MinChunkSize - 1
	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)
	assert.Equal(t, int64(n), counter)
}

func BenchmarkForPixels(b *testing.B) {
	cfg := DefaultConfig()
	height, width := 256, 256
	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			ForPixels(height, width, func(y, x int) {
				atomic.AddInt64(&sum, int64(y*width+x))
			}, cfg)
		}
	})
	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			ForPixels(height, width, func(y, x int) {
				atomic.AddInt64(&sum, int64(y*width+x))
			}, Sequential())
		}
	})
}
