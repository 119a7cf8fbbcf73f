package analyzer

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_SubmitAndWait(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var mu sync.Mutex
	results := make([]int, 0, 10)

	for i := 0; i < 10; i++ {
		i := i
		pool.Submit(func() {
			mu.Lock()
			results = append(results, i)
			mu.Unlock()
		})
	}

	pool.Wait()

	if len(results) != 10 {
		t.Errorf("Expected 10 results, got %d", len(results))
	}
}

func TestWorkerPool_DefaultWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.workers <= 0 {
		t.Errorf("Expected a positive worker count, got %d", pool.workers)
	}
}

func TestWorkerPool_StartOnce(t *testing.T) {
	pool := NewWorkerPool(2)

	// Start should be idempotent
	pool.Start()
	pool.Start()

	defer pool.Close()

	var executed atomic.Bool
	pool.Submit(func() {
		executed.Store(true)
	})

	pool.Wait()

	if !executed.Load() {
		t.Error("Expected job to be executed")
	}
}

func TestWorkerPool_RunBlocksUntilBatchFinishes(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()

	var done atomic.Int32
	jobs := make([]func(), 8)
	for i := range jobs {
		jobs[i] = func() { done.Add(1) }
	}

	pool.Run(jobs...)
	assert.Equal(t, int32(8), done.Load())

	pool.Run()
	assert.Equal(t, int32(8), done.Load())
}

func TestWorkerPool_ConcurrentBatches(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	const callers = 6
	var wg sync.WaitGroup
	counts := make([]atomic.Int32, callers)

	for c := 0; c < callers; c++ {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Run(
				func() { counts[c].Add(1) },
				func() { counts[c].Add(1) },
				func() { counts[c].Add(1) },
			)
			// each caller sees its own batch complete on return
			assert.Equal(t, int32(3), counts[c].Load())
		}()
	}

	wg.Wait()
}

func TestWorkerPool_CloseIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var executed atomic.Bool
	pool.Submit(func() {
		executed.Store(true)
	})

	pool.Wait()
	pool.Close()
	pool.Close()

	if !executed.Load() {
		t.Error("Expected job to be executed before close")
	}
}
