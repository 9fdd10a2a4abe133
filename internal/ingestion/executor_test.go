package ingestion

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutorShutdownWaitsForInFlightTasks(t *testing.T) {
	e := NewExecutor()
	var done int32

	e.Run(context.Background(), func(ctx context.Context) {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&done, 1)
	})

	e.Shutdown()

	assert.Equal(t, int32(1), atomic.LoadInt32(&done), "Shutdown returned before the launched task finished")
}

func TestExecutorRunsMultipleTasksConcurrently(t *testing.T) {
	e := NewExecutor()
	var count int32

	for i := 0; i < 5; i++ {
		e.Run(context.Background(), func(ctx context.Context) {
			atomic.AddInt32(&count, 1)
		})
	}
	e.Shutdown()

	assert.Equal(t, int32(5), count)
}
