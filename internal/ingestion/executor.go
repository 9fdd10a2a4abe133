package ingestion

import (
	"context"
	"sync"
)

// Executor is the process-scoped background-task dispatcher SPEC_FULL.md
// calls for: a deliberately-simplified descendant of the teacher's
// internal/work.Processor. Ingestion has none of that processor's
// dependency-graph, market-timing-gate, or retry-queue semantics
// (cancellation rides on persisted ImportRecord state, not retries), so
// this is just a goroutine launcher tracked by a WaitGroup for graceful
// shutdown.
type Executor struct {
	wg sync.WaitGroup
}

// NewExecutor builds an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Run launches fn in a detached goroutine, tracked for Shutdown. The
// request handler that calls Run returns immediately; fn receives ctx
// so it can observe process shutdown, though the ingestion pipeline's
// own cancellation is driven by persisted ImportRecord state rather
// than ctx (spec §9).
func (e *Executor) Run(ctx context.Context, fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(ctx)
	}()
}

// Shutdown blocks until every in-flight task launched via Run returns.
func (e *Executor) Shutdown() {
	e.wg.Wait()
}
