package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
)

// workerPool runs jobs of type J on a fixed number of goroutines and emits
// results of type R. With one worker, results arrive in submission order.
type workerPool[J, R any] struct {
	workers int
	jobs    chan J
	results chan R
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// newWorkerPool creates a pool with the given number of workers.
// The channels are buffered at workers*2 to allow some pipelining.
func newWorkerPool[J, R any](workers int, logger *slog.Logger) *workerPool[J, R] {
	if workers <= 0 {
		workers = 1
	}
	return &workerPool[J, R]{
		workers: workers,
		jobs:    make(chan J, workers*2),
		results: make(chan R, workers*2),
		logger:  logger,
	}
}

// start launches the workers. fn returns false to drop a job without a
// result.
func (p *workerPool[J, R]) start(ctx context.Context, fn func(context.Context, J) (R, bool)) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, fn)
	}
}

func (p *workerPool[J, R]) worker(ctx context.Context, fn func(context.Context, J) (R, bool)) {
	defer p.wg.Done()

	for j := range p.jobs {
		// Recover from panics so one bad job does not crash the pool.
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker recovered from panic",
						"job", fmt.Sprintf("%+v", j),
						"panic", fmt.Sprintf("%v", r),
					)
				}
			}()

			// Queued jobs are drained without work once ctx is done.
			if ctx.Err() != nil {
				return
			}

			if r, ok := fn(ctx, j); ok {
				p.results <- r
			}
		}()
	}
}

// feed submits every job of seq from a separate goroutine and closes the
// pool afterwards. It stops early when ctx is done.
func (p *workerPool[J, R]) feed(ctx context.Context, seq iter.Seq[J]) {
	go func() {
		defer p.close()
		for j := range seq {
			select {
			case p.jobs <- j:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// close signals that no more jobs will be submitted, then waits for all
// workers to finish and closes the results channel.
func (p *workerPool[J, R]) close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// run starts the pool, feeds seq and returns the result stream. The caller
// must drain the returned channel.
func runPool[J, R any](ctx context.Context, workers int, logger *slog.Logger, seq iter.Seq[J], fn func(context.Context, J) (R, bool)) <-chan R {
	p := newWorkerPool[J, R](workers, logger)
	p.start(ctx, fn)
	p.feed(ctx, seq)
	return p.results
}
