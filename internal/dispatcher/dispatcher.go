// Package dispatcher drives a run: it feeds Targets into the queue and fans
// them out to a bounded pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// Runner consumes queue items until the queue closes or ctx ends.
type Runner interface {
	Run(ctx context.Context)
}

type closer interface {
	Close()
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []Runner
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []Runner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until every one of them returns.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk Runner) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Crawl processes targets under runID. Targets are fed in input order while
// the workers drain the queue; the queue is closed once all are enqueued so
// workers exit when it is empty. It returns the number of Targets enqueued.
func (d *Dispatcher) Crawl(ctx context.Context, runID string, targets []crawler.Target) (int, error) {
	var (
		enqueued int
		feedErr  error
		feedDone = make(chan struct{})
	)
	go func() {
		defer close(feedDone)
		defer d.closeQueue()
		for i, target := range targets {
			if err := d.Enqueue(ctx, crawler.QueueItem{RunID: runID, Target: target, Index: i}); err != nil {
				feedErr = err
				return
			}
			enqueued++
		}
		d.logger.Info("all targets enqueued", zap.String("run_id", runID), zap.Int("count", enqueued))
	}()

	d.Run(ctx)
	<-feedDone
	if feedErr != nil {
		return enqueued, feedErr
	}
	if err := ctx.Err(); err != nil {
		return enqueued, fmt.Errorf("crawl interrupted: %w", err)
	}
	return enqueued, nil
}

func (d *Dispatcher) closeQueue() {
	if c, ok := d.queue.(closer); ok {
		c.Close()
	}
}
