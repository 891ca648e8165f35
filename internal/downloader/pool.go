// Package downloader runs the bounded worker pool that fetches items
// concurrently while the enumerator is still producing them.
package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flickrdump/pkg/fetcher"
	"flickrdump/pkg/flickr"
	"flickrdump/pkg/logger"
)

// Job is one item queued for fetching.
type Job struct {
	Item flickr.Item
}

// JobResult pairs a fetch result with its timing.
type JobResult struct {
	Result   fetcher.Result
	Duration time.Duration
}

// ItemFetcher is the slice of the fetcher the pool needs.
type ItemFetcher interface {
	FetchOne(ctx context.Context, item flickr.Item) fetcher.Result
}

// WorkerPool manages concurrent fetch workers. Submit blocks when all
// workers are busy and the small buffer is full, which keeps enumeration
// paced to fetch throughput instead of buffering the whole library.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetch       ItemFetcher
	logger      logger.Logger
}

// NewWorkerPool creates a pool with numWorkers concurrent fetchers. The
// pool's context is derived from ctx; cancelling ctx drains the pool.
func NewWorkerPool(ctx context.Context, numWorkers int, fetch ItemFetcher, log logger.Logger) *WorkerPool {
	poolCtx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan JobResult, numWorkers),
		ctx:         poolCtx,
		cancel:      cancel,
		fetch:       fetch,
		logger:      log,
	}
}

// Start launches all workers.
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight jobs to finish, then
// closes the result queue. Call exactly once, after the last Submit.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("worker pool stopped")
}

// Submit queues an item for fetching. It blocks while the pool is at
// capacity and fails only when the pool is shutting down.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel fetch results arrive on.
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		start := time.Now()
		result := wp.fetch.FetchOne(wp.ctx, job.Item)

		select {
		case wp.resultQueue <- JobResult{Result: result, Duration: time.Since(start)}:
		case <-wp.ctx.Done():
			return
		}
	}
}

// QueueSize returns the number of jobs waiting for a worker.
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}
