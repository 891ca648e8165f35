// Package exporter drives a full export run: it streams items from the
// enumerator into a bounded worker pool, accumulates per-item results,
// and produces the final report. Individual item failures never stop the
// run; an expired authorization or an unusable destination disk does,
// immediately.
package exporter

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"flickrdump/internal/downloader"
	"flickrdump/pkg/enumerator"
	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/fetcher"
	"flickrdump/pkg/logger"
)

// State is the phase an export run is in.
type State string

const (
	StateIdle        State = "idle"
	StateEnumerating State = "enumerating"
	StateFetching    State = "fetching"
	StateDraining    State = "draining"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Failure names one item that could not be exported and why.
type Failure struct {
	ID    string
	Cause string
}

// Report summarizes a finished run.
type Report struct {
	Total      int64
	Downloaded int64
	Skipped    int64
	Gone       int64
	Failed     int64
	Bytes      int64
	Elapsed    time.Duration
	Failures   []Failure
}

// Clean reports whether every reachable item was exported. Items the
// remote deleted mid-run are not failures; nothing could have fetched them.
func (r *Report) Clean() bool {
	return r.Failed == 0
}

// Exporter owns one export run.
type Exporter struct {
	enum    *enumerator.Enumerator
	fetch   downloader.ItemFetcher
	workers int
	log     logger.Logger

	mu    sync.Mutex
	state State
}

// New creates an exporter.
func New(enum *enumerator.Enumerator, fetch downloader.ItemFetcher, workers int, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{
		enum:    enum,
		fetch:   fetch,
		workers: workers,
		log:     log,
		state:   StateIdle,
	}
}

// State returns the current phase.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Exporter) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.log.DebugWithFields("state changed", map[string]interface{}{"state": string(s)})
}

// Run executes the export until the library is exhausted, the context is
// cancelled, or authorization expires. The returned report is valid in all
// three cases; err is non-nil only when the run as a whole aborted.
func (e *Exporter) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := downloader.NewWorkerPool(runCtx, e.workers, e.fetch, e.log)
	pool.Start()

	e.setState(StateEnumerating)
	items, enumErrc := e.enum.Enumerate(runCtx)

	// Dispatcher: feed the pool as items arrive, then let it drain. Runs
	// beside the result loop so backpressure from full workers pauses
	// enumeration instead of buffering.
	go func() {
		first := true
		for item := range items {
			if first {
				e.setState(StateFetching)
				first = false
			}
			if err := pool.Submit(downloader.Job{Item: item}); err != nil {
				break
			}
		}
		e.setState(StateDraining)
		pool.Stop()
	}()

	// abortErr is set when a result proves the run cannot continue.
	var abortErr error

	for jr := range pool.Results() {
		res := jr.Result
		switch res.Outcome {
		case fetcher.OutcomeDownloaded:
			report.Downloaded++
			report.Bytes += res.Bytes
		case fetcher.OutcomeSkipped:
			report.Skipped++
		case fetcher.OutcomeGone:
			report.Gone++
		default:
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: res.Item.ID, Cause: res.Err.Error()})
		}

		if abortErr == nil && isAuthError(res.Err) {
			abortErr = fmt.Errorf("authorization expired: %w", res.Err)
			e.log.Error("authorization expired, aborting run")
			cancel()
		}
		// A local write that failed after its own retries means the
		// destination is unusable; burning downloads on the rest of the
		// library would not get a single item onto disk.
		if abortErr == nil && isLocalIOError(res.Err) {
			abortErr = fmt.Errorf("destination write failed: %w", res.Err)
			e.log.Error("destination is not writable, aborting run")
			cancel()
		}
	}

	enumErr := <-enumErrc

	report.Total = e.enum.Total()
	report.Skipped += e.enum.Skipped()
	report.Elapsed = time.Since(start)

	switch {
	case abortErr != nil:
		e.setState(StateFailed)
		return report, abortErr
	case enumErr != nil && !stderrors.Is(enumErr, context.Canceled):
		e.setState(StateFailed)
		return report, fmt.Errorf("enumeration failed: %w", enumErr)
	case ctx.Err() != nil:
		e.setState(StateFailed)
		return report, ctx.Err()
	default:
		e.setState(StateDone)
		return report, nil
	}
}

func isAuthError(err error) bool {
	var apiErr *errs.Error
	return stderrors.As(err, &apiErr) && apiErr.Kind == errs.KindAuth
}

func isLocalIOError(err error) bool {
	var apiErr *errs.Error
	return stderrors.As(err, &apiErr) && apiErr.Kind == errs.KindLocalIO
}
