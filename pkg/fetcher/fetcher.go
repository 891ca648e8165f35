// Package fetcher turns one enumerated item into its completed file pair.
// A fetch either places both files and marks the item complete, or records
// the failure and leaves the destination untouched. Failures are data: the
// caller collects them for the final report instead of aborting the run.
package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/flickr"
	"flickrdump/pkg/logger"
	"flickrdump/pkg/retry"
	"flickrdump/pkg/storage"
	"flickrdump/pkg/tracker"
)

// localIOAttempts bounds how often a failed local write is retried before
// the item is reported failed.
const localIOAttempts = 3

// Outcome classifies what a fetch did.
type Outcome string

const (
	// OutcomeDownloaded means both files were placed this run.
	OutcomeDownloaded Outcome = "downloaded"
	// OutcomeSkipped means the pair already existed and was verified.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeGone means the item vanished from the remote mid-run.
	OutcomeGone Outcome = "gone"
	// OutcomeFailed means the item could not be fetched; Err carries why.
	OutcomeFailed Outcome = "failed"
)

// Result is the per-item record a fetch produces.
type Result struct {
	Item    flickr.Item
	Record  tracker.FetchRecord
	Outcome Outcome
	Bytes   int64
	Err     error
}

// Client is the slice of the API client the fetcher needs.
type Client interface {
	GetInfo(ctx context.Context, id string) (*flickr.Item, error)
	GetExif(ctx context.Context, id string) ([]flickr.ExifTag, error)
	GetComments(ctx context.Context, id string) ([]flickr.Comment, error)
	DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Layout is the slice of the storage layer the fetcher needs.
type Layout interface {
	TargetFor(item flickr.Item) storage.Target
	PairExists(t storage.Target) bool
	PlacePair(t storage.Target, asset io.Reader, item flickr.Item, details flickr.Details) (int64, error)
}

// Fetcher downloads originals and writes their metadata sidecars. It is
// safe for concurrent use; the tracker serializes state writes.
type Fetcher struct {
	client     Client
	layout     Layout
	tracker    *tracker.Tracker
	details    bool
	retryDelay time.Duration
	log        logger.Logger
}

// New creates a fetcher. details controls whether EXIF and comments are
// collected for each sidecar, at the cost of two extra API calls per item.
func New(client Client, layout Layout, track *tracker.Tracker, details bool, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:     client,
		layout:     layout,
		tracker:    track,
		details:    details,
		retryDelay: time.Second,
		log:        log,
	}
}

// FetchOne processes a single item end to end: resolve the download URL,
// stream the original to a staging file, place asset and sidecar together,
// then persist completion. Every exit path yields a Result; an error return
// never happens for per-item trouble, only the Result reports it.
func (f *Fetcher) FetchOne(ctx context.Context, item flickr.Item) Result {
	target := f.layout.TargetFor(item)
	record := tracker.FetchRecord{
		ID:           item.ID,
		AssetPath:    target.AssetPath,
		MetadataPath: target.MetadataPath,
	}

	// The tracker filter upstream catches most completed items; this
	// re-check also verifies the files survived since the state was written.
	if f.tracker.IsComplete(item.ID) && f.layout.PairExists(target) {
		if rec, ok := f.tracker.Get(item.ID); ok {
			record = rec
		}
		return Result{Item: item, Record: record, Outcome: OutcomeSkipped}
	}

	url := item.OriginalURL
	if url == "" {
		detail, err := f.client.GetInfo(ctx, item.ID)
		if err != nil {
			return f.failed(ctx, item, record, fmt.Errorf("detail lookup: %w", err))
		}
		if detail.OriginalURL == "" {
			return f.failed(ctx, item, record,
				errs.New(errs.KindNotFound, 0, "no downloadable original for item %s", item.ID))
		}
		url = detail.OriginalURL
	}

	details := f.fetchDetails(ctx, item.ID)

	// A failed local write discards the staged files, so the retry has to
	// re-download. Only local IO failures re-enter here; the client already
	// retries network trouble internally.
	var written int64
	err := retry.Do(func() error {
		body, _, derr := f.client.DownloadAsset(ctx, url)
		if derr != nil {
			return fmt.Errorf("download: %w", derr)
		}
		defer body.Close()

		n, perr := f.layout.PlacePair(target, body, item, details)
		if perr != nil {
			return perr
		}
		written = n
		return nil
	}, &retry.Config{
		MaxAttempts: localIOAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: f.retryDelay},
		RetryIf:     isLocalIO,
		Context:     ctx,
		Logger:      f.log,
	})
	if err != nil {
		return f.failed(ctx, item, record, err)
	}

	if err := f.tracker.MarkComplete(record); err != nil {
		// Files are in place but completion did not persist; a re-run will
		// redo the download, which is safe.
		return f.failed(ctx, item, record, err)
	}
	if rec, ok := f.tracker.Get(item.ID); ok {
		record = rec
	}

	f.log.DebugWithFields("item fetched", map[string]interface{}{
		"id":    item.ID,
		"kind":  string(item.Kind),
		"bytes": written,
		"file":  target.AssetPath,
	})

	return Result{Item: item, Record: record, Outcome: OutcomeDownloaded, Bytes: written}
}

// fetchDetails collects EXIF and comments for the sidecar. Both calls are
// best effort: the export of an item succeeds without them, so a lookup
// failure only logs.
func (f *Fetcher) fetchDetails(ctx context.Context, id string) flickr.Details {
	if !f.details {
		return flickr.Details{}
	}

	var d flickr.Details
	exif, err := f.client.GetExif(ctx, id)
	if err != nil {
		f.log.WarnWithFields("exif lookup failed", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	} else {
		d.Exif = exif
	}

	comments, err := f.client.GetComments(ctx, id)
	if err != nil {
		f.log.WarnWithFields("comments lookup failed", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	} else {
		d.Comments = comments
	}

	return d
}

func isLocalIO(err error) bool {
	var apiErr *errs.Error
	return stderrors.As(err, &apiErr) && apiErr.Kind == errs.KindLocalIO
}

// failed records the failure and classifies the result. An item the remote
// no longer has is reported as gone rather than failed: the export cannot
// ever succeed for it and retrying is pointless.
func (f *Fetcher) failed(ctx context.Context, item flickr.Item, record tracker.FetchRecord, cause error) Result {
	outcome := OutcomeFailed
	var apiErr *errs.Error
	if stderrors.As(cause, &apiErr) && apiErr.Kind == errs.KindNotFound {
		outcome = OutcomeGone
	}
	if ctx.Err() != nil && outcome == OutcomeFailed {
		cause = fmt.Errorf("%w (%v)", ctx.Err(), cause)
	}

	if err := f.tracker.MarkFailed(item.ID, cause); err != nil {
		f.log.ErrorWithFields("failed to persist failure", map[string]interface{}{
			"id":    item.ID,
			"error": err.Error(),
		})
	}
	if rec, ok := f.tracker.Get(item.ID); ok {
		record = rec
	}

	f.log.WarnWithFields("item not fetched", map[string]interface{}{
		"id":      item.ID,
		"outcome": string(outcome),
		"error":   cause.Error(),
	})

	return Result{Item: item, Record: record, Outcome: outcome, Err: cause}
}
