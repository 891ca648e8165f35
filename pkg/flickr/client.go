package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/logger"
	"flickrdump/pkg/ratelimit"
	"flickrdump/pkg/retry"
)

// Client talks to the Flickr REST API on behalf of one account. Every call
// waits on the rate limiter first and retries transient failures with
// backoff; auth failures surface immediately. The client holds no durable
// state.
type Client struct {
	httpClient *http.Client
	endpoint   string
	user       string
	creds      Credentials
	limiter    ratelimit.Limiter
	maxRetries int
	backoff    retry.BackoffStrategy
	logger     logger.Logger
}

// Options configures a Client.
type Options struct {
	// UserID selects whose library to list; empty means the token owner.
	UserID string
	// Timeout bounds each HTTP request, including asset downloads.
	Timeout time.Duration
	// Limiter paces all remote calls. Required.
	Limiter ratelimit.Limiter
	// MaxRetries caps attempts for retryable failures.
	MaxRetries int
	// Backoff strategy between retries; defaults to exponential with jitter.
	Backoff retry.BackoffStrategy
	// Endpoint overrides the REST entry point, used by tests.
	Endpoint string
	Logger   logger.Logger
}

// New creates a Flickr API client.
func New(creds Credentials, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewInterval(500 * time.Millisecond)
	}
	if opts.Endpoint == "" {
		opts.Endpoint = RESTEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		endpoint:   opts.Endpoint,
		user:       opts.UserID,
		creds:      creds,
		limiter:    opts.Limiter,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}
}

// ListPage fetches one page of the account's photostream.
func (c *Client) ListPage(ctx context.Context, page, perPage int) (*Page, error) {
	var resp photosResponse
	if err := c.getJSON(ctx, c.listPageURL(page, perPage), &resp); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(resp.Photos.Photo))
	for i := range resp.Photos.Photo {
		items = append(items, resp.Photos.Photo[i].toItem())
	}

	c.logger.DebugWithFields("listed page", map[string]interface{}{
		"page":  resp.Photos.Page,
		"pages": resp.Photos.Pages,
		"count": len(items),
	})

	return &Page{
		Index:   resp.Photos.Page,
		Pages:   resp.Photos.Pages,
		PerPage: resp.Photos.PerPage,
		Total:   int(resp.Photos.Total),
		Items:   items,
	}, nil
}

// GetInfo fetches full detail for one item.
func (c *Client) GetInfo(ctx context.Context, id string) (*Item, error) {
	var resp photoInfoResponse
	if err := c.getJSON(ctx, c.photoInfoURL(id), &resp); err != nil {
		return nil, err
	}

	p := resp.Photo
	item := Item{
		ID:             p.ID,
		Kind:           MediaPhoto,
		Title:          p.Title.Content,
		Description:    p.Description.Content,
		Privacy:        privacyOf(bool(p.Visibility.IsPublic), bool(p.Visibility.IsFriend), bool(p.Visibility.IsFamily)),
		OriginalFormat: p.OriginalFormat,
	}
	if p.Media == "video" {
		item.Kind = MediaVideo
	}
	// The detail response carries no direct URL; the original is addressed
	// by server and original secret.
	if p.Server != "" && p.OriginalSecret != "" {
		item.OriginalURL = fmt.Sprintf("https://live.staticflickr.com/%s/%s_%s_o.%s",
			p.Server, p.ID, p.OriginalSecret, item.Extension())
	}
	for _, tag := range p.Tags.Tag {
		item.Tags = append(item.Tags, tag.Raw)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", p.Dates.Taken); err == nil {
		item.Taken = t
	}
	if p.Dates.Posted > 0 {
		item.Uploaded = time.Unix(int64(p.Dates.Posted), 0).UTC()
	}

	return &item, nil
}

// GetExif fetches the EXIF properties recorded for one item. An owner who
// disabled EXIF sharing yields an empty set, not an error.
func (c *Client) GetExif(ctx context.Context, id string) ([]ExifTag, error) {
	var resp exifResponse
	if err := c.getJSON(ctx, c.photoExifURL(id), &resp); err != nil {
		return nil, err
	}

	tags := make([]ExifTag, 0, len(resp.Photo.Exif))
	for _, e := range resp.Photo.Exif {
		tags = append(tags, ExifTag{Space: e.TagSpace, Tag: e.Tag, Label: e.Label, Value: e.Raw.Content})
	}
	return tags, nil
}

// GetComments fetches the comments left on one item, oldest first.
func (c *Client) GetComments(ctx context.Context, id string) ([]Comment, error) {
	var resp commentsResponse
	if err := c.getJSON(ctx, c.photoCommentsURL(id), &resp); err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(resp.Comments.Comment))
	for _, cm := range resp.Comments.Comment {
		comment := Comment{Author: cm.Author, AuthorName: cm.AuthorName, Text: cm.Content}
		if cm.DateCreate > 0 {
			comment.Posted = time.Unix(int64(cm.DateCreate), 0).UTC()
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// DownloadAsset opens a stream for the original binary at url. The caller
// owns the returned body. Establishing the connection is retried; a failure
// mid-stream surfaces from Read and is the caller's to handle.
func (c *Client) DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	type stream struct {
		body io.ReadCloser
		size int64
	}

	s, err := retry.DoWithResult(func() (stream, error) {
		c.limiter.Wait()

		resp, err := c.do(ctx, url)
		if err != nil {
			return stream{}, err
		}
		if err := checkStatus(resp); err != nil {
			resp.Body.Close()
			return stream{}, err
		}
		return stream{body: resp.Body, size: resp.ContentLength}, nil
	}, c.retryConfig(ctx))
	if err != nil {
		return nil, 0, err
	}
	return s.body, s.size, nil
}

// getJSON performs a rate-limited, retried GET and decodes the API envelope.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	return retry.Do(func() error {
		c.limiter.Wait()

		resp, err := c.do(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.New(errs.KindNetwork, 0, "failed to read response body: %v", err)
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse API response", map[string]interface{}{
				"url":          url,
				"body_preview": preview,
				"error":        err.Error(),
			})
			return errs.New(errs.KindParsing, 0, "failed to parse JSON: %v", err)
		}

		return checkEnvelope(target)
	}, c.retryConfig(ctx))
}

// do issues a single GET with context, mapping transport failures to the
// network kind.
func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindUnknown, 0, "failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil, errs.New(errs.KindNetwork, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	return resp, nil
}

func (c *Client) retryConfig(ctx context.Context) *retry.Config {
	return &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	}
}

// checkStatus maps HTTP status codes onto the error taxonomy.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.KindAuth, resp.StatusCode, "authorization rejected")
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errs.New(errs.KindNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errs.New(errs.KindRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		return errs.New(errs.KindServerError, resp.StatusCode, "server error")
	default:
		return errs.New(errs.KindUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// checkEnvelope inspects the stat/code fields every REST response carries.
func checkEnvelope(target interface{}) error {
	env, ok := target.(interface{ envelope() apiEnvelope })
	if !ok {
		return nil
	}
	e := env.envelope()
	if e.Stat == "" || e.Stat == "ok" {
		return nil
	}

	// Flickr error codes: 98/99 invalid or insufficient token, 1 not found,
	// 105 service currently unavailable.
	switch e.Code {
	case 98, 99:
		return errs.New(errs.KindAuth, e.Code, "%s", e.Message)
	case 1:
		return errs.New(errs.KindNotFound, e.Code, "%s", e.Message)
	case 105:
		return errs.New(errs.KindServerError, e.Code, "%s", e.Message)
	default:
		return errs.New(errs.KindUnknown, e.Code, "API error: %s", e.Message)
	}
}

func (e apiEnvelope) envelope() apiEnvelope { return e }

// String implements fmt.Stringer for log output.
func (p *Page) String() string {
	return fmt.Sprintf("page %d/%d (%d items)", p.Index, p.Pages, len(p.Items))
}
