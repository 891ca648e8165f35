package fetcher

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/flickr"
	"flickrdump/pkg/logger"
	"flickrdump/pkg/storage"
	"flickrdump/pkg/tracker"
)

// fakeClient scripts the API surface the fetcher touches.
type fakeClient struct {
	detail      *flickr.Item
	detailErr   error
	payload     string
	downloadErr error
	exif        []flickr.ExifTag
	exifErr     error
	comments    []flickr.Comment
	commentsErr error

	infoCalls     int
	exifCalls     int
	commentCalls  int
	downloadCalls int
}

func (f *fakeClient) GetInfo(ctx context.Context, id string) (*flickr.Item, error) {
	f.infoCalls++
	return f.detail, f.detailErr
}

func (f *fakeClient) GetExif(ctx context.Context, id string) ([]flickr.ExifTag, error) {
	f.exifCalls++
	return f.exif, f.exifErr
}

func (f *fakeClient) GetComments(ctx context.Context, id string) ([]flickr.Comment, error) {
	f.commentCalls++
	return f.comments, f.commentsErr
}

func (f *fakeClient) DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	f.downloadCalls++
	if f.downloadErr != nil {
		return nil, 0, f.downloadErr
	}
	return io.NopCloser(strings.NewReader(f.payload)), int64(len(f.payload)), nil
}

func newFixture(t *testing.T, client *fakeClient) (*Fetcher, *storage.Layout, *tracker.Tracker) {
	t.Helper()
	root := t.TempDir()

	track, err := tracker.Open(root, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("failed to open tracker: %v", err)
	}
	t.Cleanup(func() { track.Close() })

	layout, err := storage.NewLayout(root)
	if err != nil {
		t.Fatalf("failed to create layout: %v", err)
	}

	f := New(client, layout, track, false, logger.NewTestLogger())
	f.retryDelay = time.Millisecond
	return f, layout, track
}

func photoItem() flickr.Item {
	return flickr.Item{
		ID:          "101",
		Title:       "Sunset",
		Kind:        flickr.MediaPhoto,
		OriginalURL: "https://assets.example.com/101_o.jpg",
	}
}

func TestFetchOneDownloadsAndRecords(t *testing.T) {
	client := &fakeClient{payload: "jpeg bytes"}
	f, layout, track := newFixture(t, client)

	res := f.FetchOne(context.Background(), photoItem())

	if res.Outcome != OutcomeDownloaded {
		t.Fatalf("expected downloaded, got %s (err: %v)", res.Outcome, res.Err)
	}
	if res.Bytes != int64(len("jpeg bytes")) {
		t.Errorf("unexpected byte count %d", res.Bytes)
	}
	if !track.IsComplete("101") {
		t.Error("item must be recorded complete")
	}
	if !res.Record.Complete {
		t.Error("returned record must reflect completion")
	}
	if !layout.PairExists(layout.TargetFor(photoItem())) {
		t.Error("both files must be in place")
	}
	if client.infoCalls != 0 {
		t.Error("no detail call is needed when the list entry has a URL")
	}
}

func TestFetchOneSkipsVerifiedCompleteItem(t *testing.T) {
	client := &fakeClient{payload: "jpeg bytes"}
	f, _, _ := newFixture(t, client)

	first := f.FetchOne(context.Background(), photoItem())
	if first.Outcome != OutcomeDownloaded {
		t.Fatalf("setup fetch failed: %v", first.Err)
	}

	second := f.FetchOne(context.Background(), photoItem())
	if second.Outcome != OutcomeSkipped {
		t.Errorf("expected skipped on re-fetch, got %s", second.Outcome)
	}
	if client.downloadCalls != 1 {
		t.Errorf("no second download expected, saw %d", client.downloadCalls)
	}
}

func TestFetchOneRefetchesWhenFilesMissing(t *testing.T) {
	client := &fakeClient{payload: "jpeg bytes"}
	f, layout, _ := newFixture(t, client)

	first := f.FetchOne(context.Background(), photoItem())
	if first.Outcome != OutcomeDownloaded {
		t.Fatalf("setup fetch failed: %v", first.Err)
	}

	// The asset file vanished behind the tracker's back.
	target := layout.TargetFor(photoItem())
	if err := os.Remove(target.AssetPath); err != nil {
		t.Fatal(err)
	}

	second := f.FetchOne(context.Background(), photoItem())
	if second.Outcome != OutcomeDownloaded {
		t.Errorf("missing files must force a refetch, got %s", second.Outcome)
	}
	if !layout.PairExists(target) {
		t.Error("pair should be restored")
	}
}

func TestFetchOneFallsBackToDetailLookup(t *testing.T) {
	detail := photoItem()
	client := &fakeClient{payload: "jpeg bytes", detail: &detail}
	f, _, track := newFixture(t, client)

	item := photoItem()
	item.OriginalURL = ""

	res := f.FetchOne(context.Background(), item)
	if res.Outcome != OutcomeDownloaded {
		t.Fatalf("expected downloaded via detail fallback, got %s (err: %v)", res.Outcome, res.Err)
	}
	if client.infoCalls != 1 {
		t.Errorf("expected one detail call, saw %d", client.infoCalls)
	}
	if !track.IsComplete("101") {
		t.Error("item must be recorded complete")
	}
}

func TestFetchOneGoneItem(t *testing.T) {
	client := &fakeClient{detailErr: errs.New(errs.KindNotFound, 1, "Photo not found")}
	f, _, track := newFixture(t, client)

	item := photoItem()
	item.OriginalURL = ""

	res := f.FetchOne(context.Background(), item)
	if res.Outcome != OutcomeGone {
		t.Errorf("a vanished item is gone, not failed: got %s", res.Outcome)
	}
	if track.IsComplete("101") {
		t.Error("gone item must not be marked complete")
	}
	if rec, ok := track.Get("101"); !ok || rec.LastError == "" {
		t.Error("the cause must be recorded")
	}
}

func TestFetchOneDownloadFailureIsData(t *testing.T) {
	client := &fakeClient{downloadErr: errs.New(errs.KindNetwork, 0, "connection reset")}
	f, layout, track := newFixture(t, client)

	res := f.FetchOne(context.Background(), photoItem())

	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if res.Err == nil {
		t.Fatal("failed result must carry the cause")
	}
	if track.IsComplete("101") {
		t.Error("failed item must not be complete")
	}
	rec, ok := track.Get("101")
	if !ok || !strings.Contains(rec.LastError, "connection reset") {
		t.Errorf("failure cause must be persisted, got %+v", rec)
	}
	if layout.PairExists(layout.TargetFor(photoItem())) {
		t.Error("no files may exist for a failed item")
	}
}

func TestFetchOneWritesDetailsToSidecar(t *testing.T) {
	client := &fakeClient{
		payload:  "jpeg bytes",
		exif:     []flickr.ExifTag{{Space: "ExifIFD", Tag: "FocalLength", Label: "Focal Length", Value: "50 mm"}},
		comments: []flickr.Comment{{Author: "123@N00", AuthorName: "A Friend", Text: "great shot"}},
	}
	f, layout, _ := newFixture(t, client)
	f.details = true

	res := f.FetchOne(context.Background(), photoItem())
	if res.Outcome != OutcomeDownloaded {
		t.Fatalf("fetch failed: %v", res.Err)
	}
	if client.exifCalls != 1 || client.commentCalls != 1 {
		t.Errorf("expected one exif and one comments call, saw %d/%d", client.exifCalls, client.commentCalls)
	}

	data, err := os.ReadFile(layout.TargetFor(photoItem()).MetadataPath)
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	var meta struct {
		Exif []struct {
			Tag   string `yaml:"tag"`
			Value string `yaml:"value"`
		} `yaml:"exif"`
		Comments []struct {
			Text string `yaml:"text"`
		} `yaml:"comments"`
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		t.Fatalf("sidecar is not valid YAML: %v", err)
	}
	if len(meta.Exif) != 1 || meta.Exif[0].Tag != "FocalLength" || meta.Exif[0].Value != "50 mm" {
		t.Errorf("exif missing from sidecar: %+v", meta.Exif)
	}
	if len(meta.Comments) != 1 || meta.Comments[0].Text != "great shot" {
		t.Errorf("comments missing from sidecar: %+v", meta.Comments)
	}
}

func TestFetchOneDetailLookupsAreBestEffort(t *testing.T) {
	client := &fakeClient{
		payload:     "jpeg bytes",
		exifErr:     errs.New(errs.KindServerError, 105, "service unavailable"),
		commentsErr: errs.New(errs.KindServerError, 105, "service unavailable"),
	}
	f, _, track := newFixture(t, client)
	f.details = true

	res := f.FetchOne(context.Background(), photoItem())
	if res.Outcome != OutcomeDownloaded {
		t.Fatalf("exif and comment lookups must not fail the item: %v", res.Err)
	}
	if !track.IsComplete("101") {
		t.Error("item must be recorded complete")
	}
}

func TestFetchOneSkipsDetailCallsWhenDisabled(t *testing.T) {
	client := &fakeClient{payload: "jpeg bytes"}
	f, _, _ := newFixture(t, client)

	if res := f.FetchOne(context.Background(), photoItem()); res.Outcome != OutcomeDownloaded {
		t.Fatalf("fetch failed: %v", res.Err)
	}
	if client.exifCalls != 0 || client.commentCalls != 0 {
		t.Errorf("no detail calls expected, saw %d/%d", client.exifCalls, client.commentCalls)
	}
}

// flakyLayout fails placement a scripted number of times before delegating.
type flakyLayout struct {
	inner      Layout
	failures   int
	placeCalls int
}

func (l *flakyLayout) TargetFor(item flickr.Item) storage.Target { return l.inner.TargetFor(item) }
func (l *flakyLayout) PairExists(t storage.Target) bool          { return l.inner.PairExists(t) }

func (l *flakyLayout) PlacePair(t storage.Target, asset io.Reader, item flickr.Item, details flickr.Details) (int64, error) {
	l.placeCalls++
	if l.placeCalls <= l.failures {
		io.Copy(io.Discard, asset)
		return 0, errs.New(errs.KindLocalIO, 0, "no space left on device")
	}
	return l.inner.PlacePair(t, asset, item, details)
}

func TestFetchOneRetriesLocalWriteFailures(t *testing.T) {
	client := &fakeClient{payload: "jpeg bytes"}
	f, layout, track := newFixture(t, client)
	flaky := &flakyLayout{inner: layout, failures: 2}
	f.layout = flaky

	res := f.FetchOne(context.Background(), photoItem())
	if res.Outcome != OutcomeDownloaded {
		t.Fatalf("placement should recover within the retry budget: %v", res.Err)
	}
	if flaky.placeCalls != 3 {
		t.Errorf("expected 3 placement attempts, saw %d", flaky.placeCalls)
	}
	if client.downloadCalls != 3 {
		t.Errorf("each placement retry needs a fresh download, saw %d", client.downloadCalls)
	}
	if !track.IsComplete("101") {
		t.Error("item must be recorded complete")
	}
}

func TestFetchOneGivesUpAfterLocalRetryBudget(t *testing.T) {
	client := &fakeClient{payload: "jpeg bytes"}
	f, layout, track := newFixture(t, client)
	flaky := &flakyLayout{inner: layout, failures: 100}
	f.layout = flaky

	res := f.FetchOne(context.Background(), photoItem())
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if flaky.placeCalls != localIOAttempts {
		t.Errorf("expected exactly %d placement attempts, saw %d", localIOAttempts, flaky.placeCalls)
	}
	if !isLocalIO(res.Err) {
		t.Errorf("the failure must keep its local_io classification, got %v", res.Err)
	}
	if track.IsComplete("101") {
		t.Error("failed item must not be complete")
	}
}

func TestFetchOneNoOriginalAnywhere(t *testing.T) {
	detail := photoItem()
	detail.OriginalURL = ""
	client := &fakeClient{detail: &detail}
	f, _, _ := newFixture(t, client)

	item := photoItem()
	item.OriginalURL = ""

	res := f.FetchOne(context.Background(), item)
	if res.Outcome != OutcomeGone {
		t.Errorf("an item without any downloadable original is gone, got %s", res.Outcome)
	}
	if client.downloadCalls != 0 {
		t.Error("nothing should be downloaded without a URL")
	}
}
