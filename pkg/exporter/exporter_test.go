package exporter

import (
	"context"
	"testing"

	"flickrdump/pkg/enumerator"
	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/fetcher"
	"flickrdump/pkg/flickr"
	"flickrdump/pkg/logger"
)

// scriptedLister serves a fixed two-page listing.
type scriptedLister struct {
	pages map[int]*flickr.Page
}

func (s *scriptedLister) ListPage(ctx context.Context, page, perPage int) (*flickr.Page, error) {
	if p, ok := s.pages[page]; ok {
		return p, nil
	}
	return &flickr.Page{Index: page, Pages: page}, nil
}

// scriptedFetcher maps item ids to outcomes.
type scriptedFetcher struct {
	outcomes map[string]fetcher.Result
}

func (s *scriptedFetcher) FetchOne(ctx context.Context, item flickr.Item) fetcher.Result {
	if res, ok := s.outcomes[item.ID]; ok {
		res.Item = item
		return res
	}
	return fetcher.Result{Item: item, Outcome: fetcher.OutcomeDownloaded, Bytes: 10}
}

func listing(ids ...string) *scriptedLister {
	items := make([]flickr.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, flickr.Item{ID: id, Kind: flickr.MediaPhoto})
	}
	return &scriptedLister{pages: map[int]*flickr.Page{
		1: {Index: 1, Pages: 1, Total: len(items), Items: items},
	}}
}

func TestRunCleanExport(t *testing.T) {
	enum := enumerator.New(listing("1", "2", "3"), nil, 500, logger.NewTestLogger())
	exp := New(enum, &scriptedFetcher{}, 2, logger.NewTestLogger())

	report, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Downloaded != 3 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Total != 3 {
		t.Errorf("expected total 3, got %d", report.Total)
	}
	if report.Bytes != 30 {
		t.Errorf("expected 30 bytes, got %d", report.Bytes)
	}
	if !report.Clean() {
		t.Error("a run without failures is clean")
	}
	if exp.State() != StateDone {
		t.Errorf("expected done state, got %s", exp.State())
	}
}

func TestRunAccumulatesPerItemFailures(t *testing.T) {
	fetch := &scriptedFetcher{outcomes: map[string]fetcher.Result{
		"2": {Outcome: fetcher.OutcomeFailed, Err: errs.New(errs.KindNetwork, 0, "connection reset")},
		"3": {Outcome: fetcher.OutcomeGone},
	}}
	enum := enumerator.New(listing("1", "2", "3", "4"), nil, 500, logger.NewTestLogger())
	exp := New(enum, fetch, 2, logger.NewTestLogger())

	report, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("per-item failures must not abort the run: %v", err)
	}

	if report.Downloaded != 2 || report.Failed != 1 || report.Gone != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Clean() {
		t.Error("a run with failures is not clean")
	}
	if len(report.Failures) != 1 || report.Failures[0].ID != "2" {
		t.Errorf("failure list should name item 2, got %v", report.Failures)
	}
	if exp.State() != StateDone {
		t.Errorf("the run still completed, expected done, got %s", exp.State())
	}
}

func TestRunAbortsOnAuthExpiry(t *testing.T) {
	fetch := &scriptedFetcher{outcomes: map[string]fetcher.Result{
		"1": {Outcome: fetcher.OutcomeFailed, Err: errs.New(errs.KindAuth, 98, "token expired")},
	}}
	enum := enumerator.New(listing("1", "2", "3"), nil, 500, logger.NewTestLogger())
	exp := New(enum, fetch, 1, logger.NewTestLogger())

	report, err := exp.Run(context.Background())
	if err == nil {
		t.Fatal("an expired authorization must abort the run")
	}
	if exp.State() != StateFailed {
		t.Errorf("expected failed state, got %s", exp.State())
	}
	if report == nil {
		t.Fatal("the report is still produced on abort")
	}
}

func TestRunAbortsWhenDestinationUnusable(t *testing.T) {
	diskFull := errs.New(errs.KindLocalIO, 0, "no space left on device")
	fetch := &scriptedFetcher{outcomes: map[string]fetcher.Result{
		"1": {Outcome: fetcher.OutcomeFailed, Err: diskFull},
		"2": {Outcome: fetcher.OutcomeFailed, Err: diskFull},
		"3": {Outcome: fetcher.OutcomeFailed, Err: diskFull},
		"4": {Outcome: fetcher.OutcomeFailed, Err: diskFull},
		"5": {Outcome: fetcher.OutcomeFailed, Err: diskFull},
	}}
	enum := enumerator.New(listing("1", "2", "3", "4", "5"), nil, 500, logger.NewTestLogger())
	exp := New(enum, fetch, 1, logger.NewTestLogger())

	report, err := exp.Run(context.Background())
	if err == nil {
		t.Fatal("a destination that cannot be written must abort the run")
	}
	if exp.State() != StateFailed {
		t.Errorf("expected failed state, got %s", exp.State())
	}
	if report == nil {
		t.Fatal("the report is still produced on abort")
	}
	if report.Clean() {
		t.Error("the aborted run is not clean")
	}
}

func TestRunSkipsCompletedItems(t *testing.T) {
	filter := mapFilter{"1": true, "3": true}
	enum := enumerator.New(listing("1", "2", "3"), filter, 500, logger.NewTestLogger())
	exp := New(enum, &scriptedFetcher{}, 2, logger.NewTestLogger())

	report, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Downloaded != 1 || report.Skipped != 2 {
		t.Errorf("expected 1 download and 2 skips, got %+v", report)
	}
}

func TestRunEmptyLibrary(t *testing.T) {
	enum := enumerator.New(listing(), nil, 500, logger.NewTestLogger())
	exp := New(enum, &scriptedFetcher{}, 2, logger.NewTestLogger())

	report, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("an empty library is a clean run: %v", err)
	}
	if report.Downloaded != 0 || !report.Clean() {
		t.Errorf("unexpected report: %+v", report)
	}
	if exp.State() != StateDone {
		t.Errorf("expected done state, got %s", exp.State())
	}
}

type mapFilter map[string]bool

func (m mapFilter) IsComplete(id string) bool { return m[id] }
