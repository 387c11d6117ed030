package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fetcherFunc adapts a closure to the PageFetcher interface.
type fetcherFunc func(ctx context.Context, filter, pageToken string) (*Page, error)

func (f fetcherFunc) FetchPage(ctx context.Context, filter, pageToken string) (*Page, error) {
	return f(ctx, filter, pageToken)
}

// scriptedFetcher serves a fixed page sequence and records the tokens
// it was asked for.
type scriptedFetcher struct {
	pages  []*Page
	calls  int
	tokens []string
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, filter, pageToken string) (*Page, error) {
	f.calls++
	f.tokens = append(f.tokens, pageToken)
	if f.calls > len(f.pages) {
		return nil, fmt.Errorf("unexpected fetch %d (token %q)", f.calls, pageToken)
	}
	return f.pages[f.calls-1], nil
}

func rec(id string) Record {
	return Record(fmt.Sprintf(`{"feature_id":%q}`, id))
}

func recordIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = string(r)
	}
	return ids
}

func TestPager_WalksAllPages(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a"), rec("b")}, NextPageToken: "t1"},
		{Records: []Record{rec("c")}},
	}}

	pager := NewPager(context.Background(), fetcher, "group:css")

	var got []Record
	for pager.Next() {
		got = append(got, pager.Page().Records...)
	}

	if err := pager.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 records, got %d", len(got))
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 fetches (no fetch past the final page), got %d", fetcher.calls)
	}

	// First fetch carries no token, second carries the token from page one.
	wantTokens := []string{"", "t1"}
	for i, want := range wantTokens {
		if fetcher.tokens[i] != want {
			t.Errorf("fetch %d token = %q, want %q", i+1, fetcher.tokens[i], want)
		}
	}
}

func TestPager_EmptyPageTerminates(t *testing.T) {
	// The second page is empty but still carries a token; the traversal
	// must stop rather than follow it.
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a")}, NextPageToken: "t1"},
		{Records: []Record{}, NextPageToken: "t2"},
	}}

	pager := NewPager(context.Background(), fetcher, "")

	pageCount := 0
	for pager.Next() {
		pageCount++
	}

	if err := pager.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if pageCount != 2 {
		t.Errorf("Expected 2 pages yielded, got %d", pageCount)
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 fetches, got %d", fetcher.calls)
	}
}

func TestPager_SingleEmptyResult(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{}},
	}}

	pager := NewPager(context.Background(), fetcher, "id:does-not-exist")

	if !pager.Next() {
		t.Fatal("Expected the empty page to be yielded")
	}
	if got := len(pager.Page().Records); got != 0 {
		t.Errorf("Expected 0 records, got %d", got)
	}
	if pager.Next() {
		t.Error("Expected traversal to end after the empty page")
	}
	if err := pager.Err(); err != nil {
		t.Errorf("Err() = %v, want nil (empty result is not an error)", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetcher.calls)
	}
}

func TestPager_TokenCycleFails(t *testing.T) {
	// Page two hands back the token that fetched it. The page itself is
	// still yielded; the traversal then fails instead of looping.
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a")}, NextPageToken: "t1"},
		{Records: []Record{rec("b")}, NextPageToken: "t1"},
	}}

	pager := NewPager(context.Background(), fetcher, "")

	var got []Record
	for pager.Next() {
		got = append(got, pager.Page().Records...)
	}

	if !errors.Is(pager.Err(), ErrTokenCycle) {
		t.Errorf("Err() = %v, want ErrTokenCycle", pager.Err())
	}
	if len(got) != 2 {
		t.Errorf("Expected both fetched pages yielded before the failure, got %d records", len(got))
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 fetches (the repeated token is never followed), got %d", fetcher.calls)
	}
}

func TestPager_FetchErrorStops(t *testing.T) {
	fetchErr := errors.New("boom")
	calls := 0
	fetcher := fetcherFunc(func(ctx context.Context, filter, pageToken string) (*Page, error) {
		calls++
		if calls == 1 {
			return &Page{Records: []Record{rec("a")}, NextPageToken: "t1"}, nil
		}
		return nil, fetchErr
	})

	pager := NewPager(context.Background(), fetcher, "")

	if !pager.Next() {
		t.Fatal("Expected first page to be yielded")
	}
	if pager.Next() {
		t.Error("Expected traversal to stop on fetch error")
	}
	if !errors.Is(pager.Err(), fetchErr) {
		t.Errorf("Err() = %v, want the fetch error", pager.Err())
	}
}

func TestPager_NextAfterDone(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a")}},
	}}

	pager := NewPager(context.Background(), fetcher, "")

	for pager.Next() {
	}
	firstErr := pager.Err()

	// Further pulls stay terminal and do not refetch.
	if pager.Next() {
		t.Error("Expected Next to keep returning false after completion")
	}
	if pager.Err() != firstErr {
		t.Errorf("Err() changed after completion: %v != %v", pager.Err(), firstErr)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected no fetches after completion, got %d total", fetcher.calls)
	}
}

func TestPager_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	fetcher := fetcherFunc(func(ctx context.Context, filter, pageToken string) (*Page, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		calls++
		return &Page{Records: []Record{rec("a")}, NextPageToken: "t1"}, nil
	})

	pager := NewPager(ctx, fetcher, "")

	if !pager.Next() {
		t.Fatal("Expected first page before cancellation")
	}

	cancel()

	if pager.Next() {
		t.Error("Expected traversal to stop after cancellation")
	}
	if !errors.Is(pager.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", pager.Err())
	}
	if calls != 1 {
		t.Errorf("Expected no request after cancellation, got %d", calls)
	}
}

func TestRecordIterator_FlattensInOrder(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a"), rec("b")}, NextPageToken: "t1"},
		{Records: []Record{rec("c")}},
	}}

	it := NewRecordIterator(context.Background(), fetcher, "group:css")

	var got []string
	for it.Next() {
		got = append(got, string(it.Record()))
	}

	if err := it.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}

	want := recordIDs([]Record{rec("a"), rec("b"), rec("c")})
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %s, want %s", i, got[i], want[i])
		}
	}
}

// TestRecordIterator_PullsPagesLazily verifies the next page is fetched
// only once the current page's records are exhausted.
func TestRecordIterator_PullsPagesLazily(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a"), rec("b")}, NextPageToken: "t1"},
		{Records: []Record{rec("c")}},
	}}

	it := NewRecordIterator(context.Background(), fetcher, "")

	it.Next() // a
	it.Next() // b
	if fetcher.calls != 1 {
		t.Errorf("Expected 1 fetch while first page lasts, got %d", fetcher.calls)
	}

	it.Next() // c, forces page two
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 fetches after crossing the page boundary, got %d", fetcher.calls)
	}
}

func TestRecordIterator_ErrorAfterYieldedRecords(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a")}, NextPageToken: "t1"},
		{Records: []Record{rec("b")}, NextPageToken: "t1"},
	}}

	it := NewRecordIterator(context.Background(), fetcher, "")

	var got []string
	for it.Next() {
		got = append(got, string(it.Record()))
	}

	if len(got) != 2 {
		t.Errorf("Expected records yielded before the failure, got %d", len(got))
	}
	if !errors.Is(it.Err(), ErrTokenCycle) {
		t.Errorf("Err() = %v, want ErrTokenCycle", it.Err())
	}
}

func TestCollectRecords(t *testing.T) {
	fetcher := &scriptedFetcher{pages: []*Page{
		{Records: []Record{rec("a"), rec("b")}, NextPageToken: "t1"},
		{Records: []Record{rec("c")}},
	}}

	records, err := CollectRecords(context.Background(), fetcher, "group:css")
	if err != nil {
		t.Fatalf("CollectRecords() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}
}

func TestCollectRecords_FailureDiscardsPartial(t *testing.T) {
	fetchErr := errors.New("boom")
	calls := 0
	fetcher := fetcherFunc(func(ctx context.Context, filter, pageToken string) (*Page, error) {
		calls++
		if calls == 1 {
			return &Page{Records: []Record{rec("a")}, NextPageToken: "t1"}, nil
		}
		return nil, fetchErr
	})

	records, err := CollectRecords(context.Background(), fetcher, "")
	if !errors.Is(err, fetchErr) {
		t.Fatalf("CollectRecords() error = %v, want the fetch error", err)
	}
	if records != nil {
		t.Errorf("Expected no records on failure, got %d", len(records))
	}
}
