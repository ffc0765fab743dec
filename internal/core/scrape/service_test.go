package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"breederchat/internal/core/cache"
	"breederchat/internal/core/fetch"
	"breederchat/internal/core/record"
	"breederchat/internal/core/session"
	"breederchat/internal/logger"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://breeders.example/directory"

// fakeFetcher serves a table per page number. Pages missing from rows
// render an empty table; pages in fail return a fetch error.
type fakeFetcher struct {
	mu    sync.Mutex
	rows  map[int][]record.Record
	fail  map[int]int
	calls []int
	urls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{rows: map[int][]record.Record{}, fail: map[int]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, base string, page int) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, page)
	f.urls = append(f.urls, base)
	if status, ok := f.fail[page]; ok {
		return nil, &fetch.Error{URL: base, Page: page, StatusCode: status, Message: "upstream error"}
	}
	var b strings.Builder
	b.WriteString("<html><body><table><tr><th>Name</th><th>Phone</th><th>Location</th></tr>")
	for _, r := range f.rows[page] {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>", r.Name, r.Phone, r.Location)
	}
	b.WriteString("</table></body></html>")
	return &fetch.Page{URL: base, Number: page, HTML: b.String(), StatusCode: 200}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]cache.Entry
	lookupErr error
	upsertErr error
	upserts   int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string]cache.Entry{}} }

func (c *fakeCache) Lookup(_ context.Context, url string) (cache.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return cache.Entry{}, false, c.lookupErr
	}
	e, ok := c.entries[url]
	return e, ok, nil
}

func (c *fakeCache) Upsert(_ context.Context, e cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts++
	if c.upsertErr != nil {
		return c.upsertErr
	}
	c.entries[e.URL] = e
	return nil
}

type harness struct {
	svc    *Service
	fetch  *fakeFetcher
	cache  *fakeCache
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fetch: newFakeFetcher(), cache: newFakeCache()}
	h.svc = NewService(Deps{
		Fetcher:  h.fetch,
		Cache:    h.cache,
		Sessions: session.NewStore(time.Hour),
	}, DefaultOptions())
	h.svc.log = logger.Nop()
	h.svc.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func rec(name string) record.Record { return record.New(name, "555-"+name, "TX") }

func codeOf(t *testing.T, err error) ErrorCode {
	t.Helper()
	var se *Error
	require.True(t, errors.As(err, &se), "expected *scrape.Error, got %T: %v", err, err)
	return se.Code
}

func TestInitialScrapeStoresFirstPage(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a"), rec("b"), rec("c")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	require.Equal(t, 1, res.Page)
	require.Equal(t, 3, res.TotalItems)
	require.NotEmpty(t, res.SessionID)
	require.Equal(t, VariantInitial, res.Variant)

	sess, ok := h.svc.Sessions().Get(res.SessionID)
	require.True(t, ok)
	require.Equal(t, baseURL, sess.LastURL)
	require.Equal(t, 1, sess.CurrentPage)
	require.Equal(t, 1, h.cache.upserts)
}

func TestInitialEmptyPageIsNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.Equal(t, CodeNotFound, codeOf(t, err))
	require.Equal(t, CodeNotFound.HTTPStatus(), 404)
	require.Zero(t, h.cache.upserts)
}

func TestInitialRejectsBadURL(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Scrape(context.Background(), Request{URL: "not a url"})
	require.Equal(t, CodeInvalidRequest, codeOf(t, err))
	require.Zero(t, h.fetch.callCount())
}

func TestInitialFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetch.fail[1] = 503

	_, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.Equal(t, CodeFetchFailed, codeOf(t, err))
	var se *Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, 1, se.Page)
	require.Contains(t, se.Message, "503")
	var fe *fetch.Error
	require.True(t, errors.As(err, &fe), "fetch error stays reachable through Unwrap")
}

func TestInitialUsesDurableCache(t *testing.T) {
	h := newHarness(t)
	h.cache.entries[baseURL] = cache.Entry{URL: baseURL, Records: []record.Record{rec("x"), rec("y")}, PageCount: 1}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)
	require.True(t, res.FromCache)
	require.Len(t, res.Records, 2)
	require.Zero(t, h.fetch.callCount())
}

func TestDurableCacheFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.cache.lookupErr = errors.New("connection refused")
	h.cache.upsertErr = errors.New("connection refused")
	h.fetch.rows[1] = []record.Record{rec("a")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Equal(t, 1, h.cache.upserts)
}

func TestNextPageExhaustedKeepsCursor(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)

	_, err = h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: res.SessionID})
	require.Equal(t, CodeNoMoreResults, codeOf(t, err))

	sess, _ := h.svc.Sessions().Get(res.SessionID)
	require.Equal(t, 1, sess.CurrentPage)
	require.Len(t, sess.Results, 1)
}

func TestNextPageAdvancesByOneAndMerges(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a"), rec("b")}
	h.fetch.rows[2] = []record.Record{rec("b"), rec("c")}
	h.fetch.rows[3] = []record.Record{rec("d")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)
	id := res.SessionID

	for want := 2; want <= 3; want++ {
		res, err = h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: id})
		require.NoError(t, err)
		require.Equal(t, want, res.Page)
		require.Equal(t, id, res.SessionID)
	}

	want := []record.Record{rec("a"), rec("b"), rec("c"), rec("d")}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Fatalf("aggregate mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []int{1, 2, 3}, h.fetch.calls)
	require.Equal(t, 3, h.cache.entries[baseURL].PageCount)
	require.Len(t, h.cache.entries[baseURL].Records, 4)
}

func TestNextPageWithoutPriorURL(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Scrape(context.Background(), Request{Pagination: true})
	require.Equal(t, CodeNoPriorURL, codeOf(t, err))

	_, err = h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: "unknown"})
	require.Equal(t, CodeNoPriorURL, codeOf(t, err))
	require.Zero(t, h.svc.Sessions().Len())
}

func TestNextPageRejectsDifferentURL(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a")}
	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)

	_, err = h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: res.SessionID, URL: "https://other.example/list"})
	require.Equal(t, CodeInvalidRequest, codeOf(t, err))

	_, err = h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: res.SessionID, URL: baseURL + "?page=4"})
	require.Equal(t, CodeNoMoreResults, codeOf(t, err), "same base url is accepted")
}

func TestNextPageReusesCachedPage(t *testing.T) {
	h := newHarness(t)
	for p := 1; p <= 3; p++ {
		h.fetch.rows[p] = []record.Record{rec(fmt.Sprint("p", p))}
	}
	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 3}})
	require.NoError(t, err)
	id := res.SessionID

	// Narrow range moves the cursor back to page 1 while pages 2-3 stay cached.
	_, err = h.svc.Scrape(context.Background(), Request{SessionID: id, PageRange: &PageRange{Start: 1, End: 1}})
	require.NoError(t, err)
	calls := h.fetch.callCount()

	res, err = h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: id})
	require.NoError(t, err)
	require.Equal(t, 2, res.Page)
	require.Equal(t, calls, h.fetch.callCount())
}

func TestRangeStopsAtFirstEmptyPage(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a"), rec("b")}
	h.fetch.rows[2] = []record.Record{rec("c")}
	h.fetch.rows[4] = []record.Record{rec("never")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 5}})
	require.NoError(t, err)
	require.Equal(t, []record.Record{rec("a"), rec("b"), rec("c")}, res.Records)
	require.Equal(t, []int{1, 2, 3}, h.fetch.calls)
	require.Equal(t, 2, res.Page)
	require.False(t, res.HasMore)
	require.False(t, res.Incomplete)

	sess, _ := h.svc.Sessions().Get(res.SessionID)
	require.Equal(t, 2, sess.CurrentPage)
	require.Equal(t, []int{1, 2}, sess.CachedPages())
}

func TestRangeDropsDuplicatesAcrossPages(t *testing.T) {
	h := newHarness(t)
	jo := record.New("Jo", "555", "NY")
	h.fetch.rows[1] = []record.Record{jo, rec("a")}
	h.fetch.rows[2] = []record.Record{jo, rec("b")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 2}})
	require.NoError(t, err)

	count := 0
	for _, r := range res.Records {
		if r.Key() == jo.Key() {
			count++
		}
	}
	require.Equal(t, 1, count)
	require.Len(t, res.Records, 3)
}

func TestRangeClamping(t *testing.T) {
	h := newHarness(t)
	for p := 1; p <= 10; p++ {
		h.fetch.rows[p] = []record.Record{rec(fmt.Sprint("p", p))}
	}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 0, End: 100}})
	require.NoError(t, err)
	require.Equal(t, &PageRange{Start: 1, End: 6}, res.PageRange)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6}, h.fetch.calls)
	require.Len(t, res.Records, 6)
	require.Equal(t, 6, res.Page)

	// A delay separates every pair of consecutive network fetches.
	require.Len(t, h.sleeps, 5)
	for _, d := range h.sleeps {
		require.Equal(t, 500*time.Millisecond, d)
	}
}

func TestRangeClampUnit(t *testing.T) {
	tests := []struct {
		in   PageRange
		want PageRange
		ok   bool
	}{
		{PageRange{0, 100}, PageRange{1, 6}, true},
		{PageRange{3, 4}, PageRange{3, 4}, true},
		{PageRange{-5, 2}, PageRange{1, 2}, true},
		{PageRange{10, 12}, PageRange{10, 12}, true},
		{PageRange{5, 3}, PageRange{}, false},
	}
	for _, tt := range tests {
		got, err := tt.in.Clamp(6)
		if !tt.ok {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestRangeReusesCachedPagesWithoutDelay(t *testing.T) {
	h := newHarness(t)
	for p := 1; p <= 4; p++ {
		h.fetch.rows[p] = []record.Record{rec(fmt.Sprint("p", p))}
	}
	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 3, End: 3}})
	require.NoError(t, err)
	id := res.SessionID
	cachedPage3 := res.Records
	h.fetch.calls = nil
	h.sleeps = nil

	res, err = h.svc.Scrape(context.Background(), Request{SessionID: id, PageRange: &PageRange{Start: 2, End: 4}})
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, h.fetch.calls, "page 3 comes from the session cache")
	require.Len(t, h.sleeps, 1, "only the second network fetch waits")
	require.Contains(t, res.Records, cachedPage3[0])
	require.Equal(t, []record.Record{rec("p2"), rec("p3"), rec("p4")}, res.Records)
}

func TestRangeResultExcludesPagesOutsideRange(t *testing.T) {
	h := newHarness(t)
	for p := 1; p <= 4; p++ {
		h.fetch.rows[p] = []record.Record{rec(fmt.Sprint("p", p))}
	}
	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 4}})
	require.NoError(t, err)

	res, err = h.svc.Scrape(context.Background(), Request{SessionID: res.SessionID, PageRange: &PageRange{Start: 2, End: 3}})
	require.NoError(t, err)
	require.Equal(t, []record.Record{rec("p2"), rec("p3")}, res.Records)
}

func TestRangePartialResultsOnFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a")}
	h.fetch.rows[2] = []record.Record{rec("b")}
	h.fetch.fail[3] = 504
	h.fetch.rows[4] = []record.Record{rec("d")}

	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 4}})
	require.NoError(t, err)
	require.True(t, res.Incomplete)
	require.Contains(t, res.Warning, "page 3")
	require.Equal(t, []record.Record{rec("a"), rec("b")}, res.Records)
	require.Equal(t, []int{1, 2, 3}, h.fetch.calls)
	require.Equal(t, 2, res.Page)
}

// stallingFetcher serves one record per page but blocks on the stall page
// until the fetch context ends.
type stallingFetcher struct {
	stall   int
	mu      sync.Mutex
	started []int
}

func (f *stallingFetcher) Fetch(ctx context.Context, base string, page int) (*fetch.Page, error) {
	f.mu.Lock()
	f.started = append(f.started, page)
	f.mu.Unlock()
	if page == f.stall {
		<-ctx.Done()
		return nil, &fetch.Error{URL: base, Page: page, Message: "request cancelled", Err: ctx.Err()}
	}
	html := fmt.Sprintf("<table><tr><th>Name</th><th>Phone</th><th>Location</th></tr><tr><td>p%d</td><td>555-p%d</td><td>TX</td></tr></table>", page, page)
	return &fetch.Page{URL: base, Number: page, HTML: html, StatusCode: 200}, nil
}

func TestRangeFetchTimeoutReturnsPartialResult(t *testing.T) {
	f := &stallingFetcher{stall: 2}
	svc := NewService(Deps{Fetcher: f, Sessions: session.NewStore(time.Hour)}, Options{
		FetchTimeout:  50 * time.Millisecond,
		MaxRangePages: 6,
	})
	svc.log = logger.Nop()
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	start := time.Now()
	res, err := svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 3}})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 5*time.Second)

	require.True(t, res.Incomplete)
	require.True(t, res.HasMore)
	require.Equal(t, 1, res.Page)
	require.Equal(t, []record.Record{rec("p1")}, res.Records)
	require.Contains(t, res.Warning, "page 2")
	require.Equal(t, []int{1, 2}, f.started)

	sess, ok := svc.Sessions().Get(res.SessionID)
	require.True(t, ok)
	require.Equal(t, 1, sess.CurrentPage)
	require.Equal(t, []int{1}, sess.CachedPages())
}

func TestInitialFetchTimeoutIsFetchFailed(t *testing.T) {
	f := &stallingFetcher{stall: 1}
	svc := NewService(Deps{Fetcher: f, Sessions: session.NewStore(time.Hour)}, Options{FetchTimeout: 50 * time.Millisecond})
	svc.log = logger.Nop()

	_, err := svc.Scrape(context.Background(), Request{URL: baseURL})
	require.Equal(t, CodeFetchFailed, codeOf(t, err))
	var se *Error
	require.True(t, errors.As(err, &se))
	require.ErrorIs(t, se, context.DeadlineExceeded)
	require.Equal(t, 1, se.Page)
}

func TestRangeFirstPageFailureIsFetchFailed(t *testing.T) {
	h := newHarness(t)
	h.fetch.fail[1] = 500

	_, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 1, End: 3}})
	require.Equal(t, CodeFetchFailed, codeOf(t, err))
}

func TestRangeAllEmptyIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, PageRange: &PageRange{Start: 2, End: 3}})
	require.Equal(t, CodeNotFound, codeOf(t, err))
	require.Equal(t, []int{2}, h.fetch.calls)
}

func TestRangeNeedsURL(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Scrape(context.Background(), Request{PageRange: &PageRange{Start: 1, End: 2}})
	require.Equal(t, CodeInvalidRequest, codeOf(t, err))
}

func TestRangeOnNewURLResetsPageCache(t *testing.T) {
	h := newHarness(t)
	h.fetch.rows[1] = []record.Record{rec("a")}
	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)

	other := "https://breeders.example/other"
	_, err = h.svc.Scrape(context.Background(), Request{URL: other, SessionID: res.SessionID, PageRange: &PageRange{Start: 1, End: 1}})
	require.NoError(t, err)
	require.Equal(t, []string{baseURL, other}, h.fetch.urls)

	sess, _ := h.svc.Sessions().Get(res.SessionID)
	require.Equal(t, other, sess.LastURL)
}

func TestAmbiguousRequestRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Scrape(context.Background(), Request{URL: baseURL, Pagination: true, PageRange: &PageRange{Start: 1, End: 2}})
	require.Equal(t, CodeInvalidRequest, codeOf(t, err))

	_, err = h.svc.Scrape(context.Background(), Request{})
	require.Equal(t, CodeInvalidRequest, codeOf(t, err))
	require.Zero(t, h.fetch.callCount())
}

func TestConcurrentNextPageOnOneSession(t *testing.T) {
	h := newHarness(t)
	for p := 1; p <= 9; p++ {
		h.fetch.rows[p] = []record.Record{rec(fmt.Sprint("p", p))}
	}
	res, err := h.svc.Scrape(context.Background(), Request{URL: baseURL})
	require.NoError(t, err)
	id := res.SessionID

	var wg sync.WaitGroup
	pages := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := h.svc.Scrape(context.Background(), Request{Pagination: true, SessionID: id})
			if err == nil {
				pages <- r.Page
			}
		}()
	}
	wg.Wait()
	close(pages)

	seen := map[int]bool{}
	for p := range pages {
		require.False(t, seen[p], "page %d returned twice", p)
		seen[p] = true
	}
	require.Len(t, seen, 8)

	sess, _ := h.svc.Sessions().Get(id)
	sess.Lock()
	defer sess.Unlock()
	require.Equal(t, 9, sess.CurrentPage)
	require.Len(t, sess.Results, 9)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, h.fetch.calls)
}

func TestSleepCtxHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	require.NoError(t, sleepCtx(context.Background(), 0))
}
