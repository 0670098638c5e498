package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tair/marketplace-listing/internal/listing/domain"
)

// fakeFetcher serves synthetic pages and records every remote call.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []int // page indexes, in call order

	total int   // total products the "store" holds
	err   error // returned on every call when set
	gate  chan struct{} // when set, FindPage blocks until the gate closes
}

func (f *fakeFetcher) FindPage(ctx context.Context, params domain.ListParams, page int) ([]domain.Product, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.calls = append(f.calls, page)
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	start := params.Offset(page)
	if start >= f.total {
		return nil, nil
	}
	end := start + params.Limit
	if end > f.total {
		end = f.total
	}

	products := make([]domain.Product, 0, end-start)
	for i := start; i < end; i++ {
		products = append(products, domain.Product{
			ID:    fmt.Sprintf("product-%d", i),
			Title: fmt.Sprintf("Product %d", i),
			Price: float64(i),
		})
	}
	return products, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func mustNormalize(t *testing.T, p domain.ListParams) domain.ListParams {
	t.Helper()
	n, err := p.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return n
}

func TestPage_ServesRequestedRange(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	page, err := p.Page(context.Background(), params, 2)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page) != 10 {
		t.Fatalf("len(page) = %d, want 10", len(page))
	}
	if page[0].ID != "product-20" || page[9].ID != "product-29" {
		t.Errorf("page 2 covers [%s..%s], want [product-20..product-29]", page[0].ID, page[9].ID)
	}
}

func TestPage_RepeatedCallHitsCache(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	first, err := p.Page(context.Background(), params, 0)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	second, err := p.Page(context.Background(), params, 0)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	if fetcher.callCount() != 1 {
		t.Errorf("remote calls = %d, want 1", fetcher.callCount())
	}
	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Error("cached page differs from the fetched page")
	}

	stats := p.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestPage_ReturnedPageIsCallerOwned(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	first, err := p.Page(context.Background(), params, 0)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	// Mutating a served page must not corrupt the cached copy.
	first[0] = domain.Product{ID: "mutated", Title: "Mutated"}

	second, err := p.Page(context.Background(), params, 0)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("remote calls = %d, want 1: the second call must hit the cache", fetcher.callCount())
	}
	if second[0].ID != "product-0" {
		t.Errorf("cached page leaked a caller mutation: ID = %q, want product-0", second[0].ID)
	}
}

func TestPage_ParameterChangeStartsFreshKey(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())

	base := mustNormalize(t, domain.ListParams{Limit: 10})
	if _, err := p.Page(context.Background(), base, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	changed := mustNormalize(t, domain.ListParams{Limit: 10, Sort: domain.SortPriceDesc})
	if _, err := p.Page(context.Background(), changed, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	if fetcher.callCount() != 2 {
		t.Errorf("remote calls = %d, want 2: a changed tuple must not reuse cached pages", fetcher.callCount())
	}
}

func TestHasMore(t *testing.T) {
	fetcher := &fakeFetcher{total: 25}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})
	ctx := context.Background()

	if p.HasMore(params) {
		t.Error("HasMore before any load = true, want false")
	}

	// Full page: more is assumed to exist.
	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if !p.HasMore(params) {
		t.Error("HasMore after full page = false, want true")
	}
	if p.NextPage(params) != 1 {
		t.Errorf("NextPage = %d, want 1", p.NextPage(params))
	}

	// Short page: the end has been reached.
	if _, err := p.Page(ctx, params, 2); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if p.HasMore(params) {
		t.Error("HasMore after short page = true, want false")
	}
}

func TestHasMore_ExactBoundaryOverReports(t *testing.T) {
	// 20 products with limit 10: page 1 comes back full even though it is
	// the last, so the heuristic reports more and the follow-up fetch
	// returns an empty page.
	fetcher := &fakeFetcher{total: 20}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})
	ctx := context.Background()

	if _, err := p.Page(ctx, params, 1); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if !p.HasMore(params) {
		t.Fatal("HasMore at exact boundary = false, want true per the length heuristic")
	}

	page, err := p.Page(ctx, params, 2)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page) != 0 {
		t.Errorf("trailing page length = %d, want 0", len(page))
	}
	if p.HasMore(params) {
		t.Error("HasMore after empty trailing page = true, want false")
	}
}

func TestPage_ErrorSurfaces(t *testing.T) {
	wantErr := errors.New("connection refused")
	fetcher := &fakeFetcher{total: 35, err: wantErr}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	_, err := p.Page(context.Background(), params, 0)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Page() error = %v, want %v", err, wantErr)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("remote calls = %d, want 1: failures must not be auto-retried", fetcher.callCount())
	}

	// A failure is not cached: the next call reaches the store again.
	fetcher.err = nil
	if _, err := p.Page(context.Background(), params, 0); err != nil {
		t.Fatalf("Page() after recovery error = %v", err)
	}
	if fetcher.callCount() != 2 {
		t.Errorf("remote calls = %d, want 2", fetcher.callCount())
	}
}

func TestPage_ConcurrentCallsShareOneFetch(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{total: 35, gate: gate}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]domain.Product, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Page(context.Background(), params, 0)
		}(i)
	}

	// Give every caller time to attach to the outstanding call.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if len(results[i]) != 10 {
			t.Errorf("caller %d got %d products, want 10", i, len(results[i]))
		}
	}
	if fetcher.callCount() != 1 {
		t.Errorf("remote calls = %d, want 1 for concurrent identical requests", fetcher.callCount())
	}
}

func TestPrefetch_NoOpBeforeFirstLoad(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	p.Prefetch(params)
	time.Sleep(50 * time.Millisecond)

	if fetcher.callCount() != 0 {
		t.Errorf("remote calls = %d, want 0: prefetch before any load must be a no-op", fetcher.callCount())
	}
}

func TestPrefetch_NoOpWhenNoMorePages(t *testing.T) {
	fetcher := &fakeFetcher{total: 5}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})

	if _, err := p.Page(context.Background(), params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	p.Prefetch(params)
	time.Sleep(50 * time.Millisecond)

	if fetcher.callCount() != 1 {
		t.Errorf("remote calls = %d, want 1: short last page means nothing to prefetch", fetcher.callCount())
	}
}

func TestPrefetch_NoOpWhileFetchInFlight(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})
	ctx := context.Background()

	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	// Block the next fetch and start it in the background.
	gate := make(chan struct{})
	fetcher.gate = gate
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Page(ctx, params, 1)
	}()
	time.Sleep(50 * time.Millisecond)

	p.Prefetch(params)
	close(gate)
	<-done
	time.Sleep(50 * time.Millisecond)

	if got := fetcher.callCount(); got != 2 {
		t.Errorf("remote calls = %d, want 2: prefetch during an in-flight fetch must be a no-op", got)
	}
}

func TestPrefetch_FetchesNextPage(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})
	ctx := context.Background()

	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	p.Prefetch(params)

	// Wait until the background fetch lands in the cache.
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fetcher.callCount() != 2 {
		t.Fatalf("remote calls = %d, want 2 after prefetch", fetcher.callCount())
	}

	// The prefetched page is served from cache.
	if _, err := p.Page(ctx, params, 1); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if fetcher.callCount() != 2 {
		t.Errorf("remote calls = %d, want 2: prefetched page must come from cache", fetcher.callCount())
	}
}

func TestPrefetch_FailureIsSwallowed(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, DefaultOptions())
	params := mustNormalize(t, domain.ListParams{Limit: 10})
	ctx := context.Background()

	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	fetcher.mu.Lock()
	fetcher.err = errors.New("transient failure")
	fetcher.mu.Unlock()

	p.Prefetch(params)
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// The failed page stays absent and is retried on demand.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.mu.Unlock()

	page, err := p.Page(ctx, params, 1)
	if err != nil {
		t.Fatalf("Page() after failed prefetch error = %v", err)
	}
	if len(page) != 10 {
		t.Errorf("len(page) = %d, want 10", len(page))
	}
}

func TestPage_FreshnessAndRetentionWindows(t *testing.T) {
	fetcher := &fakeFetcher{total: 35}
	p := New(fetcher, Options{FreshFor: 5 * time.Minute, KeepFor: 10 * time.Minute})
	params := mustNormalize(t, domain.ListParams{Limit: 10})
	ctx := context.Background()

	current := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return current }

	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	// Within the freshness window: served from cache.
	current = current.Add(4 * time.Minute)
	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("remote calls = %d, want 1 inside freshness window", fetcher.callCount())
	}

	// Past the freshness window: a refetch is permitted.
	current = current.Add(2 * time.Minute)
	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if fetcher.callCount() != 2 {
		t.Fatalf("remote calls = %d, want 2 after freshness window", fetcher.callCount())
	}

	// Past the retention window since last use: the entry is evicted and
	// the pagination bookkeeping forgotten.
	current = current.Add(11 * time.Minute)
	if p.HasMore(params) {
		// Touch triggers eviction first.
		t.Log("HasMore after retention window still true")
	}
	if _, err := p.Page(ctx, params, 0); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if fetcher.callCount() != 3 {
		t.Errorf("remote calls = %d, want 3 after eviction", fetcher.callCount())
	}
}
