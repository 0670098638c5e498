// Package pager implements page-at-a-time retrieval of product listings
// with an explicit in-memory page cache, request de-duplication and
// speculative prefetch of the next page.
package pager

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tair/marketplace-listing/internal/listing/domain"
	"github.com/tair/marketplace-listing/pkg/logger"
)

// Fetcher retrieves one page of products for a parameter tuple.
type Fetcher interface {
	FindPage(ctx context.Context, params domain.ListParams, page int) ([]domain.Product, error)
}

// Options holds the cache window configuration.
type Options struct {
	FreshFor time.Duration // a cached page may be refetched after this
	KeepFor  time.Duration // a page is evicted this long after last use
}

// DefaultOptions returns the default cache windows.
func DefaultOptions() Options {
	return Options{
		FreshFor: 5 * time.Minute,
		KeepFor:  10 * time.Minute,
	}
}

// Stats tracks cache statistics.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Prefetches uint64 `json:"prefetches"`
	Errors     uint64 `json:"errors"`
}

type pageEntry struct {
	products  []domain.Product
	fetchedAt time.Time
	lastUsed  time.Time
}

// tupleState is the pagination bookkeeping for one parameter tuple.
type tupleState struct {
	loaded   bool // at least one page has resolved
	lastPage int  // highest resolved page index
	lastLen  int  // length of that page
	limit    int
	inflight int // fetches currently outstanding
	lastUsed time.Time
}

// Pager caches listing pages keyed by (parameter tuple, page index).
// Concurrent requests for the same key attach to the one outstanding fetch.
// An in-flight fetch for a tuple that is no longer requested is allowed to
// complete and populate its own entry; nothing is cancelled on parameter
// change.
type Pager struct {
	fetcher Fetcher
	opts    Options
	group   singleflight.Group
	now     func() time.Time

	mu     sync.Mutex
	pages  map[string]*pageEntry
	tuples map[string]*tupleState

	stats Stats
}

// New creates a pager over the given fetcher.
func New(fetcher Fetcher, opts Options) *Pager {
	if opts.FreshFor <= 0 {
		opts.FreshFor = DefaultOptions().FreshFor
	}
	if opts.KeepFor <= 0 {
		opts.KeepFor = DefaultOptions().KeepFor
	}
	return &Pager{
		fetcher: fetcher,
		opts:    opts,
		now:     time.Now,
		pages:   make(map[string]*pageEntry),
		tuples:  make(map[string]*tupleState),
	}
}

func pageKey(tupleKey string, page int) string {
	return tupleKey + "#" + strconv.Itoa(page)
}

// Page returns the products of one page for the tuple. Fresh cached pages
// are served from memory; otherwise the page is fetched, and concurrent
// callers for the same key share a single remote call. A fetch failure is
// returned to the caller, never masked as an empty page, and is not retried.
// The returned slice is the caller's to mutate; the cache keeps its own copy.
func (p *Pager) Page(ctx context.Context, params domain.ListParams, page int) ([]domain.Product, error) {
	if page < 0 {
		return nil, fmt.Errorf("negative page index %d", page)
	}

	tupleKey := params.Key()
	key := pageKey(tupleKey, page)
	now := p.now()

	p.mu.Lock()
	p.evictLocked(now)
	if entry, ok := p.pages[key]; ok && now.Sub(entry.fetchedAt) < p.opts.FreshFor {
		entry.lastUsed = now
		p.touchTupleLocked(tupleKey, params, page, len(entry.products), now)
		products := clonePage(entry.products)
		p.mu.Unlock()
		atomic.AddUint64(&p.stats.Hits, 1)
		return products, nil
	}
	p.mu.Unlock()

	atomic.AddUint64(&p.stats.Misses, 1)
	return p.fetch(ctx, params, tupleKey, page)
}

// fetch performs the de-duplicated remote call for one page and records it.
func (p *Pager) fetch(ctx context.Context, params domain.ListParams, tupleKey string, page int) ([]domain.Product, error) {
	key := pageKey(tupleKey, page)

	v, err, _ := p.group.Do(key, func() (any, error) {
		p.trackInflight(tupleKey, +1)
		defer p.trackInflight(tupleKey, -1)

		products, err := p.fetcher.FindPage(ctx, params, page)
		if err != nil {
			return nil, err
		}

		now := p.now()
		p.mu.Lock()
		p.pages[key] = &pageEntry{products: products, fetchedAt: now, lastUsed: now}
		p.touchTupleLocked(tupleKey, params, page, len(products), now)
		p.mu.Unlock()

		return products, nil
	})
	if err != nil {
		atomic.AddUint64(&p.stats.Errors, 1)
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}
	// The singleflight result is shared between attached callers and aliases
	// the cached entry; each caller gets its own copy.
	return clonePage(v.([]domain.Product)), nil
}

func clonePage(products []domain.Product) []domain.Product {
	if products == nil {
		return nil
	}
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}

// HasMore reports whether a further page is known to exist for the tuple,
// inferred from whether the highest resolved page came back full. The
// heuristic over-reports at an exact page-size boundary; the cost is one
// trailing fetch that returns an empty page.
func (p *Pager) HasMore(params domain.ListParams) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts, ok := p.tuples[params.Key()]
	if !ok || !ts.loaded {
		return false
	}
	return ts.lastLen >= ts.limit
}

// NextPage returns the index of the page after the highest resolved one,
// or zero when nothing has loaded yet.
func (p *Pager) NextPage(params domain.ListParams) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts, ok := p.tuples[params.Key()]
	if !ok || !ts.loaded {
		return 0
	}
	return ts.lastPage + 1
}

// Prefetch eagerly requests the next page for the tuple without blocking
// the caller. It is a no-op unless a page has already resolved, no fetch
// for the tuple is in flight, and a further page is known to exist. A
// failed prefetch is logged and forgotten; the page simply stays absent.
func (p *Pager) Prefetch(params domain.ListParams) {
	p.mu.Lock()
	ts, ok := p.tuples[params.Key()]
	eligible := ok && ts.loaded && ts.inflight == 0 && ts.lastLen >= ts.limit
	var next int
	if eligible {
		next = ts.lastPage + 1
	}
	p.mu.Unlock()

	if !eligible {
		return
	}

	atomic.AddUint64(&p.stats.Prefetches, 1)
	go func() {
		if _, err := p.fetch(context.Background(), params, params.Key(), next); err != nil {
			logger.Logger.Warn().
				Err(err).
				Int("page", next).
				Msg("Prefetch failed")
		}
	}()
}

// GetStats returns a snapshot of the cache counters.
func (p *Pager) GetStats() Stats {
	return Stats{
		Hits:       atomic.LoadUint64(&p.stats.Hits),
		Misses:     atomic.LoadUint64(&p.stats.Misses),
		Prefetches: atomic.LoadUint64(&p.stats.Prefetches),
		Errors:     atomic.LoadUint64(&p.stats.Errors),
	}
}

func (p *Pager) trackInflight(tupleKey string, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.tuples[tupleKey]
	if !ok {
		ts = &tupleState{}
		p.tuples[tupleKey] = ts
	}
	ts.inflight += delta
	ts.lastUsed = p.now()
}

// touchTupleLocked updates pagination bookkeeping after a page is served.
// Callers hold p.mu.
func (p *Pager) touchTupleLocked(tupleKey string, params domain.ListParams, page, length int, now time.Time) {
	ts, ok := p.tuples[tupleKey]
	if !ok {
		ts = &tupleState{}
		p.tuples[tupleKey] = ts
	}
	if !ts.loaded || page >= ts.lastPage {
		ts.lastPage = page
		ts.lastLen = length
	}
	ts.loaded = true
	ts.limit = params.Limit
	ts.lastUsed = now
}

// evictLocked drops entries unused for longer than the retention window.
// Callers hold p.mu.
func (p *Pager) evictLocked(now time.Time) {
	for key, entry := range p.pages {
		if now.Sub(entry.lastUsed) > p.opts.KeepFor {
			delete(p.pages, key)
		}
	}
	for key, ts := range p.tuples {
		if ts.inflight == 0 && now.Sub(ts.lastUsed) > p.opts.KeepFor {
			delete(p.tuples, key)
		}
	}
}
