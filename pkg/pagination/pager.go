package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for traversal behavior.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webstatus_pages_fetched_total",
		Help: "Total pages fetched across all traversals",
	})

	traversalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webstatus_traversals_total",
		Help: "Finished traversals by outcome",
	}, []string{"outcome"})

	tokenCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webstatus_token_cycles_total",
		Help: "Traversals stopped by a repeated continuation token",
	})
)

// ErrTokenCycle is returned when a traversal receives a continuation
// token it has already consumed; the traversal terminates instead of
// looping.
var ErrTokenCycle = errors.New("continuation token repeated")

// PageFetcher executes one page request for a filter string. pageToken
// is empty for the first page of a traversal. Implementations own
// transport, timeout, and retry concerns; the pager only sequences
// calls and threads continuation tokens.
type PageFetcher interface {
	FetchPage(ctx context.Context, filter, pageToken string) (*Page, error)
}

// Pager walks the pages of one traversal. Create it with NewPager, pull
// pages with Next and Page, and check Err after Next returns false.
// A Pager is single-use and not safe for concurrent use.
type Pager struct {
	ctx     context.Context
	fetcher PageFetcher
	filter  string

	token   string
	seen    map[string]struct{}
	page    *Page
	pages   int
	records int
	started time.Time

	stopAfter bool
	done      bool
	err       error
	deferred  error
}

// NewPager begins a traversal for the given filter string. ctx scopes
// the whole traversal: cancelling it aborts the in-flight request and
// every later Next returns false with the cancellation as Err.
func NewPager(ctx context.Context, fetcher PageFetcher, filter string) *Pager {
	return &Pager{
		ctx:     ctx,
		fetcher: fetcher,
		filter:  filter,
		seen:    make(map[string]struct{}),
		started: time.Now(),
	}
}

// Next fetches the next page. It returns false when the traversal is
// finished, either normally or with an error; check Err to tell the two
// apart. The page produced by a successful Next is available via Page.
func (p *Pager) Next() bool {
	if p.done {
		return false
	}
	if p.stopAfter {
		p.finish(p.deferred)
		return false
	}

	page, err := p.fetcher.FetchPage(p.ctx, p.filter, p.token)
	if err != nil {
		log.Warn().
			Err(err).
			Int("pages", p.pages).
			Msg("Page fetch failed - stopping traversal")
		p.finish(err)
		return false
	}

	p.page = page
	p.pages++
	p.records += len(page.Records)
	pagesFetchedTotal.Inc()

	log.Debug().
		Int("page", p.pages).
		Int("records", len(page.Records)).
		Bool("has_next", page.NextPageToken != "").
		Msg("Page fetched")

	switch {
	case len(page.Records) == 0:
		// An empty page ends the traversal even when a token is present,
		// guarding against servers that hand out tokens forever.
		p.stopAfter = true
	case page.NextPageToken == "":
		p.stopAfter = true
	default:
		if _, dup := p.seen[page.NextPageToken]; dup {
			tokenCyclesTotal.Inc()
			log.Warn().
				Str("page_token", page.NextPageToken).
				Int("pages", p.pages).
				Msg("Continuation token repeated - stopping traversal")
			p.stopAfter = true
			p.deferred = fmt.Errorf("%w after %d pages", ErrTokenCycle, p.pages)
		} else {
			p.seen[page.NextPageToken] = struct{}{}
			p.token = page.NextPageToken
		}
	}

	return true
}

// Page returns the page fetched by the most recent successful Next.
func (p *Pager) Page() *Page {
	return p.page
}

// Err returns the error that terminated the traversal, or nil if it
// finished normally or is still in progress.
func (p *Pager) Err() error {
	return p.err
}

func (p *Pager) finish(err error) {
	p.done = true
	p.err = err

	outcome := "complete"
	if err != nil {
		outcome = "error"
	}
	traversalsTotal.WithLabelValues(outcome).Inc()

	if err == nil {
		log.Info().
			Str("filter", p.filter).
			Int("pages", p.pages).
			Int("records", p.records).
			Dur("duration", time.Since(p.started)).
			Msg("Traversal complete")
	}
}

// RecordIterator flattens a traversal into individual records, pulling
// the next page only after the current page's records are consumed.
type RecordIterator struct {
	pager   *Pager
	records []Record
	idx     int
	current Record
}

// NewRecordIterator begins a record-by-record traversal for the given
// filter string. Like the Pager underneath it is single-use.
func NewRecordIterator(ctx context.Context, fetcher PageFetcher, filter string) *RecordIterator {
	return &RecordIterator{pager: NewPager(ctx, fetcher, filter)}
}

// Next advances to the next record, fetching further pages as needed.
// It returns false when the traversal is finished; check Err to tell
// normal termination from failure.
func (it *RecordIterator) Next() bool {
	for it.idx >= len(it.records) {
		if !it.pager.Next() {
			return false
		}
		it.records = it.pager.Page().Records
		it.idx = 0
	}
	it.current = it.records[it.idx]
	it.idx++
	return true
}

// Record returns the record produced by the most recent successful Next.
func (it *RecordIterator) Record() Record {
	return it.current
}

// Err returns the error that terminated the traversal, or nil.
func (it *RecordIterator) Err() error {
	return it.pager.Err()
}

// CollectRecords drains a full traversal into memory. If any page fetch
// fails the whole collection fails and partially collected records are
// discarded; callers that want partial results should iterate instead.
func CollectRecords(ctx context.Context, fetcher PageFetcher, filter string) ([]Record, error) {
	it := NewRecordIterator(ctx, fetcher, filter)
	var records []Record
	for it.Next() {
		records = append(records, it.Record())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
