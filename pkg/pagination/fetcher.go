package pagination

import (
	"context"
	"iter"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the page size used when Options.PageSize is unset.
const DefaultPageSize = 50

// Prometheus metrics for pagination operations.
var (
	searchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jira_search_pages_total",
		Help: "Total search pages fetched",
	})

	overscanRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jira_overscan_restarts_total",
		Help: "Total offset walk restarts triggered by a changed result total",
	})
)

// Record is any search result with a stable unique identifier. Identity,
// not value equality, drives dedup.
type Record interface {
	RecordID() string
}

// Page is one page of search results plus the server's current estimate of
// the total match count. The total may change between calls when the
// backing collection is mutated during iteration.
type Page[T Record] struct {
	Records []T
	Total   int
}

// Searcher fetches a single page of results for a query. Implementations
// must forward extra options unmodified on every call.
type Searcher[T Record] interface {
	SearchPage(ctx context.Context, query string, startAt, maxResults int, extra url.Values) (Page[T], error)
}

// Options configures one FetchAll invocation.
type Options[T Record] struct {
	// Limit caps the number of yielded records. 0 means unbounded.
	Limit int

	// PageSize is the page size for each search call. Defaults to
	// DefaultPageSize.
	PageSize int

	// Overscan restarts the offset walk from zero whenever the
	// server-reported total changes between pages, so records created
	// during iteration are eventually discovered. The dedup set survives
	// restarts, so nothing is yielded twice. Reserve overscan for
	// read-only iteration: inserting into the scanned collection can
	// restart the walk indefinitely.
	Overscan bool

	// Align, when set, is applied to each record before it is yielded.
	Align func(T) T

	// Extra options forwarded verbatim to the searcher on every call.
	Extra url.Values
}

// FetchAll walks the full result set of a query and returns a lazy sequence
// of records. Each record id is yielded at most once per invocation, pages
// are consumed in server order, and no page is fetched ahead of demand.
// A page fetch failure is yielded once as the error value and ends the
// sequence; records yielded before the failure are not lost. Stopping
// consumption (break, or context cancellation) deterministically stops all
// further search calls.
func FetchAll[T Record](ctx context.Context, searcher Searcher[T], query string, opts Options[T]) iter.Seq2[T, error] {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(T, error) bool) {
		var zero T

		offset := 0
		yielded := 0
		seen := make(map[string]struct{})
		knownTotal := -1
		restartPending := false

		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			log.Info().
				Str("jql", query).
				Int("limit", opts.Limit).
				Int("offset", offset).
				Int("page_size", pageSize).
				Msg("Searching for records")

			page, err := searcher.SearchPage(ctx, query, offset, pageSize, opts.Extra)
			if err != nil {
				yield(zero, err)
				return
			}
			searchPagesTotal.Inc()

			log.Debug().
				Int("total", page.Total).
				Int("records", len(page.Records)).
				Msg("Search page received")

			if knownTotal < 0 {
				knownTotal = page.Total
			} else if opts.Overscan && page.Total != knownTotal {
				// The current page is still processed; a fetched page
				// must not be discarded.
				log.Info().
					Int("known_total", knownTotal).
					Int("new_total", page.Total).
					Msg("Result total changed, overscan restart required")
				restartPending = true
			}

			for _, record := range page.Records {
				id := record.RecordID()
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}

				if opts.Align != nil {
					record = opts.Align(record)
				}

				yielded++
				if !yield(record, nil) {
					return
				}

				if opts.Limit > 0 && yielded >= opts.Limit {
					log.Info().Int("yielded", yielded).Msg("Fetch limit reached")
					return
				}
			}

			offset += pageSize
			if offset > knownTotal {
				if restartPending {
					overscanRestartsTotal.Inc()
					offset = 0
					knownTotal = -1
					restartPending = false
					continue
				}
				break
			}
		}

		log.Info().Int("yielded", yielded).Msg("Fetch complete")
	}
}
