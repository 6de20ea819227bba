// Package snapshot implements domain.SnapshotSource: a thin REST fetcher
// over each venue's public market-listing endpoint, combined into one
// MarketSnapshot. Venue REST discovery is a data source only in this
// system (§4.3's Non-goals), so this stays a single lightweight
// implementation rather than a full per-venue scraper.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// VenueFetcher fetches the current page of VenueMarkets for one venue.
type VenueFetcher interface {
	FetchMarkets(ctx context.Context) ([]domain.VenueMarket, error)
}

// Source implements domain.SnapshotSource by fanning out to every enabled
// venue's VenueFetcher and concatenating the results. A single venue's
// fetch failure is logged by the caller (via the returned error) and does
// not exclude the other venues' results from a best-effort partial
// snapshot; callers that require all-or-nothing semantics should treat a
// non-nil error as fatal instead of using the partial Markets slice.
type Source struct {
	fetchers map[domain.Venue]VenueFetcher
}

// New creates a Source over the given per-venue fetchers.
func New(fetchers map[domain.Venue]VenueFetcher) *Source {
	return &Source{fetchers: fetchers}
}

// FetchSnapshot fetches every enabled venue's markets concurrently and
// returns the combined snapshot. It returns the partial snapshot alongside
// the first encountered error so a single venue's REST outage does not
// stall discovery for the others.
func (s *Source) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	type result struct {
		venue   domain.Venue
		markets []domain.VenueMarket
		err     error
	}

	out := make(chan result, len(s.fetchers))
	for venue, fetcher := range s.fetchers {
		go func(venue domain.Venue, fetcher VenueFetcher) {
			markets, err := fetcher.FetchMarkets(ctx)
			out <- result{venue: venue, markets: markets, err: err}
		}(venue, fetcher)
	}

	var all []domain.VenueMarket
	var firstErr error
	for i := 0; i < len(s.fetchers); i++ {
		r := <-out
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("snapshot: venue %s: %w", r.venue, r.err)
			}
			continue
		}
		all = append(all, r.markets...)
	}

	return domain.MarketSnapshot{Markets: all, FetchedAt: time.Now()}, firstErr
}

var _ domain.SnapshotSource = (*Source)(nil)
