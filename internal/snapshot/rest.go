package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// restMarket is the common shape this package expects every venue's market
// listing endpoint to return (after any venue-specific field renaming the
// concrete venue client layers on top, per other_examples' convention of a
// thin response-envelope struct per vendor). Snapshot listings carry no
// live price stream, only the last-known snapshot price used as
// PriceCache's stale fallback.
type restMarket struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Kind      string     `json:"kind"`
	Sport     string     `json:"sport"`
	HomeTeam  string     `json:"homeTeam"`
	AwayTeam  string     `json:"awayTeam"`
	StartTime *time.Time `json:"startTime"`
	CloseTime time.Time  `json:"closeTime"`
	Volume    float64    `json:"volume"`
	Liquidity float64    `json:"liquidity"`
	YesPrice  float64    `json:"yesPrice"`
	NoPrice   float64    `json:"noPrice"`
}

// RESTFetcher implements VenueFetcher against one venue's market-listing
// REST endpoint, grounded on the teacher's per-venue REST client shape
// (a base URL, a shared *http.Client with a fixed timeout, doGet + decode).
type RESTFetcher struct {
	venue      domain.Venue
	listingURL string
	httpClient *http.Client
}

// NewRESTFetcher creates a RESTFetcher for the given venue and listing URL.
func NewRESTFetcher(venue domain.Venue, listingURL string) *RESTFetcher {
	return &RESTFetcher{
		venue:      venue,
		listingURL: listingURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchMarkets fetches and decodes the venue's current market listing.
func (f *RESTFetcher) FetchMarkets(ctx context.Context) ([]domain.VenueMarket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", f.venue, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch markets: %w", f.venue, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", f.venue, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", f.venue, resp.StatusCode, string(body))
	}

	var decoded struct {
		Markets []restMarket `json:"markets"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%s: decode markets: %w", f.venue, err)
	}

	out := make([]domain.VenueMarket, 0, len(decoded.Markets))
	for _, m := range decoded.Markets {
		kind := domain.MarketKindPrediction
		if m.Kind == string(domain.MarketKindSportsbook) {
			kind = domain.MarketKindSportsbook
		}
		out = append(out, domain.VenueMarket{
			ID:          m.ID,
			Venue:       f.venue,
			Kind:        kind,
			Title:       m.Title,
			HomeTeam:    m.HomeTeam,
			AwayTeam:    m.AwayTeam,
			Sport:       m.Sport,
			StartTime:   m.StartTime,
			CloseTime:   m.CloseTime,
			Volume:      m.Volume,
			Liquidity:   m.Liquidity,
			YesSnapshot: m.YesPrice,
			NoSnapshot:  m.NoPrice,
		})
	}
	return out, nil
}

var _ VenueFetcher = (*RESTFetcher)(nil)
