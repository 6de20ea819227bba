package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
)

func TestRESTFetcherMapsMarketsFromListingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"markets": [
				{
					"id": "evt-1",
					"title": "Team X vs Team Y",
					"kind": "sportsbook",
					"sport": "nfl",
					"homeTeam": "Team X",
					"awayTeam": "Team Y",
					"closeTime": "2026-09-01T00:00:00Z",
					"volume": 1000,
					"liquidity": 500,
					"yesPrice": 1.91,
					"noPrice": 2.05
				}
			]
		}`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(domain.VenueC, srv.URL)
	markets, err := f.FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, "evt-1", m.ID)
	assert.Equal(t, domain.VenueC, m.Venue)
	assert.Equal(t, domain.MarketKindSportsbook, m.Kind)
	assert.Equal(t, "Team X", m.HomeTeam)
	assert.Equal(t, "nfl", m.Sport)
	assert.InDelta(t, 1.91, m.YesSnapshot, 0.0001)
}

func TestRESTFetcherDefaultsToPredictionKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"markets": [{"id": "evt-2", "kind": "unknown-kind"}]}`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(domain.VenueA, srv.URL)
	markets, err := f.FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, domain.MarketKindPrediction, markets[0].Kind)
}

func TestRESTFetcherReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	f := NewRESTFetcher(domain.VenueB, srv.URL)
	_, err := f.FetchMarkets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestRESTFetcherReturnsErrorOnUnreachableHost(t *testing.T) {
	f := NewRESTFetcher(domain.VenueA, "http://127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := f.FetchMarkets(ctx)
	require.Error(t, err)
}
