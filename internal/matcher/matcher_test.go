package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
)

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestMatchGroupsTwoVenueSoccerEvent(t *testing.T) {
	markets := []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z"), Liquidity: 100},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "team a @ team b", Sport: "soccer", StartTime: ts("2025-03-01T18:10:00Z"), Liquidity: 80},
	}

	events := Match(markets, DefaultOptions(), time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC))
	require.Len(t, events, 1)
	require.Len(t, events[0].Members, 2)
	require.GreaterOrEqual(t, events[0].MatchQuality, 0.70)
}

func TestMatchRejectsSingleVenueGroup(t *testing.T) {
	markets := []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z")},
	}
	events := Match(markets, DefaultOptions(), time.Now())
	require.Empty(t, events)
}

func TestMatchRejectsDisagreeingStartTimes(t *testing.T) {
	markets := []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z")},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "team a @ team b", Sport: "soccer", StartTime: ts("2025-03-01T20:00:00Z")},
	}
	events := Match(markets, DefaultOptions(), time.Now())
	require.Empty(t, events)
}

func TestMatchOpposingDirectionSetsFlip(t *testing.T) {
	markets := []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "NYC temp above 70", Liquidity: 100},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "nyc temp below 70", Liquidity: 80},
	}
	events := Match(markets, DefaultOptions(), time.Now())
	require.Len(t, events, 1)

	var sawFlip bool
	for _, m := range events[0].Members {
		if m.Flip {
			sawFlip = true
		}
	}
	require.True(t, sawFlip)
}

func TestMatchIsIdempotent(t *testing.T) {
	markets := []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z")},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "team a @ team b", Sport: "soccer", StartTime: ts("2025-03-01T18:05:00Z")},
	}
	now := time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC)

	first := Match(markets, DefaultOptions(), now)
	second := Match(markets, DefaultOptions(), now)
	require.Equal(t, first, second)
}

func TestMatchKeepsHighestLiquidityPerVenue(t *testing.T) {
	markets := []domain.VenueMarket{
		{ID: "v1-low", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z"), Liquidity: 10},
		{ID: "v1-high", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "team a vs team b", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z"), Liquidity: 999},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "team a @ team b", Sport: "soccer", StartTime: ts("2025-03-01T18:00:00Z"), Liquidity: 50},
	}
	events := Match(markets, DefaultOptions(), time.Now())
	require.Len(t, events, 1)
	require.Len(t, events[0].Members, 2)

	ids := map[string]bool{}
	for _, m := range events[0].Members {
		ids[m.Market.ID] = true
	}
	require.True(t, ids["v1-high"])
	require.False(t, ids["v1-low"])
}
