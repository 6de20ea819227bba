package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/matcher"
)

func mkts(closeTime time.Time) []domain.VenueMarket {
	return []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", CloseTime: closeTime, Liquidity: 100},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "team a @ team b", Sport: "soccer", CloseTime: closeTime, Liquidity: 80},
	}
}

func TestRefreshAddsNewEvent(t *testing.T) {
	r := New(matcher.DefaultOptions())
	now := time.Now()

	var diffs []domain.RegistryDiff
	r.OnDiff(func(d domain.RegistryDiff) { diffs = append(diffs, d) })

	r.Refresh(domain.MarketSnapshot{Markets: mkts(now.Add(time.Hour)), FetchedAt: now}, now)

	require.Len(t, diffs, 1)
	require.Len(t, diffs[0].Added, 1)
	require.Empty(t, diffs[0].Removed)

	event, ok := r.Get("v1-m1")
	require.True(t, ok)
	require.Len(t, event.Members, 2)
}

func TestRefreshPreservesFirstSeenAt(t *testing.T) {
	r := New(matcher.DefaultOptions())
	t0 := time.Now()
	closeTime := t0.Add(2 * time.Hour)

	r.Refresh(domain.MarketSnapshot{Markets: mkts(closeTime)}, t0)
	event, _ := r.Get("v1-m1")
	firstSeen := event.FirstSeenAt

	t1 := t0.Add(time.Minute)
	r.Refresh(domain.MarketSnapshot{Markets: mkts(closeTime)}, t1)
	event2, _ := r.Get("v1-m1")

	require.Equal(t, firstSeen, event2.FirstSeenAt)
	require.Equal(t, t1, event2.LastRefreshedAt)
}

func TestRefreshRemovesEventPastCloseGrace(t *testing.T) {
	r := New(matcher.DefaultOptions())
	t0 := time.Now()
	closeTime := t0.Add(-time.Hour) // already closed

	var diffs []domain.RegistryDiff
	r.OnDiff(func(d domain.RegistryDiff) { diffs = append(diffs, d) })

	r.Refresh(domain.MarketSnapshot{Markets: mkts(closeTime)}, t0)

	_, ok := r.Get("v1-m1")
	require.False(t, ok)
	require.Empty(t, r.All())
}

func TestIncrementOpportunitiesBumpsCounter(t *testing.T) {
	r := New(matcher.DefaultOptions())
	now := time.Now()
	r.Refresh(domain.MarketSnapshot{Markets: mkts(now.Add(time.Hour))}, now)

	event, _ := r.Get("v1-m1")
	r.IncrementOpportunities(event.EventKey)

	updated, _ := r.Get("v1-m1")
	require.Equal(t, 1, updated.OpportunitiesFound)
}
