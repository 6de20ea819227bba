package pricecache

import (
	"testing"
	"time"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestPutMonotonicObservedAt(t *testing.T) {
	c := New()
	key := domain.PriceKey{Venue: domain.VenueA, MarketID: "m1", Outcome: domain.OutcomeYes}
	t0 := time.Now()

	ok := c.Put(domain.PriceUpdate{Key: key, Price: 55, ImpliedProbability: 0.55, Source: domain.SourceStream, ObservedAt: t0})
	require.True(t, ok)

	// Older update is rejected.
	ok = c.Put(domain.PriceUpdate{Key: key, Price: 10, ImpliedProbability: 0.10, Source: domain.SourceStream, ObservedAt: t0.Add(-time.Second)})
	require.False(t, ok)

	p, found := c.Get(key)
	require.True(t, found)
	require.Equal(t, 55.0, p.Price)

	// Equal ObservedAt is accepted (refined metadata case).
	ok = c.Put(domain.PriceUpdate{Key: key, Price: 56, ImpliedProbability: 0.56, Source: domain.SourceStream, ObservedAt: t0})
	require.True(t, ok)
	p, _ = c.Get(key)
	require.Equal(t, 56.0, p.Price)
}

func TestPutComplementsPredictionOutcome(t *testing.T) {
	c := New()
	key := domain.PriceKey{Venue: domain.VenueB, MarketID: "m2", Outcome: domain.OutcomeYes}
	now := time.Now()

	c.Put(domain.PriceUpdate{Key: key, Price: 60, ImpliedProbability: 0.60, Source: domain.SourceStream, ObservedAt: now})

	noKey := domain.PriceKey{Venue: domain.VenueB, MarketID: "m2", Outcome: domain.OutcomeNo}
	noPoint, found := c.Get(noKey)
	require.True(t, found)
	require.InDelta(t, 40.0, noPoint.Price, 1e-9)
	require.InDelta(t, 0.40, noPoint.ImpliedProbability, 1e-9)
}

func TestPutDoesNotComplementSportsbook(t *testing.T) {
	c := New()
	key := domain.PriceKey{Venue: domain.VenueC, MarketID: "m3", Outcome: domain.OutcomeYes}
	now := time.Now()

	c.Put(domain.PriceUpdate{Key: key, Price: 1.80, ImpliedProbability: 1.0 / 1.80, Source: domain.SourceStream, ObservedAt: now})

	noKey := domain.PriceKey{Venue: domain.VenueC, MarketID: "m3", Outcome: domain.OutcomeNo}
	_, found := c.Get(noKey)
	require.False(t, found)
}

func TestGetEffectiveFallsBackToSnapshot(t *testing.T) {
	c := New()
	market := domain.VenueMarket{ID: "m4", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, YesSnapshot: 42, NoSnapshot: 58}

	p, ok := c.GetEffective(market, domain.OutcomeYes, 2*time.Second)
	require.True(t, ok)
	require.Equal(t, domain.SourceSnapshot, p.Source)
	require.Equal(t, 42.0, p.Price)

	key := domain.PriceKey{Venue: domain.VenueA, MarketID: "m4", Outcome: domain.OutcomeYes}
	c.Put(domain.PriceUpdate{Key: key, Price: 45, ImpliedProbability: 0.45, Source: domain.SourceStream, ObservedAt: time.Now()})

	p, ok = c.GetEffective(market, domain.OutcomeYes, 2*time.Second)
	require.True(t, ok)
	require.Equal(t, domain.SourceStream, p.Source)
	require.Equal(t, 45.0, p.Price)
}

func TestGetEffectiveStaleFallsBackToSnapshot(t *testing.T) {
	c := New()
	market := domain.VenueMarket{ID: "m5", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, YesSnapshot: 33, NoSnapshot: 67}
	key := domain.PriceKey{Venue: domain.VenueA, MarketID: "m5", Outcome: domain.OutcomeYes}

	c.Put(domain.PriceUpdate{Key: key, Price: 70, ImpliedProbability: 0.70, Source: domain.SourceStream, ObservedAt: time.Now().Add(-5 * time.Second)})

	p, ok := c.GetEffective(market, domain.OutcomeYes, 2*time.Second)
	require.True(t, ok)
	require.Equal(t, domain.SourceSnapshot, p.Source)
	require.Equal(t, 33.0, p.Price)
}

func TestIsStale(t *testing.T) {
	c := New()
	key := domain.PriceKey{Venue: domain.VenueA, MarketID: "m6", Outcome: domain.OutcomeYes}
	require.True(t, c.IsStale(key, time.Second))

	c.Put(domain.PriceUpdate{Key: key, Price: 50, ImpliedProbability: 0.5, Source: domain.SourceStream, ObservedAt: time.Now()})
	require.False(t, c.IsStale(key, time.Second))
}

func TestSubscribeFiresOnEveryAcceptedPut(t *testing.T) {
	c := New()
	key := domain.PriceKey{Venue: domain.VenueA, MarketID: "m7", Outcome: domain.OutcomeYes}
	var calls int
	unsub := c.Subscribe(func(k domain.PriceKey, _ domain.PricePoint) {
		// The complementary NO mirror fires handlers too; count only the
		// key under test.
		if k == key {
			calls++
		}
	})
	defer unsub()

	now := time.Now()
	c.Put(domain.PriceUpdate{Key: key, Price: 50, ImpliedProbability: 0.5, Source: domain.SourceStream, ObservedAt: now})
	c.Put(domain.PriceUpdate{Key: key, Price: 50, ImpliedProbability: 0.5, Source: domain.SourceStream, ObservedAt: now})

	require.Equal(t, 2, calls)
}

func TestClearRemovesAllPoints(t *testing.T) {
	c := New()
	key := domain.PriceKey{Venue: domain.VenueA, MarketID: "m8", Outcome: domain.OutcomeYes}
	c.Put(domain.PriceUpdate{Key: key, Price: 50, ImpliedProbability: 0.5, Source: domain.SourceStream, ObservedAt: time.Now()})
	c.Clear()
	_, found := c.Get(key)
	require.False(t, found)
}
