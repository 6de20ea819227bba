package evaluator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/matcher"
	"github.com/arbworker/livearb/internal/pricecache"
	"github.com/arbworker/livearb/internal/registry"
	"github.com/arbworker/livearb/internal/safety"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingListener struct {
	got []domain.Opportunity
}

func (r *recordingListener) OnOpportunity(o domain.Opportunity) { r.got = append(r.got, o) }

func setup(t *testing.T) (*Evaluator, *pricecache.Cache, *registry.Registry, *recordingListener) {
	t.Helper()
	cache := pricecache.New()
	reg := registry.New(matcher.DefaultOptions())
	gates := safety.New(safety.DefaultOptions())
	ev := New(cache, reg, gates, DefaultOptions(), testLogger())
	listener := &recordingListener{}
	ev.AddListener(listener)
	cache.Subscribe(ev.OnPriceUpdate)

	now := time.Now()
	reg.Refresh(domain.MarketSnapshot{Markets: []domain.VenueMarket{
		{ID: "v1-m1", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "Team A vs Team B", Sport: "soccer", CloseTime: now.Add(time.Hour)},
		{ID: "v2-m1", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "team a @ team b", Sport: "soccer", CloseTime: now.Add(time.Hour)},
	}}, now)

	return ev, cache, reg, listener
}

func TestEvaluatorEmitsOpportunityOnProfitableCross(t *testing.T) {
	_, cache, _, listener := setup(t)
	now := time.Now()

	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 55, ImpliedProbability: 0.55, Source: domain.SourceStream, ObservedAt: now,
	})
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueB, MarketID: "v2-m1", Outcome: domain.OutcomeNo},
		Price: 40, ImpliedProbability: 0.40, Source: domain.SourceStream, ObservedAt: now.Add(100 * time.Millisecond),
	})

	require.Len(t, listener.got, 1)
	o := listener.got[0]
	require.InDelta(t, 5.26, o.ProfitPct, 0.1)
	require.Equal(t, int64(100), o.SkewMs)
}

func TestEvaluatorFindsReverseSideArb(t *testing.T) {
	_, cache, _, listener := setup(t)
	now := time.Now()

	// Forward assignment YES(v1-m1)+NO(v2-m1) costs 1.10 and carries no
	// arb; the profitable construction is NO on the lower-ID market plus
	// YES on the higher-ID one (40 + 50 = 0.90).
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 60, ImpliedProbability: 0.60, Source: domain.SourceStream, ObservedAt: now,
	})
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueB, MarketID: "v2-m1", Outcome: domain.OutcomeYes},
		Price: 50, ImpliedProbability: 0.50, Source: domain.SourceStream, ObservedAt: now.Add(100 * time.Millisecond),
	})

	require.Len(t, listener.got, 1)
	o := listener.got[0]
	require.Equal(t, domain.OutcomeNo, o.LegA.Outcome)
	require.Equal(t, domain.OutcomeYes, o.LegB.Outcome)
	require.InDelta(t, 11.11, o.ProfitPct, 0.1)
}

func TestEvaluatorBlocksStaleLeg(t *testing.T) {
	_, cache, _, listener := setup(t)
	now := time.Now()

	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 55, ImpliedProbability: 0.55, Source: domain.SourceStream, ObservedAt: now,
	})
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueB, MarketID: "v2-m1", Outcome: domain.OutcomeNo},
		Price: 40, ImpliedProbability: 0.40, Source: domain.SourceStream, ObservedAt: now.Add(-3 * time.Second),
	})

	require.Empty(t, listener.got)
}

func TestEvaluatorThrottlesRapidUpdates(t *testing.T) {
	_, cache, _, listener := setup(t)
	now := time.Now()

	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 55, ImpliedProbability: 0.55, Source: domain.SourceStream, ObservedAt: now,
	})
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueB, MarketID: "v2-m1", Outcome: domain.OutcomeNo},
		Price: 40, ImpliedProbability: 0.40, Source: domain.SourceStream, ObservedAt: now,
	})
	require.Len(t, listener.got, 1)

	// A second, still-profitable update arriving inside the 100ms throttle
	// window for the same event must not trigger a second evaluation.
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 56, ImpliedProbability: 0.56, Source: domain.SourceStream, ObservedAt: now,
	})
	require.Len(t, listener.got, 1)

	time.Sleep(120 * time.Millisecond)
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 57, ImpliedProbability: 0.57, Source: domain.SourceStream, ObservedAt: time.Now(),
	})
	require.Len(t, listener.got, 2)
}

func TestEvaluatorFlipPairsYesWithYes(t *testing.T) {
	cache := pricecache.New()
	reg := registry.New(matcher.DefaultOptions())
	gates := safety.New(safety.DefaultOptions())
	ev := New(cache, reg, gates, DefaultOptions(), testLogger())
	listener := &recordingListener{}
	ev.AddListener(listener)
	cache.Subscribe(ev.OnPriceUpdate)

	now := time.Now()
	reg.Refresh(domain.MarketSnapshot{Markets: []domain.VenueMarket{
		{ID: "v1-a", Venue: domain.VenueA, Kind: domain.MarketKindPrediction, Title: "NYC temp above 70", CloseTime: now.Add(time.Hour), Liquidity: 100},
		{ID: "v2-b", Venue: domain.VenueB, Kind: domain.MarketKindPrediction, Title: "nyc temp below 70", CloseTime: now.Add(time.Hour), Liquidity: 80},
	}}, now)

	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-a", Outcome: domain.OutcomeYes},
		Price: 60, ImpliedProbability: 0.60, Source: domain.SourceStream, ObservedAt: now,
	})
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueB, MarketID: "v2-b", Outcome: domain.OutcomeYes},
		Price: 35, ImpliedProbability: 0.35, Source: domain.SourceStream, ObservedAt: now.Add(50 * time.Millisecond),
	})

	require.Len(t, listener.got, 1)
	o := listener.got[0]
	require.True(t, o.Flip)
	require.Equal(t, domain.OutcomeYes, o.LegA.Outcome)
	require.Equal(t, domain.OutcomeYes, o.LegB.Outcome)
	require.InDelta(t, 5.26, o.ProfitPct, 0.1)
}

func TestEvaluatorCostAtOneYieldsNoOpportunity(t *testing.T) {
	_, cache, _, listener := setup(t)
	now := time.Now()

	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueA, MarketID: "v1-m1", Outcome: domain.OutcomeYes},
		Price: 60, ImpliedProbability: 0.60, Source: domain.SourceStream, ObservedAt: now,
	})
	cache.Put(domain.PriceUpdate{
		Key:   domain.PriceKey{Venue: domain.VenueB, MarketID: "v2-m1", Outcome: domain.OutcomeNo},
		Price: 40, ImpliedProbability: 0.40, Source: domain.SourceStream, ObservedAt: now,
	})

	require.Empty(t, listener.got)
}
