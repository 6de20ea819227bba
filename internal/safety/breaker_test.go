package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
)

func testOptions() Options {
	return Options{
		MaxPriceAge:             2000 * time.Millisecond,
		MaxSkew:                 500 * time.Millisecond,
		MaxSlippageBps:          100,
		BreakerFailureThreshold: 3,
		BreakerCooldown:         50 * time.Millisecond,
	}
}

func freshLegs(now time.Time) (domain.Leg, domain.Leg) {
	return domain.Leg{Venue: domain.VenueA, MarketID: "m1", Outcome: domain.OutcomeYes, Price: 40, ObservedAt: now},
		domain.Leg{Venue: domain.VenueB, MarketID: "m2", Outcome: domain.OutcomeNo, Price: 40, ObservedAt: now}
}

func TestCheckPassesWhenEveryGateClears(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)

	reason := g.Check(legA, legB, 5.0, 0.5, now)
	require.Empty(t, reason)
}

func TestCheckBlocksOnStaleLeg(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)
	legA.ObservedAt = now.Add(-3 * time.Second)

	reason := g.Check(legA, legB, 5.0, 0.5, now)
	require.Equal(t, domain.BlockFreshness, reason)
}

func TestCheckBlocksOnExcessiveSkew(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)
	legB.ObservedAt = now.Add(-800 * time.Millisecond)

	reason := g.Check(legA, legB, 5.0, 0.5, now)
	require.Equal(t, domain.BlockSkew, reason)
}

func TestCheckBlocksOnWideSpread(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)

	// Mid 50, crossing to the ask costs 2000 bps over mid.
	bid, ask := 40.0, 60.0
	legA.BestBid, legA.BestAsk = &bid, &ask
	reason := g.Check(legA, legB, 5.0, 0.5, now)
	require.Equal(t, domain.BlockSlippage, reason)

	// A tight quote (20 bps to cross) passes.
	tightBid, tightAsk := 49.9, 50.1
	legA.BestBid, legA.BestAsk = &tightBid, &tightAsk
	require.Empty(t, g.Check(legA, legB, 5.0, 0.5, now))
}

func TestCheckBlocksOnInsufficientProfit(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)

	reason := g.Check(legA, legB, 0.1, 0.5, now)
	require.Equal(t, domain.BlockProfitValidity, reason)
}

func TestCheckPrioritizesFreshnessOverOtherGates(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)
	legA.ObservedAt = now.Add(-3 * time.Second)
	legB.ObservedAt = now.Add(-3 * time.Second).Add(-800 * time.Millisecond)

	reason := g.Check(legA, legB, 0.1, 0.5, now)
	require.Equal(t, domain.BlockFreshness, reason)
}

func TestCheckBlocksWhenBreakerOpen(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)

	for i := 0; i < int(testOptions().BreakerFailureThreshold); i++ {
		g.ReportExecutionResult(false)
	}

	reason := g.Check(legA, legB, 5.0, 0.5, now)
	require.Equal(t, domain.BlockBreakerOpen, reason)
}

func TestHeartbeatReflectsBlockedReasonCounts(t *testing.T) {
	g := New(testOptions())
	now := time.Now()
	legA, legB := freshLegs(now)
	legA.ObservedAt = now.Add(-3 * time.Second)

	g.Check(legA, legB, 5.0, 0.5, now)
	g.Check(legA, legB, 5.0, 0.5, now)

	hb := g.Heartbeat()
	require.Equal(t, 2, hb.BlockedReasons[string(domain.BlockFreshness)])
}
