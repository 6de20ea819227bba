// Package safety implements the gate chain an Opportunity must clear
// before it is emitted: freshness, skew, slippage, profit-validity, and
// the circuit breaker.
package safety

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/arbworker/livearb/internal/domain"
)

// Options configures the gate thresholds, all sourced from runtime config
// (§6) with the defaults stated in the spec.
type Options struct {
	MaxPriceAge             time.Duration
	MaxSkew                 time.Duration
	MaxSlippageBps          int
	BreakerFailureThreshold uint32
	BreakerCooldown         time.Duration
}

// DefaultOptions mirrors the spec's stated defaults.
func DefaultOptions() Options {
	return Options{
		MaxPriceAge:             2000 * time.Millisecond,
		MaxSkew:                 500 * time.Millisecond,
		MaxSlippageBps:          100,
		BreakerFailureThreshold: 5,
		BreakerCooldown:         60 * time.Second,
	}
}

// Gates evaluates the ordered safety chain and owns the circuit breaker.
type Gates struct {
	opts    Options
	breaker *gobreaker.CircuitBreaker

	mu             sync.Mutex
	blockedReasons map[domain.BlockReason]int64
}

// New creates a Gates chain with a breaker that opens after
// opts.BreakerFailureThreshold consecutive executor failures and
// auto-resets after opts.BreakerCooldown.
func New(opts Options) *Gates {
	settings := gobreaker.Settings{
		Name:        "arb-executor",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailureThreshold
		},
	}
	return &Gates{
		opts:           opts,
		breaker:        gobreaker.NewCircuitBreaker(settings),
		blockedReasons: make(map[domain.BlockReason]int64),
	}
}

// SetThresholds applies runtime-config overrides to the gate limits without
// a restart. Zero values leave the corresponding limit unchanged. Breaker
// trip settings are fixed at construction.
func (g *Gates) SetThresholds(maxPriceAge, maxSkew time.Duration, maxSlippageBps int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if maxPriceAge > 0 {
		g.opts.MaxPriceAge = maxPriceAge
	}
	if maxSkew > 0 {
		g.opts.MaxSkew = maxSkew
	}
	if maxSlippageBps > 0 {
		g.opts.MaxSlippageBps = maxSlippageBps
	}
}

// Check runs the ordered gate chain against a candidate pair and its
// freshly recomputed profit percentage. It returns the first blocking
// reason, or "" if every gate passes.
func (g *Gates) Check(legA, legB domain.Leg, recomputedProfitPct, minProfitPct float64, now time.Time) domain.BlockReason {
	g.mu.Lock()
	opts := g.opts
	g.mu.Unlock()

	if legA.AgeMs(now) >= opts.MaxPriceAge.Milliseconds() || legB.AgeMs(now) >= opts.MaxPriceAge.Milliseconds() {
		return g.Block(domain.BlockFreshness)
	}

	skew := legA.ObservedAt.Sub(legB.ObservedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > opts.MaxSkew {
		return g.Block(domain.BlockSkew)
	}

	if slippageExceeds(legA, opts.MaxSlippageBps) || slippageExceeds(legB, opts.MaxSlippageBps) {
		return g.Block(domain.BlockSlippage)
	}

	if recomputedProfitPct < minProfitPct {
		return g.Block(domain.BlockProfitValidity)
	}

	if g.breaker.State() == gobreaker.StateOpen {
		return g.Block(domain.BlockBreakerOpen)
	}

	return ""
}

// slippageExceeds estimates execution slippage from the top-of-book quote:
// taking liquidity fills at the ask, (ask-mid)/mid above the mid the
// evaluator priced with. A leg without both sides quoted passes — only
// venue A's orderbook feed carries a quote; the other venues surface a
// single price and have nothing to measure against.
func slippageExceeds(leg domain.Leg, maxBps int) bool {
	if leg.BestBid == nil || leg.BestAsk == nil {
		return false
	}
	mid := (*leg.BestBid + *leg.BestAsk) / 2
	if mid <= 0 {
		return false
	}
	bps := (*leg.BestAsk - mid) / mid * 10000
	return bps > float64(maxBps)
}

// Block records one blocked opportunity under the given reason tag and
// returns it. The Evaluator also calls this directly for legs it discards
// before the full gate chain runs (e.g. no usable price at all).
func (g *Gates) Block(reason domain.BlockReason) domain.BlockReason {
	g.mu.Lock()
	g.blockedReasons[reason]++
	g.mu.Unlock()
	return reason
}

// ReportExecutionResult feeds an executor's outcome into the breaker.
func (g *Gates) ReportExecutionResult(ok bool) {
	_, _ = g.breaker.Execute(func() (interface{}, error) {
		if !ok {
			return nil, domain.ErrBreakerOpen
		}
		return nil, nil
	})
}

// Heartbeat returns the breaker's externally observable state.
func (g *Gates) Heartbeat() domain.BreakerHeartbeat {
	g.mu.Lock()
	defer g.mu.Unlock()

	reasons := make(map[string]int, len(g.blockedReasons))
	for k, v := range g.blockedReasons {
		reasons[string(k)] = int(v)
	}

	counts := g.breaker.Counts()
	return domain.BreakerHeartbeat{
		State:               g.breaker.State().String(),
		ConsecutiveFailures: int(counts.ConsecutiveFailures),
		BlockedReasons:      reasons,
	}
}
