// Package evaluator implements the Arbitrage Evaluator: on every Price
// Cache update it re-prices every pair of members in the enclosing
// TrackedEvent and emits Opportunities that clear the safety gates.
package evaluator

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/registry"
	"github.com/arbworker/livearb/internal/safety"
)

// Options configures the evaluator's tunables, all sourced from runtime
// config (§6).
type Options struct {
	Throttle     time.Duration
	MaxPriceAge  time.Duration
	MinProfitPct float64
}

// DefaultOptions mirrors the spec's stated defaults.
func DefaultOptions() Options {
	return Options{
		Throttle:     100 * time.Millisecond,
		MaxPriceAge:  2000 * time.Millisecond,
		MinProfitPct: 0.5,
	}
}

// Evaluator is read-only over the Price Cache and Event Registry.
type Evaluator struct {
	cache domain.PriceCache
	reg   *registry.Registry
	gates *safety.Gates
	log   *slog.Logger

	mu         sync.Mutex
	opts       Options
	lastEvalAt map[string]time.Time // eventKey -> last emitting evaluation

	listeners []domain.OpportunityListener
}

// New creates an Evaluator wired to the given Price Cache, Registry, and
// Safety gates.
func New(cache domain.PriceCache, reg *registry.Registry, gates *safety.Gates, opts Options, log *slog.Logger) *Evaluator {
	return &Evaluator{
		cache:      cache,
		reg:        reg,
		gates:      gates,
		opts:       opts,
		log:        log.With(slog.String("component", "evaluator")),
		lastEvalAt: make(map[string]time.Time),
	}
}

// AddListener registers a recipient for emitted Opportunities (executor,
// logger). Panics from a listener are isolated and never propagate.
func (e *Evaluator) AddListener(l domain.OpportunityListener) {
	e.listeners = append(e.listeners, l)
}

// SetLimits applies runtime-config overrides without a restart. Zero values
// leave the corresponding limit unchanged.
func (e *Evaluator) SetLimits(minProfitPct float64, maxPriceAge, throttle time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minProfitPct > 0 {
		e.opts.MinProfitPct = minProfitPct
	}
	if maxPriceAge > 0 {
		e.opts.MaxPriceAge = maxPriceAge
	}
	if throttle > 0 {
		e.opts.Throttle = throttle
	}
}

func (e *Evaluator) options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// OnPriceUpdate is the Price Cache's change handler. It is synchronous and
// must stay cheap per the cache's contract; the pairwise work is bounded by
// event size and the per-event throttle, and never touches I/O.
func (e *Evaluator) OnPriceUpdate(key domain.PriceKey, _ domain.PricePoint) {
	event, ok := e.reg.Get(key.MarketID)
	if !ok {
		return
	}

	now := time.Now()
	opts := e.options()
	if e.throttled(event.EventKey, now, opts.Throttle) {
		return
	}

	opportunities := e.evaluateEvent(event, now, opts)
	if len(opportunities) == 0 {
		return
	}
	e.markEvaluated(event.EventKey, now)

	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].ProfitPct > opportunities[j].ProfitPct
	})

	for _, o := range opportunities {
		e.reg.IncrementOpportunities(o.EventKey)
		e.notify(o)
	}
}

// throttled reports whether the event emitted within the throttle window;
// markEvaluated stamps the window start once an evaluation actually emits,
// so repeated unprofitable updates coalesce on the cache side rather than
// starving the first profitable one.
func (e *Evaluator) throttled(eventKey string, now time.Time, throttle time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastEvalAt[eventKey]
	return ok && now.Sub(last) < throttle
}

func (e *Evaluator) markEvaluated(eventKey string, now time.Time) {
	e.mu.Lock()
	e.lastEvalAt[eventKey] = now
	e.mu.Unlock()
}

// evaluateEvent enumerates all unordered member pairs and returns every
// opportunity that clears freshness/profit/safety gates.
func (e *Evaluator) evaluateEvent(event domain.TrackedEvent, now time.Time, opts Options) []domain.Opportunity {
	var out []domain.Opportunity

	members := event.Members
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if a.Venue() == b.Venue() {
				continue
			}
			o, ok := e.evaluatePair(event, a, b, now, opts)
			if ok {
				out = append(out, o)
			}
		}
	}
	return out
}

// evaluatePair prices one member pair in both directions and keeps the
// better one: YES(a)+NO(b) and NO(a)+YES(b) are mirror constructions whose
// costs sum to 2 on exactly-complemented prediction books, so the arb lives
// on whichever side the pair enumeration did not happen to put first. Flip
// annotations mean both members share the same pairwise direction family but
// opposite literal directions: then YES pairs with YES and NO with NO.
func (e *Evaluator) evaluatePair(event domain.TrackedEvent, a, b domain.EventMember, now time.Time, opts Options) (domain.Opportunity, bool) {
	flip := a.Flip != b.Flip

	sides := [2][2]domain.Outcome{
		{domain.OutcomeYes, domain.OutcomeNo},
		{domain.OutcomeNo, domain.OutcomeYes},
	}
	if flip {
		sides = [2][2]domain.Outcome{
			{domain.OutcomeYes, domain.OutcomeYes},
			{domain.OutcomeNo, domain.OutcomeNo},
		}
	}

	var best domain.Opportunity
	found := false
	priced := false

	for _, s := range sides {
		pa, okA := e.cache.GetEffective(a.Market, s[0], opts.MaxPriceAge)
		pb, okB := e.cache.GetEffective(b.Market, s[1], opts.MaxPriceAge)
		if !okA || !okB {
			continue
		}
		priced = true

		cost := roundUpCents(pa.Price+pb.Price) / 100
		if cost >= 1.0 {
			continue
		}
		profitPct := (1 - cost) / cost * 100
		if profitPct < opts.MinProfitPct {
			continue
		}

		legA := domain.Leg{Venue: a.Venue(), MarketID: a.Market.ID, Outcome: s[0], Price: pa.Price, ObservedAt: pa.ObservedAt, BestBid: pa.BestBid, BestAsk: pa.BestAsk}
		legB := domain.Leg{Venue: b.Venue(), MarketID: b.Market.ID, Outcome: s[1], Price: pb.Price, ObservedAt: pb.ObservedAt, BestBid: pb.BestBid, BestAsk: pb.BestAsk}

		reason := e.gates.Check(legA, legB, profitPct, opts.MinProfitPct, now)
		if reason != "" {
			e.log.Debug("opportunity blocked", slog.String("event", event.EventKey), slog.String("reason", string(reason)))
			continue
		}

		if found && profitPct <= best.ProfitPct {
			continue
		}

		skew := legA.ObservedAt.Sub(legB.ObservedAt)
		if skew < 0 {
			skew = -skew
		}
		best = domain.Opportunity{
			ID:         domain.BuildOpportunityID(event.EventKey, a.Market.ID, b.Market.ID, now),
			EventKey:   event.EventKey,
			LegA:       legA,
			LegB:       legB,
			ProfitAbs:  1 - cost,
			ProfitPct:  profitPct,
			SkewMs:     skew.Milliseconds(),
			Flip:       flip,
			DetectedAt: now,
		}
		found = true
	}

	if !priced {
		// Neither direction had both legs priced: a leg with no fresh cached
		// point and no snapshot price is indistinguishable from an
		// infinitely stale one.
		e.gates.Block(domain.BlockFreshness)
	}
	return best, found
}

// roundUpCents rounds a cent-denominated cost up to the next whole cent,
// matching venue fee rounding.
func roundUpCents(cents float64) float64 {
	return math.Ceil(cents)
}

func (e *Evaluator) notify(o domain.Opportunity) {
	for _, l := range e.listeners {
		func(l domain.OpportunityListener) {
			defer func() { recover() }()
			l.OnOpportunity(o)
		}(l)
	}
}
