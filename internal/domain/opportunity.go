package domain

import (
	"fmt"
	"time"
)

// Leg is one side of a two-leg arbitrage opportunity. BestBid/BestAsk carry
// the top-of-book quote when the venue surfaces one, so the slippage gate
// can compare the mid the evaluator priced with against the quote it would
// actually cross.
type Leg struct {
	Venue      Venue
	MarketID   string
	Outcome    Outcome
	Price      float64
	ObservedAt time.Time
	BestBid    *float64
	BestAsk    *float64
}

// AgeMs returns how stale this leg's observation was at detection time.
func (l Leg) AgeMs(now time.Time) int64 {
	return now.Sub(l.ObservedAt).Milliseconds()
}

// Opportunity is a detected arbitrage: two legs from distinct venues whose
// combined cost is strictly below the guaranteed payout.
type Opportunity struct {
	ID         string
	EventKey   string
	LegA       Leg
	LegB       Leg
	ProfitAbs  float64
	ProfitPct  float64
	SkewMs     int64
	Flip       bool
	DetectedAt time.Time
}

// BuildOpportunityID derives the deterministic, idempotent opportunity id
// described in the data model: (eventKey, legA.marketId, legB.marketId,
// detectedAt rounded to the second).
func BuildOpportunityID(eventKey, marketA, marketB string, detectedAt time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", eventKey, marketA, marketB, detectedAt.Unix())
}

// BlockReason tags why a candidate opportunity was suppressed by a safety
// gate. See Safety & Circuit Breaker gate ordering.
type BlockReason string

const (
	BlockFreshness      BlockReason = "freshness"
	BlockSkew           BlockReason = "skew"
	BlockSlippage       BlockReason = "slippage"
	BlockProfitValidity BlockReason = "profitValidity"
	BlockBreakerOpen    BlockReason = "breakerOpen"
)

// OpportunityListener receives every Opportunity that clears all safety
// gates. Listener panics/errors are isolated by the caller and never
// propagate into the evaluation path.
type OpportunityListener interface {
	OnOpportunity(o Opportunity)
}
