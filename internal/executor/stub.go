// Package executor provides the pluggable execution boundary the Arbitrage
// Evaluator emits cleared Opportunities into. This system stops at
// detection (executing trades is out of scope, see §1's Non-goals): Stub
// is the listener that observes opportunities the way a real order-routing
// executor eventually would, deduplicated by Opportunity.ID.
package executor

import (
	"log/slog"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// dedupWindow is how long an Opportunity.ID is remembered before a repeat
// detection (e.g. after a brief price flap) is logged again.
const dedupWindow = 30 * time.Second

// Stub is a domain.OpportunityListener that logs every newly observed,
// non-duplicate Opportunity at info level, standing in for a real executor.
type Stub struct {
	dedup *Dedup
	log   *slog.Logger
}

// NewStub creates a Stub executor listener.
func NewStub(log *slog.Logger) *Stub {
	return &Stub{
		dedup: NewDedup(dedupWindow),
		log:   log.With(slog.String("component", "executor_stub")),
	}
}

// OnOpportunity implements domain.OpportunityListener.
func (s *Stub) OnOpportunity(o domain.Opportunity) {
	if s.dedup.IsDuplicate(o.ID) {
		return
	}
	s.log.Info("opportunity ready for execution",
		slog.String("id", o.ID),
		slog.String("event_key", o.EventKey),
		slog.Float64("profit_pct", o.ProfitPct),
		slog.String("venue_a", string(o.LegA.Venue)),
		slog.String("venue_b", string(o.LegB.Venue)),
	)
}

var _ domain.OpportunityListener = (*Stub)(nil)
