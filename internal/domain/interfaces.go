package domain

import (
	"context"
	"time"
)

// PriceCache is the single source of truth for the freshest known price per
// (venue, marketId, outcome). Implementations must not perform I/O on Put,
// Get, GetEffective, or IsStale — those are the hot path.
type PriceCache interface {
	Put(update PriceUpdate) bool
	Get(key PriceKey) (PricePoint, bool)
	GetEffective(market VenueMarket, outcome Outcome, maxAge time.Duration) (PricePoint, bool)
	IsStale(key PriceKey, maxAge time.Duration) bool
	Stats() CacheStats
	Subscribe(handler func(PriceKey, PricePoint)) (unsubscribe func())
	Clear()
}

// StateChangeHandler is notified on every Venue Stream Client state
// transition.
type StateChangeHandler func(ConnectionStatus)

// VenueClient is the abstract contract every concrete venue implementation
// satisfies: connection lifecycle, idempotent subscription management, and
// price normalization feeding a PriceCache.
type VenueClient interface {
	Venue() Venue
	Connect(ctx context.Context) error
	Disconnect() error
	SubscribeMarkets(ids []string) error
	UnsubscribeMarkets(ids []string) error
	Status() ConnectionStatus
	OnStateChange(handler StateChangeHandler)
}

// SnapshotSource fetches the current set of VenueMarkets used to seed and
// refresh the Event Registry. This spec treats venue REST discovery as a
// data source only, not a hard part of the system, so this interface has a
// single lightweight implementation rather than a full scraper.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (MarketSnapshot, error)
}

// RuntimeConfigKV reads the polling runtime-configuration object from the
// external key/value store described in the external-interfaces section.
type RuntimeConfigKV interface {
	GetRuntimeConfig(ctx context.Context) (RuntimeConfig, error)
}

// HeartbeatKV writes a WorkerHeartbeat document to a single fixed key.
type HeartbeatKV interface {
	WriteHeartbeat(ctx context.Context, hb WorkerHeartbeat) error
}

// OpportunityLogKV appends opportunities to a date-partitioned, bounded,
// append-only list.
type OpportunityLogKV interface {
	AppendOpportunity(ctx context.Context, o Opportunity) error
}

// RuntimeConfig mirrors the external KV's runtime-configuration object (§6).
// MaxSubscriptionsPerVenue is -1 when the KV field is absent: zero is a
// meaningful setting (no subscriptions at all, evaluation on snapshot prices
// only) and must stay distinguishable from "not configured".
type RuntimeConfig struct {
	LiveArbEnabled           bool
	RuleBasedMatcherEnabled  bool
	SportsOnly               bool
	LiveEventsOnly           bool
	MinProfitBps             int
	MaxPriceAgeMs            int
	MaxSkewMs                int
	MaxSlippageBps           int
	MaxSubscriptionsPerVenue int
	RefreshIntervalMs        int
}
