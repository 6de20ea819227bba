// Package domain defines the shared entities and ports for the live
// cross-venue arbitrage data plane: price points, venue markets, tracked
// events, connection status, opportunities, and worker heartbeats.
package domain

import "time"

// Venue identifies one of the three supported trading venues.
type Venue string

const (
	VenueA Venue = "V1" // prediction venue, cent prices, orderbook bid/ask
	VenueB Venue = "V2" // prediction venue, decimal [0,1] prices, auto-complement
	VenueC Venue = "V3" // sportsbook venue, fixed-point maker odds
)

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Complement returns the other outcome for the same market.
func (o Outcome) Complement() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// PriceKey uniquely identifies a cached price point. Keys are case-sensitive
// and are never stored independently of a PricePoint.
type PriceKey struct {
	Venue    Venue
	MarketID string
	Outcome  Outcome
}

// PriceSource records where a PricePoint's value came from.
type PriceSource string

const (
	SourceStream   PriceSource = "stream"
	SourceSnapshot PriceSource = "snapshot"
	SourceREST     PriceSource = "rest"
)

// PricePoint is the freshest known price for one PriceKey.
//
// Price is expressed in cents (0-100). ImpliedProbability mirrors Price/100
// within a small epsilon for prediction venues; for sportsbook venues it is
// derived independently from decimal odds (see PriceUpdate).
type PricePoint struct {
	Price              float64
	ImpliedProbability float64
	Source             PriceSource
	ObservedAt         time.Time
	BestBid            *float64
	BestAsk            *float64
	Spread             *float64
}

// AgeMs returns the age of the point relative to now, in milliseconds.
func (p PricePoint) AgeMs(now time.Time) int64 {
	return now.Sub(p.ObservedAt).Milliseconds()
}

// PriceUpdate is the normalized shape every Venue Stream Client produces,
// regardless of wire format. It is what gets handed to the Price Cache.
type PriceUpdate struct {
	Key                PriceKey
	Price              float64
	ImpliedProbability float64
	Source             PriceSource
	ObservedAt         time.Time
	BestBid            *float64
	BestAsk            *float64
	Spread             *float64
}

// ToPoint converts the update into the storage representation.
func (u PriceUpdate) ToPoint() PricePoint {
	return PricePoint{
		Price:              u.Price,
		ImpliedProbability: u.ImpliedProbability,
		Source:             u.Source,
		ObservedAt:         u.ObservedAt,
		BestBid:            u.BestBid,
		BestAsk:            u.BestAsk,
		Spread:             u.Spread,
	}
}

// CacheStats summarizes Price Cache activity for the heartbeat.
type CacheStats struct {
	UpdatesByVenue map[Venue]int64 `json:"updatesByVenue"`
	TotalUpdates   int64           `json:"totalUpdates"`
	OldestAgeMs    int64           `json:"oldestAgeMs"`
	NewestAgeMs    int64           `json:"newestAgeMs"`
}
