package domain

import "time"

// MarketKind distinguishes the two families of venue markets this system
// matches across.
type MarketKind string

const (
	MarketKindPrediction MarketKind = "prediction"
	MarketKindSportsbook MarketKind = "sportsbook"
)

// VenueMarket is a single venue's view of a tradeable instrument, refreshed
// wholesale on every snapshot cycle and replaced (never patched) on refresh.
type VenueMarket struct {
	ID          string
	Venue       Venue
	Kind        MarketKind
	Title       string
	HomeTeam    string
	AwayTeam    string
	Sport       string
	StartTime   *time.Time
	CloseTime   time.Time
	CreatedAt   time.Time
	Volume      float64
	Liquidity   float64
	YesSnapshot float64 // cents (prediction) or decimal odds (sportsbook), depending on Kind
	NoSnapshot  float64
}

// ImpliedYes returns the snapshot-derived implied probability of YES, using
// the same conversion rules the Venue Stream Client applies to live updates.
func (m VenueMarket) ImpliedYes() float64 {
	switch m.Kind {
	case MarketKindSportsbook:
		return decimalOddsToImpliedProb(m.YesSnapshot)
	default:
		return m.YesSnapshot / 100
	}
}

// decimalOddsToImpliedProb converts decimal taker odds to an implied
// probability, guarding against odds below the 1.01 floor used throughout
// this system's sportsbook handling.
func decimalOddsToImpliedProb(odds float64) float64 {
	if odds < 1.01 {
		odds = 1.01
	}
	return 1 / odds
}

// SnapshotCents returns the embedded snapshot price for one outcome on the
// cache's cent scale. Sportsbook snapshots carry decimal odds and are
// converted to the cent cost of backing that outcome; prediction snapshots
// are already cents. A zero return means no usable snapshot price exists.
func (m VenueMarket) SnapshotCents(o Outcome) float64 {
	raw := m.YesSnapshot
	if o == OutcomeNo {
		raw = m.NoSnapshot
	}
	if raw <= 0 {
		return 0
	}
	if m.Kind == MarketKindSportsbook {
		return 100 * decimalOddsToImpliedProb(raw)
	}
	return raw
}

// MarketSnapshot is the full set of VenueMarkets fetched on a refresh cycle,
// across all venues, used as input to the Matcher.
type MarketSnapshot struct {
	Markets   []VenueMarket
	FetchedAt time.Time
}
