package domain

import "time"

// EventStatus reflects where a TrackedEvent sits in its real-world lifecycle.
type EventStatus string

const (
	EventStatusPre   EventStatus = "PRE"
	EventStatusLive  EventStatus = "LIVE"
	EventStatusEnded EventStatus = "ENDED"
)

// EventMember is a VenueMarket matched into a TrackedEvent, together with the
// direction annotation the Matcher assigned it.
type EventMember struct {
	Market VenueMarket
	// Flip is true when this member's direction modifier is the inverse of
	// the group's reference member, the highest-liquidity one (e.g. "below"
	// when the reference member was "above"). The Evaluator pairs YES-with-YES for flipped
	// members instead of the usual YES-with-NO.
	Flip bool
}

// TrackedEvent groups 2+ VenueMarkets from distinct venues judged to
// represent the same real-world event.
type TrackedEvent struct {
	EventKey           string
	Sport              string
	HomeTeam           string
	AwayTeam           string
	Status             EventStatus
	Members            []EventMember
	MatchQuality       float64
	FirstSeenAt        time.Time
	LastRefreshedAt    time.Time
	OpportunitiesFound int
}

// MemberVenues returns the set of venues represented among the event's
// members.
func (e TrackedEvent) MemberVenues() map[Venue]struct{} {
	out := make(map[Venue]struct{}, len(e.Members))
	for _, m := range e.Members {
		out[m.Venue()] = struct{}{}
	}
	return out
}

// Venue is a convenience accessor onto the underlying market's venue.
func (m EventMember) Venue() Venue { return m.Market.Venue }

// FindMember returns the member for the given market ID, if present.
func (e TrackedEvent) FindMember(marketID string) (EventMember, bool) {
	for _, m := range e.Members {
		if m.Market.ID == marketID {
			return m, true
		}
	}
	return EventMember{}, false
}

// RegistryDiff describes what changed between two Registry snapshots, used
// to drive the Subscription Manager incrementally instead of a full rescan.
type RegistryDiff struct {
	Added    []TrackedEvent
	Removed  []TrackedEvent
	Modified []TrackedEvent
}
