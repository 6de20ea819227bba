// Package matcher groups VenueMarkets from distinct venues into
// TrackedEvents. Match is a pure, deterministic function: the same input
// slice always produces the same output, regardless of input order.
package matcher

import (
	"fmt"
	"sort"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// Options configures the tolerances §4.3 leaves to the implementer.
type Options struct {
	// TimeTolerance is the maximum disagreement allowed between member
	// start times within a candidate group.
	TimeTolerance time.Duration
	// MinQuality is the quality-score floor below which a candidate group
	// is discarded.
	MinQuality float64
}

// DefaultOptions mirrors the spec's stated defaults.
func DefaultOptions() Options {
	return Options{TimeTolerance: 30 * time.Minute, MinQuality: 0.70}
}

// Match groups markets into TrackedEvents. It never mutates its input and
// produces results sorted by event key, so repeated calls on the same
// input set are equal.
func Match(markets []domain.VenueMarket, opts Options, now time.Time) []domain.TrackedEvent {
	candidates := make(map[string][]candidateMarket, len(markets))

	for _, m := range markets {
		feat := extractFeatures(normalizeTitle(m.Title), m.Title)
		key, ok := deriveEventKey(m, feat)
		if !ok {
			continue
		}
		candidates[key] = append(candidates[key], candidateMarket{market: m, feat: feat})
	}

	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	events := make([]domain.TrackedEvent, 0, len(keys))
	for _, key := range keys {
		group := candidates[key]
		event, ok := buildEvent(key, group, opts, now)
		if ok {
			events = append(events, event)
		}
	}
	return events
}

type candidateMarket struct {
	market domain.VenueMarket
	feat   features
}

// deriveEventKey implements §4.3 rule 3: sports events key on
// sport|date|sorted(teamA,teamB); everything else keys on
// metric|entity|date|threshold|direction-family. "entity" is approximated
// by the non-team normalized title with the metric keyword and threshold
// stripped, which is sufficient to disambiguate unrelated prediction
// markets sharing a metric/date/threshold.
func deriveEventKey(m domain.VenueMarket, f features) (string, bool) {
	if f.hasTeams {
		sport := m.Sport
		if sport == "" {
			sport = "unknown"
		}
		date := f.date
		if date == "" && m.StartTime != nil {
			date = m.StartTime.UTC().Format("2006-01-02")
		}
		return fmt.Sprintf("%s|%s|%s,%s", sport, orStar(date), f.teamA, f.teamB), true
	}

	if !f.hasThreshold && f.metric == "" {
		return "", false
	}

	family := directionFamily[f.direction]
	entity := entitySubject(normalizeTitle(m.Title), f)
	return fmt.Sprintf("%s|%s|%s|%.4f|%s", orStar(f.metric), entity, orStar(f.date), f.threshold, orStar(family)), true
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// buildEvent applies §4.3 rules 5-7: validate distinct venues and time
// agreement, dedupe per venue by liquidity/volume, score quality, and
// annotate the flip flag.
func buildEvent(key string, group []candidateMarket, opts Options, now time.Time) (domain.TrackedEvent, bool) {
	deduped := dedupePerVenue(group)
	if countDistinctVenues(deduped) < 2 {
		return domain.TrackedEvent{}, false
	}
	if !timesAgree(deduped, opts.TimeTolerance) {
		return domain.TrackedEvent{}, false
	}

	reference := pickReference(deduped)
	quality := qualityScore(reference, deduped, opts.TimeTolerance)
	if quality < opts.MinQuality {
		return domain.TrackedEvent{}, false
	}

	members := make([]domain.EventMember, 0, len(deduped))
	for _, c := range deduped {
		flip := c.feat.direction != "" && reference.feat.direction != "" && c.feat.direction != reference.feat.direction
		members = append(members, domain.EventMember{Market: c.market, Flip: flip})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Market.ID < members[j].Market.ID })

	event := domain.TrackedEvent{
		EventKey:        key,
		Sport:           reference.market.Sport,
		HomeTeam:        reference.market.HomeTeam,
		AwayTeam:        reference.market.AwayTeam,
		Status:          deriveStatus(deduped, now),
		Members:         members,
		MatchQuality:    quality,
		FirstSeenAt:     now,
		LastRefreshedAt: now,
	}
	return event, true
}

// dedupePerVenue keeps, per venue, the single market with the highest
// liquidity (ties broken by volume, then by the lower market ID).
func dedupePerVenue(group []candidateMarket) []candidateMarket {
	best := make(map[domain.Venue]candidateMarket, len(group))
	for _, c := range group {
		cur, ok := best[c.market.Venue]
		if !ok || betterCandidate(c, cur) {
			best[c.market.Venue] = c
		}
	}

	out := make([]candidateMarket, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].market.ID < out[j].market.ID })
	return out
}

func betterCandidate(a, b candidateMarket) bool {
	if a.market.Liquidity != b.market.Liquidity {
		return a.market.Liquidity > b.market.Liquidity
	}
	if a.market.Volume != b.market.Volume {
		return a.market.Volume > b.market.Volume
	}
	return a.market.ID < b.market.ID
}

func countDistinctVenues(group []candidateMarket) int {
	seen := make(map[domain.Venue]struct{}, len(group))
	for _, c := range group {
		seen[c.market.Venue] = struct{}{}
	}
	return len(seen)
}

func timesAgree(group []candidateMarket, tolerance time.Duration) bool {
	var min, max time.Time
	found := false
	for _, c := range group {
		if c.market.StartTime == nil {
			continue
		}
		t := *c.market.StartTime
		if !found {
			min, max = t, t
			found = true
			continue
		}
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	if !found {
		return true // no start times to compare; let quality score be the judge
	}
	return max.Sub(min) <= tolerance
}

// pickReference chooses the member with the highest liquidity as the
// baseline for direction/flip comparisons and the event's sport/team
// fields, breaking ties by market ID for determinism.
func pickReference(group []candidateMarket) candidateMarket {
	ref := group[0]
	for _, c := range group[1:] {
		if betterCandidate(c, ref) {
			ref = c
		}
	}
	return ref
}

// qualityScore implements §4.3 rule 6's weighted combination, averaged
// pairwise against the reference member.
func qualityScore(reference candidateMarket, group []candidateMarket, tolerance time.Duration) float64 {
	var total float64
	n := 0
	for _, c := range group {
		if c.market.ID == reference.market.ID {
			continue
		}
		total += pairScore(reference, c, tolerance)
		n++
	}
	if n == 0 {
		return 1.0 // a lone reference trivially agrees with itself
	}
	return total / float64(n)
}

// pairScore awards each weighted component when both members agree on that
// signal. A signal absent from both sides counts as agreement — a pair of
// plain "X vs Y" sports titles carries no threshold or direction, and the
// two markets do not disagree about what neither states.
func pairScore(a, b candidateMarket, tolerance time.Duration) float64 {
	af, bf := a.feat, b.feat
	var score float64

	switch {
	case af.hasTeams && bf.hasTeams:
		if af.teamA == bf.teamA && af.teamB == bf.teamB {
			score += 0.40
		}
	case !af.hasTeams && !bf.hasTeams:
		score += 0.40
	}

	if datesAgree(a, b, tolerance) {
		score += 0.25
	}

	switch {
	case af.hasThreshold && bf.hasThreshold:
		if thresholdWithinTolerance(af.threshold, bf.threshold) {
			score += 0.15
		}
	case !af.hasThreshold && !bf.hasThreshold:
		score += 0.15
	}

	switch {
	case af.metric != "" && bf.metric != "":
		if af.metric == bf.metric {
			score += 0.10
		}
	case af.metric == "" && bf.metric == "":
		score += 0.10
	}

	switch {
	case af.direction != "" && bf.direction != "":
		if directionFamily[af.direction] == directionFamily[bf.direction] {
			score += 0.10
		}
	case af.direction == "" && bf.direction == "":
		score += 0.10
	}

	return score
}

// datesAgree prefers explicit title dates, falls back to start-time
// agreement within the group tolerance, and treats a total absence of date
// signals on both sides as agreement. A date signal present on only one
// side is a disagreement.
func datesAgree(a, b candidateMarket, tolerance time.Duration) bool {
	if a.feat.date != "" && b.feat.date != "" {
		return a.feat.date == b.feat.date
	}
	sa, sb := a.market.StartTime, b.market.StartTime
	if sa != nil && sb != nil {
		diff := sa.Sub(*sb)
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}
	return a.feat.date == "" && b.feat.date == "" && sa == nil && sb == nil
}

func thresholdWithinTolerance(a, b float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	ref := a
	if ref == 0 {
		ref = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/ref <= 0.01
}
