// Package registry stores the current set of TrackedEvents behind a
// read-mostly lock, refreshed by atomic swap so the Evaluator never sees a
// partially-updated view.
package registry

import (
	"sync"
	"time"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/matcher"
)

// DiffListener is notified after every Refresh that added, removed or
// modified an event, with what changed, so the Subscription Manager can
// react incrementally. A Refresh with an empty diff notifies no one.
type DiffListener func(domain.RegistryDiff)

// closeGrace is how long a TrackedEvent is retained after its latest
// member's closeTime before Refresh drops it, even if the Matcher would
// otherwise still group it.
const closeGrace = 10 * time.Minute

// Registry holds the current TrackedEvent set and the index from member
// market ID to event key used for O(1) lookups from the Evaluator.
type Registry struct {
	opts matcher.Options

	mu       sync.RWMutex
	events   map[string]domain.TrackedEvent // eventKey -> event
	byMarket map[string]string              // marketId -> eventKey

	listenerMu sync.Mutex
	listeners  []DiffListener
}

// New creates an empty Registry.
func New(opts matcher.Options) *Registry {
	return &Registry{
		opts:     opts,
		events:   make(map[string]domain.TrackedEvent),
		byMarket: make(map[string]string),
	}
}

// OnDiff registers a listener invoked after every Refresh whose diff is
// non-empty.
func (r *Registry) OnDiff(l DiffListener) {
	r.listenerMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenerMu.Unlock()
}

// Refresh recomputes the TrackedEvent set from a fresh MarketSnapshot off
// the hot path, then swaps it in atomically and fires the diff listeners.
func (r *Registry) Refresh(snapshot domain.MarketSnapshot, now time.Time) {
	matched := matcher.Match(snapshot.Markets, r.opts, now)
	next := make(map[string]domain.TrackedEvent, len(matched))
	nextByMarket := make(map[string]string, len(matched)*2)

	r.mu.RLock()
	prev := r.events
	r.mu.RUnlock()

	for _, event := range matched {
		if closed, at := eventClosed(event, now); closed && at {
			continue
		}
		if old, ok := prev[event.EventKey]; ok {
			event.FirstSeenAt = old.FirstSeenAt
			event.OpportunitiesFound = old.OpportunitiesFound
		} else {
			event.FirstSeenAt = now
		}
		event.LastRefreshedAt = now
		next[event.EventKey] = event
		for _, m := range event.Members {
			nextByMarket[m.Market.ID] = event.EventKey
		}
	}

	diff := diffEvents(prev, next)

	r.mu.Lock()
	r.events = next
	r.byMarket = nextByMarket
	r.mu.Unlock()

	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Modified) == 0 {
		return
	}

	r.listenerMu.Lock()
	listeners := append([]DiffListener(nil), r.listeners...)
	r.listenerMu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() { recover() }()
			l(diff)
		}()
	}
}

// eventClosed reports whether every member's closeTime+grace has elapsed.
func eventClosed(event domain.TrackedEvent, now time.Time) (closed, ok bool) {
	if len(event.Members) == 0 {
		return false, false
	}
	for _, m := range event.Members {
		if now.Before(m.Market.CloseTime.Add(closeGrace)) {
			return false, true
		}
	}
	return true, true
}

// Get returns a snapshot of the TrackedEvent containing marketID, if any.
func (r *Registry) Get(marketID string) (domain.TrackedEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byMarket[marketID]
	if !ok {
		return domain.TrackedEvent{}, false
	}
	event, ok := r.events[key]
	return event, ok
}

// All returns a snapshot of every currently tracked event.
func (r *Registry) All() []domain.TrackedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.TrackedEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	return out
}

// IncrementOpportunities bumps an event's opportunitiesFound counter after
// the Evaluator emits an Opportunity for it. Since Refresh replaces the
// whole map, this mutates the live map entry directly rather than through
// a copy-on-write swap — acceptable because it is an append-only counter,
// not part of the matching invariants Refresh protects.
func (r *Registry) IncrementOpportunities(eventKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[eventKey]; ok {
		e.OpportunitiesFound++
		r.events[eventKey] = e
	}
}

func diffEvents(prev, next map[string]domain.TrackedEvent) domain.RegistryDiff {
	var diff domain.RegistryDiff
	for key, event := range next {
		old, existed := prev[key]
		if !existed {
			diff.Added = append(diff.Added, event)
			continue
		}
		if !sameMembers(old, event) || old.Status != event.Status {
			diff.Modified = append(diff.Modified, event)
		}
	}
	for key, event := range prev {
		if _, stillThere := next[key]; !stillThere {
			diff.Removed = append(diff.Removed, event)
		}
	}
	return diff
}

func sameMembers(a, b domain.TrackedEvent) bool {
	if len(a.Members) != len(b.Members) {
		return false
	}
	bySet := make(map[string]bool, len(a.Members))
	for _, m := range a.Members {
		bySet[m.Market.ID] = true
	}
	for _, m := range b.Members {
		if !bySet[m.Market.ID] {
			return false
		}
	}
	return true
}
