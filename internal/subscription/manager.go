// Package subscription reconciles the Event Registry's desired per-venue
// market subscription sets against each Venue Stream Client's actual
// subscriptions, debounced and capped per venue.
package subscription

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/registry"
)

const maxReasons = 5

// Options configures the manager's tunables, all sourced from runtime
// config (§6).
type Options struct {
	Debounce                 time.Duration
	MaxSubscriptionsPerVenue int
}

// DefaultOptions mirrors the spec's stated defaults.
func DefaultOptions() Options {
	return Options{Debounce: time.Second, MaxSubscriptionsPerVenue: 100}
}

// Manager reconciles desired vs current subscriptions for every registered
// Venue Stream Client.
type Manager struct {
	reg     *registry.Registry
	clients map[domain.Venue]domain.VenueClient
	opts    Options
	log     *slog.Logger

	mu             sync.Mutex
	current        map[domain.Venue]map[string]struct{}
	reasons        []string
	timer          *time.Timer
	pending        bool
	liveEventsOnly bool
}

// New creates a Manager and registers state-change hooks so a client
// regaining CONNECTED re-triggers reconciliation for subscriptions that
// were skipped while it was down.
func New(reg *registry.Registry, clients map[domain.Venue]domain.VenueClient, opts Options, log *slog.Logger) *Manager {
	m := &Manager{
		reg:     reg,
		clients: clients,
		opts:    opts,
		log:     log.With(slog.String("component", "subscription")),
		current: make(map[domain.Venue]map[string]struct{}),
	}
	for _, client := range clients {
		client.OnStateChange(func(status domain.ConnectionStatus) {
			if status.State != domain.ConnConnected {
				return
			}
			// A fresh CONNECTED transition invalidates whatever this manager
			// believed the client was subscribed to; starting from an empty
			// view makes the next pass re-issue the full desired set, which
			// the clients treat idempotently.
			m.mu.Lock()
			delete(m.current, status.Venue)
			m.mu.Unlock()
			m.Trigger("client_reconnected")
		})
	}
	return m
}

// SetMaxSubscriptionsPerVenue applies a runtime-config override of the
// per-venue cap. Takes effect on the next reconcile pass.
func (m *Manager) SetMaxSubscriptionsPerVenue(n int) {
	m.mu.Lock()
	m.opts.MaxSubscriptionsPerVenue = n
	m.mu.Unlock()
	m.Trigger("cap_changed")
}

// SetLiveEventsOnly restricts the desired set to LIVE events when enabled.
func (m *Manager) SetLiveEventsOnly(v bool) {
	m.mu.Lock()
	changed := m.liveEventsOnly != v
	m.liveEventsOnly = v
	m.mu.Unlock()
	if changed {
		m.Trigger("live_only_changed")
	}
}

// Trigger requests a reconciliation pass, debounced: if one is already
// pending, the reason is merged into the pending set instead of firing a
// second timer.
func (m *Manager) Trigger(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addReason(reason)

	if m.pending {
		return
	}
	m.pending = true
	m.timer = time.AfterFunc(m.opts.Debounce, m.fire)
}

func (m *Manager) addReason(reason string) {
	for _, r := range m.reasons {
		if r == reason {
			return
		}
	}
	m.reasons = append(m.reasons, reason)
	if len(m.reasons) > maxReasons {
		m.reasons = m.reasons[len(m.reasons)-maxReasons:]
	}
}

func (m *Manager) fire() {
	m.mu.Lock()
	reasons := append([]string(nil), m.reasons...)
	m.pending = false
	m.reasons = nil
	m.mu.Unlock()

	m.reconcile(reasons)
}

// reconcile computes desired subscriptions per venue and applies the
// diff, unsubscribing before subscribing within each venue's pass.
func (m *Manager) reconcile(reasons []string) {
	// correlationID ties this pass's per-venue log lines together; it has
	// no relation to any persisted id.
	correlationID := uuid.New().String()
	desired := m.desiredByVenue()

	m.mu.Lock()
	defer m.mu.Unlock()

	for venue, client := range m.clients {
		status := client.Status()
		if status.State != domain.ConnConnected {
			// Skipped; Trigger fires again on this client's next CONNECTED
			// transition via the state-change hook registered in New.
			continue
		}

		want := desired[venue]
		have := m.current[venue]
		if have == nil {
			have = make(map[string]struct{})
		}

		toRemove := diffSet(have, want)
		toAdd := diffSet(want, have)

		if len(toRemove) > 0 {
			if err := client.UnsubscribeMarkets(toRemove); err != nil {
				m.log.Warn("unsubscribe failed", slog.String("correlation_id", correlationID), slog.String("venue", string(venue)), slog.String("err", err.Error()))
			}
		}
		if len(toAdd) > 0 {
			if err := client.SubscribeMarkets(toAdd); err != nil {
				m.log.Warn("subscribe failed", slog.String("correlation_id", correlationID), slog.String("venue", string(venue)), slog.String("err", err.Error()))
			}
		}

		m.current[venue] = want
	}

	m.log.Info("reconciled subscriptions", slog.String("correlation_id", correlationID), slog.Any("reasons", reasons))
}

func diffSet(a, b map[string]struct{}) []string {
	var out []string
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// desiredByVenue computes, per venue, the capped set of member market IDs
// drawn from LIVE and PRE events (never ENDED), prioritizing LIVE events
// and then nearest start time.
func (m *Manager) desiredByVenue() map[domain.Venue]map[string]struct{} {
	m.mu.Lock()
	maxPerVenue := m.opts.MaxSubscriptionsPerVenue
	liveOnly := m.liveEventsOnly
	m.mu.Unlock()

	events := m.reg.All()
	sort.Slice(events, func(i, j int) bool {
		pi, pj := priority(events[i]), priority(events[j])
		if pi != pj {
			return pi < pj
		}
		return nearestStart(events[i]).Before(nearestStart(events[j]))
	})

	out := make(map[domain.Venue]map[string]struct{})
	counts := make(map[domain.Venue]int)

	for _, event := range events {
		if event.Status == domain.EventStatusEnded {
			continue
		}
		if liveOnly && event.Status != domain.EventStatusLive {
			continue
		}
		for _, member := range event.Members {
			venue := member.Venue()
			if out[venue] == nil {
				out[venue] = make(map[string]struct{})
			}
			if counts[venue] >= maxPerVenue {
				continue
			}
			if _, already := out[venue][member.Market.ID]; already {
				continue
			}
			out[venue][member.Market.ID] = struct{}{}
			counts[venue]++
		}
	}
	return out
}

func priority(e domain.TrackedEvent) int {
	if e.Status == domain.EventStatusLive {
		return 0
	}
	return 1
}

func nearestStart(e domain.TrackedEvent) time.Time {
	var nearest time.Time
	found := false
	for _, m := range e.Members {
		if m.Market.StartTime == nil {
			continue
		}
		if !found || m.Market.StartTime.Before(nearest) {
			nearest = *m.Market.StartTime
			found = true
		}
	}
	if !found {
		return time.Unix(1<<62, 0) // unknown start sorts last within its priority band
	}
	return nearest
}
