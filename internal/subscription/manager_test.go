package subscription

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/matcher"
	"github.com/arbworker/livearb/internal/registry"
)

type fakeClient struct {
	venue        domain.Venue
	status       domain.ConnectionStatus
	subscribed   []string
	unsubscribed []string
	handlers     []domain.StateChangeHandler
}

func newFakeClient(v domain.Venue) *fakeClient {
	return &fakeClient{venue: v, status: domain.ConnectionStatus{Venue: v, State: domain.ConnConnected}}
}

func (f *fakeClient) Venue() domain.Venue               { return f.venue }
func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) Disconnect() error                 { return nil }
func (f *fakeClient) SubscribeMarkets(ids []string) error {
	f.subscribed = append(f.subscribed, ids...)
	return nil
}
func (f *fakeClient) UnsubscribeMarkets(ids []string) error {
	f.unsubscribed = append(f.unsubscribed, ids...)
	return nil
}
func (f *fakeClient) Status() domain.ConnectionStatus { return f.status }
func (f *fakeClient) OnStateChange(h domain.StateChangeHandler) {
	f.handlers = append(f.handlers, h)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDesiredByVenueCapsAndPrioritizesLive(t *testing.T) {
	now := time.Now()
	live := now.Add(5 * time.Minute)
	pre := now.Add(2 * time.Hour)

	reg := registry.New(matcher.DefaultOptions())
	reg.Refresh(domain.MarketSnapshot{Markets: []domain.VenueMarket{
		{ID: "live-a", Venue: domain.VenueA, Title: "Team A vs Team B", Sport: "soccer", StartTime: &live, CloseTime: now.Add(3 * time.Hour)},
		{ID: "live-b", Venue: domain.VenueB, Title: "team a @ team b", Sport: "soccer", StartTime: &live, CloseTime: now.Add(3 * time.Hour)},
		{ID: "pre-a", Venue: domain.VenueA, Title: "Team C vs Team D", Sport: "soccer", StartTime: &pre, CloseTime: now.Add(4 * time.Hour)},
		{ID: "pre-b", Venue: domain.VenueB, Title: "team c @ team d", Sport: "soccer", StartTime: &pre, CloseTime: now.Add(4 * time.Hour)},
	}}, now)

	m := &Manager{reg: reg, opts: Options{MaxSubscriptionsPerVenue: 1}, current: map[domain.Venue]map[string]struct{}{}}
	desired := m.desiredByVenue()

	require.Len(t, desired[domain.VenueA], 1)
	_, hasLive := desired[domain.VenueA]["live-a"]
	require.True(t, hasLive, "LIVE event must be prioritized over PRE when capped")
}

func TestReconcileUnsubscribesThenSubscribes(t *testing.T) {
	now := time.Now()
	reg := registry.New(matcher.DefaultOptions())
	reg.Refresh(domain.MarketSnapshot{Markets: []domain.VenueMarket{
		{ID: "m1", Venue: domain.VenueA, Title: "Team A vs Team B", Sport: "soccer", CloseTime: now.Add(time.Hour)},
		{ID: "m2", Venue: domain.VenueB, Title: "team a @ team b", Sport: "soccer", CloseTime: now.Add(time.Hour)},
	}}, now)

	client := newFakeClient(domain.VenueA)
	m := &Manager{
		reg:     reg,
		clients: map[domain.Venue]domain.VenueClient{domain.VenueA: client},
		opts:    Options{MaxSubscriptionsPerVenue: 100},
		log:     testLogger(),
		current: map[domain.Venue]map[string]struct{}{domain.VenueA: {"stale-id": {}}},
	}

	m.reconcile([]string{"test"})

	require.Contains(t, client.unsubscribed, "stale-id")
	require.Contains(t, client.subscribed, "m1")
}

func TestReconcileSkipsDisconnectedClient(t *testing.T) {
	now := time.Now()
	reg := registry.New(matcher.DefaultOptions())
	reg.Refresh(domain.MarketSnapshot{Markets: []domain.VenueMarket{
		{ID: "m1", Venue: domain.VenueA, Title: "Team A vs Team B", Sport: "soccer", CloseTime: now.Add(time.Hour)},
		{ID: "m2", Venue: domain.VenueB, Title: "team a @ team b", Sport: "soccer", CloseTime: now.Add(time.Hour)},
	}}, now)

	client := newFakeClient(domain.VenueA)
	client.status.State = domain.ConnReconnecting
	m := &Manager{
		reg:     reg,
		clients: map[domain.Venue]domain.VenueClient{domain.VenueA: client},
		opts:    Options{MaxSubscriptionsPerVenue: 100},
		log:     testLogger(),
		current: map[domain.Venue]map[string]struct{}{},
	}

	m.reconcile([]string{"test"})
	require.Empty(t, client.subscribed)
}
