package venuec

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arbworker/livearb/internal/domain"
)

type fakeCache struct {
	last domain.PriceUpdate
}

func (f *fakeCache) Put(u domain.PriceUpdate) bool {
	f.last = u
	return true
}
func (f *fakeCache) Get(domain.PriceKey) (domain.PricePoint, bool) { return domain.PricePoint{}, false }
func (f *fakeCache) GetEffective(domain.VenueMarket, domain.Outcome, time.Duration) (domain.PricePoint, bool) {
	return domain.PricePoint{}, false
}
func (f *fakeCache) IsStale(domain.PriceKey, time.Duration) bool { return true }
func (f *fakeCache) Stats() domain.CacheStats                    { return domain.CacheStats{} }
func (f *fakeCache) Subscribe(func(domain.PriceKey, domain.PricePoint)) func() {
	return func() {}
}
func (f *fakeCache) Clear() {}

func newTestClient() (*Client, *fakeCache) {
	fc := &fakeCache{}
	return New("wss://example.invalid", fc, slog.New(slog.NewTextHandler(io.Discard, nil))), fc
}

func TestApplyOddsStoresTakerImpliedProbability(t *testing.T) {
	c, fc := newTestClient()
	ok := c.applyOdds(oddsMessage{MarketID: "m1", Outcome: "YES", MakerProbScaled: scaledProb(0.5)})
	require.True(t, ok)
	require.Equal(t, domain.OutcomeYes, fc.last.Key.Outcome)
	require.InDelta(t, 50.0, fc.last.Price, 1e-6)
	require.InDelta(t, 0.5, fc.last.ImpliedProbability, 1e-6)
}

func TestApplyOddsDoesNotAutoComplement(t *testing.T) {
	c, fc := newTestClient()
	ok := c.applyOdds(oddsMessage{MarketID: "m1", Outcome: "NO", MakerProbScaled: scaledProb(0.1)})
	require.True(t, ok)
	require.Equal(t, domain.OutcomeNo, fc.last.Key.Outcome)
}

func TestApplyOddsRejectsMissingMarketID(t *testing.T) {
	c, _ := newTestClient()
	ok := c.applyOdds(oddsMessage{Outcome: "YES", MakerProbScaled: scaledProb(0.5)})
	require.False(t, ok)
}

func TestApplyOddsRejectsBadOutcome(t *testing.T) {
	c, _ := newTestClient()
	ok := c.applyOdds(oddsMessage{MarketID: "m1", Outcome: "MAYBE", MakerProbScaled: scaledProb(0.5)})
	require.False(t, ok)
}

func TestApplyOddsRejectsUnparseableProb(t *testing.T) {
	c, _ := newTestClient()
	ok := c.applyOdds(oddsMessage{MarketID: "m1", Outcome: "YES", MakerProbScaled: "garbage"})
	require.False(t, ok)
}

func TestConnectReappliesSubscriptionsBeforeParsing(t *testing.T) {
	received := make(chan string, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(wsURL, &fakeCache{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Subscriptions registered while idle must be replayed on connect.
	require.NoError(t, c.SubscribeMarkets([]string{"m1", "m2"}))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	select {
	case msg := <-received:
		require.Contains(t, msg, "subscribe")
		require.Contains(t, msg, "m1")
		require.Contains(t, msg, "m2")
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe frame observed before timeout")
	}
	require.Equal(t, domain.ConnConnected, c.Status().State)
}

func TestHandleMessageIgnoresUnknownType(t *testing.T) {
	c, _ := newTestClient()
	ok := c.handleMessage([]byte(`{"type":"heartbeat"}`))
	require.True(t, ok)
}
