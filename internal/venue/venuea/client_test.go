package venuea

import (
	"io"
	"log/slog"
	"testing"
	"time"

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

func TestApplyOrderbookMidOfBothSides(t *testing.T) {
	c, fc := newTestClient()
	bid, ask := 40, 60
	ok := c.applyOrderbook(orderbookMessage{MarketID: "m1", YesBid: &bid, YesAsk: &ask})
	require.True(t, ok)
	require.Equal(t, 50.0, fc.last.Price)
	require.InDelta(t, 0.50, fc.last.ImpliedProbability, 1e-9)
}

func TestApplyOrderbookBidOnly(t *testing.T) {
	c, fc := newTestClient()
	bid := 33
	ok := c.applyOrderbook(orderbookMessage{MarketID: "m2", YesBid: &bid})
	require.True(t, ok)
	require.Equal(t, 33.0, fc.last.Price)
}

func TestApplyOrderbookRejectsEmptySides(t *testing.T) {
	c, _ := newTestClient()
	ok := c.applyOrderbook(orderbookMessage{MarketID: "m3"})
	require.False(t, ok)
}

func TestApplyOrderbookRejectsMissingMarketID(t *testing.T) {
	c, _ := newTestClient()
	bid := 10
	ok := c.applyOrderbook(orderbookMessage{YesBid: &bid})
	require.False(t, ok)
}
