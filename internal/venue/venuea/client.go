// Package venuea implements the Venue Stream Client for prediction venue A,
// whose orderbook prices arrive as integer cents. Mid-price is derived from
// top-of-book bid/ask; last-trade price is never used when bid/ask exist.
package venuea

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/venue"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	dialTimeout = 15 * time.Second
)

// Client is the Venue Stream Client for venue A.
type Client struct {
	wsURL string
	cache domain.PriceCache

	sm      *venue.StateMachine
	backoff *venue.ReconnectPolicy
	ratio   *venue.RatioTracker

	mu       sync.RWMutex
	conn     *websocket.Conn
	subbed   map[string]struct{}
	cmdID    int64
	closed   bool
	disabled bool
	done     chan struct{}

	log *slog.Logger
}

// New creates a venue A client for the given WebSocket endpoint.
func New(wsURL string, cache domain.PriceCache, log *slog.Logger) *Client {
	return &Client{
		wsURL:   wsURL,
		cache:   cache,
		sm:      venue.NewStateMachine(domain.VenueA),
		backoff: venue.NewReconnectPolicy(),
		ratio:   &venue.RatioTracker{},
		subbed:  make(map[string]struct{}),
		done:    make(chan struct{}),
		log:     log.With(slog.String("component", "venuea")),
	}
}

func (c *Client) Venue() domain.Venue { return domain.VenueA }

func (c *Client) Status() domain.ConnectionStatus { return c.sm.Status() }

func (c *Client) OnStateChange(h domain.StateChangeHandler) { c.sm.OnChange(h) }

// Connect dials the venue and, on success, re-applies the current
// subscription set before any price parsing begins.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		return domain.ErrDisabled
	}
	if c.closed {
		// restarting after an explicit Disconnect
		c.closed = false
		c.done = make(chan struct{})
	}
	c.mu.Unlock()

	c.sm.Transition(domain.ConnConnecting, "")

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.wsURL, nil)
	if err != nil {
		c.sm.Transition(domain.ConnError, err.Error())
		return fmt.Errorf("venuea: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	tickers := c.subscribedTickers()
	c.mu.Unlock()

	if len(tickers) > 0 {
		if err := c.sendSubscribe(tickers); err != nil {
			c.sm.Transition(domain.ConnError, err.Error())
			return fmt.Errorf("venuea: resubscribe: %w", err)
		}
	}

	c.sm.Transition(domain.ConnConnected, "")
	c.backoff.Reset()

	go c.readLoop(ctx)
	go c.pingLoop()

	return nil
}

func (c *Client) subscribedTickers() []string {
	ids := make([]string, 0, len(c.subbed))
	for id := range c.subbed {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) SubscribeMarkets(ids []string) error {
	c.mu.Lock()
	conn := c.conn
	for _, id := range ids {
		c.subbed[id] = struct{}{}
	}
	c.sm.SetSubscribedCount(len(c.subbed))
	c.mu.Unlock()

	if conn == nil {
		return nil // applied on next Connect
	}
	return c.sendSubscribe(ids)
}

func (c *Client) UnsubscribeMarkets(ids []string) error {
	c.mu.Lock()
	conn := c.conn
	for _, id := range ids {
		delete(c.subbed, id)
	}
	c.sm.SetSubscribedCount(len(c.subbed))
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.sendUnsubscribe(ids)
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.subbed = make(map[string]struct{})
	c.mu.Unlock()

	c.sm.SetSubscribedCount(0)
	c.sm.Transition(domain.ConnIdle, "")

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return conn.Close()
	}
	return nil
}

// Disable marks the client permanently disabled. Used at wiring time when
// the venue's stream URL or credentials are absent — that is a configuration
// state, not an error.
func (c *Client) Disable(reason string) {
	c.mu.Lock()
	c.disabled = true
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()

	c.sm.Disable(reason)
}

func (c *Client) sendSubscribe(ids []string) error {
	return c.sendCmd("subscribe", ids)
}

func (c *Client) sendUnsubscribe(ids []string) error {
	return c.sendCmd("unsubscribe", ids)
}

func (c *Client) sendCmd(verb string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return domain.ErrNotConnected
	}

	c.cmdID++
	cmd := subscribeCmd{
		ID:  c.cmdID,
		Cmd: verb,
		Params: subscribeCmdParams{
			Channels:  []string{"orderbook_delta"},
			MarketIDs: ids,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("venuea: marshal %s: %w", verb, err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn("read error", slog.String("err", err.Error()))
			c.reconnect(ctx)
			return
		}

		c.sm.RecordMessage()
		ok := c.handleMessage(raw)
		if c.ratio.Record(ok) {
			c.sm.Transition(domain.ConnError, "malformed message ratio exceeded threshold")
			c.log.Error("malformed message ratio exceeded threshold, forcing reconnect")
			c.reconnect(ctx)
			return
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one inbound frame and applies it to the price
// cache. It reports false on any malformed frame, feeding the ratio
// tracker, without reconnecting by itself.
func (c *Client) handleMessage(raw []byte) bool {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}

	switch env.Type {
	case "orderbook_snapshot", "orderbook_delta":
		var ob orderbookMessage
		if err := json.Unmarshal(env.Msg, &ob); err != nil {
			return false
		}
		return c.applyOrderbook(ob)
	default:
		return true
	}
}

// applyOrderbook computes the mid-price rule: mid = (bid+ask)/2 when both
// sides are present, otherwise whichever side exists. Last-trade price is
// never consulted here because the wire protocol for this venue does not
// surface it alongside bid/ask.
func (c *Client) applyOrderbook(ob orderbookMessage) bool {
	if ob.MarketID == "" {
		return false
	}
	if ob.YesBid == nil && ob.YesAsk == nil {
		return false
	}

	var cents float64
	var bestBid, bestAsk, spread *float64
	switch {
	case ob.YesBid != nil && ob.YesAsk != nil:
		bid, ask := float64(*ob.YesBid), float64(*ob.YesAsk)
		cents = (bid + ask) / 2
		sp := ask - bid
		bestBid, bestAsk, spread = &bid, &ask, &sp
	case ob.YesBid != nil:
		bid := float64(*ob.YesBid)
		cents = bid
		bestBid = &bid
	default:
		ask := float64(*ob.YesAsk)
		cents = ask
		bestAsk = &ask
	}

	now := time.Now()
	update := domain.PriceUpdate{
		Key:                domain.PriceKey{Venue: domain.VenueA, MarketID: ob.MarketID, Outcome: domain.OutcomeYes},
		Price:              cents,
		ImpliedProbability: cents / 100,
		Source:             domain.SourceStream,
		ObservedAt:         now,
		BestBid:            bestBid,
		BestAsk:            bestAsk,
		Spread:             spread,
	}
	c.cache.Put(update)
	return true
}

func (c *Client) reconnect(ctx context.Context) {
	for {
		delay, ok := c.backoff.Next()
		if !ok {
			c.sm.Transition(domain.ConnError, "reconnect attempts exhausted")
			return
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		c.sm.Transition(domain.ConnReconnecting, "")
		if err := c.Connect(ctx); err == nil {
			return
		}
	}
}

var _ domain.VenueClient = (*Client)(nil)
