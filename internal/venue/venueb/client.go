// Package venueb implements the Venue Stream Client for prediction venue B,
// whose prices arrive as decimals in [0,1] on a price_change channel. The
// complementary NO side is derived automatically by the price cache, not
// here.
package venueb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/venue"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	dialTimeout = 15 * time.Second
)

// Client is the Venue Stream Client for venue B.
type Client struct {
	wsURL string
	cache domain.PriceCache

	sm      *venue.StateMachine
	backoff *venue.ReconnectPolicy
	ratio   *venue.RatioTracker

	mu       sync.RWMutex
	conn     *websocket.Conn
	subbed   map[string]struct{}
	closed   bool
	disabled bool
	done     chan struct{}

	log *slog.Logger
}

// New creates a venue B client for the given WebSocket endpoint.
func New(wsURL string, cache domain.PriceCache, log *slog.Logger) *Client {
	return &Client{
		wsURL:   wsURL,
		cache:   cache,
		sm:      venue.NewStateMachine(domain.VenueB),
		backoff: venue.NewReconnectPolicy(),
		ratio:   &venue.RatioTracker{},
		subbed:  make(map[string]struct{}),
		done:    make(chan struct{}),
		log:     log.With(slog.String("component", "venueb")),
	}
}

func (c *Client) Venue() domain.Venue { return domain.VenueB }

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
		return fmt.Errorf("venueb: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	assets := c.subscribedAssets()
	c.mu.Unlock()

	if len(assets) > 0 {
		if err := c.sendCmd("subscribe", assets); err != nil {
			c.sm.Transition(domain.ConnError, err.Error())
			return fmt.Errorf("venueb: resubscribe: %w", err)
		}
	}

	c.sm.Transition(domain.ConnConnected, "")
	c.backoff.Reset()

	go c.readLoop(ctx)
	go c.pingLoop()

	return nil
}

func (c *Client) subscribedAssets() []string {
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
		return nil
	}
	return c.sendCmd("subscribe", ids)
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
	return c.sendCmd("unsubscribe", ids)
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

func (c *Client) sendCmd(verb string, assets []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return domain.ErrNotConnected
	}

	cmd := wsCommand{Type: verb, Channel: "price_change", Assets: assets}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("venueb: marshal %s: %w", verb, err)
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

func (c *Client) handleMessage(raw []byte) bool {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}

	msgType := env.MsgType
	if msgType == "" {
		msgType = env.Event
	}

	switch msgType {
	case "price_change":
		var pc priceChangeMessage
		if err := json.Unmarshal(raw, &pc); err != nil {
			return false
		}
		return c.applyPriceChange(pc)
	default:
		return true
	}
}

// applyPriceChange converts a decimal [0,1] price into the cache's 0-100
// scale. The complementary NO outcome is derived by the cache itself.
func (c *Client) applyPriceChange(pc priceChangeMessage) bool {
	if pc.AssetID == "" || pc.Price == "" {
		return false
	}
	prob, err := strconv.ParseFloat(pc.Price, 64)
	if err != nil || prob < 0 || prob > 1 {
		return false
	}

	now := time.Now()
	update := domain.PriceUpdate{
		Key:                domain.PriceKey{Venue: domain.VenueB, MarketID: pc.AssetID, Outcome: domain.OutcomeYes},
		Price:              prob * 100,
		ImpliedProbability: prob,
		Source:             domain.SourceStream,
		ObservedAt:         now,
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
