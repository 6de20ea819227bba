package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	kvredis "github.com/arbworker/livearb/internal/kv/redis"

	"github.com/arbworker/livearb/internal/config"
	"github.com/arbworker/livearb/internal/domain"
	"github.com/arbworker/livearb/internal/evaluator"
	"github.com/arbworker/livearb/internal/executor"
	"github.com/arbworker/livearb/internal/lifecycle"
	"github.com/arbworker/livearb/internal/matcher"
	"github.com/arbworker/livearb/internal/pricecache"
	"github.com/arbworker/livearb/internal/registry"
	"github.com/arbworker/livearb/internal/safety"
	"github.com/arbworker/livearb/internal/server"
	"github.com/arbworker/livearb/internal/snapshot"
	"github.com/arbworker/livearb/internal/subscription"
	"github.com/arbworker/livearb/internal/venue/venuea"
	"github.com/arbworker/livearb/internal/venue/venueb"
	"github.com/arbworker/livearb/internal/venue/venuec"
)

// Dependencies bundles every concrete component Wire constructs. Worker is
// the single long-running thing main.go drives; Server is nil when the
// status surface is disabled.
type Dependencies struct {
	Worker *lifecycle.Worker
	Server *server.Server
}

// Wire constructs the full dependency graph from cfg: the external KV
// client, the Live Price Cache, the enabled Venue Stream Clients, the Event
// Registry, Subscription Manager, Safety Gates, Arbitrage Evaluator, the
// Market Snapshot Source, the Worker Lifecycle, and (if enabled) the HTTP
// status surface. It returns a single cleanup closure that tears everything
// down in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	redisClient, err := kvredis.New(ctx, kvredis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	runtimeConfigKV := kvredis.NewRuntimeConfigStore(redisClient)
	heartbeatKV := kvredis.NewHeartbeatStore(redisClient)
	opportunityLog := kvredis.NewOpportunityLog(redisClient)

	priceCache := pricecache.New()

	clients := make(map[domain.Venue]domain.VenueClient)
	var subsystems []lifecycle.Subsystem
	venueCfgs := []struct {
		venue domain.Venue
		cfg   config.VenueConfig
	}{
		{domain.VenueA, cfg.VenueA},
		{domain.VenueB, cfg.VenueB},
		{domain.VenueC, cfg.VenueC},
	}
	for _, vc := range venueCfgs {
		client, err := newVenueClient(vc.venue, vc.cfg, priceCache, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: venue %s: %w", vc.venue, err)
		}
		clients[vc.venue] = client
		if !vc.cfg.Enabled {
			// Absent URL/credentials means DISABLED, not an error; the
			// client stays in the map so the heartbeat reports its state.
			client.(venueDisabler).Disable("stream url not configured")
			continue
		}
		subsystems = append(subsystems, venueClientSubsystem{client: client})
	}

	matcherOpts := matcher.Options{
		TimeTolerance: cfg.Matcher.TimeTolerance.Duration,
		MinQuality:    cfg.Matcher.MinQuality,
	}
	reg := registry.New(matcherOpts)

	subMgr := subscription.New(reg, clients, subscription.Options{
		Debounce:                 cfg.Subscription.Debounce.Duration,
		MaxSubscriptionsPerVenue: cfg.Subscription.MaxSubscriptionsPerVenue,
	}, logger)
	reg.OnDiff(func(diff domain.RegistryDiff) {
		subMgr.Trigger("registry_refresh")
	})

	gates := safety.New(safety.Options{
		MaxPriceAge:             cfg.Safety.MaxPriceAge.Duration,
		MaxSkew:                 cfg.Safety.MaxSkew.Duration,
		MaxSlippageBps:          cfg.Safety.MaxSlippageBps,
		BreakerFailureThreshold: uint32(cfg.Safety.BreakerFailureThreshold),
		BreakerCooldown:         cfg.Safety.BreakerCooldown.Duration,
	})

	eval := evaluator.New(priceCache, reg, gates, evaluator.Options{
		Throttle:     cfg.Evaluator.Throttle.Duration,
		MaxPriceAge:  cfg.Safety.MaxPriceAge.Duration,
		MinProfitPct: cfg.Evaluator.MinProfitPct,
	}, logger)

	asyncLog := newAsyncOpportunityLog(opportunityLog, cfg.Evaluator.QueueCapacity, logger)
	logCtx, logCancel := context.WithCancel(context.Background())
	go asyncLog.run(logCtx)
	closers = append(closers, logCancel)

	eval.AddListener(asyncLog)
	eval.AddListener(executor.NewStub(logger))
	unsubscribe := priceCache.Subscribe(eval.OnPriceUpdate)
	closers = append(closers, unsubscribe)

	fetchers := make(map[domain.Venue]snapshot.VenueFetcher)
	for _, vc := range venueCfgs {
		if vc.cfg.RestURL != "" {
			fetchers[vc.venue] = snapshot.NewRESTFetcher(vc.venue, vc.cfg.RestURL)
		}
	}
	snapSource := snapshot.New(fetchers)

	// runtimeCfg carries the most recently polled KV runtime configuration
	// into the refresh path's market filters.
	var runtimeCfg atomic.Pointer[domain.RuntimeConfig]

	refresh := func(ctx context.Context) error {
		snap, err := snapSource.FetchSnapshot(ctx)
		if err != nil && len(snap.Markets) == 0 {
			return fmt.Errorf("refresh: %w", err)
		}
		if rc := runtimeCfg.Load(); rc != nil {
			snap.Markets = filterMarkets(snap.Markets, *rc)
		}
		reg.Refresh(snap, time.Now())
		if err != nil {
			logger.Warn("partial market snapshot", slog.String("err", err.Error()))
		}
		return nil
	}

	stats := workerStats{cache: priceCache, clients: clients, gates: gates}

	worker := lifecycle.New(
		runtimeConfigKV,
		heartbeatKV,
		stats,
		subsystems,
		refresh,
		lifecycle.Options{
			HeartbeatInterval: cfg.Lifecycle.HeartbeatInterval.Duration,
			RefreshInterval:   cfg.Lifecycle.RefreshInterval.Duration,
			StoppingDelay:     1500 * time.Millisecond,
			ShutdownGrace:     cfg.Lifecycle.ShutdownGrace.Duration,
		},
		logger,
	)

	worker.OnRuntimeConfig(func(rc domain.RuntimeConfig) {
		runtimeCfg.Store(&rc)
		eval.SetLimits(
			float64(rc.MinProfitBps)/100,
			time.Duration(rc.MaxPriceAgeMs)*time.Millisecond,
			0,
		)
		gates.SetThresholds(
			time.Duration(rc.MaxPriceAgeMs)*time.Millisecond,
			time.Duration(rc.MaxSkewMs)*time.Millisecond,
			rc.MaxSlippageBps,
		)
		// -1 means the KV field is absent; an explicit 0 propagates and
		// drains every subscription per the documented boundary behavior.
		if rc.MaxSubscriptionsPerVenue >= 0 {
			subMgr.SetMaxSubscriptionsPerVenue(rc.MaxSubscriptionsPerVenue)
		}
		subMgr.SetLiveEventsOnly(rc.LiveEventsOnly)
	})

	deps := &Dependencies{Worker: worker}

	if cfg.Server.Enabled {
		handlers := server.Handlers{
			Health: server.NewHealthHandler(logger),
			Status: server.NewStatusHandler(worker),
		}
		deps.Server = server.NewServer(server.Config{Port: cfg.Server.Port}, handlers, logger)
	}

	return deps, cleanup, nil
}

func newVenueClient(venue domain.Venue, cfg config.VenueConfig, cache domain.PriceCache, logger *slog.Logger) (domain.VenueClient, error) {
	switch venue {
	case domain.VenueA:
		return venuea.New(cfg.WsURL, cache, logger), nil
	case domain.VenueB:
		return venueb.New(cfg.WsURL, cache, logger), nil
	case domain.VenueC:
		return venuec.New(cfg.WsURL, cache, logger), nil
	default:
		return nil, fmt.Errorf("unknown venue %s", venue)
	}
}

// venueDisabler is satisfied by every concrete venue client; it is how Wire
// parks a configured-out venue in the DISABLED state.
type venueDisabler interface {
	Disable(reason string)
}

// filterMarkets applies the runtime toggles that narrow which markets ever
// reach the Matcher. With the rule-based matcher switched off, no events are
// tracked at all and the Subscription Manager drains every subscription.
func filterMarkets(markets []domain.VenueMarket, rc domain.RuntimeConfig) []domain.VenueMarket {
	if !rc.RuleBasedMatcherEnabled {
		return nil
	}
	if !rc.SportsOnly {
		return markets
	}
	out := make([]domain.VenueMarket, 0, len(markets))
	for _, m := range markets {
		if m.Sport != "" {
			out = append(out, m)
		}
	}
	return out
}

// venueClientSubsystem adapts domain.VenueClient's Connect/Disconnect pair
// to the lifecycle.Subsystem shape the Worker toggles on LiveArbEnabled
// transitions.
type venueClientSubsystem struct {
	client domain.VenueClient
}

func (v venueClientSubsystem) Start(ctx context.Context) error { return v.client.Connect(ctx) }
func (v venueClientSubsystem) Stop() error                     { return v.client.Disconnect() }

// workerStats adapts the Live Price Cache, Venue Stream Clients, and Safety
// Gates into the lifecycle.StatsSource the heartbeat loop snapshots.
type workerStats struct {
	cache   domain.PriceCache
	clients map[domain.Venue]domain.VenueClient
	gates   *safety.Gates
}

func (s workerStats) CacheStats() domain.CacheStats { return s.cache.Stats() }

func (s workerStats) VenueStatuses() map[domain.Venue]domain.PlatformHeartbeat {
	out := make(map[domain.Venue]domain.PlatformHeartbeat, len(s.clients))
	for venue, client := range s.clients {
		status := client.Status()
		out[venue] = domain.PlatformHeartbeat{
			State:           status.State,
			LastMessageAt:   status.LastMessageAt,
			SubscribedCount: status.SubscribedCount,
			ErrorMessage:    status.ErrorMessage,
		}
	}
	return out
}

func (s workerStats) BreakerHeartbeat() domain.BreakerHeartbeat { return s.gates.Heartbeat() }
