// Package lifecycle implements the Worker Lifecycle & Heartbeat: two
// independent loops (§4.7) — a main loop that polls runtime config and
// refreshes the market snapshot, and a heartbeat loop that writes process
// state to the external KV on a fixed cadence regardless of what the main
// loop is doing.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbworker/livearb/internal/domain"
)

// Options configures the lifecycle's cadences, all sourced from runtime
// config/env (§6, §10).
type Options struct {
	HeartbeatInterval time.Duration
	RefreshInterval   time.Duration
	StoppingDelay     time.Duration
	ShutdownGrace     time.Duration
}

// DefaultOptions mirrors the spec's stated defaults.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 5 * time.Second,
		RefreshInterval:   15 * time.Second,
		StoppingDelay:     1500 * time.Millisecond,
		ShutdownGrace:     25 * time.Second,
	}
}

// Subsystem is started when the runtime config's LiveArbEnabled toggles on
// and stopped when it toggles off. Wire adapts each enabled Venue Stream
// Client to this shape.
type Subsystem interface {
	Start(ctx context.Context) error
	Stop() error
}

// StatsSource exposes the in-memory state the heartbeat loop snapshots on
// every tick. It must not block or perform I/O.
type StatsSource interface {
	CacheStats() domain.CacheStats
	VenueStatuses() map[domain.Venue]domain.PlatformHeartbeat
	BreakerHeartbeat() domain.BreakerHeartbeat
}

// Worker runs the two independent loops described in §4.7.
type Worker struct {
	runtimeConfig domain.RuntimeConfigKV
	heartbeatKV   domain.HeartbeatKV
	stats         StatsSource
	subsystems    []Subsystem
	refresh       func(ctx context.Context) error
	onConfig      func(domain.RuntimeConfig)
	opts          Options
	log           *slog.Logger

	rateLog *rateLimitedLogger

	mu                sync.Mutex
	state             domain.WorkerState
	tickCount         int64
	lastRefreshAt     time.Time
	refreshInProgress bool
	shutdownReason    string

	heartbeatInFlight int32

	lastHeartbeatMu sync.Mutex
	lastHeartbeat   domain.WorkerHeartbeat
	haveHeartbeat   bool
}

// LastHeartbeat returns the most recently written WorkerHeartbeat, for the
// status HTTP surface to project without touching the external KV.
func (w *Worker) LastHeartbeat() (domain.WorkerHeartbeat, bool) {
	w.lastHeartbeatMu.Lock()
	defer w.lastHeartbeatMu.Unlock()
	return w.lastHeartbeat, w.haveHeartbeat
}

// New creates a Worker. refresh performs one market-snapshot refresh pass
// (fetch + Matcher + Registry.Refresh); it may be slow and must honor ctx.
func New(
	runtimeConfig domain.RuntimeConfigKV,
	heartbeatKV domain.HeartbeatKV,
	stats StatsSource,
	subsystems []Subsystem,
	refresh func(ctx context.Context) error,
	opts Options,
	log *slog.Logger,
) *Worker {
	return &Worker{
		runtimeConfig: runtimeConfig,
		heartbeatKV:   heartbeatKV,
		stats:         stats,
		subsystems:    subsystems,
		refresh:       refresh,
		opts:          opts,
		log:           log.With(slog.String("component", "lifecycle")),
		rateLog:       newRateLimitedLogger(),
		state:         domain.WorkerStopped,
	}
}

// OnRuntimeConfig registers a hook invoked from the main loop whenever the
// polled runtime configuration changes, so downstream components (evaluator
// limits, safety thresholds, subscription caps, snapshot filters) pick up
// new values without a restart. Must be called before Run.
func (w *Worker) OnRuntimeConfig(fn func(domain.RuntimeConfig)) {
	w.onConfig = fn
}

// Run blocks until ctx is cancelled, then executes the shutdown sequence.
// It writes a STARTING heartbeat before doing anything else so external
// observers see the process within one tick of launch.
func (w *Worker) Run(ctx context.Context) error {
	w.setState(domain.WorkerStarting)
	w.writeHeartbeatBestEffort(context.Background())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.runHeartbeatLoop(gctx)
		return nil
	})
	g.Go(func() error {
		w.runMainLoop(gctx)
		return nil
	})

	<-ctx.Done()
	w.shutdown()

	return g.Wait()
}

func (w *Worker) setState(s domain.WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// runMainLoop polls runtime config and refreshes the market snapshot every
// RefreshInterval, toggling subsystems as LiveArbEnabled changes.
func (w *Worker) runMainLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.RefreshInterval)
	defer ticker.Stop()

	active := false
	refreshEvery := w.opts.RefreshInterval
	var lastCfg domain.RuntimeConfig

	tick := func() {
		cfgCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		cfg, err := w.runtimeConfig.GetRuntimeConfig(cfgCtx)
		cancel()
		if err != nil {
			w.log.Warn("runtime config poll failed", slog.String("err", err.Error()))
			return
		}

		if cfg != lastCfg {
			lastCfg = cfg
			if w.onConfig != nil {
				w.onConfig(cfg)
			}
			if d := time.Duration(cfg.RefreshIntervalMs) * time.Millisecond; d > 0 && d != refreshEvery {
				refreshEvery = d
				ticker.Reset(d)
			}
		}

		if cfg.LiveArbEnabled && !active {
			w.startSubsystems(ctx)
			active = true
		} else if !cfg.LiveArbEnabled && active {
			w.stopSubsystems()
			active = false
		}

		if !active {
			w.setState(domain.WorkerIdle)
			return
		}
		w.setState(domain.WorkerRunning)

		w.mu.Lock()
		w.refreshInProgress = true
		w.mu.Unlock()

		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		refreshErr := w.refresh(refreshCtx)
		cancel()

		w.mu.Lock()
		w.refreshInProgress = false
		if refreshErr == nil {
			// A failed refresh keeps the previous registry and the previous
			// lastRefreshAt, so observers can see the staleness.
			w.lastRefreshAt = time.Now()
		}
		w.mu.Unlock()

		if refreshErr != nil {
			w.log.Error("market snapshot refresh failed", slog.String("err", refreshErr.Error()))
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

func (w *Worker) startSubsystems(ctx context.Context) {
	for _, s := range w.subsystems {
		if err := s.Start(ctx); err != nil {
			w.log.Error("subsystem start failed", slog.String("err", err.Error()))
		}
	}
}

func (w *Worker) stopSubsystems() {
	for _, s := range w.subsystems {
		if err := s.Stop(); err != nil {
			w.log.Warn("subsystem stop failed", slog.String("err", err.Error()))
		}
	}
}

// runHeartbeatLoop fires independently of the main loop on a fixed
// interval.
func (w *Worker) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.writeHeartbeatBestEffort(ctx)
		}
	}
}

// writeHeartbeatBestEffort snapshots in-memory state and writes a
// WorkerHeartbeat document. It never blocks a subsequent tick behind a slow
// write: if a write is already in flight, this tick is skipped outright.
// The in-flight flag is always released, even on panic recovery, matching
// §4.7's "finally-equivalent" requirement.
func (w *Worker) writeHeartbeatBestEffort(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&w.heartbeatInFlight, 0, 1) {
		return
	}
	w.writeHeartbeatLocked(ctx)
}

// writeHeartbeatWait is the shutdown variant: STOPPING and STOPPED must not
// be silently skipped just because a regular tick's write was still in
// flight, so this waits (bounded) for the flag instead of giving up.
func (w *Worker) writeHeartbeatWait(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Second)
	for !atomic.CompareAndSwapInt32(&w.heartbeatInFlight, 0, 1) {
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	w.writeHeartbeatLocked(ctx)
}

// writeHeartbeatLocked does the actual snapshot and write. The caller has
// acquired the in-flight flag; it is always released here, even if a stats
// source or the KV write panics.
func (w *Worker) writeHeartbeatLocked(ctx context.Context) {
	defer atomic.StoreInt32(&w.heartbeatInFlight, 0)

	w.mu.Lock()
	w.tickCount++
	hb := domain.WorkerHeartbeat{
		SchemaVersion:     domain.HeartbeatSchemaVersion,
		UpdatedAt:         time.Now(),
		State:             w.state,
		TickCount:         w.tickCount,
		LastRefreshAt:     w.lastRefreshAt,
		RefreshInProgress: w.refreshInProgress,
		ShutdownReason:    w.shutdownReason,
	}
	w.mu.Unlock()

	if w.stats != nil {
		hb.PriceCacheStats = w.stats.CacheStats()
		hb.CircuitBreaker = w.stats.BreakerHeartbeat()

		platforms := make(map[domain.Venue]domain.PlatformHeartbeat)
		for venue, status := range w.stats.VenueStatuses() {
			platforms[venue] = status
		}
		hb.Platforms = platforms
	}

	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := w.heartbeatKV.WriteHeartbeat(writeCtx, hb)
	cancel()

	w.lastHeartbeatMu.Lock()
	w.lastHeartbeat = hb
	w.haveHeartbeat = true
	w.lastHeartbeatMu.Unlock()

	now := time.Now()
	if err != nil {
		if w.rateLog.allow("heartbeat-error", 30*time.Second, now) {
			w.log.Error("heartbeat write failed", slog.String("err", err.Error()))
		}
		return
	}
	if w.rateLog.allow("heartbeat-ok", 60*time.Second, now) {
		w.log.Info("heartbeat ok", slog.Int64("tick", hb.TickCount), slog.String("state", string(hb.State)))
	}
}

// shutdown executes the sequence in §4.7: STOPPING (with reason) first,
// then stop subsystems, wait StoppingDelay so external observers can
// witness STOPPING, then STOPPED.
func (w *Worker) shutdown() {
	w.mu.Lock()
	w.state = domain.WorkerStopping
	w.shutdownReason = "signal"
	w.mu.Unlock()
	w.writeHeartbeatWait(context.Background())

	w.stopSubsystems()

	time.Sleep(w.opts.StoppingDelay)

	w.mu.Lock()
	w.state = domain.WorkerStopped
	w.mu.Unlock()
	w.writeHeartbeatWait(context.Background())
}
