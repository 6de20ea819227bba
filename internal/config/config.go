// Package config defines the worker's top-level configuration and
// validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBWORKER_* environment
// variables (plus the three bespoke names in the spec's operational
// surface: WORKER_HEARTBEAT_INTERVAL_MS, WORKER_SHUTDOWN_GRACE_MS,
// REFRESH_MS).
type Config struct {
	VenueA       VenueConfig        `toml:"venue_a"`
	VenueB       VenueConfig        `toml:"venue_b"`
	VenueC       VenueConfig        `toml:"venue_c"`
	Redis        RedisConfig        `toml:"redis"`
	Matcher      MatcherConfig      `toml:"matcher"`
	Subscription SubscriptionConfig `toml:"subscription"`
	Safety       SafetyConfig       `toml:"safety"`
	Evaluator    EvaluatorConfig    `toml:"evaluator"`
	Lifecycle    LifecycleConfig    `toml:"lifecycle"`
	Server       ServerConfig       `toml:"server"`
	LogLevel     string             `toml:"log_level"`
}

// VenueConfig holds a single venue's stream endpoint, market-listing
// endpoint, and credentials. A venue with no ws_url is disabled rather than
// rejected: absent credentials/URLs put the Stream Client in DISABLED, not
// the process in error.
type VenueConfig struct {
	Enabled   bool   `toml:"enabled"`
	WsURL     string `toml:"ws_url"`
	RestURL   string `toml:"rest_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

// RedisConfig holds connection parameters for the external KV (§6):
// runtime config, heartbeat, and opportunity log all live in this instance.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// MatcherConfig holds the Matcher's tolerance defaults (§4.3), overridable
// through the TOML file or ARBWORKER_MATCHER_* environment variables rather
// than hardcoded. The KV runtime configuration carries no matcher fields.
type MatcherConfig struct {
	TimeTolerance duration `toml:"time_tolerance"`
	MinQuality    float64  `toml:"min_quality"`
}

// SubscriptionConfig holds the Subscription Manager's debounce and cap
// defaults (§4.4).
type SubscriptionConfig struct {
	Debounce                 duration `toml:"debounce"`
	MaxSubscriptionsPerVenue int      `toml:"max_subscriptions_per_venue"`
}

// SafetyConfig holds the Safety/Circuit Breaker gate thresholds (§4.6).
type SafetyConfig struct {
	MaxPriceAge             duration `toml:"max_price_age"`
	MaxSkew                 duration `toml:"max_skew"`
	MaxSlippageBps          int      `toml:"max_slippage_bps"`
	BreakerFailureThreshold int      `toml:"breaker_failure_threshold"`
	BreakerCooldown         duration `toml:"breaker_cooldown"`
}

// EvaluatorConfig holds the Arbitrage Evaluator's throttle and queue
// defaults (§4.5).
type EvaluatorConfig struct {
	Throttle      duration `toml:"throttle"`
	MinProfitPct  float64  `toml:"min_profit_pct"`
	QueueCapacity int      `toml:"queue_capacity"`
}

// LifecycleConfig holds the Worker Lifecycle & Heartbeat's cadences (§4.7,
// §6).
type LifecycleConfig struct {
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	ShutdownGrace     duration `toml:"shutdown_grace"`
	RefreshInterval   duration `toml:"refresh_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds the optional minimal HTTP status/health surface (§5).
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with the spec's stated defaults.
func Defaults() Config {
	return Config{
		VenueA: VenueConfig{Enabled: true},
		VenueB: VenueConfig{Enabled: true},
		VenueC: VenueConfig{Enabled: true},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Matcher: MatcherConfig{
			TimeTolerance: duration{30 * time.Minute},
			MinQuality:    0.70,
		},
		Subscription: SubscriptionConfig{
			Debounce:                 duration{time.Second},
			MaxSubscriptionsPerVenue: 100,
		},
		Safety: SafetyConfig{
			MaxPriceAge:             duration{2000 * time.Millisecond},
			MaxSkew:                 duration{500 * time.Millisecond},
			MaxSlippageBps:          100,
			BreakerFailureThreshold: 5,
			BreakerCooldown:         duration{60 * time.Second},
		},
		Evaluator: EvaluatorConfig{
			Throttle:      duration{100 * time.Millisecond},
			MinProfitPct:  0.5,
			QueueCapacity: 1024,
		},
		Lifecycle: LifecycleConfig{
			HeartbeatInterval: duration{5 * time.Second},
			ShutdownGrace:     duration{25 * time.Second},
			RefreshInterval:   duration{15 * time.Second},
		},
		Server:   ServerConfig{Enabled: true, Port: 8089},
		LogLevel: "info",
	}
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []error

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis: addr must not be empty"))
	}

	if c.Matcher.MinQuality < 0 || c.Matcher.MinQuality > 1 {
		errs = append(errs, errors.New("matcher: min_quality must be within [0,1]"))
	}
	if c.Matcher.TimeTolerance.Duration <= 0 {
		errs = append(errs, errors.New("matcher: time_tolerance must be positive"))
	}

	// Zero is a valid cap: the Subscription Manager subscribes to nothing
	// and the Evaluator runs on snapshot prices alone.
	if c.Subscription.MaxSubscriptionsPerVenue < 0 {
		errs = append(errs, errors.New("subscription: max_subscriptions_per_venue must not be negative"))
	}

	if c.Safety.BreakerFailureThreshold <= 0 {
		errs = append(errs, errors.New("safety: breaker_failure_threshold must be positive"))
	}
	if c.Safety.MaxPriceAge.Duration <= 0 {
		errs = append(errs, errors.New("safety: max_price_age must be positive"))
	}

	if c.Evaluator.QueueCapacity <= 0 {
		errs = append(errs, errors.New("evaluator: queue_capacity must be positive"))
	}
	if c.Evaluator.MinProfitPct < 0 {
		errs = append(errs, errors.New("evaluator: min_profit_pct must not be negative"))
	}

	if c.Lifecycle.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, errors.New("lifecycle: heartbeat_interval must be positive"))
	}
	if c.Lifecycle.ShutdownGrace.Duration <= 0 {
		errs = append(errs, errors.New("lifecycle: shutdown_grace must be positive"))
	}
	if c.Lifecycle.RefreshInterval.Duration <= 0 {
		errs = append(errs, errors.New("lifecycle: refresh_interval must be positive"))
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, errors.New("server: port must be within (0,65535] when enabled"))
	}

	return errors.Join(errs...)
}
