package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns
// the final Config. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	// A venue without a stream URL is DISABLED, not a configuration error.
	disableURLless(&cfg.VenueA)
	disableURLless(&cfg.VenueB)
	disableURLless(&cfg.VenueC)

	return &cfg, nil
}

func disableURLless(vc *VenueConfig) {
	if vc.WsURL == "" {
		vc.Enabled = false
	}
}

// applyEnvOverrides reads well-known ARBWORKER_* environment variables plus
// the three bespoke names the spec's operational surface calls out by name
// (WORKER_HEARTBEAT_INTERVAL_MS, WORKER_SHUTDOWN_GRACE_MS, REFRESH_MS), and
// overwrites the corresponding Config fields when a variable is set. Env
// always wins: this runs after the TOML file is decoded.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	setStr(&cfg.VenueA.WsURL, "ARBWORKER_VENUE_A_WS_URL")
	setStr(&cfg.VenueA.RestURL, "ARBWORKER_VENUE_A_REST_URL")
	setStr(&cfg.VenueA.APIKey, "ARBWORKER_VENUE_A_API_KEY")
	setStr(&cfg.VenueA.APISecret, "ARBWORKER_VENUE_A_API_SECRET")
	setBool(&cfg.VenueA.Enabled, "ARBWORKER_VENUE_A_ENABLED")

	setStr(&cfg.VenueB.WsURL, "ARBWORKER_VENUE_B_WS_URL")
	setStr(&cfg.VenueB.RestURL, "ARBWORKER_VENUE_B_REST_URL")
	setStr(&cfg.VenueB.APIKey, "ARBWORKER_VENUE_B_API_KEY")
	setStr(&cfg.VenueB.APISecret, "ARBWORKER_VENUE_B_API_SECRET")
	setBool(&cfg.VenueB.Enabled, "ARBWORKER_VENUE_B_ENABLED")

	setStr(&cfg.VenueC.WsURL, "ARBWORKER_VENUE_C_WS_URL")
	setStr(&cfg.VenueC.RestURL, "ARBWORKER_VENUE_C_REST_URL")
	setStr(&cfg.VenueC.APIKey, "ARBWORKER_VENUE_C_API_KEY")
	setStr(&cfg.VenueC.APISecret, "ARBWORKER_VENUE_C_API_SECRET")
	setBool(&cfg.VenueC.Enabled, "ARBWORKER_VENUE_C_ENABLED")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBWORKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBWORKER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBWORKER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBWORKER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBWORKER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBWORKER_REDIS_TLS_ENABLED")

	// ── Matcher ──
	setDuration(&cfg.Matcher.TimeTolerance, "ARBWORKER_MATCHER_TIME_TOLERANCE")
	setFloat64(&cfg.Matcher.MinQuality, "ARBWORKER_MATCHER_MIN_QUALITY")

	// ── Subscription ──
	setDuration(&cfg.Subscription.Debounce, "ARBWORKER_SUBSCRIPTION_DEBOUNCE")
	setInt(&cfg.Subscription.MaxSubscriptionsPerVenue, "ARBWORKER_SUBSCRIPTION_MAX_PER_VENUE")

	// ── Safety ──
	setDuration(&cfg.Safety.MaxPriceAge, "ARBWORKER_SAFETY_MAX_PRICE_AGE")
	setDuration(&cfg.Safety.MaxSkew, "ARBWORKER_SAFETY_MAX_SKEW")
	setInt(&cfg.Safety.MaxSlippageBps, "ARBWORKER_SAFETY_MAX_SLIPPAGE_BPS")
	setInt(&cfg.Safety.BreakerFailureThreshold, "ARBWORKER_SAFETY_BREAKER_FAILURE_THRESHOLD")
	setDuration(&cfg.Safety.BreakerCooldown, "ARBWORKER_SAFETY_BREAKER_COOLDOWN")

	// ── Evaluator ──
	setDuration(&cfg.Evaluator.Throttle, "ARBWORKER_EVALUATOR_THROTTLE")
	setFloat64(&cfg.Evaluator.MinProfitPct, "ARBWORKER_EVALUATOR_MIN_PROFIT_PCT")
	setInt(&cfg.Evaluator.QueueCapacity, "ARBWORKER_EVALUATOR_QUEUE_CAPACITY")

	// ── Lifecycle: bespoke names called out in the spec's operational
	// surface, not the generic ARBWORKER_ prefix. ──
	setDuration(&cfg.Lifecycle.HeartbeatInterval, "WORKER_HEARTBEAT_INTERVAL_MS")
	setDuration(&cfg.Lifecycle.ShutdownGrace, "WORKER_SHUTDOWN_GRACE_MS")
	setDuration(&cfg.Lifecycle.RefreshInterval, "REFRESH_MS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBWORKER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBWORKER_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ARBWORKER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// setDuration parses key as a bare millisecond integer first (matching the
// spec's *_MS naming for the three bespoke lifecycle env vars), falling
// back to a Go duration string ("5s", "2m") for every other override.
func setDuration(dst *duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if ms, err := strconv.Atoi(v); err == nil {
		dst.Duration = time.Duration(ms) * time.Millisecond
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		dst.Duration = d
	}
}
