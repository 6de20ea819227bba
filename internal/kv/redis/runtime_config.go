// Package redis implements the external KV named throughout §6 of the spec:
// a polling runtime-configuration object, a single-key heartbeat document,
// and a date-partitioned opportunity log, all backed by go-redis/v9.
package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arbworker/livearb/internal/domain"
)

const runtimeConfigKey = "livearb:runtime-config"

// RuntimeConfigStore implements domain.RuntimeConfigKV using a Redis hash,
// one field per RuntimeConfig member. A missing hash (first boot, no config
// ever written) yields a RuntimeConfig with every field at its zero value
// except MaxSubscriptionsPerVenue, which is -1 (absent), rather than an
// error; the Worker Lifecycle's main loop treats that as "disabled" until an
// operator writes one.
type RuntimeConfigStore struct {
	rdb *goredis.Client
}

// NewRuntimeConfigStore creates a RuntimeConfigStore backed by the given
// Client.
func NewRuntimeConfigStore(c *Client) *RuntimeConfigStore {
	return &RuntimeConfigStore{rdb: c.Underlying()}
}

// GetRuntimeConfig reads the polling runtime-configuration object.
func (s *RuntimeConfigStore) GetRuntimeConfig(ctx context.Context) (domain.RuntimeConfig, error) {
	vals, err := s.rdb.HGetAll(ctx, runtimeConfigKey).Result()
	if err != nil {
		return domain.RuntimeConfig{}, fmt.Errorf("redis: get runtime config: %w", err)
	}
	if len(vals) == 0 {
		return domain.RuntimeConfig{MaxSubscriptionsPerVenue: -1}, nil
	}

	cfg := domain.RuntimeConfig{
		LiveArbEnabled:          boolField(vals, "liveArbEnabled"),
		RuleBasedMatcherEnabled: boolField(vals, "ruleBasedMatcherEnabled"),
		SportsOnly:              boolField(vals, "sportsOnly"),
		LiveEventsOnly:          boolField(vals, "liveEventsOnly"),
		MinProfitBps:            intField(vals, "minProfitBps"),
		MaxPriceAgeMs:           intField(vals, "maxPriceAgeMs"),
		MaxSkewMs:               intField(vals, "maxSkewMs"),
		// Zero is a meaningful cap (subscribe to nothing), so an absent
		// field must not read as zero; -1 marks absence.
		MaxSubscriptionsPerVenue: intFieldOr(vals, "maxSubscriptionsPerVenue", -1),
		MaxSlippageBps:           intField(vals, "maxSlippageBps"),
		RefreshIntervalMs:        intField(vals, "refreshIntervalMs"),
	}
	return cfg, nil
}

func boolField(vals map[string]string, field string) bool {
	return vals[field] == "1" || vals[field] == "true"
}

func intField(vals map[string]string, field string) int {
	n, _ := strconv.Atoi(vals[field])
	return n
}

// intFieldOr returns absent when the field is missing or unparsable,
// preserving the distinction between "not set" and an explicit value.
func intFieldOr(vals map[string]string, field string, absent int) int {
	v, ok := vals[field]
	if !ok {
		return absent
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return absent
	}
	return n
}

var _ domain.RuntimeConfigKV = (*RuntimeConfigStore)(nil)
