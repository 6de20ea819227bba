package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arbworker/livearb/internal/domain"
)

const (
	opportunityLogKeyPrefix  = "livearb:opportunities:"
	opportunityLogMaxPerDay  = 10000
	opportunityLogRetention  = 30 * 24 * time.Hour
	opportunityLogDateLayout = "2006-01-02"
)

// opportunityLogEntry is the fully self-describing record appended to the
// log: the Opportunity itself plus a fee estimate. No venue client in this
// system surfaces a real fee schedule, so FeeBps is left at zero and the
// field exists purely so downstream consumers (the CSV export projection)
// have a stable column to read once a fee schedule is wired in.
type opportunityLogEntry struct {
	domain.Opportunity
	FeeBps int `json:"feeBps"`
}

// OpportunityLog implements domain.OpportunityLogKV as a date-partitioned,
// bounded, append-only Redis list: LPUSH the newest entry, LTRIM to the
// daily cap, and EXPIRE the whole day's key so it falls off after the
// retention window without a separate sweep.
type OpportunityLog struct {
	rdb *goredis.Client
}

// NewOpportunityLog creates an OpportunityLog backed by the given Client.
func NewOpportunityLog(c *Client) *OpportunityLog {
	return &OpportunityLog{rdb: c.Underlying()}
}

func opportunityLogKey(t time.Time) string {
	return opportunityLogKeyPrefix + t.UTC().Format(opportunityLogDateLayout)
}

// AppendOpportunity pushes o onto today's (UTC) partition, trims it to
// opportunityLogMaxPerDay entries, and refreshes the partition's retention
// TTL.
func (l *OpportunityLog) AppendOpportunity(ctx context.Context, o domain.Opportunity) error {
	key := opportunityLogKey(time.Now())

	payload, err := json.Marshal(opportunityLogEntry{Opportunity: o})
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity: %w", err)
	}

	pipe := l.rdb.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, opportunityLogMaxPerDay-1)
	pipe.Expire(ctx, key, opportunityLogRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append opportunity: %w", err)
	}
	return nil
}

// Recent returns up to count of the most recently appended opportunities
// for the given UTC day, newest first. It underlies the CSV export
// projection.
func (l *OpportunityLog) Recent(ctx context.Context, day time.Time, count int) ([]domain.Opportunity, error) {
	key := opportunityLogKey(day)
	raw, err := l.rdb.LRange(ctx, key, 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read opportunity log %s: %w", key, err)
	}

	out := make([]domain.Opportunity, 0, len(raw))
	for _, item := range raw {
		var entry opportunityLogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry.Opportunity)
	}
	return out, nil
}

var _ domain.OpportunityLogKV = (*OpportunityLog)(nil)
