package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arbworker/livearb/internal/domain"
)

const heartbeatKey = "livearb:heartbeat"

// heartbeatWriteDeadline bounds every heartbeat write per §5's "all external
// requests carry a deadline" rule (3s KV write deadline).
const heartbeatWriteDeadline = 3 * time.Second

// HeartbeatStore implements domain.HeartbeatKV by writing the
// WorkerHeartbeat JSON document to a single fixed key, matching the
// teacher's hash-of-fields pattern except the heartbeat is one opaque JSON
// blob: §6 requires readers to tolerate unknown fields, which a flattened
// hash cannot express as cleanly as a JSON document can.
type HeartbeatStore struct {
	rdb *goredis.Client
}

// NewHeartbeatStore creates a HeartbeatStore backed by the given Client.
func NewHeartbeatStore(c *Client) *HeartbeatStore {
	return &HeartbeatStore{rdb: c.Underlying()}
}

// WriteHeartbeat marshals hb and SETs it at the fixed heartbeat key with no
// expiry; staleness is judged externally by comparing UpdatedAt against
// wall-clock time, not by key TTL.
func (s *HeartbeatStore) WriteHeartbeat(ctx context.Context, hb domain.WorkerHeartbeat) error {
	ctx, cancel := context.WithTimeout(ctx, heartbeatWriteDeadline)
	defer cancel()

	payload, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("redis: marshal heartbeat: %w", err)
	}
	if err := s.rdb.Set(ctx, heartbeatKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis: write heartbeat: %w", err)
	}
	return nil
}

var _ domain.HeartbeatKV = (*HeartbeatStore)(nil)
