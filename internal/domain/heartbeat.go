package domain

import "time"

// WorkerState is the Worker Lifecycle's coarse-grained phase, written to the
// heartbeat on every tick.
type WorkerState string

const (
	WorkerStarting WorkerState = "STARTING"
	WorkerRunning  WorkerState = "RUNNING"
	WorkerIdle     WorkerState = "IDLE"
	WorkerStopping WorkerState = "STOPPING"
	WorkerStopped  WorkerState = "STOPPED"
)

// PlatformHeartbeat is the per-venue slice of a WorkerHeartbeat.
type PlatformHeartbeat struct {
	State           ConnState `json:"state"`
	LastMessageAt   time.Time `json:"lastMessageAt"`
	SubscribedCount int       `json:"subscribedCount"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

// BreakerHeartbeat is the circuit breaker's externally observable state.
type BreakerHeartbeat struct {
	State               string         `json:"state"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	BlockedReasons      map[string]int `json:"blockedReasons"`
}

// WorkerHeartbeat is the full document written to the external KV at a single
// fixed key on every heartbeat tick. SchemaVersion lets readers evolve the
// shape; unknown fields must be tolerated by readers.
type WorkerHeartbeat struct {
	SchemaVersion     int                         `json:"schemaVersion"`
	UpdatedAt         time.Time                   `json:"updatedAt"`
	State             WorkerState                 `json:"state"`
	TickCount         int64                       `json:"tickCount"`
	Platforms         map[Venue]PlatformHeartbeat `json:"platforms"`
	PriceCacheStats   CacheStats                  `json:"priceCacheStats"`
	CircuitBreaker    BreakerHeartbeat            `json:"circuitBreaker"`
	LastRefreshAt     time.Time                   `json:"lastRefreshAt"`
	RefreshInProgress bool                        `json:"refreshInProgress"`
	ShutdownReason    string                      `json:"shutdownReason,omitempty"`
}

// HeartbeatSchemaVersion is the current WorkerHeartbeat document version.
const HeartbeatSchemaVersion = 1
