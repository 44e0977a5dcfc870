// Package coordination tracks the active server instances of a deployment
// in Redis. Each instance heartbeats into a shared hash; operators and the
// health surface read it to see which instances currently serve an event.
package coordination

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	registryKey = "gridpulse:instances"

	// staleAfter is how long after its last heartbeat an instance still
	// counts as active.
	staleAfter = 60 * time.Second
)

// InstanceInfo is one instance's heartbeat record.
type InstanceInfo struct {
	InstanceID  string `json:"instanceId"`
	Version     string `json:"version"`
	Subscribers int    `json:"subscribers"`
	Timestamp   int64  `json:"timestamp"`
}

// InstanceRegistry heartbeats this instance into the shared registry and
// reads back the set of live peers.
type InstanceRegistry struct {
	rdb         *redis.Client
	instanceID  string
	version     string
	heartbeat   time.Duration
	subscribers func() int
}

// NewInstanceRegistry creates a registry for this instance. subscribers
// reports the current local subscriber connection count and may be nil.
func NewInstanceRegistry(rdb *redis.Client, instanceID, version string, heartbeat time.Duration, subscribers func() int) *InstanceRegistry {
	return &InstanceRegistry{
		rdb:         rdb,
		instanceID:  instanceID,
		version:     version,
		heartbeat:   heartbeat,
		subscribers: subscribers,
	}
}

// Start registers immediately and then heartbeats on the configured
// interval. Blocks until ctx is cancelled, then unregisters.
func (r *InstanceRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *InstanceRegistry) register(ctx context.Context) {
	info := InstanceInfo{
		InstanceID: r.instanceID,
		Version:    r.version,
		Timestamp:  time.Now().Unix(),
	}
	if r.subscribers != nil {
		info.Subscribers = r.subscribers()
	}

	data, err := json.Marshal(info)
	if err != nil {
		return
	}

	if err := r.rdb.HSet(ctx, registryKey, r.instanceID, data).Err(); err != nil {
		slog.Warn("Failed to write instance heartbeat", "instance_id", r.instanceID, "error", err)
	}
}

func (r *InstanceRegistry) unregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.HDel(ctx, registryKey, r.instanceID).Err(); err != nil {
		slog.Warn("Failed to unregister instance", "instance_id", r.instanceID, "error", err)
	}
}

// ActiveInstances returns all instances with a heartbeat younger than the
// staleness window.
func (r *InstanceRegistry) ActiveInstances(ctx context.Context) ([]InstanceInfo, error) {
	entries, err := r.rdb.HGetAll(ctx, registryKey).Result()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	active := []InstanceInfo{}
	for _, data := range entries {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(staleAfter/time.Second) {
			active = append(active, info)
		}
	}
	return active, nil
}
