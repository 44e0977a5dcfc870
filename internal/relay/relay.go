// Package relay fans announced envelopes out across server instances via
// Redis Pub/Sub, so a subscriber connected to any instance sees every
// state change for its event.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/gridpulse/internal/domain"
	"github.com/pscheid92/gridpulse/internal/metrics"
)

const channelPrefix = "gridpulse:event:"

func eventChannel(eventID uuid.UUID) string {
	return channelPrefix + eventID.String()
}

// frame is the wire format on the Redis channel. Origin carries the
// publishing instance id so an instance never re-delivers its own
// envelopes locally.
type frame struct {
	Origin   string          `json:"origin"`
	Envelope json.RawMessage `json:"envelope"`
}

// Announcer delivers an envelope to local subscribers of an event.
type Announcer interface {
	Announce(eventID uuid.UUID, env domain.Envelope)
}

// Relay wraps a local announcer: every announce is delivered locally and
// published to Redis for the other instances. Publish failures never block
// the local delivery; a circuit breaker stops hammering a dead Redis.
type Relay struct {
	rdb        *redis.Client
	local      Announcer
	instanceID string
	breaker    *gobreaker.CircuitBreaker
}

// New creates a relay around the given local announcer.
func New(rdb *redis.Client, local Announcer) *Relay {
	settings := gobreaker.Settings{
		Name:    "relay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Relay circuit breaker state changed",
				"from", from.String(),
				"to", to.String())
			metrics.RelayBreakerState.Set(breakerStateToFloat(to))
		},
	}

	return &Relay{
		rdb:        rdb,
		local:      local,
		instanceID: uuid.NewString(),
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

func breakerStateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Announce delivers env locally and publishes it for the other instances.
func (r *Relay) Announce(eventID uuid.UUID, env domain.Envelope) {
	r.local.Announce(eventID, env)

	data, err := encodeFrame(r.instanceID, env)
	if err != nil {
		slog.Error("Failed to encode relay frame", "error", err)
		metrics.RelayPublishFailures.Inc()
		return
	}

	_, err = r.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return nil, r.rdb.Publish(ctx, eventChannel(eventID), data).Err()
	})
	if err != nil {
		slog.Warn("Failed to publish envelope to relay",
			"event_id", eventID,
			"topic", env.Topic,
			"error", err)
		metrics.RelayPublishFailures.Inc()
		return
	}

	metrics.RelayPublished.Inc()
}

// Start subscribes to all event channels and forwards remote envelopes to
// the local announcer. Blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			r.handleMessage(msg.Channel, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage processes a single relayed frame.
func (r *Relay) handleMessage(channel, payload string) {
	eventID, err := uuid.Parse(strings.TrimPrefix(channel, channelPrefix))
	if err != nil {
		slog.Warn("Invalid event id in relay channel name", "channel", channel, "error", err)
		return
	}

	env, origin, err := decodeFrame([]byte(payload))
	if err != nil {
		slog.Warn("Failed to decode relay frame", "channel", channel, "error", err)
		return
	}
	if origin == r.instanceID {
		return
	}

	metrics.RelayReceived.Inc()
	r.local.Announce(eventID, env)
}

func encodeFrame(origin string, env domain.Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	data, err := json.Marshal(frame{Origin: origin, Envelope: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return data, nil
}

func decodeFrame(data []byte) (domain.Envelope, string, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.Envelope{}, "", fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(f.Envelope, &env); err != nil {
		return domain.Envelope{}, "", fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return env, f.Origin, nil
}
