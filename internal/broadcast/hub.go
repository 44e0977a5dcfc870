package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridpulse/internal/domain"
	"github.com/pscheid92/gridpulse/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	cmdBufferSize  = 256
)

type channelSubscribers map[*websocket.Conn]*subscriberWriter

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type subscribeCmd struct {
	baseHubCmd
	eventID uuid.UUID
	conn    *websocket.Conn
	errCh   chan error
}

type unsubscribeCmd struct {
	baseHubCmd
	eventID uuid.UUID
	conn    *websocket.Conn
}

type announceCmd struct {
	baseHubCmd
	eventID uuid.UUID
	frame   []byte
	topic   domain.Topic
}

type subscriberCountCmd struct {
	baseHubCmd
	eventID uuid.UUID
	replyCh chan int
}

type stopHubCmd struct {
	baseHubCmd
}

// Hub is the process-wide channel registry and broadcast hub. A channel is
// created lazily on the first subscribe for an event and destroyed when its
// last subscriber leaves. All state is owned by a single goroutine fed by a
// command channel.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	channels    map[uuid.UUID]channelSubscribers
	onFirstSub  func(eventID uuid.UUID)
	onChanEmpty func(eventID uuid.UUID)
	done        chan struct{}
	maxPerEvent int
}

// NewHub creates and starts a hub.
// onFirstSub fires when an event channel is lazily created.
// onChanEmpty fires when the last subscriber leaves an event channel.
// maxPerEvent caps subscribers per event (resource exhaustion guard).
func NewHub(onFirstSub, onChanEmpty func(uuid.UUID), clock clockwork.Clock, maxPerEvent int) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, cmdBufferSize),
		clock:       clock,
		channels:    make(map[uuid.UUID]channelSubscribers),
		onFirstSub:  onFirstSub,
		onChanEmpty: onChanEmpty,
		done:        make(chan struct{}),
		maxPerEvent: maxPerEvent,
	}
	go h.run()
	return h
}

// Subscribe registers a connection under the event's channel, creating the
// channel if absent. Subscribing the same connection twice is a no-op.
func (h *Hub) Subscribe(eventID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- subscribeCmd{eventID: eventID, conn: conn, errCh: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("subscribe command timed out after %v", commandTimeout)
	}
}

// Unsubscribe removes a connection from the event's channel. Unknown
// connections are ignored.
func (h *Hub) Unsubscribe(eventID uuid.UUID, conn *websocket.Conn) {
	h.cmdCh <- unsubscribeCmd{eventID: eventID, conn: conn}
}

// Announce fans the envelope out to every subscriber of the event's channel.
// Fire-and-forget: the caller never waits for delivery, a dead subscriber is
// evicted rather than escalated, and announcing to an event without
// subscribers is a cheap no-op. Envelopes announced for the same event reach
// each live subscriber in announce order.
func (h *Hub) Announce(eventID uuid.UUID, env domain.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal envelope", "topic", env.Topic, "error", err)
		return
	}
	metrics.HubEnvelopesAnnounced.WithLabelValues(string(env.Topic)).Inc()
	h.cmdCh <- announceCmd{eventID: eventID, frame: frame, topic: env.Topic}
}

// SubscriberCount returns the number of subscribers for an event, or -1 if
// the hub did not answer within the command timeout.
func (h *Hub) SubscriberCount(eventID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- subscriberCountCmd{eventID: eventID, replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("SubscriberCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts the hub down, closing every subscriber connection. Blocks until
// the actor goroutine exits or the stop timeout elapses.
func (h *Hub) Stop() {
	h.cmdCh <- stopHubCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
		metrics.HubStopTimeouts.Inc()
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case subscribeCmd:
			h.handleSubscribe(c)
		case unsubscribeCmd:
			h.handleUnsubscribe(c.eventID, c.conn)
		case announceCmd:
			h.handleAnnounce(c)
		case subscriberCountCmd:
			c.replyCh <- len(h.channels[c.eventID])
		case stopHubCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleSubscribe(c subscribeCmd) {
	subs, exists := h.channels[c.eventID]
	if exists {
		if _, dup := subs[c.conn]; dup {
			// Idempotent: the connection is already registered.
			c.errCh <- nil
			return
		}
		if len(subs) >= h.maxPerEvent {
			slog.Warn("Rejecting subscriber: max per event reached", "event_id", c.eventID.String(), "max", h.maxPerEvent)
			_ = c.conn.Close()
			c.errCh <- fmt.Errorf("max subscribers per event (%d) reached", h.maxPerEvent)
			return
		}
	} else {
		subs = make(channelSubscribers)
		h.channels[c.eventID] = subs
		if h.onFirstSub != nil {
			// Async so a slow callback never blocks the actor loop.
			go h.onFirstSub(c.eventID)
		}
	}

	subs[c.conn] = newSubscriberWriter(c.conn, h.clock)

	metrics.HubActiveChannels.Set(float64(len(h.channels)))
	metrics.HubSubscribers.Inc()

	slog.Debug("Subscriber registered", "event_id", c.eventID.String(), "total_subscribers", len(subs))
	c.errCh <- nil
}

func (h *Hub) handleUnsubscribe(eventID uuid.UUID, conn *websocket.Conn) {
	subs, exists := h.channels[eventID]
	if !exists {
		return
	}

	writer, exists := subs[conn]
	if !exists {
		return
	}

	writer.stop()
	delete(subs, conn)
	metrics.HubSubscribers.Dec()

	if len(subs) == 0 {
		delete(h.channels, eventID)
		metrics.HubActiveChannels.Set(float64(len(h.channels)))
		if h.onChanEmpty != nil {
			h.onChanEmpty(eventID)
		}
		slog.Info("Last subscriber left event channel", "event_id", eventID.String())
	} else {
		slog.Debug("Subscriber unregistered", "event_id", eventID.String(), "remaining", len(subs))
	}
}

func (h *Hub) handleAnnounce(c announceCmd) {
	subs, exists := h.channels[c.eventID]
	if !exists {
		// No listeners; announcing must never fail because of that.
		return
	}

	var slow []*websocket.Conn
	for conn, writer := range subs {
		if writer.enqueue(c.frame) {
			metrics.HubEnvelopesDelivered.Inc()
		} else {
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Evicting slow subscriber", "event_id", c.eventID.String(), "topic", c.topic)
		metrics.HubSlowSubscribersEvicted.Inc()
		h.handleUnsubscribe(c.eventID, conn)
	}
}

func (h *Hub) handleStop() {
	total := 0
	for _, subs := range h.channels {
		total += len(subs)
	}
	slog.Info("Hub shutting down", "channels", len(h.channels), "subscribers", total)

	for eventID, subs := range h.channels {
		for _, writer := range subs {
			writer.stopGraceful("server shutting down")
		}
		delete(h.channels, eventID)
		if h.onChanEmpty != nil {
			h.onChanEmpty(eventID)
		}
	}
	metrics.HubActiveChannels.Set(0)
	metrics.HubSubscribers.Set(0)
}
