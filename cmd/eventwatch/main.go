// eventwatch tails the live state of one event from a gridpulse server.
// It prints the roster snapshot on every (re)connect and every announced
// state change afterwards. Useful for smoke-testing an installation from
// the paddock.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/gridpulse/internal/domain"
	"github.com/pscheid92/gridpulse/internal/realtime"
	"github.com/pscheid92/gridpulse/internal/retry"
)

const snapshotTimeout = 10 * time.Second

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "gridpulse server base URL")
		eventFlag = flag.String("event", "", "Event ID to watch (required)")
		user      = flag.String("user", "eventwatch", "Identity user ID sent upstream")
		name      = flag.String("name", "Event Watch", "Identity display name")
		role      = flag.String("role", string(domain.RoleOfficial), "Identity role")
		muteActor = flag.String("mute-actor", "", "Suppress changes made by this actor name")
		verbose   = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	eventID, err := uuid.Parse(*eventFlag)
	if err != nil {
		log.Fatalf("Event ID required (--event): %v", err)
	}

	headers := http.Header{}
	headers.Set("X-Auth-User", *user)
	headers.Set("X-Auth-Name", *name)
	headers.Set("X-Auth-Role", *role)

	watcher := &watcher{
		baseURL:   strings.TrimRight(*serverURL, "/"),
		eventID:   eventID,
		headers:   headers,
		muteActor: *muteActor,
		client:    &http.Client{Timeout: snapshotTimeout},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager := realtime.NewManager(realtime.Config{
		URL:    watcher.websocketURL(),
		Header: headers,
		OnConnected: func(reconnect bool) {
			// Envelopes missed while disconnected are gone; the snapshot
			// is the only way back to authoritative state.
			watcher.refetch(ctx, reconnect)
		},
		OnDegraded: func(err error) {
			fmt.Println("-- connection degraded, still retrying --")
		},
	})
	defer manager.Close()

	for _, topic := range []domain.Topic{
		domain.TopicCheckInUpdated,
		domain.TopicTechnicalUpdated,
		domain.TopicWeightUpdated,
		domain.TopicRegistrationUpdated,
	} {
		manager.Subscribe(topic, watcher.printChange)
	}

	if err := manager.Connect(ctx); err != nil {
		log.Fatalf("Failed to start connection loop: %v", err)
	}

	<-ctx.Done()
	slog.Info("Shutting down")
}

type watcher struct {
	baseURL   string
	eventID   uuid.UUID
	headers   http.Header
	muteActor string
	client    *http.Client
}

func (w *watcher) websocketURL() string {
	ws := strings.Replace(w.baseURL, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return fmt.Sprintf("%s/ws/events/%s", ws, w.eventID)
}

// refetch pulls the authoritative snapshot with bounded retry and prints the
// roster. Called on every transition into the connected state.
func (w *watcher) refetch(ctx context.Context, reconnect bool) {
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Snapshot fetch failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	state, err := retry.Do(ctx, policy, classifySnapshotErr, func() (*domain.EventState, error) {
		return w.fetchSnapshot(ctx)
	})
	if err != nil {
		slog.Error("Giving up on snapshot", "error", err)
		return
	}

	label := "connected"
	if reconnect {
		label = "reconnected, state refreshed"
	}
	fmt.Printf("-- %s: %d participants (as of %s) --\n",
		label, len(state.Participants), state.FetchedAt.Format(time.RFC3339))
	for _, p := range state.Participants {
		fmt.Println(formatParticipant(p))
	}
}

func (w *watcher) fetchSnapshot(ctx context.Context) (*domain.EventState, error) {
	url := fmt.Sprintf("%s/api/events/%s/state", w.baseURL, w.eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header = w.headers.Clone()

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshot returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var state domain.EventState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &state, nil
}

// classifySnapshotErr stops retrying on responses that will not heal on
// their own (unknown event, missing permissions).
func classifySnapshotErr(err error) retry.Action {
	msg := err.Error()
	if strings.Contains(msg, "status 404") || strings.Contains(msg, "status 403") {
		return retry.Stop
	}
	return retry.Retry
}

func (w *watcher) printChange(env domain.Envelope) {
	if w.muteActor != "" && env.ActorName() == w.muteActor {
		return
	}

	switch p := env.Payload.(type) {
	case domain.CheckInPayload:
		fmt.Printf("[%s] #%d check-in %s (by %s)\n", env.OccurredAt.Format("15:04:05"), p.StartNumber, p.Status, p.ActorName)
	case domain.TechnicalPayload:
		remark := ""
		if p.Remark != "" {
			remark = " " + quote(p.Remark)
		}
		fmt.Printf("[%s] #%d inspection %s%s (by %s)\n", env.OccurredAt.Format("15:04:05"), p.StartNumber, p.Status, remark, p.ActorName)
	case domain.WeightPayload:
		fmt.Printf("[%s] #%d weight %s %.1fkg %s (by %s)\n", env.OccurredAt.Format("15:04:05"), p.StartNumber, p.Heat, p.MeasuredWeight, p.Result, p.ActorName)
	case domain.RegistrationPayload:
		fmt.Printf("[%s] #%d registration updated: %s / %s (by %s)\n", env.OccurredAt.Format("15:04:05"), p.StartNumber, p.DriverName, p.VehicleName, p.ActorName)
	default:
		// Unknown topics tolerated, nothing to render.
		slog.Debug("Skipping unknown topic", "topic", env.Topic)
	}
}

func formatParticipant(p domain.ParticipantState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  #%d %s (%s)", p.Registration.StartNumber, p.Registration.DriverName, p.Registration.VehicleName)
	if p.CheckIn != nil {
		fmt.Fprintf(&b, " checkin=%s", p.CheckIn.Status)
	}
	if p.Inspection != nil {
		fmt.Fprintf(&b, " inspection=%s", p.Inspection.Status)
	}
	for _, wc := range p.Weights {
		fmt.Fprintf(&b, " %s=%.1fkg/%s", wc.Heat, wc.MeasuredWeight, wc.Result)
	}
	return b.String()
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
