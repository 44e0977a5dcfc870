package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridpulse/internal/domain"
)

// testHub sets up a Hub behind a test HTTP server that upgrades connections.
// Returns the hub and a dial function that connects a subscriber for an event.
func testHub(t *testing.T, onFirst, onEmpty func(uuid.UUID)) (*Hub, func(eventID uuid.UUID) *ws.Conn) {
	t.Helper()

	hub := NewHub(onFirst, onEmpty, clockwork.NewRealClock(), 50)
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		eventID := uuid.MustParse(r.URL.Query().Get("event"))
		_ = hub.Subscribe(eventID, conn)

		// Read pump to detect disconnects
		go func() {
			defer hub.Unsubscribe(eventID, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func(eventID uuid.UUID) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?event=" + eventID.String()
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

// waitForSubscriberCount polls until the hub reports the expected count.
func waitForSubscriberCount(hub *Hub, eventID uuid.UUID, expected int) bool {
	for range 200 {
		if hub.SubscriberCount(eventID) == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func checkInEnvelope(eventID uuid.UUID, startNumber int) domain.Envelope {
	regID := uuid.New()
	return domain.NewEnvelope(eventID, regID, domain.CheckInPayload{
		RegistrationID: regID,
		StartNumber:    startNumber,
		Status:         domain.CheckInOK,
		ActorName:      "tester",
	}, time.Now())
}

func readEnvelope(t *testing.T, conn *ws.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestHub_SubscribeAndAnnounce(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	eventID := uuid.New()

	conn := dial(eventID)
	require.True(t, waitForSubscriberCount(hub, eventID, 1))

	hub.Announce(eventID, checkInEnvelope(eventID, 42))

	env := readEnvelope(t, conn)
	assert.Equal(t, domain.TopicCheckInUpdated, env.Topic)
	assert.Equal(t, eventID, env.EventID)

	payload, ok := env.Payload.(domain.CheckInPayload)
	require.True(t, ok)
	assert.Equal(t, 42, payload.StartNumber)
	assert.Equal(t, domain.CheckInOK, payload.Status)
}

func TestHub_AnnounceOrderPreserved(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	eventID := uuid.New()

	conn := dial(eventID)
	require.True(t, waitForSubscriberCount(hub, eventID, 1))

	const n = 25
	for i := range n {
		hub.Announce(eventID, checkInEnvelope(eventID, i))
	}

	for i := range n {
		env := readEnvelope(t, conn)
		payload := env.Payload.(domain.CheckInPayload)
		assert.Equal(t, i, payload.StartNumber, "envelope %d out of order", i)
	}
}

func TestHub_EventIsolation(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	eventA := uuid.New()
	eventB := uuid.New()

	connA := dial(eventA)
	connB := dial(eventB)
	require.True(t, waitForSubscriberCount(hub, eventA, 1))
	require.True(t, waitForSubscriberCount(hub, eventB, 1))

	hub.Announce(eventA, checkInEnvelope(eventA, 1))

	env := readEnvelope(t, connA)
	assert.Equal(t, eventA, env.EventID)

	// B must receive nothing
	require.NoError(t, connB.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err)
}

func TestHub_IdempotentSubscribe(t *testing.T) {
	// Drive the hub directly with a server-side conn we can subscribe twice.
	hub := NewHub(nil, nil, clockwork.NewRealClock(), 50)
	t.Cleanup(hub.Stop)

	srvConnCh := make(chan *ws.Conn, 1)
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		srvConnCh <- c
	}))
	t.Cleanup(server.Close)

	client, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	srvConn := <-srvConnCh

	eventID := uuid.New()
	require.NoError(t, hub.Subscribe(eventID, srvConn))
	require.NoError(t, hub.Subscribe(eventID, srvConn))
	assert.Equal(t, 1, hub.SubscriberCount(eventID))

	hub.Announce(eventID, checkInEnvelope(eventID, 7))

	env := readEnvelope(t, client)
	assert.Equal(t, 7, env.Payload.(domain.CheckInPayload).StartNumber)

	// Exactly one copy: the next read times out.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = client.ReadMessage()
	assert.Error(t, err)
}

func TestHub_DisconnectCleansUpOnce(t *testing.T) {
	var emptyCalls atomic.Int32
	hub, dial := testHub(t, nil, func(uuid.UUID) { emptyCalls.Add(1) })
	eventID := uuid.New()

	conn1 := dial(eventID)
	conn2 := dial(eventID)
	require.True(t, waitForSubscriberCount(hub, eventID, 2))

	conn1.Close()
	require.True(t, waitForSubscriberCount(hub, eventID, 1))
	assert.Equal(t, int32(0), emptyCalls.Load())

	conn2.Close()
	require.True(t, waitForSubscriberCount(hub, eventID, 0))
	assert.Equal(t, int32(1), emptyCalls.Load())
}

func TestHub_AnnounceWithoutSubscribersIsNoop(t *testing.T) {
	hub, _ := testHub(t, nil, nil)

	// Must not block or panic.
	hub.Announce(uuid.New(), checkInEnvelope(uuid.New(), 1))
	assert.Equal(t, 0, hub.SubscriberCount(uuid.New()))
}

func TestHub_FirstSubscriberCallback(t *testing.T) {
	var firstCalls atomic.Int32
	hub, dial := testHub(t, func(uuid.UUID) { firstCalls.Add(1) }, nil)
	eventID := uuid.New()

	dial(eventID)
	dial(eventID)
	require.True(t, waitForSubscriberCount(hub, eventID, 2))

	// Lazy channel creation fires the callback exactly once.
	assert.Eventually(t, func() bool { return firstCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_MaxSubscribersPerEvent(t *testing.T) {
	hub := NewHub(nil, nil, clockwork.NewRealClock(), 1)
	t.Cleanup(hub.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	subErrCh := make(chan error, 2)
	eventID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		subErrCh <- hub.Subscribe(eventID, conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn1, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn1.Close() })
	require.NoError(t, <-subErrCh)

	conn2, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn2.Close() })
	assert.Error(t, <-subErrCh)
}
