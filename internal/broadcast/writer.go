package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridpulse/internal/metrics"
)

const (
	writeDeadline  = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongDeadline   = 60 * time.Second
	idleTimeout    = 8 * time.Hour // events run many hours; pongs count as activity
	sendBufferSize = 32
)

// subscriberWriter owns all writes to one subscriber connection. Envelopes
// are enqueued on sendCh and written sequentially, which preserves the
// per-channel announce order for this subscriber.
type subscriberWriter struct {
	conn         *websocket.Conn
	clock        clockwork.Clock
	sendCh       chan []byte
	doneCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	activityMu   sync.Mutex
	lastActivity time.Time
}

func newSubscriberWriter(conn *websocket.Conn, clock clockwork.Clock) *subscriberWriter {
	w := &subscriberWriter{
		conn:         conn,
		clock:        clock,
		sendCh:       make(chan []byte, sendBufferSize),
		doneCh:       make(chan struct{}),
		lastActivity: clock.Now(),
	}
	w.configurePongHandler()
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *subscriberWriter) run() {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer w.wg.Done()

	for {
		select {
		case msg, ok := <-w.sendCh:
			if !ok {
				return
			}
			start := w.clock.Now()
			w.updateWriteDeadline()
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			metrics.WebSocketSendDuration.Observe(w.clock.Since(start).Seconds())
		case <-ticker.Chan():
			if w.idle() {
				metrics.WebSocketIdleDisconnects.Inc()
				return
			}
			w.updateWriteDeadline()
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-w.doneCh:
			return
		}
	}
}

// enqueue hands a frame to the writer without blocking. Returns false when
// the buffer is full, i.e. the subscriber is too slow to keep.
func (w *subscriberWriter) enqueue(msg []byte) bool {
	select {
	case w.sendCh <- msg:
		return true
	default:
		return false
	}
}

func (w *subscriberWriter) stop() {
	w.stopOnce.Do(func() {
		close(w.doneCh)
		_ = w.conn.Close()
	})
	w.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing. The run
// goroutine must have exited before the close frame is written, otherwise
// two goroutines would write to the connection concurrently.
func (w *subscriberWriter) stopGraceful(reason string) {
	w.stopOnce.Do(func() {
		close(w.doneCh)
		w.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		w.updateWriteDeadline()
		_ = w.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = w.conn.Close()
	})
}

func (w *subscriberWriter) configurePongHandler() {
	w.updateReadDeadline()
	w.conn.SetPongHandler(func(string) error {
		w.updateReadDeadline()
		w.activityMu.Lock()
		w.lastActivity = w.clock.Now()
		w.activityMu.Unlock()
		return nil
	})
}

func (w *subscriberWriter) updateWriteDeadline() {
	_ = w.conn.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}

func (w *subscriberWriter) updateReadDeadline() {
	_ = w.conn.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}

func (w *subscriberWriter) idle() bool {
	w.activityMu.Lock()
	defer w.activityMu.Unlock()
	return w.clock.Since(w.lastActivity) >= idleTimeout
}
