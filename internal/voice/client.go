// Package voice implements the customer-side voice session: a single
// persistent WebSocket connection to the voice-processing service, a
// recording state machine mediating which commands are valid, an audio
// relay, and a sink that folds server-pushed events into one session
// snapshot for the UI.
package voice

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
)

const (
	defaultReconnectDelay    = 1 * time.Second
	defaultReconnectAttempts = 5
	defaultEventBuffer       = 64

	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var (
	// ErrNotConnected is returned when a recording is started without an
	// active connection.
	ErrNotConnected = errors.New("not connected to voice service")

	// ErrNotIdle is returned when a recording is started while another
	// cycle is still in flight. The running cycle is unaffected.
	ErrNotIdle = errors.New("recording already in progress")

	// ErrNotRecording is returned by StopRecording outside of Recording.
	// Advisory only; nothing is sent and no state changes.
	ErrNotRecording = errors.New("not recording")

	// ErrClosed is returned once the client has been closed.
	ErrClosed = errors.New("voice client closed")
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	URL   string
	Token string

	// ReconnectDelay is the fixed pause between dial attempts.
	ReconnectDelay time.Duration

	// ReconnectAttempts bounds consecutive failed dials before the
	// client gives up and reports a terminal disconnect.
	ReconnectAttempts int

	// EventBuffer sizes the Events channel. When the consumer falls
	// behind, events are dropped (the snapshot stays authoritative).
	EventBuffer int

	Logger zerolog.Logger
}

// Snapshot is a point-in-time copy of the session visible to the UI.
// Transcript, Recommendations and LastError always belong to the most
// recent recording cycle.
type Snapshot struct {
	Conn            ConnState
	Rec             RecState
	Cycle           uint64
	Transcript      string
	Recommendations []protocol.Recommendation
	LastError       string
	Status          string
}

// Client owns the connection to the voice service. It is safe for
// concurrent use; all state transitions are serialized, whether they
// originate from UI commands or from server-pushed events.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (commands, chunks, pings)
	conn    *websocket.Conn
	cancel  context.CancelFunc
	started bool
	closed  bool

	connState ConnState
	recState  RecState
	cycle     uint64

	transcript string
	recs       []protocol.Recommendation
	lastErr    string
	status     string

	events chan Event
}

// New creates a client for the given service. The connection is not
// opened until Connect is called.
func New(cfg Config) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Client{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "voice").Logger(),
		status: Disconnected.String(),
		events: make(chan Event, cfg.EventBuffer),
	}
}

// Events delivers session events after they have been applied. The
// channel is never closed; a terminal DisconnectedEvent marks the end of
// the session.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Snapshot returns a copy of the current session state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Conn:       c.connState,
		Rec:        c.recState,
		Cycle:      c.cycle,
		Transcript: c.transcript,
		LastError:  c.lastErr,
		Status:     c.status,
	}
	if len(c.recs) > 0 {
		snap.Recommendations = make([]protocol.Recommendation, len(c.recs))
		copy(snap.Recommendations, c.recs)
	}
	return snap
}

// Connect opens the connection in the background and keeps it alive
// until ctx is cancelled or Close is called. Idempotent: calling it
// while connecting or connected is a no-op. Dial failures are retried
// with a fixed delay up to the configured attempt bound, after which a
// terminal DisconnectedEvent is emitted.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.connState = Connecting
	c.status = Connecting.String()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Close tears the session down: the connection is closed, reconnect
// timers are abandoned and the recording state is forced to Idle.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.conn = nil
	c.connState = Disconnected
	c.recState = Idle
	c.status = Disconnected.String()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.emit(DisconnectedEvent{Terminal: true})
	return nil
}

// run dials, reads until the connection drops, and redials. Each outage
// gets a fresh attempt budget; exhausting it ends the session.
func (c *Client) run(ctx context.Context) {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if !closed {
				c.connState = Disconnected
				c.recState = Idle
				c.lastErr = "voice service unreachable"
				c.status = Disconnected.String()
			}
			c.mu.Unlock()
			// Close already delivered its own terminal event; emitting a
			// second one here would double it up for the consumer.
			if !closed {
				c.emit(DisconnectedEvent{Err: err, Terminal: true})
			}
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.connState = Connected
		c.lastErr = ""
		c.status = Connected.String()
		c.mu.Unlock()
		c.emit(ConnectedEvent{})

		pingCtx, pingCancel := context.WithCancel(ctx)
		go c.pingLoop(pingCtx, conn)
		err = c.readLoop(conn)
		pingCancel()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		closed := c.closed
		if !closed {
			// Disconnection from any state forces Idle: an in-flight
			// cycle is abandoned, never resumed on reconnect.
			c.connState = Connecting
			c.recState = Idle
			c.status = Connecting.String()
		}
		c.mu.Unlock()
		conn.Close()

		if closed || ctx.Err() != nil {
			return
		}
		c.log.Warn().Err(err).Msg("connection lost, reconnecting")
		c.emit(DisconnectedEvent{Err: err})
	}
}

// dial attempts the WebSocket handshake up to the attempt bound.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.ReconnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.ReconnectDelay):
			}
		}
		var header http.Header
		if c.cfg.Token != "" {
			header = http.Header{"Authorization": []string{"Bearer " + c.cfg.Token}}
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("dial failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// readLoop delivers server frames until the connection errors.
func (c *Client) readLoop(conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		ev, err := decodeEvent(msg)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable event")
			continue
		}
		if c.apply(msg.Cycle, ev) {
			c.emit(ev)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// send marshals and writes one command frame. Fire and forget: the
// caller observes completion via pushed events, never by blocking here.
func (c *Client) send(conn *websocket.Conn, t protocol.MessageType, cycle uint64, payload any) error {
	data, err := protocol.Encode(t, cycle, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// emit hands an event to the consumer without ever blocking the session.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Debug().Str("event", ev.eventType()).Msg("event buffer full, dropping")
	}
}
