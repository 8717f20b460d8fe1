package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
)

// scriptedServer runs a minimal voice service: it greets each connection
// and answers commands with the canonical event sequence. The returned
// drop func closes the currently upgraded connection from the server
// side (upgraded conns are hijacked, so CloseClientConnections cannot
// reach them).
func scriptedServer(t *testing.T, transcript string, recs []protocol.Recommendation) (*httptest.Server, func()) {
	t.Helper()

	var mu sync.Mutex
	var active *websocket.Conn

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		mu.Lock()
		active = conn
		mu.Unlock()
		defer conn.Close()

		reply := func(mt protocol.MessageType, cycle uint64, payload any) {
			data, err := protocol.Encode(mt, cycle, payload)
			if err != nil {
				t.Errorf("encode %s: %v", mt, err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				t.Logf("write %s: %v", mt, err)
			}
		}

		reply(protocol.MsgConnected, 0, protocol.StatusPayload{Status: "connected", Message: "connected to voice service"})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.Decode(data)
			if err != nil {
				continue
			}
			switch msg.Type {
			case protocol.MsgStartRecording:
				reply(protocol.MsgRecordingStarted, msg.Cycle, protocol.StatusPayload{Status: "recording", Message: "receiving audio"})
			case protocol.MsgAudioChunk:
				reply(protocol.MsgAudioReceived, msg.Cycle, protocol.StatusPayload{Status: "ok"})
			case protocol.MsgStopRecording:
				reply(protocol.MsgRecordingStopped, msg.Cycle, protocol.StatusPayload{Status: "stopped", Message: "processing audio"})
				reply(protocol.MsgProcessing, msg.Cycle, protocol.StatusPayload{Status: "processing", Message: "transcribing speech"})
				reply(protocol.MsgTranscript, msg.Cycle, protocol.TranscriptPayload{Status: "success", Text: transcript, Message: "speech recognized"})
				reply(protocol.MsgRecommending, msg.Cycle, protocol.StatusPayload{Status: "recommending", Message: "generating recommendations"})
				reply(protocol.MsgRecommendations, msg.Cycle, protocol.RecommendationsPayload{
					Status:          "success",
					Recommendations: recs,
					TotalCount:      len(recs),
					Message:         "recommendations ready",
				})
			}
		}
	}))

	drop := func() {
		mu.Lock()
		defer mu.Unlock()
		if active != nil {
			active.Close()
		}
	}
	return srv, drop
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// waitFor pulls events until one matches, failing the test on timeout.
func waitFor(t *testing.T, c *Client, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func TestClient_FullCycleOverWire(t *testing.T) {
	recs := []protocol.Recommendation{
		{ID: "d1", Name: "Beef Noodle Soup", Reason: "matches request"},
		{ID: "d2", Name: "Dan Dan Noodles", Reason: "also noodles"},
	}
	srv, _ := scriptedServer(t, "I want noodles", recs)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), Logger: zerolog.Nop()})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// Idempotent while connecting/connected.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}

	waitFor(t, c, func(ev Event) bool { _, ok := ev.(ConnectedEvent); return ok })
	waitFor(t, c, func(ev Event) bool { _, ok := ev.(SessionReadyEvent); return ok })

	if snap := c.Snapshot(); snap.Conn != Connected {
		t.Fatalf("connState = %v, want Connected", snap.Conn)
	}

	if err := c.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	waitFor(t, c, func(ev Event) bool { _, ok := ev.(RecordingStartedEvent); return ok })

	if err := c.SendAudioChunk([]byte("chunk-1")); err != nil {
		t.Fatalf("SendAudioChunk: %v", err)
	}
	waitFor(t, c, func(ev Event) bool { _, ok := ev.(AudioReceivedEvent); return ok })

	if err := c.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	waitFor(t, c, func(ev Event) bool {
		tr, ok := ev.(TranscriptEvent)
		return ok && tr.Text == "I want noodles"
	})
	waitFor(t, c, func(ev Event) bool { _, ok := ev.(RecommendationsEvent); return ok })

	snap := c.Snapshot()
	if snap.Transcript != "I want noodles" {
		t.Errorf("transcript = %q", snap.Transcript)
	}
	if len(snap.Recommendations) != 2 || snap.Recommendations[0].Name != "Beef Noodle Soup" {
		t.Errorf("recommendations = %+v", snap.Recommendations)
	}
	if snap.Rec != Idle {
		t.Errorf("recState = %v, want Idle after completed cycle", snap.Rec)
	}
	if snap.LastError != "" {
		t.Errorf("lastError = %q, want empty", snap.LastError)
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	srv, drop := scriptedServer(t, "hello", nil)
	defer srv.Close()

	c := New(Config{
		URL:               wsURL(srv),
		ReconnectDelay:    10 * time.Millisecond,
		ReconnectAttempts: 5,
		Logger:            zerolog.Nop(),
	})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, c, func(ev Event) bool { _, ok := ev.(ConnectedEvent); return ok })

	// Kill the server side of the connection.
	drop()

	waitFor(t, c, func(ev Event) bool {
		d, ok := ev.(DisconnectedEvent)
		return ok && !d.Terminal
	})
	waitFor(t, c, func(ev Event) bool { _, ok := ev.(ConnectedEvent); return ok })

	snap := c.Snapshot()
	if snap.Conn != Connected {
		t.Errorf("connState = %v, want Connected after reconnect", snap.Conn)
	}
	if snap.LastError != "" {
		t.Errorf("lastError = %q, want cleared on successful reconnect", snap.LastError)
	}
}

func TestClient_CloseDuringRetryEmitsOneTerminal(t *testing.T) {
	// A server that is gone: every dial fails, keeping the client in its
	// retry loop.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(srv)
	srv.Close()

	c := New(Config{
		URL:               url,
		ReconnectDelay:    time.Second,
		ReconnectAttempts: 5,
		Logger:            zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Close while the dial loop is sleeping between attempts.
	time.Sleep(20 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	waitFor(t, c, func(ev Event) bool {
		d, ok := ev.(DisconnectedEvent)
		return ok && d.Terminal
	})

	// Exactly one terminal event; the aborted dial loop must not add its
	// own on the way out.
	select {
	case extra := <-c.Events():
		if d, ok := extra.(DisconnectedEvent); ok && d.Terminal {
			t.Fatalf("second terminal DisconnectedEvent delivered: %+v", d)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestClient_BoundedRetriesThenTerminal(t *testing.T) {
	// A server that is immediately closed: every dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(srv)
	srv.Close()

	c := New(Config{
		URL:               url,
		ReconnectDelay:    5 * time.Millisecond,
		ReconnectAttempts: 3,
		Logger:            zerolog.Nop(),
	})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ev := waitFor(t, c, func(ev Event) bool { _, ok := ev.(DisconnectedEvent); return ok })
	d := ev.(DisconnectedEvent)
	if !d.Terminal {
		t.Error("disconnect after exhausted retries should be terminal")
	}
	if d.Err == nil {
		t.Error("terminal disconnect should carry the dial error")
	}

	snap := c.Snapshot()
	if snap.Conn != Disconnected {
		t.Errorf("connState = %v, want Disconnected", snap.Conn)
	}
	if snap.LastError == "" {
		t.Error("lastError not set after terminal connection failure")
	}
}
