package voice

import (
	"encoding/base64"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
)

// StartRecording begins a new recording cycle. It requires an active
// connection and an idle session; stale results from the previous cycle
// are cleared before the start command is sent. The transition to
// Recording is applied immediately and confirmed by the server's
// recording_started event.
func (c *Client) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.connState != Connected || c.conn == nil {
		c.lastErr = ErrNotConnected.Error()
		return ErrNotConnected
	}
	if c.recState != Idle {
		// Overlapping cycles are rejected; the running one is untouched.
		c.log.Debug().Msg("start ignored: cycle already in flight")
		return ErrNotIdle
	}

	c.cycle++
	c.transcript = ""
	c.recs = nil
	c.lastErr = ""
	c.recState = Recording
	c.status = Recording.String()

	if err := c.send(c.conn, protocol.MsgStartRecording, c.cycle, nil); err != nil {
		c.recState = Idle
		c.lastErr = "failed to send start command"
		c.status = Connected.String()
		return err
	}
	return nil
}

// StopRecording ends audio capture for the current cycle. The session
// flips to Processing immediately rather than waiting for the server's
// acknowledgment, so the UI never lags behind the user's intent; the
// server may still reject the stop, which surfaces as an error event.
func (c *Client) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.recState != Recording {
		c.log.Debug().Msg("stop ignored: not recording")
		return ErrNotRecording
	}

	c.recState = Processing
	c.status = Processing.String()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.send(c.conn, protocol.MsgStopRecording, c.cycle, nil)
}

// SendAudioChunk forwards one captured chunk to the server, base64
// encoded. Chunks sent outside of Recording are silently dropped.
// Delivery is best-effort, at most once: a lost chunk is gone, which
// downstream transcription tolerates.
func (c *Client) SendAudioChunk(chunk []byte) error {
	c.mu.Lock()
	if c.recState != Recording || c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	cycle := c.cycle
	c.mu.Unlock()

	payload := protocol.AudioChunkPayload{Audio: base64.StdEncoding.EncodeToString(chunk)}
	if err := c.send(conn, protocol.MsgAudioChunk, cycle, payload); err != nil {
		c.log.Debug().Err(err).Msg("audio chunk write failed")
		return err
	}
	return nil
}

// ClearResults resets transcript, recommendations and last error in one
// step and restores the status line to the connection state. Idempotent.
func (c *Client) ClearResults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = ""
	c.recs = nil
	c.lastErr = ""
	c.status = c.connState.String()
}

// apply folds one server event into the session. It reports whether the
// event was accepted; events tagged with a cycle other than the current
// one are stale leftovers of a superseded recording and are discarded.
// Writes are last-write-wins per field: an event never clears fields it
// does not own.
func (c *Client) apply(cycle uint64, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cycle != 0 && cycle != c.cycle {
		c.log.Debug().
			Uint64("event_cycle", cycle).
			Uint64("current_cycle", c.cycle).
			Str("event", ev.eventType()).
			Msg("discarding stale cycle event")
		return false
	}

	switch ev := ev.(type) {
	case SessionReadyEvent:
		c.setStatus(ev.Message)
	case RecordingStartedEvent:
		// Confirmation of our own optimistic transition, or a recovery
		// if the optimistic start was lost. Recording still requires a
		// live connection.
		if c.connState == Connected {
			c.recState = Recording
		}
		c.setStatus(ev.Message)
	case RecordingStoppedEvent:
		// Advisory: the client already flipped to Processing when the
		// stop command went out.
		c.setStatus(ev.Message)
	case ProcessingEvent:
		c.setStatus(ev.Message)
	case TranscriptEvent:
		c.transcript = ev.Text
		c.setStatus(ev.Message)
	case TranscriptErrorEvent:
		c.failCycle(ev.Message)
	case RecommendingEvent:
		c.setStatus(ev.Message)
	case RecommendationsEvent:
		// Wholesale replacement, never a merge with a prior cycle.
		c.recs = ev.Recommendations
		c.setStatus(ev.Message)
		c.recState = Idle
	case RecommendationErrorEvent:
		c.failCycle(ev.Message)
	case ServerErrorEvent:
		c.failCycle(ev.Message)
	case AudioReceivedEvent:
		// Advisory acknowledgment only.
	}
	return true
}

// failCycle records a terminal failure for the current cycle. Error
// events win over any lifecycle acknowledgments still in flight: the
// session returns to Idle immediately and is never retried on its own.
func (c *Client) failCycle(msg string) {
	c.lastErr = msg
	c.recState = Idle
	c.status = "error"
}

func (c *Client) setStatus(msg string) {
	if msg != "" {
		c.status = msg
	}
}
