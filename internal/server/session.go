package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/speech"
)

const sendBuffer = 64

// session is one connected customer device. Frames are read on the
// session goroutine; all writes funnel through the buffered send
// channel and a single write pump, so the pipeline goroutine can emit
// events without racing the acknowledgments.
type session struct {
	id   string
	srv  *Server
	log  zerolog.Logger
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu         sync.Mutex
	recording  bool
	processing bool
	cycle      uint64
	buf        bytes.Buffer
}

func newSession(srv *Server, conn *websocket.Conn) *session {
	id := uuid.NewString()
	return &session{
		id:   id,
		srv:  srv,
		log:  srv.log.With().Str("session", id[:8]).Logger(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (s *session) run() {
	go s.writePump()
	// The send channel is never closed: a pipeline goroutine may still
	// be emitting after the reader exits. done tells the write pump and
	// emit to stand down instead.
	defer func() {
		close(s.done)
		s.log.Info().Msg("client disconnected")
	}()

	s.emit(protocol.MsgConnected, 0, protocol.StatusPayload{
		Status:  "connected",
		Message: "connected to voice service",
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		s.dispatch(msg)
	}
}

func (s *session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (s *session) emit(t protocol.MessageType, cycle uint64, payload any) {
	data, err := protocol.Encode(t, cycle, payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", string(t)).Msg("encode event")
		return
	}
	select {
	case <-s.done:
		// Session over; late pipeline events have nowhere to go.
	case s.send <- data:
	default:
		// Client can't keep up; drop the connection rather than block
		// the session.
		s.log.Warn().Msg("client too slow, closing")
		s.conn.Close()
	}
}

func (s *session) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.MsgStartRecording:
		s.handleStart(msg.Cycle)
	case protocol.MsgAudioChunk:
		s.handleChunk(msg)
	case protocol.MsgStopRecording:
		s.handleStop(msg.Cycle)
	default:
		s.log.Debug().Str("type", string(msg.Type)).Msg("ignoring unexpected command")
	}
}

func (s *session) handleStart(cycle uint64) {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		s.emit(protocol.MsgError, cycle, protocol.ErrorPayload{
			Message: "previous recording still processing",
		})
		return
	}
	s.recording = true
	s.cycle = cycle
	s.buf.Reset()
	s.mu.Unlock()

	s.log.Debug().Uint64("cycle", cycle).Msg("recording started")
	s.emit(protocol.MsgRecordingStarted, cycle, protocol.StatusPayload{
		Status:  "recording",
		Message: "receiving audio",
	})
}

func (s *session) handleChunk(msg protocol.Message) {
	var p protocol.AudioChunkPayload
	if err := unmarshal(msg.Payload, &p); err != nil {
		s.emit(protocol.MsgError, msg.Cycle, protocol.ErrorPayload{Message: "malformed audio chunk"})
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(p.Audio)
	if err != nil {
		s.emit(protocol.MsgError, msg.Cycle, protocol.ErrorPayload{Message: "failed to decode audio data"})
		return
	}

	limits := s.srv.cfg.Audio
	if len(decoded) > limits.MaxChunkBytes {
		s.emit(protocol.MsgError, msg.Cycle, protocol.ErrorPayload{Message: "audio chunk too large"})
		return
	}

	s.mu.Lock()
	if !s.recording {
		// Chunks outside a recording window are dropped, mirroring the
		// client's own at-most-once relay semantics.
		s.mu.Unlock()
		return
	}
	if s.buf.Len()+len(decoded) > limits.MaxSessionBytes {
		s.recording = false
		s.buf.Reset()
		s.mu.Unlock()
		s.emit(protocol.MsgError, msg.Cycle, protocol.ErrorPayload{Message: "recording exceeds audio size limit"})
		return
	}
	s.buf.Write(decoded)
	s.mu.Unlock()

	s.srv.metrics.AudioChunks.Inc()
	s.srv.metrics.AudioBytes.Add(float64(len(decoded)))
	s.emit(protocol.MsgAudioReceived, msg.Cycle, protocol.StatusPayload{Status: "ok"})
}

func (s *session) handleStop(cycle uint64) {
	// Acknowledge first: the client has already flipped to processing.
	s.emit(protocol.MsgRecordingStopped, cycle, protocol.StatusPayload{
		Status:  "stopped",
		Message: "processing audio",
	})

	s.mu.Lock()
	s.recording = false
	audio := make([]byte, s.buf.Len())
	copy(audio, s.buf.Bytes())
	s.buf.Reset()
	if len(audio) == 0 {
		s.mu.Unlock()
		s.emit(protocol.MsgError, cycle, protocol.ErrorPayload{
			Message: "no audio data received",
		})
		return
	}
	s.processing = true
	s.mu.Unlock()

	go s.process(cycle, audio)
}

// process runs the transcribe-then-recommend pipeline for one cycle and
// streams progress events back. Failures are terminal for the cycle:
// the client surfaces them and returns to idle, retry is a fresh start
// command.
func (s *session) process(cycle uint64, audio []byte) {
	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
		s.srv.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.srv.cfg.Audio.ProcessTimeout)
	defer cancel()

	s.emit(protocol.MsgProcessing, cycle, protocol.StatusPayload{
		Status:  "processing",
		Message: "transcribing speech",
	})

	text, err := s.srv.transcriber.Transcribe(ctx, audio)
	if err != nil {
		s.log.Warn().Err(err).Uint64("cycle", cycle).Msg("transcription failed")
		s.srv.metrics.CycleErrors.WithLabelValues("transcribe").Inc()
		msg := "could not recognize speech, please try again"
		if errors.Is(err, speech.ErrNoSpeech) {
			msg = "no speech detected in the recording"
		}
		s.emit(protocol.MsgTranscriptError, cycle, protocol.ErrorPayload{Status: "error", Message: msg})
		return
	}

	s.srv.metrics.Transcripts.Inc()
	s.log.Info().Uint64("cycle", cycle).Str("text", text).Msg("speech recognized")
	s.emit(protocol.MsgTranscript, cycle, protocol.TranscriptPayload{
		Status:  "success",
		Text:    text,
		Message: "speech recognized",
	})

	s.emit(protocol.MsgRecommending, cycle, protocol.StatusPayload{
		Status:  "recommending",
		Message: "generating recommendations",
	})

	recs, err := s.srv.recommender.Recommend(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Uint64("cycle", cycle).Msg("recommendation failed")
		s.srv.metrics.CycleErrors.WithLabelValues("recommend").Inc()
		s.emit(protocol.MsgRecommendationError, cycle, protocol.ErrorPayload{
			Status:  "error",
			Message: "could not generate recommendations",
		})
		return
	}

	s.srv.metrics.Recommendations.Inc()
	s.emit(protocol.MsgRecommendations, cycle, protocol.RecommendationsPayload{
		Status:          "success",
		Recommendations: recs,
		TotalCount:      len(recs),
		Message:         "recommendations ready",
	})
}

func unmarshal(raw []byte, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, dst)
}
