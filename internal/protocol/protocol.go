// Package protocol defines the wire contract between the voice session
// client and the voice-processing service. Both halves speak JSON text
// frames over a single WebSocket connection: the client sends commands,
// the server pushes events.
package protocol

import (
	"fmt"

	json "github.com/goccy/go-json"
)

type MessageType string

// Client → server commands.
const (
	MsgStartRecording MessageType = "start_recording"
	MsgStopRecording  MessageType = "stop_recording"
	MsgAudioChunk     MessageType = "audio_chunk"
)

// Server → client events.
const (
	MsgConnected           MessageType = "connected"
	MsgRecordingStarted    MessageType = "recording_started"
	MsgRecordingStopped    MessageType = "recording_stopped"
	MsgProcessing          MessageType = "processing"
	MsgTranscript          MessageType = "transcript"
	MsgTranscriptError     MessageType = "transcript_error"
	MsgRecommending        MessageType = "recommending"
	MsgRecommendations     MessageType = "recommendations"
	MsgRecommendationError MessageType = "recommendation_error"
	MsgError               MessageType = "error"
	MsgAudioReceived       MessageType = "audio_received"
)

// Message is the envelope for every frame in both directions.
//
// Cycle identifies the recording cycle a frame belongs to. The client
// stamps start_recording with a monotonically increasing value and the
// server echoes it on every event produced for that cycle, so a slow
// result arriving after the user already started a new cycle can be
// told apart from a current one. A zero Cycle means "untagged" and is
// accepted unconditionally, which keeps older peers working.
type Message struct {
	Type    MessageType     `json:"type"`
	Cycle   uint64          `json:"cycle,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload carries lifecycle acknowledgments and progress updates
// (connected, recording_started, recording_stopped, processing,
// recommending, audio_received).
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TranscriptPayload carries the recognized text for one recording cycle.
type TranscriptPayload struct {
	Status  string `json:"status"`
	Text    string `json:"text"`
	Message string `json:"message,omitempty"`
}

// AudioChunkPayload carries one captured audio chunk, base64-encoded.
type AudioChunkPayload struct {
	Audio string `json:"audio"`
}

// Recommendation is one server-ranked dish suggestion.
type Recommendation struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RecommendationsPayload replaces the client's recommendation list wholesale.
type RecommendationsPayload struct {
	Status          string           `json:"status"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalCount      int              `json:"total_count"`
	Message         string           `json:"message,omitempty"`
}

// ErrorPayload carries transcript_error, recommendation_error and error events.
type ErrorPayload struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// Encode marshals a frame with the given payload.
func Encode(t MessageType, cycle uint64, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = data
	}
	return json.Marshal(Message{Type: t, Cycle: cycle, Payload: raw})
}

// Decode parses a raw frame into its envelope. Payload decoding is left
// to the receiver, which knows which shape to expect for each type.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("decode frame: missing type")
	}
	return msg, nil
}
