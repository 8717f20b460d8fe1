package voice

import (
	"encoding/json"
	"fmt"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
)

// Event is delivered on Client.Events() after the corresponding state
// change has been applied to the session. There is one concrete type per
// server event plus the two local connection transitions, so consumers
// switch on the variant instead of matching strings.
type Event interface {
	eventType() string
}

// ConnectedEvent reports that the transport came up (locally observed,
// distinct from the server's own "connected" greeting).
type ConnectedEvent struct{}

func (ConnectedEvent) eventType() string { return "connected" }

// DisconnectedEvent reports that the transport dropped. Terminal is set
// once the bounded reconnect attempts are exhausted or the client was
// closed; no further events follow a terminal disconnect.
type DisconnectedEvent struct {
	Err      error
	Terminal bool
}

func (DisconnectedEvent) eventType() string { return "disconnected" }

// SessionReadyEvent is the server's greeting on a fresh connection.
type SessionReadyEvent struct {
	Status  string
	Message string
}

func (SessionReadyEvent) eventType() string { return "session_ready" }

// RecordingStartedEvent confirms the server is accepting audio.
type RecordingStartedEvent struct {
	Status  string
	Message string
}

func (RecordingStartedEvent) eventType() string { return "recording_started" }

// RecordingStoppedEvent acknowledges a stop command. Advisory only: the
// client flips to Processing optimistically when stop is sent.
type RecordingStoppedEvent struct {
	Status  string
	Message string
}

func (RecordingStoppedEvent) eventType() string { return "recording_stopped" }

// ProcessingEvent is a progress update while audio is transcribed.
type ProcessingEvent struct {
	Message string
}

func (ProcessingEvent) eventType() string { return "processing" }

// TranscriptEvent carries the recognized text for the current cycle.
type TranscriptEvent struct {
	Text    string
	Message string
}

func (TranscriptEvent) eventType() string { return "transcript" }

// TranscriptErrorEvent ends the current cycle: speech could not be
// recognized.
type TranscriptErrorEvent struct {
	Message string
}

func (TranscriptErrorEvent) eventType() string { return "transcript_error" }

// RecommendingEvent is a progress update while recommendations are
// generated.
type RecommendingEvent struct {
	Message string
}

func (RecommendingEvent) eventType() string { return "recommending" }

// RecommendationsEvent carries the ranked dish suggestions for the
// current cycle and completes it.
type RecommendationsEvent struct {
	Recommendations []protocol.Recommendation
	TotalCount      int
	Message         string
}

func (RecommendationsEvent) eventType() string { return "recommendations" }

// RecommendationErrorEvent ends the current cycle: the transcript was
// fine but no recommendations could be produced.
type RecommendationErrorEvent struct {
	Message string
}

func (RecommendationErrorEvent) eventType() string { return "recommendation_error" }

// ServerErrorEvent is a generic server-side failure for the current cycle.
type ServerErrorEvent struct {
	Message string
}

func (ServerErrorEvent) eventType() string { return "error" }

// AudioReceivedEvent acknowledges one audio chunk. No state change.
type AudioReceivedEvent struct {
	Status string
}

func (AudioReceivedEvent) eventType() string { return "audio_received" }

// decodeEvent maps a wire frame onto its event variant. Unknown types
// are an error so new server events fail loudly instead of vanishing.
func decodeEvent(msg protocol.Message) (Event, error) {
	switch msg.Type {
	case protocol.MsgConnected:
		var p protocol.StatusPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return SessionReadyEvent{Status: p.Status, Message: p.Message}, nil
	case protocol.MsgRecordingStarted:
		var p protocol.StatusPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return RecordingStartedEvent{Status: p.Status, Message: p.Message}, nil
	case protocol.MsgRecordingStopped:
		var p protocol.StatusPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return RecordingStoppedEvent{Status: p.Status, Message: p.Message}, nil
	case protocol.MsgProcessing:
		var p protocol.StatusPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return ProcessingEvent{Message: p.Message}, nil
	case protocol.MsgTranscript:
		var p protocol.TranscriptPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return TranscriptEvent{Text: p.Text, Message: p.Message}, nil
	case protocol.MsgTranscriptError:
		var p protocol.ErrorPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return TranscriptErrorEvent{Message: p.Message}, nil
	case protocol.MsgRecommending:
		var p protocol.StatusPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return RecommendingEvent{Message: p.Message}, nil
	case protocol.MsgRecommendations:
		var p protocol.RecommendationsPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return RecommendationsEvent{
			Recommendations: p.Recommendations,
			TotalCount:      p.TotalCount,
			Message:         p.Message,
		}, nil
	case protocol.MsgRecommendationError:
		var p protocol.ErrorPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return RecommendationErrorEvent{Message: p.Message}, nil
	case protocol.MsgError:
		var p protocol.ErrorPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return ServerErrorEvent{Message: p.Message}, nil
	case protocol.MsgAudioReceived:
		var p protocol.StatusPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		return AudioReceivedEvent{Status: p.Status}, nil
	default:
		return nil, fmt.Errorf("unknown server event %q", msg.Type)
	}
}

func unmarshalPayload(msg protocol.Message, dst any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return nil
}
