// Package speech is the boundary to the speech-to-text collaborator.
// The engine itself is external; this package only carries audio across
// the HTTP seam and sanity-checks what the client streamed up.
package speech

import (
	"context"
	"encoding/binary"
	"errors"
)

// ErrNoSpeech is returned when the service produced no usable text for
// the supplied audio. Terminal for the recording cycle.
var ErrNoSpeech = errors.New("no speech recognized")

// Transcriber turns one recording cycle's buffered audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ValidWAV reports whether the buffer starts with a plausible RIFF/WAVE
// header. Streamed chunks are concatenated client-side, so only the
// leading header is checked, not every frame.
func ValidWAV(b []byte) bool {
	if len(b) < 44 {
		return false
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return false
	}
	// Declared RIFF size must not be wildly off from the actual buffer.
	declared := binary.LittleEndian.Uint32(b[4:8])
	return declared >= 36
}

// Static returns a fixed transcript for every cycle. Used in mock mode
// and tests; it never inspects the audio.
type Static struct {
	Text string
	Err  error
}

func (s Static) Transcribe(_ context.Context, _ []byte) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}
