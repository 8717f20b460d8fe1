package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// wavHeader builds a minimal RIFF/WAVE header followed by n data bytes.
func wavHeader(n int) []byte {
	b := make([]byte, 44+n)
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], uint32(36+n))
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	return b
}

func TestValidWAV(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"valid header", wavHeader(128), true},
		{"empty", nil, false},
		{"too short", []byte("RIFF"), false},
		{"wrong magic", append([]byte("OGGS"), make([]byte, 64)...), false},
		{"riff but not wave", func() []byte {
			b := wavHeader(16)
			copy(b[8:12], "AVI ")
			return b
		}(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidWAV(tt.data); got != tt.want {
				t.Errorf("ValidWAV = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	s := Static{Text: "I want dumplings"}
	got, err := s.Transcribe(context.Background(), nil)
	if err != nil || got != "I want dumplings" {
		t.Errorf("Transcribe = %q, %v", got, err)
	}

	fail := Static{Err: ErrNoSpeech}
	if _, err := fail.Transcribe(context.Background(), nil); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
}

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "zh" {
			t.Errorf("language = %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		file.Close()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  我想吃面条  "}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, "test-key", "whisper-1", "zh")
	got, err := tr.Transcribe(context.Background(), wavHeader(256))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "我想吃面条" {
		t.Errorf("text = %q (whitespace should be trimmed)", got)
	}
}

func TestHTTPTranscriber_Errors(t *testing.T) {
	t.Run("rejects non-wav audio", func(t *testing.T) {
		tr := NewHTTPTranscriber("http://unused", "k", "m", "")
		if _, err := tr.Transcribe(context.Background(), []byte("not audio")); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		tr := NewHTTPTranscriber("http://unused", "", "m", "")
		if _, err := tr.Transcribe(context.Background(), wavHeader(16)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("service error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		tr := NewHTTPTranscriber(srv.URL, "k", "m", "")
		if _, err := tr.Transcribe(context.Background(), wavHeader(16)); err == nil {
			t.Error("expected error for 503")
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"text":"   "}`))
		}))
		defer srv.Close()

		tr := NewHTTPTranscriber(srv.URL, "k", "m", "")
		if _, err := tr.Transcribe(context.Background(), wavHeader(16)); !errors.Is(err, ErrNoSpeech) {
			t.Errorf("err = %v, want ErrNoSpeech", err)
		}
	})
}
