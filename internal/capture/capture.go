// Package capture feeds raw audio chunks into the voice session. The
// real microphone lives on the customer device; here a WAV file stands
// in for it, streamed at the cadence the original kiosk hardware used
// (fixed-size chunks every 100ms).
package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

const (
	DefaultChunkBytes = 4096
	DefaultInterval   = 100 * time.Millisecond
)

// Source streams audio chunks to emit until the input is exhausted or
// ctx is cancelled. emit must not retain the slice.
type Source interface {
	Stream(ctx context.Context, emit func(chunk []byte)) error
}

// FileSource replays a WAV file from disk in fixed-size chunks.
type FileSource struct {
	Path       string
	ChunkBytes int
	Interval   time.Duration
}

func (f FileSource) Stream(ctx context.Context, emit func(chunk []byte)) error {
	size := f.ChunkBytes
	if size <= 0 {
		size = DefaultChunkBytes
	}
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	return stream(ctx, data, size, interval, emit)
}

// BytesSource replays an in-memory buffer, e.g. one built with
// SilenceWAV when no recorded audio is available.
type BytesSource struct {
	Data       []byte
	ChunkBytes int
	Interval   time.Duration
}

func (b BytesSource) Stream(ctx context.Context, emit func(chunk []byte)) error {
	size := b.ChunkBytes
	if size <= 0 {
		size = DefaultChunkBytes
	}
	interval := b.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return stream(ctx, b.Data, size, interval, emit)
}

func stream(ctx context.Context, data []byte, size int, interval time.Duration, emit func(chunk []byte)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		emit(data[off:end])

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// SilenceWAV synthesizes a valid mono 16-bit PCM WAV of silence. Handy
// for demos and tests where no recorded audio is available.
func SilenceWAV(d time.Duration, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	samples := int(float64(sampleRate) * d.Seconds())
	dataLen := samples * 2 // 16-bit mono

	b := make([]byte, 44+dataLen)
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], uint32(36+dataLen))
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(b[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(b[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(b[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(b[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(b[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(b[34:36], 16)                   // bits per sample
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], uint32(dataLen))
	return b
}
