package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/capture"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/tui"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/voice"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:5000/ws", "WebSocket URL of the voice service")
	token := flag.String("token", "", "Auth token (if the service requires it)")
	audioPath := flag.String("audio", "", "WAV file streamed as the recording (defaults to generated silence)")
	logPath := flag.String("log", "", "Write debug logs to this file (the TTY belongs to the UI)")
	flag.Parse()

	logWriter := io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logWriter = f
	}
	log := zerolog.New(logWriter).With().Timestamp().Logger()

	client := voice.New(voice.Config{
		URL:    *wsURL,
		Token:  *token,
		Logger: log,
	})

	var source capture.Source
	if *audioPath != "" {
		source = capture.FileSource{Path: *audioPath}
	} else {
		// No recording on hand: three seconds of silence still walks
		// the whole pipeline against a mock-mode service.
		source = capture.BytesSource{Data: capture.SilenceWAV(3*time.Second, 16000)}
	}

	m := tui.New(client, source)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
