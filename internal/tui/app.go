// Package tui is the terminal front end for the voice session client:
// one key starts and stops a recording, captured audio is relayed while
// the key is held down metaphorically (a file source streams in timed
// chunks), and transcript plus recommendations render as they arrive.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/capture"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/voice"
)

// EventMsg wraps one session event for the Bubble Tea loop.
type EventMsg struct {
	Event voice.Event
}

// captureDoneMsg reports that the audio source ran dry or failed.
type captureDoneMsg struct {
	err error
}

// Model is the root Bubble Tea model.
type Model struct {
	client *voice.Client
	source capture.Source

	keys   KeyMap
	spin   spinner.Model
	width  int
	height int

	// snap mirrors the client's session state after every event.
	snap voice.Snapshot

	captureCancel context.CancelFunc
	captureErr    string
	terminal      bool
	quitting      bool
}

// New creates the root model. The client's connection is opened by Init.
func New(client *voice.Client, source capture.Source) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorProcessing)
	return Model{
		client: client,
		source: source,
		keys:   DefaultKeyMap(),
		spin:   sp,
		snap:   client.Snapshot(),
	}
}

// Init connects the client and starts pumping its events into the loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.connect(), m.waitEvent(), m.spin.Tick)
}

func (m Model) connect() tea.Cmd {
	return func() tea.Msg {
		m.client.Connect(context.Background())
		return nil
	}
}

// waitEvent blocks on the next session event. Re-issued after every
// event so the channel keeps draining.
func (m Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return EventMsg{Event: <-m.client.Events()}
	}
}

// startCapture streams the audio source into the session until the
// source ends or the returned cancel fires.
func (m *Model) startCapture() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.captureCancel = cancel
	return func() tea.Msg {
		err := m.source.Stream(ctx, func(chunk []byte) {
			m.client.SendAudioChunk(chunk)
		})
		return captureDoneMsg{err: err}
	}
}

func (m *Model) stopCapture() {
	if m.captureCancel != nil {
		m.captureCancel()
		m.captureCancel = nil
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case EventMsg:
		m.snap = m.client.Snapshot()
		switch ev := msg.Event.(type) {
		case voice.DisconnectedEvent:
			m.stopCapture()
			if ev.Terminal {
				m.terminal = true
				return m, nil
			}
		case voice.RecordingStoppedEvent, voice.TranscriptErrorEvent, voice.ServerErrorEvent:
			m.stopCapture()
		}
		return m, m.waitEvent()

	case captureDoneMsg:
		// Source exhausted: finish the cycle as if the key was pressed.
		m.captureCancel = nil
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			// Capture failures are local, never retried on their own.
			m.captureErr = msg.err.Error()
		}
		if m.snap.Rec == voice.Recording {
			m.client.StopRecording()
			m.snap = m.client.Snapshot()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.stopCapture()
		m.client.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Record):
		switch m.snap.Rec {
		case voice.Idle:
			if err := m.client.StartRecording(); err != nil {
				m.snap = m.client.Snapshot()
				return m, nil
			}
			m.captureErr = ""
			m.snap = m.client.Snapshot()
			return m, m.startCapture()
		case voice.Recording:
			m.stopCapture()
			m.client.StopRecording()
			m.snap = m.client.Snapshot()
			return m, nil
		}
		// Processing: the stop already happened, ignore.
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.client.ClearResults()
		m.snap = m.client.Snapshot()
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		m.width = 80
	}

	sections := []string{
		StyleHeader.Render("GINSENG MENU · voice waiter"),
		m.renderStatus(),
	}

	if m.terminal {
		sections = append(sections,
			StyleError.Render("  DISCONNECTED: gave up after repeated attempts"),
			StyleDimmed.Render("  Restart the app to reconnect"))
	}

	if m.snap.Transcript != "" {
		sections = append(sections,
			StyleDimmed.Render("You said:"),
			StyleTranscript.Render(m.snap.Transcript))
	}

	if len(m.snap.Recommendations) > 0 {
		sections = append(sections, StyleDimmed.Render("Recommended for you:"))
		for i, rec := range m.snap.Recommendations {
			line := fmt.Sprintf("  %d. %s", i+1, StyleDishName.Render(rec.Name))
			if rec.Reason != "" {
				line += StyleDimmed.Render("  " + rec.Reason)
			}
			sections = append(sections, line)
		}
	}

	if m.snap.LastError != "" {
		sections = append(sections, StyleError.Render("  "+m.snap.LastError))
	}
	if m.captureErr != "" {
		sections = append(sections, StyleError.Render("  microphone: "+m.captureErr))
	}

	sections = append(sections,
		StyleDimmed.Render("  r:record/stop  c:clear  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatus() string {
	conn := m.snap.Conn.String()
	connStr := lipgloss.NewStyle().Foreground(ConnColor(conn)).Render(conn)

	rec := m.snap.Rec.String()
	glyph := RecGlyph(rec)
	if m.snap.Rec == voice.Processing {
		glyph = m.spin.View()
	}
	recStr := lipgloss.NewStyle().Foreground(RecColor(rec)).Render(glyph + " " + rec)

	line := "  " + connStr + "  " + recStr
	if m.snap.Conn == voice.Connecting {
		line += StyleDimmed.Render("  Reconnecting...")
	}
	if m.snap.Status != "" && m.snap.Status != conn {
		line += StyleDimmed.Render("  " + m.snap.Status)
	}
	return line
}
