// Command companion is a terminal front end for Access.ai. It runs the same
// conversation engine as the service and renders state and transcripts with
// bubbletea.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/room4-2/accessai/app"
	"github.com/room4-2/accessai/config"
	"github.com/room4-2/accessai/metrics"
	"github.com/room4-2/accessai/session"
)

// programAdapter forwards engine callbacks into the bubbletea program.
type programAdapter struct {
	program *tea.Program
}

// SetState implements session.StateSink.
func (a *programAdapter) SetState(state session.State, side *session.SideData) {
	a.send(StateMsg{State: state, Side: side})
}

func (a *programAdapter) transcript(role, text string) {
	a.send(TranscriptMsg{Role: role, Text: text})
}

func (a *programAdapter) send(msg tea.Msg) {
	if a.program != nil {
		a.program.Send(msg)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The TUI owns stdout; keep engine logs off the terminal.
	logFile, err := tea.LogToFile("companion.log", "companion")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &programAdapter{}
	engine, err := app.New(ctx, cfg, app.Options{
		Logger:       session.NewLogger(false),
		Metrics:      metrics.NewMetrics(""),
		OnTranscript: adapter.transcript,
	})
	if err != nil {
		log.Fatalf("Failed to build conversation engine: %v", err)
	}
	defer engine.Close()

	p := tea.NewProgram(NewModel(ctx, engine.Conversation), tea.WithAltScreen(), tea.WithContext(ctx))
	adapter.program = p
	engine.Conversation.Machine().Subscribe(adapter)

	if _, err := p.Run(); err != nil {
		log.Printf("companion exited: %v", err)
	}
}
