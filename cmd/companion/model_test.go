package main

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/session"
)

type fakeConversation struct {
	mu       sync.Mutex
	started  int
	stopped  int
	texts    []string
	startErr error
	textErr  error
	dismiss  bool
}

func (f *fakeConversation) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeConversation) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeConversation) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.textErr
}

func (f *fakeConversation) Dismiss() bool     { return f.dismiss }
func (f *fakeConversation) OpenLiveMap() bool { return false }

func (f *fakeConversation) Snapshot() (session.State, *session.SideData) {
	return session.Idle, nil
}

func newTestModel(conv *fakeConversation) Model {
	return NewModel(context.Background(), conv)
}

// press feeds a key and runs the resulting command through Update.
func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func typeText(m Model, text string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func TestModelStartsConversation(t *testing.T) {
	conv := &fakeConversation{}
	m := press(t, newTestModel(conv), tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.Equal(t, 1, conv.started)
	assert.Empty(t, m.err)
}

func TestModelReportsAlreadyRunning(t *testing.T) {
	conv := &fakeConversation{startErr: session.ErrAlreadyRunning}
	m := press(t, newTestModel(conv), tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.Equal(t, "already running", m.err)
}

func TestModelSendsTypedText(t *testing.T) {
	conv := &fakeConversation{}
	m := typeText(newTestModel(conv), "  is sushi safe?  ")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"is sushi safe?"}, conv.texts)
	assert.Empty(t, m.input.Value())
	require.Len(t, m.lines, 1)
	assert.Contains(t, m.lines[0], "is sushi safe?")
}

func TestModelIgnoresBlankInput(t *testing.T) {
	conv := &fakeConversation{}
	m := typeText(newTestModel(conv), "   ")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, conv.texts)
	assert.Empty(t, m.lines)
}

func TestModelSendWithoutConversation(t *testing.T) {
	conv := &fakeConversation{textErr: session.ErrNotRunning}
	m := typeText(newTestModel(conv), "hello")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Contains(t, m.err, "ctrl+s")
}

func TestModelDismissIgnored(t *testing.T) {
	conv := &fakeConversation{}
	m := press(t, newTestModel(conv), tea.KeyMsg{Type: tea.KeyEsc})

	assert.Contains(t, m.err, "dismiss")
}

func TestModelRendersPlacesOverlay(t *testing.T) {
	m := newTestModel(&fakeConversation{})
	next, _ := m.Update(StateMsg{
		State: session.ShowingPlacesList,
		Side: &session.SideData{
			PlaceType: "hospital",
			Places: []functions.Place{
				{Name: "City General", DistanceKM: 1.34},
				{Name: "St. Mary"},
			},
		},
	})
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "SHOWING_PLACES_LIST")
	assert.Contains(t, view, "Nearby hospital")
	assert.Contains(t, view, "1. City General (1.3 km)")
	assert.Contains(t, view, "2. St. Mary")
}

func TestModelRendersEmergencyAutoCall(t *testing.T) {
	m := newTestModel(&fakeConversation{})
	next, _ := m.Update(StateMsg{
		State: session.ShowingEmergencyContacts,
		Side:  &session.SideData{AutoCall: "doctor"},
	})

	assert.Contains(t, next.(Model).View(), "Calling doctor")
}

func TestModelTranscriptIsBounded(t *testing.T) {
	m := newTestModel(&fakeConversation{})
	for i := 0; i < maxTranscriptLines+10; i++ {
		next, _ := m.Update(TranscriptMsg{Role: "model", Text: "line"})
		m = next.(Model)
	}
	assert.Len(t, m.lines, maxTranscriptLines)
}

func TestModelQuitStopsConversation(t *testing.T) {
	conv := &fakeConversation{}
	m := newTestModel(conv)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)

	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, conv.stopped)
}
