package session

import (
	"sync"

	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/metrics"
)

// State is the externally observable conversation state.
type State string

const (
	Idle                     State = "IDLE"
	Listening                State = "LISTENING"
	Processing               State = "PROCESSING"
	Speaking                 State = "SPEAKING"
	Breathing                State = "BREATHING"
	ShowingCard              State = "SHOWING_CARD"
	ShowingMap               State = "SHOWING_MAP"
	ShowingPlacesList        State = "SHOWING_PLACES_LIST"
	ShowingLiveMap           State = "SHOWING_LIVE_MAP"
	ShowingEmergencyContacts State = "SHOWING_EMERGENCY_CONTACTS"
)

func (s State) String() string {
	return string(s)
}

// IsOverlay reports whether the UI owns the interaction in this state.
func (s State) IsOverlay() bool {
	switch s {
	case Breathing, ShowingCard, ShowingMap, ShowingPlacesList, ShowingLiveMap, ShowingEmergencyContacts:
		return true
	}
	return false
}

// OverlayFor maps a UI tool action to the overlay it opens.
func OverlayFor(action functions.UIAction) (State, bool) {
	switch action {
	case functions.BeginBreathing:
		return Breathing, true
	case functions.ShowSeatCard:
		return ShowingCard, true
	case functions.ShowRouteMap:
		return ShowingMap, true
	case functions.ShowLiveMap:
		return ShowingLiveMap, true
	case functions.ShowEmergencyContacts, functions.CallEmergencyContact:
		return ShowingEmergencyContacts, true
	}
	return "", false
}

// SideData accompanies overlay states.
type SideData struct {
	PlaceType string            `json:"placeType,omitempty"`
	Places    []functions.Place `json:"places,omitempty"`
	AutoCall  string            `json:"autoCall,omitempty"`
}

// StateSink observes state changes. SetState is called synchronously in
// transition order and must not call back into Machine transitions.
type StateSink interface {
	SetState(state State, side *SideData)
}

// StateSinkFunc adapts a function to StateSink.
type StateSinkFunc func(State, *SideData)

func (f StateSinkFunc) SetState(state State, side *SideData) {
	f(state, side)
}

// Machine owns the conversation state. All mutation goes through its
// transition methods; everyone else reads or subscribes.
type Machine struct {
	metrics *metrics.Metrics

	// notifyMu is held across a transition and its notifications so sinks
	// see changes in the order they happened.
	notifyMu sync.Mutex

	mu      sync.RWMutex
	state   State
	side    *SideData
	pending int
	// epoch changes on every Start and Stop so batches from an earlier
	// conversation cannot touch the pending count of a later one.
	epoch uint64
	sinks []StateSink
}

// ToolBatch is the ticket for one externally executed batch, returned by
// ToolsStarted and handed back to ToolsFinished.
type ToolBatch struct {
	epoch   uint64
	counted bool
}

// NewMachine creates a machine in Idle.
func NewMachine(m *metrics.Metrics) *Machine {
	return &Machine{metrics: m, state: Idle}
}

// Subscribe registers a sink. It is not told the current state.
func (m *Machine) Subscribe(sink StateSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the current state and its side data.
func (m *Machine) Snapshot() (State, *SideData) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.side
}

// transition applies fn under the lock. fn returns the next state, its side
// data and whether anything changed.
func (m *Machine) transition(fn func(cur State) (State, *SideData, bool)) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	next, side, ok := fn(m.state)
	if !ok || (next == m.state && side == m.side) {
		m.mu.Unlock()
		return false
	}
	m.state = next
	m.side = side
	sinks := append([]StateSink(nil), m.sinks...)
	m.mu.Unlock()

	m.metrics.RecordTransition(next.String())
	for _, sink := range sinks {
		sink.SetState(next, side)
	}
	return true
}

// Start moves Idle to Listening.
func (m *Machine) Start() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		if cur != Idle {
			return cur, nil, false
		}
		m.pending = 0
		m.epoch++
		return Listening, nil, true
	})
}

// Stop moves any state to Idle.
func (m *Machine) Stop() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		if cur != Idle {
			m.epoch++
		}
		m.pending = 0
		return Idle, nil, cur != Idle
	})
}

// AudioReceived moves any non-overlay active state to Speaking.
func (m *Machine) AudioReceived() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		return Speaking, nil, cur != Idle && !cur.IsOverlay()
	})
}

// PlaybackDrained moves Speaking back to Listening, or to Processing when a
// tool batch is still outstanding.
func (m *Machine) PlaybackDrained() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		if m.pending > 0 {
			return Processing, nil, cur == Speaking
		}
		return Listening, nil, cur == Speaking
	})
}

// ToolsStarted marks an externally executed batch in flight and moves any
// active non-overlay state to Processing.
func (m *Machine) ToolsStarted() (ToolBatch, bool) {
	var batch ToolBatch
	changed := m.transition(func(cur State) (State, *SideData, bool) {
		batch.epoch = m.epoch
		if cur == Idle {
			return cur, nil, false
		}
		batch.counted = true
		m.pending++
		if cur.IsOverlay() {
			return cur, m.side, false
		}
		return Processing, nil, true
	})
	return batch, changed
}

// ToolsFinished marks batch answered. The last one out of Processing
// returns to Listening. A batch from an earlier conversation is ignored.
func (m *Machine) ToolsFinished(batch ToolBatch) bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		if !batch.counted || batch.epoch != m.epoch {
			return cur, nil, false
		}
		if m.pending > 0 {
			m.pending--
		}
		return Listening, nil, cur == Processing && m.pending == 0
	})
}

// TextSent moves Listening or Speaking to Processing while the model
// answers a typed turn.
func (m *Machine) TextSent() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		return Processing, nil, cur == Listening || cur == Speaking
	})
}

// ShowOverlay opens an overlay from Listening, Processing, Speaking or
// another overlay.
func (m *Machine) ShowOverlay(overlay State, side *SideData) bool {
	if !overlay.IsOverlay() {
		return false
	}
	return m.transition(func(cur State) (State, *SideData, bool) {
		switch {
		case cur == Listening, cur == Processing, cur == Speaking, cur.IsOverlay():
			return overlay, side, true
		}
		return cur, nil, false
	})
}

// OpenLiveMap moves ShowingPlacesList to ShowingLiveMap, keeping its places.
func (m *Machine) OpenLiveMap() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		if cur != ShowingPlacesList {
			return cur, nil, false
		}
		return ShowingLiveMap, m.side, true
	})
}

// Dismiss closes the current overlay.
func (m *Machine) Dismiss() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		return Listening, nil, cur.IsOverlay()
	})
}

// TurnComplete ends a text turn: Processing with no tool batch in flight
// returns to Listening.
func (m *Machine) TurnComplete() bool {
	return m.transition(func(cur State) (State, *SideData, bool) {
		return Listening, nil, cur == Processing && m.pending == 0
	})
}
