package messages

import "encoding/json"

// ClientMessage represents a message from a UI client
type ClientMessage struct {
	Type    string          `json:"type"` // "control", "text"
	Payload json.RawMessage `json:"payload"`
}

// Client message types
const (
	TypeControl = "control"
)

// Control actions
const (
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionDismiss     = "dismiss"
	ActionOpenLiveMap = "open_live_map"
	ActionPing        = "ping"
)

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "start", "stop", "dismiss", "open_live_map", "ping"
}

// TextPayload is a typed user turn
type TextPayload struct {
	Text string `json:"text"`
}
