package messages

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeGeminiError      = "GEMINI_ERROR"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeConnectionClosed = "CONNECTION_CLOSED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeMicrophone       = "MICROPHONE_UNAVAILABLE"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeNotRunning       = "NOT_RUNNING"
)

// Message types
const (
	TypeText       = "text"
	TypeStatus     = "status"
	TypeError      = "error"
	TypeState      = "state"
	TypeTranscript = "transcript"
)

// ServerMessage represents a message sent to a UI client
type ServerMessage struct {
	Type     string `json:"type"` // "state", "transcript", "status", "error"
	ClientID string `json:"clientId,omitempty"`
	Payload  any    `json:"payload"`
}

// StatePayload carries the conversation state and its side data
type StatePayload struct {
	State          string `json:"state"`
	ConversationID string `json:"conversationId,omitempty"`
	SideData       any    `json:"sideData,omitempty"`
}

// TranscriptPayload contains one line of the conversation
type TranscriptPayload struct {
	Role string `json:"role"` // "user", "model"
	Text string `json:"text"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status  string `json:"status"` // "connected", "pong"
	Message string `json:"message,omitempty"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewStateMessage creates a state change message
func NewStateMessage(state, conversationID string, side any) *ServerMessage {
	return &ServerMessage{
		Type: TypeState,
		Payload: StatePayload{
			State:          state,
			ConversationID: conversationID,
			SideData:       side,
		},
	}
}

// NewTranscriptMessage creates a transcript line message
func NewTranscriptMessage(role, text string) *ServerMessage {
	return &ServerMessage{
		Type: TypeTranscript,
		Payload: TranscriptPayload{
			Role: role,
			Text: text,
		},
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(clientID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:     TypeStatus,
		ClientID: clientID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(clientID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:     TypeError,
		ClientID: clientID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
