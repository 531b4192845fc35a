package gemini

// Event is one inbound message from the Live session, delivered in receipt
// order on Transport.Events.
type Event interface {
	isEvent()
}

// AudioChunk carries raw PCM16 speech from the model.
type AudioChunk struct {
	Data     []byte
	MIMEType string
}

// ToolCall is one function call request. ID is echoed in its response.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolCallBatch is every call carried by a single inbound message.
type ToolCallBatch struct {
	Calls []ToolCall
}

// ToolCallCancelled lists calls the model no longer wants answered.
type ToolCallCancelled struct {
	IDs []string
}

// Interrupted means the user started speaking over the model.
type Interrupted struct{}

// TurnComplete marks the end of a model turn.
type TurnComplete struct{}

// Text is a text part of the model turn (text modality).
type Text struct {
	Text string
}

// Transcript is a transcription of either side of the conversation.
type Transcript struct {
	Role string // "user" or "model"
	Text string
}

// Closed reports a normal end of the session.
type Closed struct {
	Reason string
}

// Error reports a fatal session failure.
type Error struct {
	Err error
}

// ToolResponse answers one ToolCall.
type ToolResponse struct {
	ID     string
	Name   string
	Result string
}

func (AudioChunk) isEvent()        {}
func (ToolCallBatch) isEvent()     {}
func (ToolCallCancelled) isEvent() {}
func (Interrupted) isEvent()       {}
func (TurnComplete) isEvent()      {}
func (Text) isEvent()              {}
func (Transcript) isEvent()        {}
func (Closed) isEvent()            {}
func (Error) isEvent()             {}
