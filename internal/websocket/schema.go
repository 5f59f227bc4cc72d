package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionViolation Action = "violation"
	ActionChat      Action = "chat"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestPayload is the single inbound message shape: the action decides
// which of the optional fields matter.
type RequestPayload struct {
	Action Action `json:"action"`

	// answer
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`

	// violation
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`

	// chat
	Message string `json:"message,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventSaved        Event = "saved"
	EventGraded       Event = "graded"
	EventWarning      Event = "warning"
	EventForcedSubmit Event = "forced_submit"
	EventChatSent     Event = "chat_sent"
	EventPong         Event = "pong"
)

// EventPayload is the single outbound message shape.
type EventPayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}
