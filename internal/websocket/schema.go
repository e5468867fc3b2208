package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to record one answer.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSession     Event = "session"
	EventAnswerSaved Event = "answer_saved"
	EventFinished    Event = "finished"
	EventExpired     Event = "expired"
	EventTick        Event = "tick"
	EventPong        Event = "pong"
	EventError       Event = "error"
)

// SessionResponse carries the full session view, sent on connect.
type SessionResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

// AnswerSavedResponse acknowledges an answer. CurrentQuestionIndex is where a
// Single-mode client should move next.
type AnswerSavedResponse struct {
	Event                Event `json:"event"`
	QuestionID           int64 `json:"question_id"`
	CurrentQuestionIndex int   `json:"current_question_index"`
}

// FinishedResponse carries the score breakdown of a finished session.
type FinishedResponse struct {
	Event  Event       `json:"event"`
	Result interface{} `json:"result"`
}

// ExpiredResponse tells the client the deadline passed and the session was
// closed with whatever was answered.
type ExpiredResponse struct {
	Event   Event       `json:"event"`
	Session interface{} `json:"session"`
}

type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
