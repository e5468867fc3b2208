package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a live session transition.
type SessionEventType string

const (
	EventSessionStarted   SessionEventType = "session_started"
	EventAnswerSaved      SessionEventType = "answer_saved"
	EventSessionCompleted SessionEventType = "session_completed"
	EventSessionExpired   SessionEventType = "session_expired"
)

// SessionEvent is published on the exam's events channel and relayed to the
// examiner monitor.
type SessionEvent struct {
	Type       SessionEventType `json:"type"`
	ExamID     uuid.UUID        `json:"exam_id"`
	SessionID  uuid.UUID        `json:"session_id"`
	StudentID  int64            `json:"student_id"`
	Status     SessionStatus    `json:"status"`
	Score      *int             `json:"score,omitempty"`
	QuestionID *int64           `json:"question_id,omitempty"`
	At         time.Time        `json:"at"`
}

// MonitorSnapshot is the first frame of the examiner monitor stream.
// Truncated is set when Sessions holds fewer rows than Stats.Joined.
type MonitorSnapshot struct {
	Exam      *Exam        `json:"exam"`
	Stats     MonitorStats `json:"stats"`
	Sessions  []ResultRow  `json:"sessions"`
	Truncated bool         `json:"truncated"`
}

// MonitorStats counts sessions by status.
type MonitorStats struct {
	Joined     int `json:"total_joined"`
	InProgress int `json:"total_in_progress"`
	Completed  int `json:"total_completed"`
	Expired    int `json:"total_expired"`
}
