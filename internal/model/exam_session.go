package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusExpired    SessionStatus = "EXPIRED"
)

// IsFinal reports whether no further answers may be recorded.
func (s SessionStatus) IsFinal() bool {
	return s == SessionStatusCompleted || s == SessionStatusExpired
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	return s == SessionStatusInProgress || s.IsFinal()
}

// ExamSession represents a student's exam attempt.
type ExamSession struct {
	ID                   uuid.UUID     `json:"id"`
	ExamID               uuid.UUID     `json:"exam_id"`
	StudentID            int64         `json:"student_id"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	StartedAt            time.Time     `json:"started_at"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	TimeoutAt            *time.Time    `json:"timeout_at,omitempty"`
	Score                *int          `json:"score,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// TimedOut reports whether the session deadline lies strictly before now.
func (s *ExamSession) TimedOut(now time.Time) bool {
	return s.TimeoutAt != nil && now.After(*s.TimeoutAt)
}

// RemainingSeconds returns whole seconds left before the deadline, clamped at
// zero, or nil for sessions without a deadline.
func (s *ExamSession) RemainingSeconds(now time.Time) *int64 {
	if s.TimeoutAt == nil {
		return nil
	}
	left := int64(s.TimeoutAt.Sub(now) / time.Second)
	if left < 0 {
		left = 0
	}
	return &left
}

// SessionSummary is the slice of a session overlaid on a student's exam list.
type SessionSummary struct {
	ID          uuid.UUID     `json:"id"`
	Status      SessionStatus `json:"status"`
	Score       *int          `json:"score,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Summary projects the list overlay.
func (s *ExamSession) Summary() *SessionSummary {
	return &SessionSummary{
		ID:          s.ID,
		Status:      s.Status,
		Score:       s.Score,
		CompletedAt: s.CompletedAt,
	}
}

// ExamAnswer is the answer a student gave to one question. There is at most
// one per (session, question); resubmitting overwrites.
type ExamAnswer struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubmitAnswerRequest is the payload for answering one question.
type SubmitAnswerRequest struct {
	QuestionID int64  `json:"question_id" binding:"required,gt=0"`
	Answer     string `json:"answer" binding:"required,notblank,max=2000"`
}

// SessionDeadline is an open session's timeout, used to rebuild the deadline index.
type SessionDeadline struct {
	SessionID uuid.UUID
	ExamID    uuid.UUID
	TimeoutAt time.Time
}
