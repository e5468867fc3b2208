package model

import (
	"time"

	"github.com/google/uuid"
)

// GradedItem pairs one exam question with the student's answer, if any.
type GradedItem struct {
	QuestionID    int64
	Options       []string
	CorrectOption int
	Answer        *string
}

// ScoreResult is the outcome of grading a session.
type ScoreResult struct {
	Score          int            `json:"score"`
	CorrectAnswers int            `json:"correct_answers"`
	TotalQuestions int            `json:"total_questions"`
	Answers        []AnswerResult `json:"answers"`
}

// AnswerResult is the per-question breakdown of a ScoreResult.
type AnswerResult struct {
	QuestionID    int64   `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	UserAnswer    *string `json:"user_answer"`
	CorrectAnswer string  `json:"correct_answer"`
}

// Grade is a school grade for a percentage score.
type Grade struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	LabelID string `json:"-"`
}

// ResultRow is one finished (or monitored) session in an examiner listing.
type ResultRow struct {
	SessionID     uuid.UUID     `json:"session_id"`
	Student       UserSummary   `json:"student"`
	Status        SessionStatus `json:"status"`
	Score         *int          `json:"score,omitempty"`
	Grade         *Grade        `json:"grade,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	AnsweredCount int           `json:"answered_count"`
}
