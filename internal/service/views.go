package service

import (
	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
)

// StudentExam is an exam as listed to a student, with their own session
// overlaid when they have one.
type StudentExam struct {
	model.Exam
	Session *model.SessionSummary `json:"session"`
}

// SessionExam is the part of an exam a student sees while taking it.
type SessionExam struct {
	ID          uuid.UUID                  `json:"id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	DisplayMode model.DisplayMode          `json:"question_display_mode"`
	TimeLimit   int                        `json:"time_limit"`
	Group       *model.GroupRef            `json:"group,omitempty"`
	CreatedBy   *model.UserSummary         `json:"created_by,omitempty"`
	Questions   []model.QuestionForStudent `json:"questions"`
}

// SessionView is everything the student client needs to render a session.
type SessionView struct {
	Session       *model.ExamSession `json:"session"`
	TimeRemaining *int64             `json:"time_remaining"`
	Exam          SessionExam        `json:"exam"`
	Answers       []model.ExamAnswer `json:"answers"`
}

// FinishResult is returned when a session is finalised.
type FinishResult struct {
	Session *model.ExamSession `json:"session"`
	Result  model.ScoreResult  `json:"result"`
	Grade   model.Grade        `json:"grade"`
}

// ExamResults is the examiner listing of finished sessions.
type ExamResults struct {
	Exam     *model.Exam       `json:"exam"`
	Sessions []model.ResultRow `json:"sessions"`
}

// SessionDetail is the examiner view of one student's attempt.
type SessionDetail struct {
	Session *model.ExamSession `json:"session"`
	Student *model.UserSummary `json:"student"`
	Exam    *model.ExamDetail  `json:"exam"`
	Answers []model.ExamAnswer `json:"answers"`
	Result  model.ScoreResult  `json:"result"`
	Grade   *model.Grade       `json:"grade,omitempty"`
}
