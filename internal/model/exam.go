package model

import (
	"time"

	"github.com/google/uuid"
)

// DisplayMode controls whether students see one question at a time or the
// whole paper at once.
type DisplayMode string

const (
	DisplayModeSingle DisplayMode = "Single"
	DisplayModeAll    DisplayMode = "All"
)

// MaxTimeLimitMinutes bounds Exam.TimeLimit. Zero means unlimited.
const MaxTimeLimitMinutes = 180

// Availability reasons reported when an exam cannot be started.
const (
	ReasonInactive   = "inactive"
	ReasonNotStarted = "not_started"
	ReasonEnded      = "ended"
)

// Exam represents an exam entity.
type Exam struct {
	ID             uuid.UUID    `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	DisplayMode    DisplayMode  `json:"question_display_mode"`
	TimeLimit      int          `json:"time_limit"`
	StartDate      *time.Time   `json:"start_date"`
	EndDate        *time.Time   `json:"end_date"`
	IsActive       bool         `json:"is_active"`
	CreatedByID    int64        `json:"created_by_id"`
	GroupID        int64        `json:"group_id"`
	SubjectID      *int64       `json:"subject_id,omitempty"`
	TopicID        *int64       `json:"topic_id,omitempty"`
	SubtopicID     *int64       `json:"subtopic_id,omitempty"`
	QuestionsCount int          `json:"questions_count"`
	Group          *GroupRef    `json:"group,omitempty"`
	CreatedBy      *UserSummary `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ExamAvailability tells a student whether an exam can be started right now.
type ExamAvailability struct {
	CanStart  bool       `json:"can_start"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	TimeLimit int        `json:"time_limit"`
	Reason    string     `json:"reason,omitempty"`
}

// Availability evaluates the activity flag and the optional window at now.
// Both window bounds are inclusive.
func (e *Exam) Availability(now time.Time) ExamAvailability {
	av := ExamAvailability{
		CanStart:  true,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
		TimeLimit: e.TimeLimit,
	}
	switch {
	case !e.IsActive:
		av.Reason = ReasonInactive
	case e.StartDate != nil && now.Before(*e.StartDate):
		av.Reason = ReasonNotStarted
	case e.EndDate != nil && now.After(*e.EndDate):
		av.Reason = ReasonEnded
	}
	av.CanStart = av.Reason == ""
	return av
}

// SessionDeadline returns when a session started at now must be finished, or
// nil when neither a time limit nor an end date applies. A time limit never
// extends past the end date.
func (e *Exam) SessionDeadline(now time.Time) *time.Time {
	var deadline *time.Time
	if e.TimeLimit > 0 {
		t := now.Add(time.Duration(e.TimeLimit) * time.Minute)
		deadline = &t
	}
	if e.EndDate != nil && (deadline == nil || e.EndDate.Before(*deadline)) {
		t := *e.EndDate
		deadline = &t
	}
	return deadline
}

// ExamDetail is the examiner view of an exam with its full questions.
type ExamDetail struct {
	Exam
	Questions []Question `json:"questions"`
}

// ExamPaper is the Redis-cached question set sent to students (no correct answers).
type ExamPaper struct {
	ExamID      uuid.UUID            `json:"exam_id"`
	Title       string               `json:"title"`
	DisplayMode DisplayMode          `json:"question_display_mode"`
	Questions   []QuestionForStudent `json:"questions"`
}

// Position returns the zero-based position of a question in the paper, or -1.
func (p *ExamPaper) Position(questionID int64) int {
	for i := range p.Questions {
		if p.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title       string      `json:"title" binding:"required,notblank,max=255"`
	Description string      `json:"description" binding:"max=5000"`
	DisplayMode DisplayMode `json:"question_display_mode" binding:"required,oneof=Single All"`
	TimeLimit   *int        `json:"time_limit" binding:"required,min=0,max=180"`
	StartDate   *time.Time  `json:"start_date"`
	EndDate     *time.Time  `json:"end_date"`
	GroupID     int64       `json:"group_id" binding:"required,gt=0"`
	SubjectID   *int64      `json:"subject_id" binding:"omitempty,gt=0"`
	TopicID     *int64      `json:"topic_id" binding:"omitempty,gt=0"`
	SubtopicID  *int64      `json:"subtopic_id" binding:"omitempty,gt=0"`
	QuestionIDs []int64     `json:"question_ids" binding:"required,dive,gt=0"`
}

// UpdateExamRequest replaces every authored field of an exam.
type UpdateExamRequest struct {
	CreateExamRequest
	IsActive *bool `json:"is_active"`
}
