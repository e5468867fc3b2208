package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
)

// Stores return pgx.ErrNoRows when a single-row lookup finds nothing.

// ExamStore persists exams and their ordered question links.
type ExamStore interface {
	Create(ctx context.Context, exam *model.Exam, questionIDs []int64) error
	Update(ctx context.Context, exam *model.Exam, questionIDs []int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListByCreator(ctx context.Context, creatorID int64, limit, offset int) ([]model.Exam, int, error)
	ListForStudent(ctx context.Context, studentID int64) ([]model.Exam, error)
	GetForStudent(ctx context.Context, id uuid.UUID, studentID int64) (*model.Exam, error)
}

// QuestionStore reads the question bank.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	CountOwned(ctx context.Context, creatorID int64, ids []int64) (int, error)
}

// GroupStore answers group ownership questions.
type GroupStore interface {
	IsOwnedBy(ctx context.Context, groupID, examinerID int64) (bool, error)
}

// UserStore reads user summaries.
type UserStore interface {
	GetSummary(ctx context.Context, id int64) (*model.UserSummary, error)
}

// SessionStore persists exam sessions. Create returns pgx.ErrNoRows when the
// student already has a session for the exam. Finalize reports false when the
// session was no longer in progress.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int64) (*model.ExamSession, error)
	ListByStudent(ctx context.Context, studentID int64) ([]model.ExamSession, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
	CountByStatus(ctx context.Context, examID uuid.UUID) (map[model.SessionStatus]int, error)
	AdvanceIndex(ctx context.Context, id uuid.UUID, index int) error
	Finalize(ctx context.Context, id uuid.UUID, status model.SessionStatus, score int, at time.Time) (bool, error)
	ListResults(ctx context.Context, examID uuid.UUID, statuses []model.SessionStatus, limit, offset int) ([]model.ResultRow, int, error)
	ListOpenDeadlines(ctx context.Context) ([]model.SessionDeadline, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// AnswerStore persists answers. Upsert returns pgx.ErrNoRows when the session
// is no longer in progress. GradedItems returns one row per exam question in
// exam order, joined with the session's answer when there is one.
type AnswerStore interface {
	Upsert(ctx context.Context, a *model.ExamAnswer) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ExamAnswer, error)
	GradedItems(ctx context.Context, sessionID uuid.UUID) ([]model.GradedItem, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int, error)
}

// PaperCache holds student-facing papers. Get returns (nil, nil) on a miss.
type PaperCache interface {
	Get(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error)
	Set(ctx context.Context, paper *model.ExamPaper) error
	Invalidate(ctx context.Context, examID uuid.UUID) error
}

// DeadlineScheduler tracks when in-progress sessions time out.
type DeadlineScheduler interface {
	Schedule(ctx context.Context, sessionID uuid.UUID, at time.Time) error
	Cancel(ctx context.Context, sessionID uuid.UUID) error
}

// EventPublisher fans session events out to live monitors.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent) error
}
