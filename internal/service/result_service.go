package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/scoring"
	"github.com/rs/zerolog"
)

// monitorSessionLimit caps how many session rows a monitor snapshot carries.
// Status totals always cover every session.
const monitorSessionLimit = 1000

// finalStatuses is the default filter for result listings.
var finalStatuses = []model.SessionStatus{model.SessionStatusCompleted, model.SessionStatusExpired}

// ResultService gives examiners read access to the sessions of their exams.
type ResultService struct {
	exams     ExamStore
	questions QuestionStore
	sessions  SessionStore
	answers   AnswerStore
	users     UserStore
	log       zerolog.Logger

	monitorLimit int
}

// NewResultService creates a new ResultService.
func NewResultService(
	exams ExamStore,
	questions QuestionStore,
	sessions SessionStore,
	answers AnswerStore,
	users UserStore,
	log zerolog.Logger,
) *ResultService {
	return &ResultService{
		exams:     exams,
		questions: questions,
		sessions:  sessions,
		answers:   answers,
		users:     users,
		log:       log.With().Str("component", "result_service").Logger(),

		monitorLimit: monitorSessionLimit,
	}
}

// Results lists the sessions of an exam with the given statuses, finished
// ones by default, each graded.
func (s *ResultService) Results(ctx context.Context, examID uuid.UUID, examinerID int64, statuses []model.SessionStatus, page, perPage int) (*ExamResults, *response.Pagination, error) {
	exam, err := ownedExam(ctx, s.exams, examID, examinerID)
	if err != nil {
		return nil, nil, err
	}
	if len(statuses) == 0 {
		statuses = finalStatuses
	}
	page, perPage = normalizePage(page, perPage)

	rows, total, err := s.sessions.ListResults(ctx, examID, statuses, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if rows == nil {
		rows = []model.ResultRow{}
	}
	gradeRows(rows)

	return &ExamResults{Exam: exam, Sessions: rows}, response.NewPagination(page, perPage, total), nil
}

// SessionDetail returns one session of the exam with the answer key and a
// freshly computed breakdown.
func (s *ResultService) SessionDetail(ctx context.Context, examID, sessionID uuid.UUID, examinerID int64) (*SessionDetail, error) {
	exam, err := ownedExam(ctx, s.exams, examID, examinerID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound, "load session")
	}
	if sess.ExamID != examID {
		return nil, ErrSessionNotFound
	}

	student, err := s.users.GetSummary(ctx, sess.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}
	qs, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	if qs == nil {
		qs = []model.Question{}
	}
	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.ExamAnswer{}
	}
	items, err := s.answers.GradedItems(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load graded items: %w", err)
	}

	detail := &SessionDetail{
		Session: sess,
		Student: student,
		Exam:    &model.ExamDetail{Exam: *exam, Questions: qs},
		Answers: answers,
		Result:  scoring.Evaluate(items),
	}
	if sess.Status.IsFinal() && sess.Score != nil {
		g := scoring.GradeFor(*sess.Score)
		detail.Grade = &g
	}
	return detail, nil
}

// Monitor builds the live monitor snapshot: up to monitorLimit sessions with
// their answered counts, and totals by status over all sessions.
func (s *ResultService) Monitor(ctx context.Context, examID uuid.UUID, examinerID int64) (*model.MonitorSnapshot, error) {
	exam, err := ownedExam(ctx, s.exams, examID, examinerID)
	if err != nil {
		return nil, err
	}

	rows, _, err := s.sessions.ListResults(ctx, examID, nil, s.monitorLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	byStatus, err := s.sessions.CountByStatus(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	counts, err := s.answers.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	if rows == nil {
		rows = []model.ResultRow{}
	}
	gradeRows(rows)
	for i := range rows {
		rows[i].AnsweredCount = counts[rows[i].SessionID]
	}

	snap := &model.MonitorSnapshot{Exam: exam, Sessions: rows}
	snap.Stats.InProgress = byStatus[model.SessionStatusInProgress]
	snap.Stats.Completed = byStatus[model.SessionStatusCompleted]
	snap.Stats.Expired = byStatus[model.SessionStatusExpired]
	snap.Stats.Joined = snap.Stats.InProgress + snap.Stats.Completed + snap.Stats.Expired
	snap.Truncated = len(rows) < snap.Stats.Joined
	return snap, nil
}

func gradeRows(rows []model.ResultRow) {
	for i := range rows {
		if rows[i].Score != nil && rows[i].Status.IsFinal() {
			g := scoring.GradeFor(*rows[i].Score)
			rows[i].Grade = &g
		}
	}
}
