package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/scoring"
	"github.com/rs/zerolog"
)

// SessionDeps wires the stores and side channels an ExamSessionService uses.
type SessionDeps struct {
	Exams     ExamStore
	Questions QuestionStore
	Sessions  SessionStore
	Answers   AnswerStore
	Papers    PaperCache
	Deadlines DeadlineScheduler
	Events    EventPublisher
}

// ExamSessionService runs the student side of an exam: start, answer,
// finish, and timeout.
//
// A session moves IN_PROGRESS -> COMPLETED on finish, or IN_PROGRESS ->
// EXPIRED once its deadline passes. Both transitions score the session and
// happen at most once.
type ExamSessionService struct {
	exams     ExamStore
	questions QuestionStore
	sessions  SessionStore
	answers   AnswerStore
	papers    PaperCache
	deadlines DeadlineScheduler
	events    EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(deps SessionDeps, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		exams:     deps.Exams,
		questions: deps.Questions,
		sessions:  deps.Sessions,
		answers:   deps.Answers,
		papers:    deps.Papers,
		deadlines: deps.Deadlines,
		events:    deps.Events,
		log:       log.With().Str("component", "exam_session_service").Logger(),
		now:       time.Now,
	}
}

// ─── Student exam listing ───────────────────────────────────────────

// ListMyExams lists every exam assigned to the student's groups.
func (s *ExamSessionService) ListMyExams(ctx context.Context, studentID int64) ([]StudentExam, error) {
	exams, err := s.exams.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student exams: %w", err)
	}
	sessions, err := s.sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}

	byExam := make(map[uuid.UUID]*model.ExamSession, len(sessions))
	for i := range sessions {
		byExam[sessions[i].ExamID] = &sessions[i]
	}

	out := make([]StudentExam, 0, len(exams))
	for _, e := range exams {
		item := StudentExam{Exam: e}
		if sess, ok := byExam[e.ID]; ok {
			item.Session = sess.Summary()
		}
		out = append(out, item)
	}
	return out, nil
}

// GetExam returns one exam visible to the student.
func (s *ExamSessionService) GetExam(ctx context.Context, examID uuid.UUID, studentID int64) (*StudentExam, error) {
	exam, err := s.exams.GetForStudent(ctx, examID, studentID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "load exam")
	}

	item := &StudentExam{Exam: *exam}
	sess, err := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
	switch {
	case err == nil:
		item.Session = sess.Summary()
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("load session: %w", err)
	}
	return item, nil
}

// Availability reports whether the student could start the exam now.
func (s *ExamSessionService) Availability(ctx context.Context, examID uuid.UUID, studentID int64) (*model.ExamAvailability, error) {
	exam, err := s.exams.GetForStudent(ctx, examID, studentID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "load exam")
	}
	av := exam.Availability(s.now())
	return &av, nil
}

// ─── Session lifecycle ──────────────────────────────────────────────

// Start opens a session for the student, or resumes the one in progress.
func (s *ExamSessionService) Start(ctx context.Context, examID uuid.UUID, studentID int64) (*SessionView, error) {
	exam, err := s.exams.GetForStudent(ctx, examID, studentID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "load exam")
	}

	now := s.now()
	switch exam.Availability(now).Reason {
	case model.ReasonInactive:
		return nil, ErrExamInactive
	case model.ReasonNotStarted:
		return nil, ErrExamNotStarted
	case model.ReasonEnded:
		return nil, ErrExamEnded
	}

	existing, err := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
	switch {
	case err == nil:
		return s.resume(ctx, exam, existing)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("load session: %w", err)
	}

	paper, err := loadPaper(ctx, s.papers, s.questions, exam, s.log)
	if err != nil {
		return nil, err
	}
	if len(paper.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	sess := &model.ExamSession{
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.SessionStatusInProgress,
		StartedAt: now,
		TimeoutAt: exam.SessionDeadline(now),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create session: %w", err)
		}
		// Lost a concurrent start; resume the winner.
		existing, err := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
		if err != nil {
			return nil, fmt.Errorf("load session after conflict: %w", err)
		}
		return s.resume(ctx, exam, existing)
	}

	if sess.TimeoutAt != nil {
		s.schedule(ctx, sess)
	}
	s.publish(ctx, model.EventSessionStarted, sess, nil)

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("exam_id", examID.String()).
		Int64("student_id", studentID).
		Msg("Exam session started")

	return s.view(ctx, exam, sess, paper)
}

func (s *ExamSessionService) resume(ctx context.Context, exam *model.Exam, sess *model.ExamSession) (*SessionView, error) {
	if sess.Status.IsFinal() {
		return nil, ErrSessionCompleted
	}
	if sess.TimedOut(s.now()) {
		if err := s.expire(ctx, sess); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return s.view(ctx, exam, sess, nil)
}

// GetSession returns the student's view of a session, expiring it first if
// its deadline has passed.
func (s *ExamSessionService) GetSession(ctx context.Context, sessionID uuid.UUID, studentID int64) (*SessionView, error) {
	sess, err := s.ownedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "load exam")
	}

	if sess.Status == model.SessionStatusInProgress && sess.TimedOut(s.now()) {
		if err := s.expire(ctx, sess); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, exam, sess, nil)
}

// SubmitAnswer records the student's answer to one question. Resubmitting
// overwrites. In Single mode only the current question may be answered and
// answering it moves the student on.
func (s *ExamSessionService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, studentID int64, req *model.SubmitAnswerRequest) (*SessionView, error) {
	sess, err := s.ownedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	if sess.Status == model.SessionStatusInProgress && sess.TimedOut(s.now()) {
		if err := s.expire(ctx, sess); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	if sess.Status != model.SessionStatusInProgress {
		return nil, ErrSessionNotInProgress
	}

	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "load exam")
	}
	paper, err := loadPaper(ctx, s.papers, s.questions, exam, s.log)
	if err != nil {
		return nil, err
	}

	pos := paper.Position(req.QuestionID)
	if pos < 0 {
		return nil, ErrQuestionNotInExam
	}
	if !paper.Questions[pos].HasOption(req.Answer) {
		return nil, ErrInvalidAnswer
	}
	single := exam.DisplayMode == model.DisplayModeSingle
	if single && pos != sess.CurrentQuestionIndex {
		return nil, ErrQuestionOutOfOrder
	}

	answer := &model.ExamAnswer{
		SessionID:  sess.ID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		// Finalised between the status check and the write.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotInProgress
		}
		return nil, fmt.Errorf("save answer: %w", err)
	}

	if single {
		next := pos + 1
		if last := len(paper.Questions) - 1; next > last {
			next = last
		}
		if next != sess.CurrentQuestionIndex {
			if err := s.sessions.AdvanceIndex(ctx, sess.ID, next); err != nil {
				return nil, fmt.Errorf("advance question index: %w", err)
			}
			sess.CurrentQuestionIndex = next
		}
	}

	qid := req.QuestionID
	s.publish(ctx, model.EventAnswerSaved, sess, &qid)

	return s.view(ctx, exam, sess, paper)
}

// Finish completes the session and returns its score. A session finished
// after its deadline is recorded as EXPIRED.
func (s *ExamSessionService) Finish(ctx context.Context, sessionID uuid.UUID, studentID int64) (*FinishResult, error) {
	sess, err := s.ownedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusInProgress {
		return nil, ErrSessionNotInProgress
	}

	status := model.SessionStatusCompleted
	if sess.TimedOut(s.now()) {
		status = model.SessionStatusExpired
	}

	result, err := s.finalize(ctx, sess, status)
	if err != nil {
		return nil, err
	}
	return &FinishResult{
		Session: sess,
		Result:  *result,
		Grade:   scoring.GradeFor(result.Score),
	}, nil
}

// ─── Timeout enforcement ────────────────────────────────────────────

// ExpireOverdue expires one session whose deadline came due. It reports
// whether the session was expired by this call and keeps the deadline index
// consistent for sessions that are gone, finished, or not yet due.
func (s *ExamSessionService) ExpireOverdue(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.cancelDeadline(ctx, sessionID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}

	if sess.Status != model.SessionStatusInProgress {
		s.cancelDeadline(ctx, sessionID)
		return false, nil
	}
	if !sess.TimedOut(s.now()) {
		if sess.TimeoutAt != nil {
			s.schedule(ctx, sess)
		} else {
			s.cancelDeadline(ctx, sessionID)
		}
		return false, nil
	}

	if _, err := s.finalize(ctx, sess, model.SessionStatusExpired); err != nil {
		if errors.Is(err, ErrSessionNotInProgress) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SweepOverdue expires up to limit overdue sessions found in the database,
// independent of the deadline index.
func (s *ExamSessionService) SweepOverdue(ctx context.Context, limit int) (int, error) {
	ids, err := s.sessions.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list overdue sessions: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for _, id := range ids {
		ok, err := s.ExpireOverdue(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

// RebuildDeadlines schedules every open deadline found in the database.
func (s *ExamSessionService) RebuildDeadlines(ctx context.Context) (int, error) {
	open, err := s.sessions.ListOpenDeadlines(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open deadlines: %w", err)
	}
	for _, d := range open {
		if err := s.deadlines.Schedule(ctx, d.SessionID, d.TimeoutAt); err != nil {
			return 0, fmt.Errorf("schedule session %s: %w", d.SessionID, err)
		}
	}
	return len(open), nil
}

// ─── Internals ──────────────────────────────────────────────────────

func (s *ExamSessionService) expire(ctx context.Context, sess *model.ExamSession) error {
	if _, err := s.finalize(ctx, sess, model.SessionStatusExpired); err != nil && !errors.Is(err, ErrSessionNotInProgress) {
		return err
	}
	return nil
}

// finalize scores sess and moves it into status. Only the caller that wins
// the conditional update publishes the transition; everyone else gets
// ErrSessionNotInProgress.
func (s *ExamSessionService) finalize(ctx context.Context, sess *model.ExamSession, status model.SessionStatus) (*model.ScoreResult, error) {
	items, err := s.answers.GradedItems(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load graded items: %w", err)
	}
	result := scoring.Evaluate(items)

	at := s.now()
	if status == model.SessionStatusExpired && sess.TimeoutAt != nil && sess.TimeoutAt.Before(at) {
		at = *sess.TimeoutAt
	}

	ok, err := s.sessions.Finalize(ctx, sess.ID, status, result.Score, at)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotInProgress
	}

	score := result.Score
	sess.Status = status
	sess.Score = &score
	sess.CompletedAt = &at

	s.cancelDeadline(ctx, sess.ID)

	evType := model.EventSessionCompleted
	if status == model.SessionStatusExpired {
		evType = model.EventSessionExpired
	}
	s.publish(ctx, evType, sess, nil)

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("status", string(status)).
		Int("score", score).
		Int("correct", result.CorrectAnswers).
		Int("total", result.TotalQuestions).
		Msg("Exam session finalised")

	return &result, nil
}

func (s *ExamSessionService) ownedSession(ctx context.Context, id uuid.UUID, studentID int64) (*model.ExamSession, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound, "load session")
	}
	if sess.StudentID != studentID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *ExamSessionService) view(ctx context.Context, exam *model.Exam, sess *model.ExamSession, paper *model.ExamPaper) (*SessionView, error) {
	if paper == nil {
		var err error
		if paper, err = loadPaper(ctx, s.papers, s.questions, exam, s.log); err != nil {
			return nil, err
		}
	}
	answers, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.ExamAnswer{}
	}

	var remaining *int64
	if sess.Status == model.SessionStatusInProgress {
		remaining = sess.RemainingSeconds(s.now())
	}

	return &SessionView{
		Session:       sess,
		TimeRemaining: remaining,
		Exam: SessionExam{
			ID:          exam.ID,
			Title:       exam.Title,
			Description: exam.Description,
			DisplayMode: exam.DisplayMode,
			TimeLimit:   exam.TimeLimit,
			Group:       exam.Group,
			CreatedBy:   exam.CreatedBy,
			Questions:   paper.Questions,
		},
		Answers: answers,
	}, nil
}

func (s *ExamSessionService) schedule(ctx context.Context, sess *model.ExamSession) {
	if err := s.deadlines.Schedule(ctx, sess.ID, *sess.TimeoutAt); err != nil {
		// The database sweep still catches it.
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to schedule session deadline")
	}
}

func (s *ExamSessionService) cancelDeadline(ctx context.Context, id uuid.UUID) {
	if err := s.deadlines.Cancel(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to cancel session deadline")
	}
}

func (s *ExamSessionService) publish(ctx context.Context, typ model.SessionEventType, sess *model.ExamSession, questionID *int64) {
	ev := model.SessionEvent{
		Type:       typ,
		ExamID:     sess.ExamID,
		SessionID:  sess.ID,
		StudentID:  sess.StudentID,
		Status:     sess.Status,
		Score:      sess.Score,
		QuestionID: questionID,
		At:         s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Str("event", string(typ)).Msg("Failed to publish session event")
	}
}
