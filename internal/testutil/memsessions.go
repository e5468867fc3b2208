package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marcinucieklak/examhub/internal/model"
)

// Sessions implements service.SessionStore.
type Sessions struct{ db *DB }

// Sessions returns the session store view.
func (db *DB) Sessions() *Sessions { return &Sessions{db} }

func (s *Sessions) Create(_ context.Context, sess *model.ExamSession) error {
	if hook := s.db.OnSessionCreate; hook != nil {
		if err := hook(sess); err != nil {
			return err
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.sessions {
		if existing.ExamID == sess.ExamID && existing.StudentID == sess.StudentID {
			return pgx.ErrNoRows
		}
	}
	sess.ID = uuid.New()
	now := s.db.stamp()
	sess.CreatedAt, sess.UpdatedAt = now, now
	stored := *sess
	s.db.sessions[sess.ID] = &stored
	return nil
}

func (s *Sessions) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *sess
	return &cp, nil
}

func (s *Sessions) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int64) (*model.ExamSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, sess := range s.db.sessions {
		if sess.ExamID == examID && sess.StudentID == studentID {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *Sessions) ListByStudent(_ context.Context, studentID int64) ([]model.ExamSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.ExamSession
	for _, sess := range s.db.sessions {
		if sess.StudentID == studentID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *Sessions) CountByExam(_ context.Context, examID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, sess := range s.db.sessions {
		if sess.ExamID == examID {
			n++
		}
	}
	return n, nil
}

func (s *Sessions) CountByStatus(_ context.Context, examID uuid.UUID) (map[model.SessionStatus]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	counts := map[model.SessionStatus]int{}
	for _, sess := range s.db.sessions {
		if sess.ExamID == examID {
			counts[sess.Status]++
		}
	}
	return counts, nil
}

func (s *Sessions) AdvanceIndex(_ context.Context, id uuid.UUID, index int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if index > sess.CurrentQuestionIndex {
		sess.CurrentQuestionIndex = index
	}
	return nil
}

func (s *Sessions) Finalize(_ context.Context, id uuid.UUID, status model.SessionStatus, score int, at time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok || sess.Status != model.SessionStatusInProgress {
		return false, nil
	}
	sess.Status = status
	sess.Score = &score
	t := at
	sess.CompletedAt = &t
	sess.UpdatedAt = s.db.stamp()
	return true, nil
}

func (s *Sessions) ListResults(_ context.Context, examID uuid.UUID, statuses []model.SessionStatus, limit, offset int) ([]model.ResultRow, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := map[model.SessionStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var rows []model.ResultRow
	for _, sess := range s.db.sessions {
		if sess.ExamID != examID || (len(want) > 0 && !want[sess.Status]) {
			continue
		}
		u := s.db.users[sess.StudentID]
		rows = append(rows, model.ResultRow{
			SessionID:   sess.ID,
			Student:     model.UserSummary{ID: u.ID, Name: u.Name, Surname: u.Surname},
			Status:      sess.Status,
			Score:       sess.Score,
			StartedAt:   sess.StartedAt,
			CompletedAt: sess.CompletedAt,
		})
	}
	// Completion time, unfinished last, then id.
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].CompletedAt, rows[j].CompletedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return rows[i].SessionID.String() < rows[j].SessionID.String()
	})
	return page(rows, limit, offset), len(rows), nil
}

func (s *Sessions) ListOpenDeadlines(_ context.Context) ([]model.SessionDeadline, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.SessionDeadline
	for _, sess := range s.db.sessions {
		if sess.Status == model.SessionStatusInProgress && sess.TimeoutAt != nil {
			out = append(out, model.SessionDeadline{SessionID: sess.ID, ExamID: sess.ExamID, TimeoutAt: *sess.TimeoutAt})
		}
	}
	return out, nil
}

func (s *Sessions) ListOverdue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []uuid.UUID
	for _, sess := range s.db.sessions {
		if sess.Status == model.SessionStatusInProgress && sess.TimeoutAt != nil && sess.TimeoutAt.Before(now) {
			out = append(out, sess.ID)
		}
	}
	return page(out, limit, 0), nil
}

// ─── Answers ────────────────────────────────────────────────────────

// Answers implements service.AnswerStore.
type Answers struct{ db *DB }

// Answers returns the answer store view.
func (db *DB) Answers() *Answers { return &Answers{db} }

func (s *Answers) Upsert(_ context.Context, a *model.ExamAnswer) error {
	if hook := s.db.OnAnswerUpsert; hook != nil {
		hook(a)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sess, ok := s.db.sessions[a.SessionID]; !ok || sess.Status != model.SessionStatusInProgress {
		return pgx.ErrNoRows
	}
	bySession, ok := s.db.answers[a.SessionID]
	if !ok {
		bySession = map[int64]*model.ExamAnswer{}
		s.db.answers[a.SessionID] = bySession
	}
	now := s.db.stamp()
	if prev, ok := bySession[a.QuestionID]; ok {
		a.CreatedAt = prev.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	stored := *a
	bySession[a.QuestionID] = &stored
	return nil
}

// ordered returns the exam question IDs of a session in exam order.
func (s *Answers) ordered(sessionID uuid.UUID) []int64 {
	sess, ok := s.db.sessions[sessionID]
	if !ok {
		return nil
	}
	return s.db.examQuestions[sess.ExamID]
}

func (s *Answers) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.ExamAnswer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.ExamAnswer
	for _, qid := range s.ordered(sessionID) {
		if a, ok := s.db.answers[sessionID][qid]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Answers) GradedItems(_ context.Context, sessionID uuid.UUID) ([]model.GradedItem, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.GradedItem
	for _, qid := range s.ordered(sessionID) {
		q, ok := s.db.questions[qid]
		if !ok {
			continue
		}
		item := model.GradedItem{QuestionID: q.ID, Options: q.Options, CorrectOption: q.CorrectOption}
		if a, ok := s.db.answers[sessionID][qid]; ok {
			ans := a.Answer
			item.Answer = &ans
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Answers) CountByExam(_ context.Context, examID uuid.UUID) (map[uuid.UUID]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := map[uuid.UUID]int{}
	for sid, sess := range s.db.sessions {
		if sess.ExamID == examID && len(s.db.answers[sid]) > 0 {
			out[sid] = len(s.db.answers[sid])
		}
	}
	return out, nil
}
