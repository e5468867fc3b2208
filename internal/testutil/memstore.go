// Package testutil provides in-memory implementations of the service stores
// and side channels for unit tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marcinucieklak/examhub/internal/model"
)

type group struct {
	ref     model.GroupRef
	owner   int64
	members map[int64]bool
}

// DB is the shared backing state of the in-memory stores.
type DB struct {
	mu            sync.Mutex
	tick          time.Time
	users         map[int64]model.User
	groups        map[int64]*group
	questions     map[int64]*model.Question
	nextQuestion  int64
	exams         map[uuid.UUID]*model.Exam
	examQuestions map[uuid.UUID][]int64
	sessions      map[uuid.UUID]*model.ExamSession
	answers       map[uuid.UUID]map[int64]*model.ExamAnswer

	// OnSessionCreate, when set, runs before a session insert without the
	// store lock held. Returning an error aborts the insert with that error.
	OnSessionCreate func(s *model.ExamSession) error
	// OnAnswerUpsert, when set, runs before an answer write without the
	// store lock held.
	OnAnswerUpsert func(a *model.ExamAnswer)
}

// NewDB returns an empty store.
func NewDB() *DB {
	return &DB{
		tick:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:         map[int64]model.User{},
		groups:        map[int64]*group{},
		questions:     map[int64]*model.Question{},
		exams:         map[uuid.UUID]*model.Exam{},
		examQuestions: map[uuid.UUID][]int64{},
		sessions:      map[uuid.UUID]*model.ExamSession{},
		answers:       map[uuid.UUID]map[int64]*model.ExamAnswer{},
	}
}

// stamp returns a strictly increasing timestamp so insertion order is observable.
func (db *DB) stamp() time.Time {
	db.tick = db.tick.Add(time.Second)
	return db.tick
}

// ─── Seeding ────────────────────────────────────────────────────────

// AddUser stores a user.
func (db *DB) AddUser(u model.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

// AddGroup stores a group owned by owner with the given student members.
func (db *DB) AddGroup(id int64, name string, owner int64, members ...int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	g := &group{ref: model.GroupRef{ID: id, Name: name}, owner: owner, members: map[int64]bool{}}
	for _, m := range members {
		g.members[m] = true
	}
	db.groups[id] = g
}

// AddQuestion stores q, assigning an ID when it has none, and returns the ID.
func (db *DB) AddQuestion(q model.Question) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	if q.ID == 0 {
		db.nextQuestion++
		q.ID = db.nextQuestion
	} else if q.ID > db.nextQuestion {
		db.nextQuestion = q.ID
	}
	db.questions[q.ID] = &q
	return q.ID
}

// AddExam stores e with the given question order and returns its ID.
func (db *DB) AddExam(e model.Exam, questionIDs ...int64) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.insertExam(&e, questionIDs)
	return e.ID
}

// Session returns a copy of a stored session.
func (db *DB) Session(id uuid.UUID) (model.ExamSession, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[id]
	if !ok {
		return model.ExamSession{}, false
	}
	return *s, true
}

// SetSession overwrites a stored session.
func (db *DB) SetSession(s model.ExamSession) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sessions[s.ID] = &s
}

func (db *DB) insertExam(e *model.Exam, questionIDs []int64) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := db.stamp()
	e.CreatedAt, e.UpdatedAt = now, now
	stored := *e
	db.exams[e.ID] = &stored
	db.examQuestions[e.ID] = append([]int64(nil), questionIDs...)
}

func (db *DB) decorate(e model.Exam) *model.Exam {
	e.QuestionsCount = len(db.examQuestions[e.ID])
	if g, ok := db.groups[e.GroupID]; ok {
		ref := g.ref
		e.Group = &ref
	}
	if u, ok := db.users[e.CreatedByID]; ok {
		e.CreatedBy = &model.UserSummary{ID: u.ID, Name: u.Name, Surname: u.Surname}
	}
	return &e
}

func (db *DB) isMember(groupID, studentID int64) bool {
	g, ok := db.groups[groupID]
	return ok && g.members[studentID]
}

// ─── Exams ──────────────────────────────────────────────────────────

// Exams implements service.ExamStore.
type Exams struct{ db *DB }

// Exams returns the exam store view.
func (db *DB) Exams() *Exams { return &Exams{db} }

func (s *Exams) Create(_ context.Context, exam *model.Exam, questionIDs []int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.insertExam(exam, questionIDs)
	return nil
}

func (s *Exams) Update(_ context.Context, exam *model.Exam, questionIDs []int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	old, ok := s.db.exams[exam.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored := *exam
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = s.db.stamp()
	stored.Group, stored.CreatedBy = nil, nil
	s.db.exams[exam.ID] = &stored
	s.db.examQuestions[exam.ID] = append([]int64(nil), questionIDs...)
	return nil
}

func (s *Exams) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for sid, sess := range s.db.sessions {
		if sess.ExamID == id {
			delete(s.db.answers, sid)
			delete(s.db.sessions, sid)
		}
	}
	delete(s.db.examQuestions, id)
	delete(s.db.exams, id)
	return nil
}

func (s *Exams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s.db.decorate(*e), nil
}

func (s *Exams) ListByCreator(_ context.Context, creatorID int64, limit, offset int) ([]model.Exam, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.Exam
	for _, e := range s.db.exams {
		if e.CreatedByID == creatorID {
			all = append(all, *s.db.decorate(*e))
		}
	}
	sortNewestFirst(all)
	return page(all, limit, offset), len(all), nil
}

func (s *Exams) ListForStudent(_ context.Context, studentID int64) ([]model.Exam, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Exam
	for _, e := range s.db.exams {
		if s.db.isMember(e.GroupID, studentID) {
			out = append(out, *s.db.decorate(*e))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Exams) GetForStudent(_ context.Context, id uuid.UUID, studentID int64) (*model.Exam, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.exams[id]
	if !ok || !s.db.isMember(e.GroupID, studentID) {
		return nil, pgx.ErrNoRows
	}
	return s.db.decorate(*e), nil
}

func sortNewestFirst(exams []model.Exam) {
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.After(exams[j].CreatedAt) })
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// ─── Questions, groups, users ───────────────────────────────────────

// Questions implements service.QuestionStore.
type Questions struct{ db *DB }

// Questions returns the question store view.
func (db *DB) Questions() *Questions { return &Questions{db} }

func (s *Questions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ids := s.db.examQuestions[examID]
	out := make([]model.Question, 0, len(ids))
	for i, id := range ids {
		if q, ok := s.db.questions[id]; ok {
			cp := *q
			cp.Position = i
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *Questions) CountOwned(_ context.Context, creatorID int64, ids []int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, id := range ids {
		if q, ok := s.db.questions[id]; ok && q.CreatedByID == creatorID {
			n++
		}
	}
	return n, nil
}

// Groups implements service.GroupStore.
type Groups struct{ db *DB }

// Groups returns the group store view.
func (db *DB) Groups() *Groups { return &Groups{db} }

func (s *Groups) IsOwnedBy(_ context.Context, groupID, examinerID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.groups[groupID]
	return ok && g.owner == examinerID, nil
}

// Users implements service.UserStore.
type Users struct{ db *DB }

// Users returns the user store view.
func (db *DB) Users() *Users { return &Users{db} }

func (s *Users) GetSummary(_ context.Context, id int64) (*model.UserSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.UserSummary{ID: u.ID, Name: u.Name, Surname: u.Surname}, nil
}
