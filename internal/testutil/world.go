package testutil

import (
	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
)

// Well-known IDs seeded by NewWorld.
const (
	ExaminerID      int64 = 1
	OtherExaminerID int64 = 2
	StudentID       int64 = 10
	OutsiderID      int64 = 11
	GroupID         int64 = 100
	OtherGroupID    int64 = 200
)

// World is a seeded in-memory backend: one examiner owning a group with one
// student, three questions, and nothing else.
type World struct {
	DB          *DB
	Papers      *Papers
	Deadlines   *Deadlines
	Events      *Events
	QuestionIDs []int64
}

// NewWorld seeds the standard fixture.
func NewWorld() *World {
	db := NewDB()
	db.AddUser(model.User{ID: ExaminerID, Type: model.UserTypeExaminer, Email: "anna.nowak@example.com", Name: "Anna", Surname: "Nowak"})
	db.AddUser(model.User{ID: OtherExaminerID, Type: model.UserTypeExaminer, Email: "other@example.com", Name: "Jan", Surname: "Kowalski"})
	db.AddUser(model.User{ID: StudentID, Type: model.UserTypeStudent, Email: "ola@example.com", Name: "Ola", Surname: "Wiśniewska"})
	db.AddUser(model.User{ID: OutsiderID, Type: model.UserTypeStudent, Email: "piotr@example.com", Name: "Piotr", Surname: "Zieliński"})
	db.AddGroup(GroupID, "3A", ExaminerID, StudentID)
	db.AddGroup(OtherGroupID, "3B", OtherExaminerID, OutsiderID)

	ids := []int64{
		db.AddQuestion(model.Question{Text: "2 + 2 = ?", Options: []string{"3", "4", "5"}, CorrectOption: 1, CreatedByID: ExaminerID}),
		db.AddQuestion(model.Question{Text: "Capital of Poland?", Options: []string{"Krakow", "Warsaw"}, CorrectOption: 1, CreatedByID: ExaminerID}),
		db.AddQuestion(model.Question{Text: "H2O is?", Options: []string{"Water", "Salt"}, CorrectOption: 0, CreatedByID: ExaminerID}),
	}

	return &World{
		DB:          db,
		Papers:      NewPapers(),
		Deadlines:   NewDeadlines(),
		Events:      &Events{},
		QuestionIDs: ids,
	}
}

// AddExam stores an active exam owned by ExaminerID for GroupID with all
// world questions, after applying mutate.
func (w *World) AddExam(mutate func(e *model.Exam)) uuid.UUID {
	return w.AddExamWith(mutate, w.QuestionIDs...)
}

// AddExamWith is AddExam with an explicit question order.
func (w *World) AddExamWith(mutate func(e *model.Exam), questionIDs ...int64) uuid.UUID {
	e := model.Exam{
		Title:       "Mid-term",
		DisplayMode: model.DisplayModeAll,
		TimeLimit:   30,
		IsActive:    true,
		CreatedByID: ExaminerID,
		GroupID:     GroupID,
	}
	if mutate != nil {
		mutate(&e)
	}
	return w.DB.AddExam(e, questionIDs...)
}
