package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/testutil"
	"github.com/rs/zerolog"
)

const secondStudentID int64 = 12

func newResultService(w *testutil.World) *ResultService {
	return NewResultService(w.DB.Exams(), w.DB.Questions(), w.DB.Sessions(), w.DB.Answers(), w.DB.Users(), zerolog.Nop())
}

// seedResults starts one finished and one running session on a fresh exam.
func seedResults(t *testing.T, f *sessionFixture) (examID, finished, running uuid.UUID) {
	t.Helper()
	f.w.DB.AddUser(model.User{ID: secondStudentID, Type: model.UserTypeStudent, Name: "Ewa", Surname: "Mazur"})
	f.w.DB.AddGroup(testutil.GroupID, "3A", testutil.ExaminerID, testutil.StudentID, secondStudentID)

	examID = f.w.AddExam(nil)
	ctx := context.Background()

	finished = f.start(t, examID).Session.ID
	for _, qa := range []struct {
		qid int64
		ans string
	}{{f.w.QuestionIDs[0], "4"}, {f.w.QuestionIDs[1], "Warsaw"}, {f.w.QuestionIDs[2], "Water"}} {
		if _, err := f.answer(finished, qa.qid, qa.ans); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	if _, err := f.svc.Finish(ctx, finished, testutil.StudentID); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	f.advance(time.Minute)
	view, err := f.svc.Start(ctx, examID, secondStudentID)
	if err != nil {
		t.Fatalf("Start second: %v", err)
	}
	running = view.Session.ID
	if _, err := f.svc.SubmitAnswer(ctx, running, secondStudentID, &model.SubmitAnswerRequest{QuestionID: f.w.QuestionIDs[0], Answer: "3"}); err != nil {
		t.Fatalf("answer second: %v", err)
	}
	return examID, finished, running
}

func TestResultsDefaultToFinishedSessions(t *testing.T) {
	f := newSessionFixture(t)
	examID, finished, _ := seedResults(t, f)
	svc := newResultService(f.w)

	res, pg, err := svc.Results(context.Background(), examID, testutil.ExaminerID, nil, 1, 20)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Sessions) != 1 || pg.TotalItems != 1 {
		t.Fatalf("sessions = %d total = %d, want 1", len(res.Sessions), pg.TotalItems)
	}
	row := res.Sessions[0]
	if row.SessionID != finished || row.Student.Name != "Ola" {
		t.Errorf("row = %+v", row)
	}
	if row.Score == nil || *row.Score != 100 || row.Grade == nil || row.Grade.Value != "5.0" {
		t.Errorf("score = %v grade = %+v", row.Score, row.Grade)
	}

	all, _, err := svc.Results(context.Background(), examID, testutil.ExaminerID,
		[]model.SessionStatus{model.SessionStatusInProgress}, 1, 20)
	if err != nil {
		t.Fatalf("Results in progress: %v", err)
	}
	if len(all.Sessions) != 1 || all.Sessions[0].Grade != nil {
		t.Errorf("in-progress rows = %+v", all.Sessions)
	}
}

func TestResultsOrderedByCompletion(t *testing.T) {
	f := newSessionFixture(t)
	f.w.DB.AddUser(model.User{ID: secondStudentID, Type: model.UserTypeStudent, Name: "Ewa", Surname: "Mazur"})
	f.w.DB.AddGroup(testutil.GroupID, "3A", testutil.ExaminerID, testutil.StudentID, secondStudentID)
	examID := f.w.AddExam(nil)
	ctx := context.Background()

	early := f.start(t, examID).Session.ID
	f.advance(time.Minute)
	late, err := f.svc.Start(ctx, examID, secondStudentID)
	if err != nil {
		t.Fatalf("Start second: %v", err)
	}

	// The later starter finishes first.
	f.advance(time.Minute)
	if _, err := f.svc.Finish(ctx, late.Session.ID, secondStudentID); err != nil {
		t.Fatalf("Finish second: %v", err)
	}
	f.advance(time.Minute)
	if _, err := f.svc.Finish(ctx, early, testutil.StudentID); err != nil {
		t.Fatalf("Finish first: %v", err)
	}

	res, _, err := newResultService(f.w).Results(ctx, examID, testutil.ExaminerID, nil, 1, 20)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(res.Sessions))
	}
	if res.Sessions[0].SessionID != late.Session.ID || res.Sessions[1].SessionID != early {
		t.Errorf("order = [%s %s], want completion order [%s %s]",
			res.Sessions[0].SessionID, res.Sessions[1].SessionID, late.Session.ID, early)
	}
}

func TestResultsRequireAuthor(t *testing.T) {
	f := newSessionFixture(t)
	examID, finished, _ := seedResults(t, f)
	svc := newResultService(f.w)
	ctx := context.Background()

	if _, _, err := svc.Results(ctx, examID, testutil.OtherExaminerID, nil, 1, 20); !errors.Is(err, ErrNotExamAuthor) {
		t.Errorf("Results: err = %v", err)
	}
	if _, err := svc.SessionDetail(ctx, examID, finished, testutil.OtherExaminerID); !errors.Is(err, ErrNotExamAuthor) {
		t.Errorf("SessionDetail: err = %v", err)
	}
	if _, err := svc.Monitor(ctx, examID, testutil.OtherExaminerID); !errors.Is(err, ErrNotExamAuthor) {
		t.Errorf("Monitor: err = %v", err)
	}
}

func TestSessionDetail(t *testing.T) {
	f := newSessionFixture(t)
	examID, finished, running := seedResults(t, f)
	svc := newResultService(f.w)
	ctx := context.Background()

	d, err := svc.SessionDetail(ctx, examID, finished, testutil.ExaminerID)
	if err != nil {
		t.Fatalf("SessionDetail: %v", err)
	}
	if d.Student.Surname != "Wiśniewska" || len(d.Answers) != 3 {
		t.Errorf("student = %+v answers = %d", d.Student, len(d.Answers))
	}
	if d.Result.Score != 100 || d.Grade == nil || d.Grade.LabelID != "grade.very_good" {
		t.Errorf("result = %+v grade = %+v", d.Result, d.Grade)
	}
	if d.Exam.Questions[0].CorrectOption != 1 {
		t.Errorf("examiner view lacks the answer key: %+v", d.Exam.Questions[0])
	}

	d, err = svc.SessionDetail(ctx, examID, running, testutil.ExaminerID)
	if err != nil {
		t.Fatalf("SessionDetail running: %v", err)
	}
	if d.Grade != nil || d.Result.CorrectAnswers != 0 || d.Result.TotalQuestions != 3 {
		t.Errorf("running detail = %+v grade = %+v", d.Result, d.Grade)
	}

	other := f.w.AddExam(nil)
	if _, err := svc.SessionDetail(ctx, other, finished, testutil.ExaminerID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session of another exam: err = %v", err)
	}
	if _, err := svc.SessionDetail(ctx, examID, uuid.New(), testutil.ExaminerID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session: err = %v", err)
	}
}

func TestMonitorSnapshot(t *testing.T) {
	f := newSessionFixture(t)
	examID, finished, running := seedResults(t, f)
	svc := newResultService(f.w)

	snap, err := svc.Monitor(context.Background(), examID, testutil.ExaminerID)
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	want := model.MonitorStats{Joined: 2, InProgress: 1, Completed: 1}
	if snap.Stats != want {
		t.Errorf("stats = %+v, want %+v", snap.Stats, want)
	}
	answered := map[uuid.UUID]int{}
	for _, row := range snap.Sessions {
		answered[row.SessionID] = row.AnsweredCount
	}
	if answered[finished] != 3 || answered[running] != 1 {
		t.Errorf("answered counts = %v", answered)
	}
	if snap.Truncated {
		t.Error("full snapshot marked truncated")
	}
}

func TestMonitorTotalsCoverCappedSessions(t *testing.T) {
	f := newSessionFixture(t)
	examID, _, _ := seedResults(t, f)
	svc := newResultService(f.w)
	svc.monitorLimit = 1

	snap, err := svc.Monitor(context.Background(), examID, testutil.ExaminerID)
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if len(snap.Sessions) != 1 || !snap.Truncated {
		t.Fatalf("sessions = %d truncated = %v, want 1 and true", len(snap.Sessions), snap.Truncated)
	}
	want := model.MonitorStats{Joined: 2, InProgress: 1, Completed: 1}
	if snap.Stats != want {
		t.Errorf("stats = %+v, want %+v", snap.Stats, want)
	}
}
