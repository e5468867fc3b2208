package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcinucieklak/examhub/internal/model"
)

// testPool migrates EXAMHUB_TEST_DATABASE_URL from scratch and connects to
// it. Tests skip when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("EXAMHUB_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("EXAMHUB_TEST_DATABASE_URL not set")
	}

	m, err := migrate.New("file://../../migrations", url)
	if err != nil {
		t.Fatalf("init migrations: %v", err)
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate down: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	_, _ = m.Close()

	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

type seeded struct {
	examiner, student, group int64
	questions                []int64
}

func seed(t *testing.T, pool *pgxpool.Pool) seeded {
	t.Helper()
	ctx := context.Background()
	users := NewUserRepository(pool)

	examiner := &model.User{Type: model.UserTypeExaminer, Email: "anna.nowak@example.com", Name: "Anna", Surname: "Nowak"}
	student := &model.User{Type: model.UserTypeStudent, Email: "ola@example.com", Name: "Ola", Surname: "Lis"}
	for _, u := range []*model.User{examiner, student} {
		if err := users.Upsert(ctx, u); err != nil {
			t.Fatalf("upsert user: %v", err)
		}
	}

	s := seeded{examiner: examiner.ID, student: student.ID}
	if err := pool.QueryRow(ctx,
		`INSERT INTO groups (name, examiner_id) VALUES ('3A', $1) RETURNING id`, s.examiner,
	).Scan(&s.group); err != nil {
		t.Fatalf("insert group: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`, s.student, s.group); err != nil {
		t.Fatalf("insert membership: %v", err)
	}
	for _, q := range []struct {
		text    string
		options []string
		correct int
	}{
		{"2 + 2 = ?", []string{"3", "4"}, 1},
		{"H2O is?", []string{"Water", "Salt"}, 0},
	} {
		var id int64
		if err := pool.QueryRow(ctx,
			`INSERT INTO questions (text, options, correct_option, created_by_id) VALUES ($1, $2, $3, $4) RETURNING id`,
			q.text, q.options, q.correct, s.examiner,
		).Scan(&id); err != nil {
			t.Fatalf("insert question: %v", err)
		}
		s.questions = append(s.questions, id)
	}
	return s
}

func TestExamAndSessionLifecycle(t *testing.T) {
	pool := testPool(t)
	s := seed(t, pool)
	ctx := context.Background()

	exams := NewExamRepository(pool)
	questions := NewQuestionRepository(pool)
	groups := NewGroupRepository(pool)
	sessions := NewExamSessionRepository(pool)
	answers := NewExamAnswerRepository(pool)

	if ok, err := groups.IsOwnedBy(ctx, s.group, s.examiner); err != nil || !ok {
		t.Fatalf("IsOwnedBy = %v, %v", ok, err)
	}
	if n, err := questions.CountOwned(ctx, s.examiner, append(s.questions, 9999)); err != nil || n != 2 {
		t.Fatalf("CountOwned = %d, %v", n, err)
	}

	exam := &model.Exam{
		Title: "Mid-term", DisplayMode: model.DisplayModeAll, TimeLimit: 30,
		IsActive: true, CreatedByID: s.examiner, GroupID: s.group,
	}
	reversed := []int64{s.questions[1], s.questions[0]}
	if err := exams.Create(ctx, exam, reversed); err != nil {
		t.Fatalf("Create exam: %v", err)
	}

	got, err := exams.GetForStudent(ctx, exam.ID, s.student)
	if err != nil {
		t.Fatalf("GetForStudent: %v", err)
	}
	if got.QuestionsCount != 2 || got.Group.Name != "3A" || got.CreatedBy.Surname != "Nowak" {
		t.Errorf("exam = %+v", got)
	}
	if _, err := exams.GetForStudent(ctx, exam.ID, s.examiner); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("non-member: err = %v", err)
	}
	list, total, err := exams.ListByCreator(ctx, s.examiner, 10, 0)
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("ListByCreator = %d/%d, %v", len(list), total, err)
	}

	qs, err := questions.ListByExam(ctx, exam.ID)
	if err != nil || len(qs) != 2 || qs[0].ID != s.questions[1] || qs[0].Options[0] != "Water" {
		t.Fatalf("ListByExam = %+v, %v", qs, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	deadline := now.Add(30 * time.Minute)
	sess := &model.ExamSession{ExamID: exam.ID, StudentID: s.student, Status: model.SessionStatusInProgress, StartedAt: now, TimeoutAt: &deadline}
	if err := sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	dup := &model.ExamSession{ExamID: exam.ID, StudentID: s.student, Status: model.SessionStatusInProgress, StartedAt: now}
	if err := sessions.Create(ctx, dup); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("duplicate session: err = %v", err)
	}

	for _, a := range []model.ExamAnswer{
		{SessionID: sess.ID, QuestionID: s.questions[0], Answer: "3"},
		{SessionID: sess.ID, QuestionID: s.questions[0], Answer: "4"},
	} {
		a := a
		if err := answers.Upsert(ctx, &a); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	items, err := answers.GradedItems(ctx, sess.ID)
	if err != nil || len(items) != 2 {
		t.Fatalf("GradedItems = %+v, %v", items, err)
	}
	if items[0].Answer != nil || items[1].Answer == nil || *items[1].Answer != "4" {
		t.Errorf("graded items = %+v", items)
	}
	if counts, _ := answers.CountByExam(ctx, exam.ID); counts[sess.ID] != 1 {
		t.Errorf("answer counts = %v", counts)
	}

	if open, _ := sessions.ListOpenDeadlines(ctx); len(open) != 1 || !open[0].TimeoutAt.Equal(deadline) {
		t.Errorf("open deadlines = %+v", open)
	}
	if overdue, _ := sessions.ListOverdue(ctx, deadline.Add(time.Second), 10); len(overdue) != 1 {
		t.Errorf("overdue = %v", overdue)
	}

	ok, err := sessions.Finalize(ctx, sess.ID, model.SessionStatusCompleted, 50, now)
	if err != nil || !ok {
		t.Fatalf("Finalize = %v, %v", ok, err)
	}
	if ok, _ = sessions.Finalize(ctx, sess.ID, model.SessionStatusExpired, 0, now); ok {
		t.Error("second Finalize won")
	}

	late := model.ExamAnswer{SessionID: sess.ID, QuestionID: s.questions[1], Answer: "Water"}
	if err := answers.Upsert(ctx, &late); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("answer after finalise: err = %v, want pgx.ErrNoRows", err)
	}
	if counts, _ := answers.CountByExam(ctx, exam.ID); counts[sess.ID] != 1 {
		t.Errorf("answer counts after finalise = %v", counts)
	}

	rows, total, err := sessions.ListResults(ctx, exam.ID, []model.SessionStatus{model.SessionStatusCompleted}, 10, 0)
	if err != nil || total != 1 || rows[0].Score == nil || *rows[0].Score != 50 || rows[0].Student.Name != "Ola" {
		t.Fatalf("ListResults = %+v, %d, %v", rows, total, err)
	}
	if _, total, _ = sessions.ListResults(ctx, exam.ID, []model.SessionStatus{model.SessionStatusExpired}, 10, 0); total != 0 {
		t.Errorf("expired total = %d", total)
	}
	if byStatus, err := sessions.CountByStatus(ctx, exam.ID); err != nil || byStatus[model.SessionStatusCompleted] != 1 || len(byStatus) != 1 {
		t.Errorf("CountByStatus = %v, %v", byStatus, err)
	}

	if err := exams.Delete(ctx, exam.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sessions.GetByID(ctx, sess.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("session survived exam delete: %v", err)
	}
}
