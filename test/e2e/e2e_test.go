//go:build e2e

// Package e2e drives a running examhub server end to end. It expects the
// server at EXAMHUB_E2E_BASE_URL sharing DATABASE_URL and JWT_SECRET.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/seed"
	"github.com/marcinucieklak/examhub/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080"
	fixturesPath   = "../../internal/seed/testdata/fixtures.yaml"
	examinerEmail  = "jan.kowalski@examhub.local"
	studentEmail   = "anna.nowak@examhub.local"
)

var (
	baseURL       string
	examinerToken string
	studentToken  string
	groupID       int64
	// correct maps question id to its correct option text.
	correct = map[int64]string{}
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("EXAMHUB_E2E_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	if err := setup(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func setup() error {
	ctx := context.Background()
	cfg := config.Load()
	if cfg.DatabaseURL == "" || cfg.JWTSecret == "" {
		return fmt.Errorf("DATABASE_URL and JWT_SECRET are required")
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	// Order matters because of foreign keys.
	for _, table := range []string{"exam_answers", "exam_sessions", "exam_questions", "exams"} {
		if _, err := conn.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("cleanup %s: %w", table, err)
		}
	}

	fx, err := seed.LoadFile(fixturesPath)
	if err != nil {
		return err
	}
	auth := service.NewAuthService(cfg)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := seed.Apply(ctx, tx, fx, auth.HashPassword); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("seed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	var examinerID, studentID int64
	if err := conn.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, examinerEmail).Scan(&examinerID); err != nil {
		return fmt.Errorf("examiner: %w", err)
	}
	if err := conn.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, studentEmail).Scan(&studentID); err != nil {
		return fmt.Errorf("student: %w", err)
	}
	if err := conn.QueryRow(ctx, `SELECT id FROM groups WHERE examiner_id = $1 ORDER BY id LIMIT 1`, examinerID).Scan(&groupID); err != nil {
		return fmt.Errorf("group: %w", err)
	}

	rows, err := conn.Query(ctx,
		`SELECT id, options->>correct_option FROM questions WHERE created_by_id = $1`, examinerID)
	if err != nil {
		return fmt.Errorf("questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var answer string
		if err := rows.Scan(&id, &answer); err != nil {
			return err
		}
		correct[id] = answer
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if examinerToken, err = auth.GenerateToken(examinerID, model.UserTypeExaminer, examinerEmail); err != nil {
		return err
	}
	studentToken, err = auth.GenerateToken(studentID, model.UserTypeStudent, studentEmail)
	return err
}

func TestE2EFlow(t *testing.T) {
	var examID, sessionID string

	t.Run("CreateExam", func(t *testing.T) {
		ids := make([]int64, 0, len(correct))
		for id := range correct {
			ids = append(ids, id)
		}
		limit := 30
		start := time.Now().Add(-time.Minute)
		req := model.CreateExamRequest{
			Title:       "E2E Test Exam",
			DisplayMode: model.DisplayModeSingle,
			TimeLimit:   &limit,
			StartDate:   &start,
			GroupID:     groupID,
			QuestionIDs: ids,
		}
		var body struct {
			Data struct {
				Exam model.Exam `json:"exam"`
			} `json:"data"`
		}
		mustDo(t, http.MethodPost, "/api/v1/examiner/exams", req, examinerToken, http.StatusCreated, &body)
		examID = body.Data.Exam.ID.String()
		if body.Data.Exam.QuestionsCount != len(ids) {
			t.Errorf("questions_count = %d, want %d", body.Data.Exam.QuestionsCount, len(ids))
		}
	})

	t.Run("Availability", func(t *testing.T) {
		var body struct {
			Data model.ExamAvailability `json:"data"`
		}
		mustDo(t, http.MethodGet, "/api/v1/student/exams/"+examID+"/availability", nil, studentToken, http.StatusOK, &body)
		if !body.Data.CanStart {
			t.Fatalf("exam not startable: %s", body.Data.Reason)
		}
	})

	var questions []model.QuestionForStudent
	t.Run("StartSession", func(t *testing.T) {
		var body struct {
			Data service.SessionView `json:"data"`
		}
		mustDo(t, http.MethodPost, "/api/v1/student/exams/"+examID+"/sessions", nil, studentToken, http.StatusOK, &body)
		sessionID = body.Data.Session.ID.String()
		questions = body.Data.Exam.Questions
		if body.Data.Session.Status != model.SessionStatusInProgress {
			t.Errorf("status = %s", body.Data.Session.Status)
		}
	})

	t.Run("AnswerAll", func(t *testing.T) {
		for _, q := range questions {
			req := model.SubmitAnswerRequest{QuestionID: q.ID, Answer: correct[q.ID]}
			mustDo(t, http.MethodPost, "/api/v1/student/sessions/"+sessionID+"/answers", req, studentToken, http.StatusOK, nil)
		}
	})

	t.Run("Finish", func(t *testing.T) {
		var body struct {
			Data service.FinishResult `json:"data"`
		}
		mustDo(t, http.MethodPost, "/api/v1/student/sessions/"+sessionID+"/finish", nil, studentToken, http.StatusOK, &body)
		if body.Data.Result.Score != 100 {
			t.Errorf("score = %d, want 100", body.Data.Result.Score)
		}
		if body.Data.Grade.Value != "5.0" {
			t.Errorf("grade = %s, want 5.0", body.Data.Grade.Value)
		}
	})

	t.Run("FinishTwice", func(t *testing.T) {
		mustDo(t, http.MethodPost, "/api/v1/student/sessions/"+sessionID+"/finish", nil, studentToken, http.StatusConflict, nil)
	})

	t.Run("Results", func(t *testing.T) {
		var body struct {
			Data service.ExamResults `json:"data"`
		}
		mustDo(t, http.MethodGet, "/api/v1/examiner/exams/"+examID+"/results?status=COMPLETED", nil, examinerToken, http.StatusOK, &body)
		if len(body.Data.Sessions) != 1 {
			t.Fatalf("sessions = %d, want 1", len(body.Data.Sessions))
		}
	})

	t.Run("DeleteExam", func(t *testing.T) {
		mustDo(t, http.MethodDelete, "/api/v1/examiner/exams/"+examID, nil, examinerToken, http.StatusOK, nil)
		mustDo(t, http.MethodGet, "/api/v1/examiner/exams/"+examID, nil, examinerToken, http.StatusNotFound, nil)
	})
}

// ─── Helpers ──────────────────────────────────────────────────────────

func mustDo(t *testing.T, method, path string, body any, token string, want int, out any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, want, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
}
