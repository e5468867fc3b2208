package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/marcinucieklak/examhub/internal/testutil"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fixture wires real services onto the in-memory world.
type fixture struct {
	w        *testutil.World
	auth     *service.AuthService
	sessions *service.ExamSessionService
	results  *service.ResultService
}

func newFixture() *fixture {
	w := testutil.NewWorld()
	return &fixture{
		w: w,
		auth: service.NewAuthService(&config.Config{
			JWTSecret: "test-secret",
			JWTIssuer: "examhub",
			JWTExpiry: time.Hour,
		}),
		sessions: service.NewExamSessionService(service.SessionDeps{
			Exams:     w.DB.Exams(),
			Questions: w.DB.Questions(),
			Sessions:  w.DB.Sessions(),
			Answers:   w.DB.Answers(),
			Papers:    w.Papers,
			Deadlines: w.Deadlines,
			Events:    w.Events,
		}, zerolog.Nop()),
		results: service.NewResultService(
			w.DB.Exams(), w.DB.Questions(), w.DB.Sessions(), w.DB.Answers(), w.DB.Users(), zerolog.Nop(),
		),
	}
}

func (f *fixture) token(t *testing.T, id int64, typ model.UserType) string {
	t.Helper()
	tok, err := f.auth.GenerateToken(id, typ, "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (f *fixture) startSession(t *testing.T) *service.SessionView {
	t.Helper()
	examID := f.w.AddExam(nil)
	view, err := f.sessions.Start(context.Background(), examID, testutil.StudentID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return view
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
		{service.ErrNotExamAuthor, http.StatusForbidden, response.ErrNotExamAuthor},
		{service.ErrExamHasSessions, http.StatusConflict, response.ErrExamHasSessions},
		{service.ErrSessionExpired, http.StatusGone, response.ErrSessionExpired},
		{service.ErrQuestionOutOfOrder, http.StatusConflict, response.ErrQuestionOutOfOrder},
		{fmt.Errorf("load exam: %w", service.ErrExamNotFound), http.StatusNotFound, response.ErrExamNotFound},
		{errors.New("connection refused"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		status, code := mapServiceError(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("mapServiceError(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestEveryServiceSentinelIsMapped(t *testing.T) {
	for _, m := range serviceErrors {
		found := false
		for _, code := range response.Codes {
			if code == m.code {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%v maps to unlisted code %s", m.err, m.code)
		}
	}
}

func TestParseStatuses(t *testing.T) {
	got, ok := parseStatuses([]string{"completed, expired", "IN_PROGRESS", ""})
	if !ok || len(got) != 3 {
		t.Fatalf("parseStatuses = %v, %v", got, ok)
	}
	if got[0] != model.SessionStatusCompleted || got[2] != model.SessionStatusInProgress {
		t.Errorf("statuses = %v", got)
	}

	if got, ok := parseStatuses(nil); !ok || got != nil {
		t.Errorf("empty = %v, %v", got, ok)
	}
	if _, ok := parseStatuses([]string{"ABANDONED"}); ok {
		t.Error("unknown status accepted")
	}
}
