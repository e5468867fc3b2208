package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/model"
)

func bindBody(t *testing.T, body string, dst interface{}) map[string]string {
	t.Helper()
	Setup()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBindValidExam(t *testing.T) {
	var req model.CreateExamRequest
	fields := bindBody(t, `{"title":"Algebra","question_display_mode":"All","time_limit":0,"group_id":3,"question_ids":[1,2]}`, &req)
	if fields != nil {
		t.Fatalf("unexpected errors: %v", fields)
	}
	if req.TimeLimit == nil || *req.TimeLimit != 0 {
		t.Errorf("TimeLimit = %v, want 0", req.TimeLimit)
	}
}

func TestBindReportsJSONFieldNames(t *testing.T) {
	var req model.CreateExamRequest
	fields := bindBody(t, `{"title":"   ","question_display_mode":"Paged","time_limit":500,"group_id":3,"question_ids":[]}`, &req)

	for _, name := range []string{"title", "question_display_mode", "time_limit"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("missing error for %s in %v", name, fields)
		}
	}
	if msg := fields["title"]; !strings.Contains(msg, "must not be blank") {
		t.Errorf("title message = %q", msg)
	}
}

func TestBindMissingTimeLimit(t *testing.T) {
	var req model.CreateExamRequest
	fields := bindBody(t, `{"title":"x","question_display_mode":"Single","group_id":1,"question_ids":[1]}`, &req)
	if _, ok := fields["time_limit"]; !ok {
		t.Errorf("expected time_limit error, got %v", fields)
	}
}

func TestBindMalformedJSON(t *testing.T) {
	var req model.SubmitAnswerRequest
	fields := bindBody(t, `{"question_id":`, &req)
	if _, ok := fields["detail"]; !ok {
		t.Errorf("expected detail error, got %v", fields)
	}
}
