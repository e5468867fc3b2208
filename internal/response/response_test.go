package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/i18n"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), i18n.Middleware())
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestFailLocalizesMessage(t *testing.T) {
	r := newEngine()
	r.GET("/", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrExamNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "pl")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body.Error == nil || body.Error.Code != ErrExamNotFound {
		t.Fatalf("error = %+v", body.Error)
	}
	if body.Error.Message != "Nie znaleziono egzaminu." {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID == "" || body.Metadata.Timestamp == "" {
		t.Errorf("metadata = %+v", body.Metadata)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newEngine()
	r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID header = %q", got)
	}
	if body := decode(t, w); body.Metadata.RequestID != "req-42" {
		t.Errorf("metadata request id = %q", body.Metadata.RequestID)
	}
}

func TestOversizedRequestIDIsReplaced(t *testing.T) {
	r := newEngine()
	r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated uuid, got %q", got)
	}
}

func TestFailWithFields(t *testing.T) {
	r := newEngine()
	r.POST("/", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"title": "title is required"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	body := decode(t, w)
	if body.Error.Fields["title"] != "title is required" {
		t.Errorf("fields = %v", body.Error.Fields)
	}
}

func TestEveryCodeIsTranslated(t *testing.T) {
	for _, lang := range []string{"en", "pl"} {
		for _, code := range Codes {
			if !i18n.Has(lang, string(code)) {
				t.Errorf("%s: no translation for %s", lang, code)
			}
		}
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	if p.TotalPages != 3 || p.Page != 2 || p.TotalItems != 21 {
		t.Errorf("NewPagination = %+v", p)
	}
	if NewPagination(1, 0, 5).TotalPages != 0 {
		t.Error("zero per_page should give zero pages")
	}
}
