package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marcinucieklak/examhub/internal/i18n"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/testutil"
	"github.com/rs/zerolog"
)

// ─── WebSocket session stream ───────────────────────────────────────

func newWSServer(t *testing.T, f *fixture, tick time.Duration) *httptest.Server {
	t.Helper()
	h := NewWSHandler(f.sessions, zerolog.Nop(), nil)
	h.tick = tick

	r := gin.New()
	r.Use(response.RequestIDMiddleware(), i18n.Middleware())
	r.GET("/ws/v1/student/sessions/:session_id/stream", middleware.RequireStudentWS(f.auth), h.SessionStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/sessions/" + sessionID.String() + "/stream?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

func expectEvent(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	msg := readFrame(t, conn)
	if msg["event"] != want {
		t.Fatalf("event = %v, want %s (%v)", msg["event"], want, msg)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSessionStreamAnswerAndFinish(t *testing.T) {
	f := newFixture()
	view := f.startSession(t)
	srv := newWSServer(t, f, time.Hour)
	conn := dial(t, srv, view.Session.ID, f.token(t, testutil.StudentID, model.UserTypeStudent))

	first := expectEvent(t, conn, "session")
	data, _ := first["data"].(map[string]interface{})
	if data["time_remaining"] == nil {
		t.Errorf("session frame without time_remaining: %v", first)
	}

	send(t, conn, map[string]string{"action": "ping"})
	expectEvent(t, conn, "pong")

	q0 := f.w.QuestionIDs[0]
	send(t, conn, map[string]interface{}{"action": "answer", "question_id": q0, "answer": "4"})
	saved := expectEvent(t, conn, "answer_saved")
	if saved["question_id"] != float64(q0) {
		t.Errorf("answer_saved = %v", saved)
	}

	send(t, conn, map[string]interface{}{"action": "answer", "question_id": q0, "answer": "9"})
	if msg := expectEvent(t, conn, "error"); msg["code"] != string(response.ErrInvalidAnswer) {
		t.Errorf("error frame = %v", msg)
	}

	send(t, conn, map[string]string{"action": "teleport"})
	if msg := expectEvent(t, conn, "error"); msg["code"] != string(response.ErrInvalidPayload) {
		t.Errorf("unknown action frame = %v", msg)
	}

	send(t, conn, map[string]string{"action": "finish"})
	finished := expectEvent(t, conn, "finished")
	result, _ := finished["result"].(map[string]interface{})
	score, _ := result["result"].(map[string]interface{})
	if score["score"] != float64(33) {
		t.Errorf("finished = %v", finished)
	}
	grade, _ := result["grade"].(map[string]interface{})
	if grade["label"] != "Unsatisfactory" {
		t.Errorf("grade = %v", grade)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("after finish: %v, want normal close", err)
	}

	sess, _ := f.w.DB.Session(view.Session.ID)
	if sess.Status != model.SessionStatusCompleted {
		t.Errorf("status = %s", sess.Status)
	}
}

func TestSessionStreamTicksThenExpires(t *testing.T) {
	f := newFixture()
	view := f.startSession(t)
	sess, _ := f.w.DB.Session(view.Session.ID)
	soon := time.Now().Add(time.Second)
	sess.TimeoutAt = &soon
	f.w.DB.SetSession(sess)

	srv := newWSServer(t, f, 100*time.Millisecond)
	conn := dial(t, srv, view.Session.ID, f.token(t, testutil.StudentID, model.UserTypeStudent))
	expectEvent(t, conn, "session")

	ticks := 0
	for {
		msg := readFrame(t, conn)
		if msg["event"] == "tick" {
			ticks++
			continue
		}
		if msg["event"] != "expired" {
			t.Fatalf("event = %v", msg)
		}
		s, _ := msg["session"].(map[string]interface{})
		if s["status"] != string(model.SessionStatusExpired) {
			t.Errorf("expired session = %v", s)
		}
		break
	}
	if ticks == 0 {
		t.Error("no tick before expiry")
	}
}

func TestSessionStreamAlreadyTimedOut(t *testing.T) {
	f := newFixture()
	view := f.startSession(t)
	sess, _ := f.w.DB.Session(view.Session.ID)
	past := time.Now().Add(-time.Minute)
	sess.TimeoutAt = &past
	f.w.DB.SetSession(sess)

	srv := newWSServer(t, f, time.Hour)
	conn := dial(t, srv, view.Session.ID, f.token(t, testutil.StudentID, model.UserTypeStudent))
	expectEvent(t, conn, "session")
	expectEvent(t, conn, "expired")

	stored, _ := f.w.DB.Session(view.Session.ID)
	if stored.Status != model.SessionStatusExpired {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestSessionStreamRejectsBeforeUpgrade(t *testing.T) {
	f := newFixture()
	view := f.startSession(t)
	srv := newWSServer(t, f, time.Hour)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/sessions/"

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"no token", view.Session.ID.String() + "/stream", http.StatusUnauthorized},
		{"someone else's session", view.Session.ID.String() + "/stream?token=" + f.token(t, testutil.OutsiderID, model.UserTypeStudent), http.StatusNotFound},
		{"examiner token", view.Session.ID.String() + "/stream?token=" + f.token(t, testutil.ExaminerID, model.UserTypeExaminer), http.StatusForbidden},
		{"bad id", "nope/stream?token=" + f.token(t, testutil.StudentID, model.UserTypeStudent), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(base+tt.path, nil)
			if err == nil {
				t.Fatal("upgrade succeeded")
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Fatalf("resp = %v, want %d", resp, tt.status)
			}
		})
	}
}

// ─── SSE monitor ────────────────────────────────────────────────────

type fakeSubscriber struct {
	ch  chan model.SessionEvent
	err error
}

func (s *fakeSubscriber) Subscribe(context.Context, uuid.UUID) (<-chan model.SessionEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

func newMonitorServer(t *testing.T, f *fixture, sub EventSubscriber) *httptest.Server {
	t.Helper()
	h := NewMonitorHandler(f.results, sub, zerolog.Nop())
	h.refreshEvery = time.Hour
	h.keepAliveEvery = time.Hour

	r := gin.New()
	r.Use(response.RequestIDMiddleware(), i18n.Middleware())
	r.GET("/exams/:exam_id/monitor", middleware.RequireExaminer(f.auth), h.MonitorExamSSE)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// readSSE reads one "event:/data:" block.
func readSSE(t *testing.T, br *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestMonitorStreamsSnapshotThenEvents(t *testing.T) {
	f := newFixture()
	view := f.startSession(t)
	sub := &fakeSubscriber{ch: make(chan model.SessionEvent, 1)}
	srv := newMonitorServer(t, f, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/exams/"+view.Session.ExamID.String()+"/monitor", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, testutil.ExaminerID, model.UserTypeExaminer))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	br := bufio.NewReader(resp.Body)

	name, data := readSSE(t, br)
	if name != "snapshot" {
		t.Fatalf("first event = %s", name)
	}
	var snap model.MonitorSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Stats.Joined != 1 || snap.Stats.InProgress != 1 {
		t.Errorf("stats = %+v", snap.Stats)
	}

	sub.ch <- model.SessionEvent{Type: model.EventAnswerSaved, ExamID: view.Session.ExamID, SessionID: view.Session.ID}
	name, data = readSSE(t, br)
	if name != string(model.EventAnswerSaved) || !strings.Contains(data, view.Session.ID.String()) {
		t.Errorf("relayed = %s %s", name, data)
	}
}

func TestMonitorRejections(t *testing.T) {
	f := newFixture()
	examID := f.w.AddExam(nil)

	tests := []struct {
		name   string
		sub    *fakeSubscriber
		user   int64
		status int
	}{
		{"not the author", &fakeSubscriber{}, testutil.OtherExaminerID, http.StatusForbidden},
		{"subscribe fails", &fakeSubscriber{err: errors.New("redis down")}, testutil.ExaminerID, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMonitorServer(t, f, tt.sub)
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/exams/"+examID.String()+"/monitor", nil)
			req.Header.Set("Authorization", "Bearer "+f.token(t, tt.user, model.UserTypeExaminer))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}
