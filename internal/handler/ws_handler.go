package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	ws "github.com/marcinucieklak/examhub/internal/websocket"
	"github.com/rs/zerolog"
)

const (
	tickInterval = 15 * time.Second
	// expiryGrace lets the deadline pass strictly before the session is re-read.
	expiryGrace = 250 * time.Millisecond
	outboxSize  = 16
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a running exam session to the student.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	tick           time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		tick:           tickInterval,
	}
}

// frame is one outgoing message. The connection closes after a final frame.
type frame struct {
	v     interface{}
	final bool
}

// wsConn is the state of one student connection. Only writeLoop writes to
// conn; everything else goes through out.
type wsConn struct {
	conn      *websocket.Conn
	out       chan frame
	ctx       context.Context
	cancel    context.CancelFunc
	msgCtx    context.Context
	sessionID uuid.UUID
	studentID int64
	log       zerolog.Logger
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream?token=
// Upgrades to WebSocket for answering, finishing and a live countdown.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := pathUUID(c, "session_id")
	if !ok {
		return
	}

	// Resolve before upgrading so ownership errors keep their HTTP status.
	view, err := h.sessionService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := &wsConn{
		conn:      conn,
		out:       make(chan frame, outboxSize),
		ctx:       ctx,
		cancel:    cancel,
		msgCtx:    c.Request.Context(),
		sessionID: sessionID,
		studentID: claims.UserID,
		log: h.log.With().
			Int64("student_id", claims.UserID).
			Str("session_id", sessionID.String()).
			Logger(),
	}
	sc.log.Info().Msg("Student connected")

	var deadline *time.Time
	if view.Session.Status == model.SessionStatusInProgress {
		deadline = view.Session.TimeoutAt
	}
	go h.writeLoop(sc, deadline)

	switch view.Session.Status {
	case model.SessionStatusInProgress:
		sc.send(ws.SessionResponse{Event: ws.EventSession, Data: view}, false)
	case model.SessionStatusExpired:
		sc.send(ws.SessionResponse{Event: ws.EventSession, Data: view}, false)
		sc.send(ws.ExpiredResponse{Event: ws.EventExpired, Session: view.Session}, true)
	default:
		sc.send(ws.SessionResponse{Event: ws.EventSession, Data: view}, true)
	}

	h.readLoop(sc)
	sc.log.Debug().Msg("Student disconnected")
}

// readLoop dispatches client actions until the connection closes.
func (h *WSHandler) readLoop(sc *wsConn) {
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(sc.conn, &raw); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				sc.sendError(response.ErrInvalidPayload)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			sc.sendError(response.ErrInvalidPayload)
			continue
		}

		switch env.Action {
		case ws.ActionAnswer:
			h.handleAnswer(sc, raw)
		case ws.ActionFinish:
			h.handleFinish(sc)
		case ws.ActionPing:
			sc.send(ws.PongResponse{Event: ws.EventPong}, false)
		default:
			sc.log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			sc.sendError(response.ErrInvalidPayload)
		}
	}
}

func (h *WSHandler) handleAnswer(sc *wsConn, raw json.RawMessage) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.QuestionID <= 0 || strings.TrimSpace(req.Answer) == "" {
		sc.sendError(response.ErrValidation)
		return
	}

	view, err := h.sessionService.SubmitAnswer(sc.ctx, sc.sessionID, sc.studentID, &model.SubmitAnswerRequest{
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
	})
	if err != nil {
		h.handleError(sc, err)
		return
	}

	sc.send(ws.AnswerSavedResponse{
		Event:                ws.EventAnswerSaved,
		QuestionID:           req.QuestionID,
		CurrentQuestionIndex: view.Session.CurrentQuestionIndex,
	}, false)
}

func (h *WSHandler) handleFinish(sc *wsConn) {
	result, err := h.sessionService.Finish(sc.ctx, sc.sessionID, sc.studentID)
	if err != nil {
		h.handleError(sc, err)
		return
	}
	localizeGrade(sc.msgCtx, &result.Grade)
	sc.send(ws.FinishedResponse{Event: ws.EventFinished, Result: result}, true)
}

// handleError reports a failed action. An expired session also ends the stream.
func (h *WSHandler) handleError(sc *wsConn, err error) {
	status, code := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		sc.log.Error().Err(err).Msg("Session action failed")
	}
	sc.sendError(code)
	if errors.Is(err, service.ErrSessionExpired) {
		h.sendExpired(sc)
	}
}

// sendExpired re-reads the session, expiring it if still open, and sends the
// final expired frame.
func (h *WSHandler) sendExpired(sc *wsConn) {
	view, err := h.sessionService.GetSession(sc.ctx, sc.sessionID, sc.studentID)
	if err != nil {
		sc.log.Error().Err(err).Msg("Reload expired session failed")
		sc.send(ws.ExpiredResponse{Event: ws.EventExpired}, true)
		return
	}
	if view.Session.Status == model.SessionStatusCompleted {
		// Finished elsewhere before the deadline.
		sc.send(ws.SessionResponse{Event: ws.EventSession, Data: view}, true)
		return
	}
	sc.send(ws.ExpiredResponse{Event: ws.EventExpired, Session: view.Session}, true)
}

// writeLoop is the only writer on the connection. It relays frames, sends a
// countdown tick and expires the session at its deadline.
func (h *WSHandler) writeLoop(sc *wsConn, deadline *time.Time) {
	defer sc.cancel()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	var expiry <-chan time.Time
	if deadline != nil {
		timer := time.NewTimer(time.Until(*deadline) + expiryGrace)
		defer timer.Stop()
		expiry = timer.C
	}

	for {
		select {
		case <-sc.ctx.Done():
			return
		case f := <-sc.out:
			if err := ws.WriteTyped(sc.conn, f.v); err != nil {
				sc.log.Debug().Err(err).Msg("Write failed")
				return
			}
			if f.final {
				_ = ws.CloseNormal(sc.conn, "session closed")
				sc.conn.Close()
				return
			}
		case <-ticker.C:
			if deadline == nil {
				continue
			}
			left := int64(time.Until(*deadline) / time.Second)
			if left < 0 {
				left = 0
			}
			if err := ws.WriteTyped(sc.conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: left}); err != nil {
				return
			}
		case <-expiry:
			expiry = nil
			// Expire from a goroutine so the frame comes back through out.
			go h.sendExpired(sc)
		}
	}
}

// send queues a frame unless the connection is already closing.
func (sc *wsConn) send(v interface{}, final bool) {
	select {
	case sc.out <- frame{v: v, final: final}:
	case <-sc.ctx.Done():
	}
}

func (sc *wsConn) sendError(code response.ErrCode) {
	sc.send(ws.ErrorFrame(string(code), response.GetMessage(sc.msgCtx, code)), false)
}
