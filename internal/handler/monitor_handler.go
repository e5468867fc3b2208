package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// EventSubscriber streams the live session events of one exam.
type EventSubscriber interface {
	Subscribe(ctx context.Context, examID uuid.UUID) (<-chan model.SessionEvent, error)
}

// MonitorHandler serves the examiner live monitor over SSE.
type MonitorHandler struct {
	resultService *service.ResultService
	events        EventSubscriber
	log           zerolog.Logger

	refreshEvery   time.Duration
	keepAliveEvery time.Duration
}

func NewMonitorHandler(resultService *service.ResultService, events EventSubscriber, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		resultService:  resultService,
		events:         events,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		refreshEvery:   refreshInterval,
		keepAliveEvery: keepAliveInterval,
	}
}

// MonitorExamSSE godoc
// GET /api/v1/examiner/exams/:exam_id/monitor
// Sends a snapshot, then relays session events until the client disconnects.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	// Snapshot first so ownership errors keep their HTTP status.
	snap, err := h.resultService.Monitor(reqCtx, examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	localizeRows(reqCtx, snap.Sessions)

	events, err := h.events.Subscribe(reqCtx, examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.writeEvent(c, "snapshot", snap)

	keepAliveTicker := time.NewTicker(h.keepAliveEvery)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(h.refreshEvery)
	defer refreshTicker.Stop()

	// Only re-snapshot when something happened since the last one.
	dirty := false

	log := h.log.With().Str("exam_id", examID.String()).Int64("examiner_id", claims.UserID).Logger()
	log.Info().Msg("Examiner attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Examiner detached from live monitor")
			return

		case ev, open := <-events:
			if !open {
				log.Warn().Msg("Exam event subscription ended")
				return
			}
			h.writeEvent(c, string(ev.Type), ev)
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendRefresh(c, reqCtx, examID, claims.UserID)

		case <-keepAliveTicker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}

// sendRefresh writes a fresh snapshot, skipping it if the query fails.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parent context.Context, examID uuid.UUID, examinerID int64) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	snap, err := h.resultService.Monitor(ctx, examID, examinerID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Monitor refresh failed")
		return
	}
	localizeRows(parent, snap.Sessions)
	h.writeEvent(c, "snapshot", snap)
}

func (h *MonitorHandler) writeEvent(c *gin.Context, name string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("Encode monitor event failed")
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, payload)
	c.Writer.Flush()
}
