package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/marcinucieklak/examhub/internal/validator"
	"github.com/rs/zerolog"
)

// StudentPortalHandler handles the student side of taking exams.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/student/exams
// Lists the exams assigned to the student's groups with their own session status.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.sessionService.ListMyExams(c.Request.Context(), claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/student/exams/:exam_id
func (h *StudentPortalHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.sessionService.GetExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetAvailability godoc
// GET /api/v1/student/exams/:exam_id/availability
// Reports whether the exam can be started right now and why not.
func (h *StudentPortalHandler) GetAvailability(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	av, err := h.sessionService.Availability(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, av)
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/sessions
// Starts the exam, or resumes the student's running session.
func (h *StudentPortalHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	view, err := h.sessionService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
// Returns the session with its paper, answers and remaining time.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := pathUUID(c, "session_id")
	if !ok {
		return
	}

	view, err := h.sessionService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SubmitAnswer godoc
// POST /api/v1/student/sessions/:session_id/answers
// Records one answer. Resubmitting the same question overwrites it.
func (h *StudentPortalHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := pathUUID(c, "session_id")
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.SubmitAnswer(c.Request.Context(), sessionID, claims.UserID, &req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// FinishSession godoc
// POST /api/v1/student/sessions/:session_id/finish
// Completes the session and returns the score breakdown.
func (h *StudentPortalHandler) FinishSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := pathUUID(c, "session_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	result, err := h.sessionService.Finish(ctx, sessionID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	localizeGrade(ctx, &result.Grade)

	response.Success(c, http.StatusOK, result)
}
