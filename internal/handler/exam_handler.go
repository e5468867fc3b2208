package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/marcinucieklak/examhub/internal/validator"
	"github.com/rs/zerolog"
)

// ExamHandler handles examiner exam authoring and result endpoints.
type ExamHandler struct {
	examService   *service.ExamService
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, resultService *service.ResultService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService:   examService,
		resultService: resultService,
		log:           log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/examiner/exams
// Lists the examiner's exams, newest first.
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 10)

	exams, pagination, err := h.examService.List(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/examiner/exams
// Creates an active exam for one of the examiner's groups.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/examiner/exams/:exam_id
// Returns the exam with its questions and answer key.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/examiner/exams/:exam_id
// Replaces the authored fields of an exam.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/examiner/exams/:exam_id
// Deletes the exam together with its sessions and answers.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID, claims.UserID); err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GetResults godoc
// GET /api/v1/examiner/exams/:exam_id/results?status=COMPLETED,EXPIRED&page=1&per_page=10
// Lists graded sessions of the exam.
func (h *ExamHandler) GetResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}

	statuses, ok := parseStatuses(c.QueryArray("status"))
	if !ok {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"status": "status must be one of IN_PROGRESS, COMPLETED, EXPIRED"})
		return
	}
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 10)

	ctx := c.Request.Context()
	results, pagination, err := h.resultService.Results(ctx, examID, claims.UserID, statuses, page, perPage)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	localizeRows(ctx, results.Sessions)

	response.SuccessWithPagination(c, http.StatusOK, results, pagination)
}

// GetSessionDetail godoc
// GET /api/v1/examiner/exams/:exam_id/sessions/:session_id
// Returns one student's attempt with the answer key and breakdown.
func (h *ExamHandler) GetSessionDetail(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := pathUUID(c, "exam_id")
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "session_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := h.resultService.SessionDetail(ctx, examID, sessionID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	localizeGrade(ctx, detail.Grade)

	response.Success(c, http.StatusOK, detail)
}

// parseStatuses accepts repeated or comma-separated status values.
func parseStatuses(raw []string) ([]model.SessionStatus, bool) {
	var out []model.SessionStatus
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			st := model.SessionStatus(part)
			if !st.Valid() {
				return nil, false
			}
			out = append(out, st)
		}
	}
	return out, true
}
