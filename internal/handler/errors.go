package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/i18n"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/rs/zerolog"
)

type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// serviceErrors maps service sentinels onto API errors. Order matters only
// for wrapped chains, which none of the sentinels form.
var serviceErrors = []errorMapping{
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{service.ErrNotExamAuthor, http.StatusForbidden, response.ErrNotExamAuthor},
	{service.ErrGroupNotOwned, http.StatusUnprocessableEntity, response.ErrGroupNotOwned},
	{service.ErrUnknownQuestions, http.StatusUnprocessableEntity, response.ErrUnknownQuestions},
	{service.ErrInvalidExamWindow, http.StatusBadRequest, response.ErrInvalidExamWindow},
	{service.ErrExamHasSessions, http.StatusConflict, response.ErrExamHasSessions},

	{service.ErrExamInactive, http.StatusForbidden, response.ErrExamInactive},
	{service.ErrExamNotStarted, http.StatusForbidden, response.ErrExamNotStarted},
	{service.ErrExamEnded, http.StatusForbidden, response.ErrExamEnded},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{service.ErrSessionCompleted, http.StatusConflict, response.ErrSessionCompleted},
	{service.ErrSessionNotInProgress, http.StatusConflict, response.ErrSessionNotInProgress},
	{service.ErrSessionExpired, http.StatusGone, response.ErrSessionExpired},
	{service.ErrQuestionNotInExam, http.StatusBadRequest, response.ErrQuestionNotInExam},
	{service.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer},
	{service.ErrQuestionOutOfOrder, http.StatusConflict, response.ErrQuestionOutOfOrder},
}

// mapServiceError resolves err to a status and code. Unknown errors are
// internal.
func mapServiceError(err error) (int, response.ErrCode) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWith writes the API error for err, logging anything unexpected.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("route", c.FullPath()).
			Msg("request failed")
	}
	response.Fail(c, status, code)
}

// pathUUID parses a UUID path parameter, writing INVALID_ID when malformed.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return n
}

// localizeGrade fills the display label of g in the request language.
func localizeGrade(ctx context.Context, g *model.Grade) {
	if g == nil || g.LabelID == "" {
		return
	}
	g.Label = i18n.T(ctx, g.LabelID)
}

func localizeRows(ctx context.Context, rows []model.ResultRow) {
	for i := range rows {
		localizeGrade(ctx, rows[i].Grade)
	}
}
