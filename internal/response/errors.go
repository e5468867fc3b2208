package response

import (
	"context"

	"github.com/marcinucieklak/examhub/internal/i18n"
)

// ErrCode is a typed error code enum for consistent API error identification.
// Each code doubles as its translation message ID.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"
	ErrExaminerAccessOnly ErrCode = "EXAMINER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam authoring ────────────────────────────────────────────────
	ErrExamNotFound      ErrCode = "EXAM_NOT_FOUND"
	ErrNotExamAuthor     ErrCode = "NOT_EXAM_AUTHOR"
	ErrGroupNotOwned     ErrCode = "GROUP_NOT_OWNED"
	ErrUnknownQuestions  ErrCode = "UNKNOWN_QUESTIONS"
	ErrInvalidExamWindow ErrCode = "INVALID_EXAM_WINDOW"
	ErrExamHasSessions   ErrCode = "EXAM_HAS_SESSIONS"

	// ─── Exam sessions ─────────────────────────────────────────────────
	ErrExamInactive         ErrCode = "EXAM_INACTIVE"
	ErrExamNotStarted       ErrCode = "EXAM_NOT_STARTED"
	ErrExamEnded            ErrCode = "EXAM_ENDED"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrSessionNotFound      ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted     ErrCode = "SESSION_COMPLETED"
	ErrSessionNotInProgress ErrCode = "SESSION_NOT_IN_PROGRESS"
	ErrSessionExpired       ErrCode = "SESSION_EXPIRED"
	ErrQuestionNotInExam    ErrCode = "QUESTION_NOT_IN_EXAM"
	ErrInvalidAnswer        ErrCode = "INVALID_ANSWER"
	ErrQuestionOutOfOrder   ErrCode = "QUESTION_OUT_OF_ORDER"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
	ErrUnknown  ErrCode = "UNKNOWN_ERROR"
)

// Codes lists every code the API can return.
var Codes = []ErrCode{
	ErrTokenRequired, ErrTokenInvalid, ErrTokenExpired,
	ErrStudentAccessOnly, ErrExaminerAccessOnly,
	ErrValidation, ErrInvalidID, ErrInvalidPayload,
	ErrNotFound,
	ErrExamNotFound, ErrNotExamAuthor, ErrGroupNotOwned, ErrUnknownQuestions, ErrInvalidExamWindow, ErrExamHasSessions,
	ErrExamInactive, ErrExamNotStarted, ErrExamEnded, ErrNoQuestions,
	ErrSessionNotFound, ErrSessionCompleted, ErrSessionNotInProgress, ErrSessionExpired,
	ErrQuestionNotInExam, ErrInvalidAnswer, ErrQuestionOutOfOrder,
	ErrRateLimitExceeded,
	ErrInternal, ErrUnknown,
}

// GetMessage returns the localized message for code in the request language
// carried by ctx.
func GetMessage(ctx context.Context, code ErrCode) string {
	msg := i18n.T(ctx, string(code))
	if msg == string(code) {
		return i18n.T(ctx, string(ErrUnknown))
	}
	return msg
}
