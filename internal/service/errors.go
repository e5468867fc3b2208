package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Exam authoring errors.
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrNotExamAuthor     = errors.New("not the author of this exam")
	ErrGroupNotOwned     = errors.New("group does not exist or belongs to another examiner")
	ErrUnknownQuestions  = errors.New("some questions do not exist or belong to another examiner")
	ErrInvalidExamWindow = errors.New("exam end date must be after its start date")
	ErrExamHasSessions   = errors.New("exam questions cannot change once sessions exist")
)

// Exam session errors.
var (
	ErrExamInactive         = errors.New("exam is not active")
	ErrExamNotStarted       = errors.New("exam has not started yet")
	ErrExamEnded            = errors.New("exam has ended")
	ErrNoQuestions          = errors.New("exam has no questions")
	ErrSessionNotFound      = errors.New("exam session not found")
	ErrSessionCompleted     = errors.New("exam already completed by this student")
	ErrSessionNotInProgress = errors.New("exam session is not in progress")
	ErrSessionExpired       = errors.New("exam session time has expired")
	ErrQuestionNotInExam    = errors.New("question is not part of this exam")
	ErrInvalidAnswer        = errors.New("answer is not one of the question options")
	ErrQuestionOutOfOrder   = errors.New("question must be answered in order")
)

// notFound maps a missing row onto sentinel and wraps anything else.
func notFound(err error, sentinel error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}
