package service

import (
	"context"
	"fmt"

	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/rs/zerolog"
)

// loadPaper returns the cached paper for exam, building and caching it from
// the question bank on a miss. Cache failures degrade to a database read.
func loadPaper(ctx context.Context, cache PaperCache, questions QuestionStore, exam *model.Exam, log zerolog.Logger) (*model.ExamPaper, error) {
	paper, err := cache.Get(ctx, exam.ID)
	if err != nil {
		log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Paper cache read failed")
	} else if paper != nil {
		return paper, nil
	}

	qs, err := questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}

	paper = &model.ExamPaper{
		ExamID:      exam.ID,
		Title:       exam.Title,
		DisplayMode: exam.DisplayMode,
		Questions:   make([]model.QuestionForStudent, 0, len(qs)),
	}
	for i := range qs {
		paper.Questions = append(paper.Questions, qs[i].ForStudent())
	}

	if err := cache.Set(ctx, paper); err != nil {
		log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Paper cache write failed")
	}
	return paper, nil
}
