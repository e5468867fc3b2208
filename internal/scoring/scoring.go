// Package scoring grades exam sessions and maps scores onto school grades.
package scoring

import (
	"math"

	"github.com/marcinucieklak/examhub/internal/model"
)

// Evaluate grades items in order. An answer is correct only when it matches
// the text of the correct option exactly. The percentage is rounded half away
// from zero; an exam without questions scores 0.
func Evaluate(items []model.GradedItem) model.ScoreResult {
	res := model.ScoreResult{
		TotalQuestions: len(items),
		Answers:        make([]model.AnswerResult, 0, len(items)),
	}

	for _, it := range items {
		q := model.Question{Options: it.Options, CorrectOption: it.CorrectOption}
		correct := q.CorrectAnswer()
		ok := it.Answer != nil && correct != "" && *it.Answer == correct
		if ok {
			res.CorrectAnswers++
		}
		res.Answers = append(res.Answers, model.AnswerResult{
			QuestionID:    it.QuestionID,
			IsCorrect:     ok,
			UserAnswer:    it.Answer,
			CorrectAnswer: correct,
		})
	}

	res.Score = Percent(res.CorrectAnswers, res.TotalQuestions)
	return res
}

// Percent returns round(correct/total*100), or 0 when total is zero.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
