package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcinucieklak/examhub/internal/model"
)

// ExamAnswerRepository handles answer data access.
type ExamAnswerRepository struct {
	pool *pgxpool.Pool
}

// NewExamAnswerRepository creates a new ExamAnswerRepository.
func NewExamAnswerRepository(pool *pgxpool.Pool) *ExamAnswerRepository {
	return &ExamAnswerRepository{pool: pool}
}

// Upsert stores an answer, overwriting any previous answer to the question.
// The write only happens while the session is IN_PROGRESS; the session row is
// share-locked so a concurrent finalise waits for it. A session that is no
// longer in progress yields pgx.ErrNoRows.
func (r *ExamAnswerRepository) Upsert(ctx context.Context, a *model.ExamAnswer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_answers (session_id, question_id, answer)
		 SELECT $1::uuid, $2::bigint, $3::text
		 WHERE EXISTS (
		     SELECT 1 FROM exam_sessions
		     WHERE id = $1::uuid AND status = 'IN_PROGRESS'
		     FOR SHARE
		 )
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		a.SessionID, a.QuestionID, a.Answer,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// ListBySession returns a session's answers in exam order.
func (r *ExamAnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ExamAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.session_id, a.question_id, a.answer, a.created_at, a.updated_at
		 FROM exam_answers a
		 JOIN exam_sessions s ON s.id = a.session_id
		 LEFT JOIN exam_questions eq ON eq.exam_id = s.exam_id AND eq.question_id = a.question_id
		 WHERE a.session_id = $1
		 ORDER BY eq.position NULLS LAST, a.question_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExamAnswer
	for rows.Next() {
		var a model.ExamAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Answer, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GradedItems joins every question of the session's exam with the student's
// answer, in exam order. Unanswered questions have a nil Answer.
func (r *ExamAnswerRepository) GradedItems(ctx context.Context, sessionID uuid.UUID) ([]model.GradedItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.options, q.correct_option, a.answer
		 FROM exam_sessions s
		 JOIN exam_questions eq ON eq.exam_id = s.exam_id
		 JOIN questions q ON q.id = eq.question_id
		 LEFT JOIN exam_answers a ON a.session_id = s.id AND a.question_id = q.id
		 WHERE s.id = $1
		 ORDER BY eq.position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GradedItem
	for rows.Next() {
		var it model.GradedItem
		if err := rows.Scan(&it.QuestionID, &it.Options, &it.CorrectOption, &it.Answer); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CountByExam returns the number of answers per session of an exam.
// Sessions without answers are absent.
func (r *ExamAnswerRepository) CountByExam(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.session_id, COUNT(*)
		 FROM exam_answers a
		 JOIN exam_sessions s ON s.id = a.session_id
		 WHERE s.exam_id = $1
		 GROUP BY a.session_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
