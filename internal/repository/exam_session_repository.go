package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcinucieklak/examhub/internal/model"
)

const sessionColumns = `id, exam_id, student_id, status, current_question_index,
	started_at, completed_at, timeout_at, score, created_at, updated_at`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.CurrentQuestionIndex,
		&s.StartedAt, &s.CompletedAt, &s.TimeoutAt, &s.Score, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session. It returns pgx.ErrNoRows when the student
// already has a session for the exam.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status, current_question_index, started_at, timeout_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		s.ExamID, s.StudentID, s.Status, s.CurrentQuestionIndex, s.StartedAt, s.TimeoutAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the student's session for an exam.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int64) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID))
}

// ListByStudent retrieves all sessions for a given student.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID int64) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE student_id = $1 ORDER BY started_at DESC`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// CountByExam counts the sessions ever opened for an exam.
func (r *ExamSessionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}

// CountByStatus counts an exam's sessions per status. Statuses without
// sessions are absent.
func (r *ExamSessionRepository) CountByStatus(ctx context.Context, examID uuid.UUID) (map[model.SessionStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM exam_sessions WHERE exam_id = $1 GROUP BY status`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.SessionStatus]int)
	for rows.Next() {
		var st model.SessionStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// AdvanceIndex moves a running session forward. The index never decreases.
func (r *ExamSessionRepository) AdvanceIndex(ctx context.Context, id uuid.UUID, index int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET current_question_index = GREATEST(current_question_index, $2), updated_at = NOW()
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, index)
	return err
}

// Finalize moves an in-progress session into a final status. It reports
// false when the session had already left IN_PROGRESS.
func (r *ExamSessionRepository) Finalize(ctx context.Context, id uuid.UUID, status model.SessionStatus, score int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $2, score = $3, completed_at = $4, updated_at = NOW()
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, status, score, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListResults lists one page of an exam's sessions in the given statuses,
// with student names, plus the total count. No statuses means all.
func (r *ExamSessionRepository) ListResults(ctx context.Context, examID uuid.UUID, statuses []model.SessionStatus, limit, offset int) ([]model.ResultRow, int, error) {
	where := squirrel.And{squirrel.Eq{"s.exam_id": examID}}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		where = append(where, squirrel.Eq{"s.status": names})
	}

	countSQL, countArgs, err := r.sb.Select("COUNT(*)").From("exam_sessions s").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql, args, err := r.sb.Select(
		"s.id", "u.id", "u.name", "u.surname", "s.status", "s.score", "s.started_at", "s.completed_at").
		From("exam_sessions s").
		Join("users u ON u.id = s.student_id").
		Where(where).
		OrderBy("s.completed_at NULLS LAST", "s.id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build results query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		var row model.ResultRow
		if err := rows.Scan(&row.SessionID, &row.Student.ID, &row.Student.Name, &row.Student.Surname,
			&row.Status, &row.Score, &row.StartedAt, &row.CompletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// ListOpenDeadlines returns the deadline of every in-progress session that has one.
func (r *ExamSessionRepository) ListOpenDeadlines(ctx context.Context) ([]model.SessionDeadline, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, timeout_at FROM exam_sessions
		 WHERE status = 'IN_PROGRESS' AND timeout_at IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionDeadline
	for rows.Next() {
		var d model.SessionDeadline
		if err := rows.Scan(&d.SessionID, &d.ExamID, &d.TimeoutAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListOverdue returns up to limit in-progress sessions whose deadline is
// before now, oldest deadline first.
func (r *ExamSessionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_sessions
		 WHERE status = 'IN_PROGRESS' AND timeout_at < $1
		 ORDER BY timeout_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
