package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcinucieklak/examhub/internal/database"
	"github.com/marcinucieklak/examhub/internal/model"
)

// examColumns is the projection shared by every exam read; scanExam matches it.
var examColumns = []string{
	"e.id", "e.title", "e.description", "e.question_display_mode", "e.time_limit",
	"e.start_date", "e.end_date", "e.is_active", "e.created_by_id", "e.group_id",
	"e.subject_id", "e.topic_id", "e.subtopic_id", "e.created_at", "e.updated_at",
	"g.name", "u.name", "u.surname",
	"(SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id)",
}

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ExamRepository) selectExams() squirrel.SelectBuilder {
	return r.sb.Select(examColumns...).
		From("exams e").
		Join("groups g ON g.id = e.group_id").
		Join("users u ON u.id = e.created_by_id")
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{Group: &model.GroupRef{}, CreatedBy: &model.UserSummary{}}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DisplayMode, &e.TimeLimit,
		&e.StartDate, &e.EndDate, &e.IsActive, &e.CreatedByID, &e.GroupID,
		&e.SubjectID, &e.TopicID, &e.SubtopicID, &e.CreatedAt, &e.UpdatedAt,
		&e.Group.Name, &e.CreatedBy.Name, &e.CreatedBy.Surname, &e.QuestionsCount)
	if err != nil {
		return nil, err
	}
	e.Group.ID = e.GroupID
	e.CreatedBy.ID = e.CreatedByID
	return e, nil
}

func (r *ExamRepository) queryExams(ctx context.Context, q squirrel.SelectBuilder) ([]model.Exam, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exam query: %w", err)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

func (r *ExamRepository) getOne(ctx context.Context, q squirrel.SelectBuilder) (*model.Exam, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exam query: %w", err)
	}
	return scanExam(r.pool.QueryRow(ctx, sql, args...))
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return r.getOne(ctx, r.selectExams().Where(squirrel.Eq{"e.id": id}))
}

// GetForStudent retrieves an exam assigned to one of the student's groups.
func (r *ExamRepository) GetForStudent(ctx context.Context, id uuid.UUID, studentID int64) (*model.Exam, error) {
	return r.getOne(ctx, r.selectExams().
		Join("user_groups ug ON ug.group_id = e.group_id").
		Where(squirrel.Eq{"e.id": id, "ug.user_id": studentID}))
}

// ListForStudent lists every exam assigned to the student's groups, newest first.
func (r *ExamRepository) ListForStudent(ctx context.Context, studentID int64) ([]model.Exam, error) {
	return r.queryExams(ctx, r.selectExams().
		Join("user_groups ug ON ug.group_id = e.group_id").
		Where(squirrel.Eq{"ug.user_id": studentID}).
		OrderBy("e.created_at DESC"))
}

// ListByCreator retrieves one page of an examiner's exams and the total count.
func (r *ExamRepository) ListByCreator(ctx context.Context, creatorID int64, limit, offset int) ([]model.Exam, int, error) {
	countSQL, countArgs, err := r.sb.Select("COUNT(*)").From("exams").
		Where(squirrel.Eq{"created_by_id": creatorID}).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	exams, err := r.queryExams(ctx, r.selectExams().
		Where(squirrel.Eq{"e.created_by_id": creatorID}).
		OrderBy("e.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)))
	if err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

// Create inserts an exam and its ordered question links in one transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam, questionIDs []int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exams (title, description, question_display_mode, time_limit, start_date, end_date,
			                    is_active, created_by_id, group_id, subject_id, topic_id, subtopic_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id, created_at, updated_at`,
			e.Title, e.Description, e.DisplayMode, e.TimeLimit, e.StartDate, e.EndDate,
			e.IsActive, e.CreatedByID, e.GroupID, e.SubjectID, e.TopicID, e.SubtopicID,
		).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		return insertExamQuestions(ctx, tx, e.ID, questionIDs)
	})
}

// Update rewrites an exam and replaces its question links.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam, questionIDs []int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE exams SET title = $2, description = $3, question_display_mode = $4, time_limit = $5,
			                  start_date = $6, end_date = $7, is_active = $8, group_id = $9,
			                  subject_id = $10, topic_id = $11, subtopic_id = $12, updated_at = NOW()
			 WHERE id = $1
			 RETURNING updated_at`,
			e.ID, e.Title, e.Description, e.DisplayMode, e.TimeLimit, e.StartDate, e.EndDate,
			e.IsActive, e.GroupID, e.SubjectID, e.TopicID, e.SubtopicID,
		).Scan(&e.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, e.ID); err != nil {
			return fmt.Errorf("clear exam questions: %w", err)
		}
		return insertExamQuestions(ctx, tx, e.ID, questionIDs)
	})
}

// Delete removes an exam; sessions, answers and question links cascade.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func insertExamQuestions(ctx context.Context, tx pgx.Tx, examID uuid.UUID, questionIDs []int64) error {
	if len(questionIDs) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"exam_id", "question_id", "position"},
		pgx.CopyFromSlice(len(questionIDs), func(i int) ([]any, error) {
			return []any{examID, questionIDs[i], i}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("insert exam questions: %w", err)
	}
	return nil
}
