package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/rs/zerolog"
)

// ExamService handles exam authoring for examiners.
type ExamService struct {
	exams     ExamStore
	questions QuestionStore
	groups    GroupStore
	sessions  SessionStore
	papers    PaperCache
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams ExamStore,
	questions QuestionStore,
	groups GroupStore,
	sessions SessionStore,
	papers PaperCache,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		groups:    groups,
		sessions:  sessions,
		papers:    papers,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// List returns the examiner's exams, newest first.
func (s *ExamService) List(ctx context.Context, creatorID int64, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	exams, total, err := s.exams.ListByCreator(ctx, creatorID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	return exams, response.NewPagination(page, perPage, total), nil
}

// Get returns an exam with its full questions.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID, creatorID int64) (*model.ExamDetail, error) {
	exam, err := ownedExam(ctx, s.exams, id, creatorID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, exam)
}

// Create validates and stores a new active exam.
func (s *ExamService) Create(ctx context.Context, creatorID int64, req *model.CreateExamRequest) (*model.ExamDetail, error) {
	questionIDs, err := s.checkAuthoring(ctx, creatorID, req)
	if err != nil {
		return nil, err
	}

	exam := &model.Exam{CreatedByID: creatorID, IsActive: true}
	applyRequest(exam, req)

	if err := s.exams.Create(ctx, exam, questionIDs); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int64("created_by", creatorID).
		Int("questions", len(questionIDs)).
		Msg("Exam created")

	return s.reload(ctx, exam.ID)
}

// Update replaces the authored fields of an exam. The question set is frozen
// once any student has started.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, creatorID int64, req *model.UpdateExamRequest) (*model.ExamDetail, error) {
	exam, err := ownedExam(ctx, s.exams, id, creatorID)
	if err != nil {
		return nil, err
	}

	questionIDs, err := s.checkAuthoring(ctx, creatorID, &req.CreateExamRequest)
	if err != nil {
		return nil, err
	}

	current, err := s.questions.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	if !sameQuestionOrder(current, questionIDs) {
		n, err := s.sessions.CountByExam(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("count sessions: %w", err)
		}
		if n > 0 {
			return nil, ErrExamHasSessions
		}
	}

	applyRequest(exam, &req.CreateExamRequest)
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}

	if err := s.exams.Update(ctx, exam, questionIDs); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	s.invalidate(ctx, id)

	s.log.Info().Str("exam_id", id.String()).Msg("Exam updated")

	return s.reload(ctx, id)
}

// Delete removes an exam together with its sessions and answers.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID, creatorID int64) error {
	if _, err := ownedExam(ctx, s.exams, id, creatorID); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	s.invalidate(ctx, id)

	s.log.Info().Str("exam_id", id.String()).Msg("Exam deleted")
	return nil
}

// checkAuthoring validates references in req and returns the deduplicated
// question IDs in request order.
func (s *ExamService) checkAuthoring(ctx context.Context, creatorID int64, req *model.CreateExamRequest) ([]int64, error) {
	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		return nil, ErrInvalidExamWindow
	}

	owned, err := s.groups.IsOwnedBy(ctx, req.GroupID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("check group: %w", err)
	}
	if !owned {
		return nil, ErrGroupNotOwned
	}

	ids := dedupeIDs(req.QuestionIDs)
	if len(ids) == 0 {
		return ids, nil
	}
	n, err := s.questions.CountOwned(ctx, creatorID, ids)
	if err != nil {
		return nil, fmt.Errorf("check questions: %w", err)
	}
	if n != len(ids) {
		return nil, ErrUnknownQuestions
	}
	return ids, nil
}

func (s *ExamService) reload(ctx context.Context, id uuid.UUID) (*model.ExamDetail, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "reload exam")
	}
	return s.detail(ctx, exam)
}

func (s *ExamService) detail(ctx context.Context, exam *model.Exam) (*model.ExamDetail, error) {
	qs, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	if qs == nil {
		qs = []model.Question{}
	}
	return &model.ExamDetail{Exam: *exam, Questions: qs}, nil
}

func (s *ExamService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.papers.Invalidate(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Paper cache invalidation failed")
	}
}

// ownedExam loads an exam and checks that examinerID authored it.
func ownedExam(ctx context.Context, exams ExamStore, id uuid.UUID, examinerID int64) (*model.Exam, error) {
	exam, err := exams.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, "load exam")
	}
	if exam.CreatedByID != examinerID {
		return nil, ErrNotExamAuthor
	}
	return exam, nil
}

func applyRequest(exam *model.Exam, req *model.CreateExamRequest) {
	exam.Title = req.Title
	exam.Description = req.Description
	exam.DisplayMode = req.DisplayMode
	if req.TimeLimit != nil {
		exam.TimeLimit = *req.TimeLimit
	}
	exam.StartDate = req.StartDate
	exam.EndDate = req.EndDate
	exam.GroupID = req.GroupID
	exam.SubjectID = req.SubjectID
	exam.TopicID = req.TopicID
	exam.SubtopicID = req.SubtopicID
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameQuestionOrder(current []model.Question, ids []int64) bool {
	if len(current) != len(ids) {
		return false
	}
	for i := range current {
		if current[i].ID != ids[i] {
			return false
		}
	}
	return true
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
