package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/apperr"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// ExamService manages exam authoring: creation, listing, question sets and
// evaluator mappings. Mutations are restricted to the owning organization;
// the question set can only change while the exam is DRAFT.
type ExamService struct {
	exams     ExamStore
	questions QuestionStore
	grants    GrantStore
	mappings  MappingStore
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams ExamStore,
	questions QuestionStore,
	grants GrantStore,
	mappings MappingStore,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		grants:    grants,
		mappings:  mappings,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// Create inserts a new DRAFT exam for the organization.
func (s *ExamService) Create(ctx context.Context, orgID int, req model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		OrgID:           orgID,
		Title:           req.Title,
		Type:            model.ExamType(req.Type),
		DurationMinutes: req.DurationMinutes,
		Status:          model.ExamStatusDraft,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create exam", err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("org_id", orgID).Msg("exam created")
	return exam, nil
}

// Get retrieves an exam owned by the organization.
func (s *ExamService) Get(ctx context.Context, examID uuid.UUID, orgID int) (*model.Exam, error) {
	return s.loadOwnedExam(ctx, examID, orgID)
}

// List retrieves the organization's exams with pagination.
func (s *ExamService) List(ctx context.Context, orgID, limit, offset int) ([]model.Exam, int, error) {
	exams, total, err := s.exams.ListByOrg(ctx, orgID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list exams", err)
	}
	return exams, total, nil
}

// Delete removes an exam and everything hanging off it. Attempts, grants,
// questions and mappings cascade at the schema level.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID, orgID int) error {
	if _, err := s.loadOwnedExam(ctx, examID, orgID); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, examID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete exam", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("exam deleted")
	return nil
}

// ReplaceQuestions swaps the exam's entire question set. Only DRAFT exams
// may change questions; a published exam's marks are frozen.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, orgID int, req model.ReplaceQuestionsRequest) error {
	exam, err := s.loadOwnedExam(ctx, examID, orgID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusDraft {
		return apperr.New(apperr.KindInvalidState, "questions can only change while the exam is in draft")
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		order := q.OrderNum
		if order == 0 {
			order = i + 1
		}
		questions[i] = model.Question{
			ExamID:         examID,
			Text:           q.Text,
			Options:        q.Options,
			CorrectAnswers: q.CorrectAnswers,
			Marks:          q.Marks,
			OrderNum:       order,
		}
	}
	if err := s.questions.ReplaceForExam(ctx, examID, questions); err != nil {
		return apperr.Wrap(apperr.KindInternal, "replace questions", err)
	}
	return nil
}

// Questions returns the full question set, correct answers included. Admin
// and evaluator use only.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID, orgID int) ([]model.Question, error) {
	if _, err := s.loadOwnedExam(ctx, examID, orgID); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list questions", err)
	}
	return questions, nil
}

// QuestionsForCandidate returns the question set stripped of correct
// answers, for a candidate holding an access grant.
func (s *ExamService) QuestionsForCandidate(ctx context.Context, examID uuid.UUID, candidateID int) ([]model.QuestionForCandidate, error) {
	ok, err := s.grants.HasAccess(ctx, examID, candidateID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "check access", err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindForbidden, "candidate has no access to this exam")
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list questions", err)
	}

	out := make([]model.QuestionForCandidate, len(questions))
	for i, q := range questions {
		out[i] = model.QuestionForCandidate{
			ID:       q.ID,
			Text:     q.Text,
			Options:  q.Options,
			Marks:    q.Marks,
			OrderNum: q.OrderNum,
		}
	}
	return out, nil
}

// AddMapping assigns an evaluator to a list of candidate emails for the exam.
func (s *ExamService) AddMapping(ctx context.Context, examID uuid.UUID, orgID int, req model.CreateEvaluatorMappingRequest) (*model.EvaluatorMapping, error) {
	if _, err := s.loadOwnedExam(ctx, examID, orgID); err != nil {
		return nil, err
	}

	mapping := &model.EvaluatorMapping{
		ExamID:          examID,
		EvaluatorID:     req.EvaluatorID,
		CandidateEmails: req.CandidateEmails,
	}
	if err := s.mappings.CreateMapping(ctx, mapping); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create evaluator mapping", err)
	}
	return mapping, nil
}

// ListMappings returns the exam's evaluator mappings.
func (s *ExamService) ListMappings(ctx context.Context, examID uuid.UUID, orgID int) ([]model.EvaluatorMapping, error) {
	if _, err := s.loadOwnedExam(ctx, examID, orgID); err != nil {
		return nil, err
	}
	mappings, err := s.mappings.ListMappingsByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list evaluator mappings", err)
	}
	return mappings, nil
}

func (s *ExamService) loadOwnedExam(ctx context.Context, examID uuid.UUID, orgID int) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load exam", err)
	}
	if exam.OrgID != orgID {
		return nil, apperr.New(apperr.KindForbidden, "exam belongs to another organization")
	}
	return exam, nil
}
