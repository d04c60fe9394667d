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

// PublicationService controls exam visibility: counting the audience a
// filter selects, publishing (grant creation + status flip, all or nothing)
// and unpublishing.
type PublicationService struct {
	exams      ExamStore
	questions  QuestionStore
	candidates CandidateStore
	grants     GrantStore
	cache      AttemptCache
	log        zerolog.Logger
}

// NewPublicationService creates a new PublicationService.
func NewPublicationService(
	exams ExamStore,
	questions QuestionStore,
	candidates CandidateStore,
	grants GrantStore,
	cache AttemptCache,
	log zerolog.Logger,
) *PublicationService {
	return &PublicationService{
		exams:      exams,
		questions:  questions,
		candidates: candidates,
		grants:     grants,
		cache:      cache,
		log:        log.With().Str("component", "publication_service").Logger(),
	}
}

// CountCandidates returns how many of the organization's candidates the
// filter selects. Read only, no side effects.
func (s *PublicationService) CountCandidates(ctx context.Context, orgID int, filter model.CandidateFilter) (int, error) {
	count, err := s.candidates.CountByFilter(ctx, orgID, filter)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "count candidates", err)
	}
	return count, nil
}

// Publish grants access to every candidate the filter selects (everyone in
// the organization when the filter is empty) and flips the exam to PUBLISHED
// with a frozen candidate-count snapshot. Grant creation and the status flip
// share one store transaction, so a failure leaves the exam DRAFT.
func (s *PublicationService) Publish(ctx context.Context, examID uuid.UUID, orgID int, filter model.CandidateFilter) (*model.Exam, error) {
	exam, err := s.loadOwnedExam(ctx, examID, orgID)
	if err != nil {
		return nil, err
	}
	if exam.Status == model.ExamStatusPublished {
		return nil, apperr.New(apperr.KindConflict, "exam is already published")
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, apperr.New(apperr.KindInvalidState, "exam is not in draft")
	}

	questionCount, err := s.questions.CountByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count questions", err)
	}
	if questionCount == 0 {
		return nil, apperr.New(apperr.KindInvalidState, "exam has no questions")
	}

	candidateIDs, err := s.candidates.ListIDsByFilter(ctx, orgID, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list candidates", err)
	}

	publishedAt, err := s.grants.PublishExam(ctx, examID, candidateIDs, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "publish exam", err)
	}

	if err := s.cache.SetExamDuration(ctx, examID.String(), exam.DurationMinutes); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("cache exam duration")
	}

	count := len(candidateIDs)
	exam.Status = model.ExamStatusPublished
	exam.CandidateCount = &count
	exam.PublishedAt = &publishedAt

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("candidates", count).
		Msg("exam published")
	return exam, nil
}

// Unpublish deletes all grants and reverts the exam to DRAFT, clearing the
// snapshot and publish timestamp.
func (s *PublicationService) Unpublish(ctx context.Context, examID uuid.UUID, orgID int) error {
	if _, err := s.loadOwnedExam(ctx, examID, orgID); err != nil {
		return err
	}

	if err := s.grants.UnpublishExam(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.KindInvalidState, "exam is not published")
		}
		return apperr.Wrap(apperr.KindInternal, "unpublish exam", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("exam unpublished")
	return nil
}

// VisibleExams lists the published exams the candidate may take. Exams
// published before the candidate's account was created are never surfaced.
func (s *PublicationService) VisibleExams(ctx context.Context, candidateID int) ([]model.Exam, error) {
	exams, err := s.exams.ListVisibleToCandidate(ctx, candidateID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list visible exams", err)
	}
	return exams, nil
}

func (s *PublicationService) loadOwnedExam(ctx context.Context, examID uuid.UUID, orgID int) (*model.Exam, error) {
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
