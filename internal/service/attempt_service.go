package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/apperr"
	"github.com/vigilo/vigilo-backend/internal/model"
	"github.com/vigilo/vigilo-backend/internal/scoring"
)

// Cache entries outlive the longest allowed exam by a wide margin so a
// reconnecting candidate can always recover state.
const attemptCacheTTL = 12 * time.Hour

// AttemptService manages the attempt lifecycle: start, autosave, submit,
// evaluation, and the live dashboard listing. The absence of a record is the
// implicit "not started" state; the store's uniqueness constraint on
// (exam_id, candidate_id) is the authoritative at-most-once guard.
type AttemptService struct {
	exams      ExamStore
	questions  QuestionStore
	attempts   AttemptStore
	candidates CandidateStore
	grants     GrantStore
	mappings   MappingStore
	cache      AttemptCache
	log        zerolog.Logger
	now        func() time.Time
	pick       func(n int) int
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	exams ExamStore,
	questions QuestionStore,
	attempts AttemptStore,
	candidates CandidateStore,
	grants GrantStore,
	mappings MappingStore,
	cache AttemptCache,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		exams:      exams,
		questions:  questions,
		attempts:   attempts,
		candidates: candidates,
		grants:     grants,
		mappings:   mappings,
		cache:      cache,
		log:        log.With().Str("component", "attempt_service").Logger(),
		now:        time.Now,
		pick:       rand.Intn,
	}
}

// Start creates a LIVE attempt with empty answers. The evaluator assignment
// is fixed here and never re-resolved for an existing record. A second start
// for the same pair fails with a conflict, whether sequential or concurrent:
// the insert goes through the store's unique constraint, not a prior
// existence check.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamAttempt, error) {
	exam, err := s.loadPublishedExam(ctx, examID)
	if err != nil {
		return nil, err
	}

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
	if len(questions) == 0 {
		return nil, apperr.New(apperr.KindInvalidState, "exam has no questions")
	}

	evaluatorID, random, err := s.resolveEvaluator(ctx, examID, candidateID)
	if err != nil {
		return nil, err
	}

	attempt := &model.ExamAttempt{
		ExamID:           examID,
		CandidateID:      candidateID,
		Answers:          model.AnswerMap{},
		EvaluatorID:      evaluatorID,
		RandomlyAssigned: random,
		IsLive:           true,
		Status:           model.AttemptStatusLive,
		TotalMarks:       scoring.TotalMarks(questions),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindConflict, "attempt already exists for this exam")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "create attempt", err)
	}

	// Cache writes are best effort: losing them only costs a slower reconnect.
	if err := s.cache.SetAttemptStart(ctx, examID.String(), candidateID, attempt.StartedAt, attemptCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("cache attempt start")
	}
	if err := s.cache.SetExamDuration(ctx, examID.String(), exam.DurationMinutes); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("cache exam duration")
	}

	return attempt, nil
}

// Autosave replaces the answer map of a LIVE attempt and mirrors it into the
// cache for fast reconnects. Idempotent overwrite, no state change.
func (s *AttemptService) Autosave(ctx context.Context, examID uuid.UUID, candidateID int, answers model.AnswerMap) error {
	if err := s.attempts.UpdateAnswers(ctx, examID, candidateID, answers); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.KindInvalidState, "no live attempt for this exam")
		}
		return apperr.Wrap(apperr.KindInternal, "update answers", err)
	}

	if err := s.cache.MirrorAnswers(ctx, examID.String(), candidateID, answers, attemptCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("mirror answers")
	}
	return nil
}

// Submit finalizes the attempt with its answers. A LIVE record is updated in
// place; a missing record (client skipped start) is created directly in
// SUBMITTED state with a freshly resolved evaluator. Repeated submits update
// the same record, so retries are safe. MCQ exams are scored synchronously.
func (s *AttemptService) Submit(ctx context.Context, examID uuid.UUID, candidateID int, answers model.AnswerMap) (*model.ExamAttempt, error) {
	exam, err := s.loadPublishedExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list questions", err)
	}

	// Only used on the insert path. The store's conflict path leaves the
	// original assignment untouched.
	evaluatorID, random, err := s.resolveEvaluator(ctx, examID, candidateID)
	if err != nil {
		return nil, err
	}

	attempt := &model.ExamAttempt{
		ExamID:           examID,
		CandidateID:      candidateID,
		Answers:          answers,
		EvaluatorID:      evaluatorID,
		RandomlyAssigned: random,
		Status:           model.AttemptStatusSubmitted,
		TotalMarks:       scoring.TotalMarks(questions),
	}
	if err := s.attempts.Submit(ctx, attempt); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "submit attempt", err)
	}

	if exam.Type.AutoGraded() {
		score := scoring.Score(answers, questions)
		if err := s.attempts.SetScore(ctx, examID, candidateID, score); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "store score", err)
		}
		attempt.Score = &score
	}

	if err := s.cache.Clear(ctx, examID.String(), candidateID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("clear attempt cache")
	}
	return attempt, nil
}

// RecordEvaluation stores an evaluator's manual score and comments, moving
// the attempt from SUBMITTED to EVALUATED.
func (s *AttemptService) RecordEvaluation(ctx context.Context, examID uuid.UUID, candidateID int, req model.RecordEvaluationRequest) error {
	err := s.attempts.RecordEvaluation(ctx, examID, candidateID, req.Score, req.Comments)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindInternal, "record evaluation", err)
	}

	// Distinguish a missing attempt from one in the wrong state.
	if _, getErr := s.attempts.GetByExamAndCandidate(ctx, examID, candidateID); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "attempt not found")
		}
		return apperr.Wrap(apperr.KindInternal, "load attempt", getErr)
	}
	return apperr.New(apperr.KindInvalidState, "attempt is not awaiting evaluation")
}

// ListLive returns the attempts currently live for an exam. The stored flag
// alone is not trusted: an attempt with recorded answers, or one older than
// the exam duration, is excluded and queued for the sweep worker to flip
// not-live in the background.
func (s *AttemptService) ListLive(ctx context.Context, examID uuid.UUID) ([]model.ExamAttempt, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load exam", err)
	}

	attempts, err := s.attempts.ListLiveByExam(ctx, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list live attempts", err)
	}

	deadline := time.Duration(exam.DurationMinutes) * time.Minute
	now := s.now()

	live := make([]model.ExamAttempt, 0, len(attempts))
	var stale []uuid.UUID
	for _, a := range attempts {
		if len(a.Answers) > 0 || now.Sub(a.StartedAt) > deadline {
			stale = append(stale, a.ID)
			continue
		}
		live = append(live, a)
	}

	if len(stale) > 0 {
		if err := s.cache.QueueLiveExpiry(ctx, stale); err != nil {
			s.log.Warn().Err(err).Int("count", len(stale)).Msg("queue live expiry")
		}
	}
	return live, nil
}

// State returns the reconnect payload for a live attempt: the mirrored
// answers plus remaining wall-clock seconds. Cache misses fall back to the
// durable store and self-heal the cache.
func (s *AttemptService) State(ctx context.Context, examID uuid.UUID, candidateID int) (*model.AttemptState, error) {
	answers, err := s.cache.Answers(ctx, examID.String(), candidateID)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("read answers cache")
		answers = map[string]string{}
	}

	start, err := s.cache.AttemptStart(ctx, examID.String(), candidateID)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("read attempt start cache")
		}
		attempt, dbErr := s.attempts.GetByExamAndCandidate(ctx, examID, candidateID)
		if dbErr != nil {
			if errors.Is(dbErr, pgx.ErrNoRows) {
				return nil, apperr.New(apperr.KindNotFound, "attempt not found")
			}
			return nil, apperr.Wrap(apperr.KindInternal, "load attempt", dbErr)
		}
		if attempt.Status != model.AttemptStatusLive {
			return nil, apperr.New(apperr.KindInvalidState, "attempt is no longer live")
		}
		start = attempt.StartedAt
		if err := s.cache.SetAttemptStart(ctx, examID.String(), candidateID, start, attemptCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("heal attempt start cache")
		}
	}

	minutes, err := s.cache.ExamDuration(ctx, examID.String())
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("read exam duration cache")
		}
		exam, examErr := s.loadPublishedExam(ctx, examID)
		if examErr != nil {
			return nil, examErr
		}
		minutes = exam.DurationMinutes
		if err := s.cache.SetExamDuration(ctx, examID.String(), minutes); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("heal exam duration cache")
		}
	}

	remaining := float64(minutes)*60 - s.now().Sub(start).Seconds()
	if remaining < 0 {
		remaining = 0
	}

	return &model.AttemptState{
		ExamID:           examID,
		CandidateID:      candidateID,
		AutosavedAnswers: answers,
		RemainingTime:    remaining,
	}, nil
}

// resolveEvaluator assigns an evaluator from the exam's mappings. A mapping
// that lists the candidate's email wins deterministically; otherwise one
// mapping is drawn uniformly at random and the assignment flagged as such.
// No mappings at all leaves the evaluator unset.
func (s *AttemptService) resolveEvaluator(ctx context.Context, examID uuid.UUID, candidateID int) (*int, bool, error) {
	mappings, err := s.mappings.ListMappingsByExam(ctx, examID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "list evaluator mappings", err)
	}
	if len(mappings) == 0 {
		return nil, false, nil
	}

	candidate, err := s.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "load candidate", err)
	}

	for _, m := range mappings {
		for _, email := range m.CandidateEmails {
			if email == candidate.Email {
				id := m.EvaluatorID
				return &id, false, nil
			}
		}
	}

	id := mappings[s.pick(len(mappings))].EvaluatorID
	return &id, true, nil
}

func (s *AttemptService) loadPublishedExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load exam", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, apperr.New(apperr.KindInvalidState, "exam is not published")
	}
	return exam, nil
}
