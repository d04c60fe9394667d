package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// The durable store is an external collaborator. Services depend on these
// narrow interfaces, implemented by the pgx repositories, so the lifecycle
// logic can be exercised against fakes.

// ExamStore provides exam records.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	ListByOrg(ctx context.Context, orgID, limit, offset int) ([]model.Exam, int, error)
	ListVisibleToCandidate(ctx context.Context, candidateID int) ([]model.Exam, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// QuestionStore provides exam question sets.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
	ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error
}

// AttemptStore provides attempt records. Create must rely on the store's
// (exam_id, candidate_id) uniqueness constraint and report a duplicate as
// pgx.ErrNoRows; Submit must be an idempotent upsert on the same key.
type AttemptStore interface {
	GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamAttempt, error)
	Create(ctx context.Context, a *model.ExamAttempt) error
	UpdateAnswers(ctx context.Context, examID uuid.UUID, candidateID int, answers model.AnswerMap) error
	Submit(ctx context.Context, a *model.ExamAttempt) error
	SetScore(ctx context.Context, examID uuid.UUID, candidateID, score int) error
	RecordEvaluation(ctx context.Context, examID uuid.UUID, candidateID, score int, comments string) error
	ListLiveByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamAttempt, error)
}

// CandidateStore provides candidate profiles and filter queries.
type CandidateStore interface {
	GetByID(ctx context.Context, id int) (*model.Candidate, error)
	CountByFilter(ctx context.Context, orgID int, filter model.CandidateFilter) (int, error)
	ListIDsByFilter(ctx context.Context, orgID int, filter model.CandidateFilter) ([]int, error)
}

// GrantStore provides the transactional publish/unpublish operations.
type GrantStore interface {
	PublishExam(ctx context.Context, examID uuid.UUID, candidateIDs []int, criteria model.CandidateFilter) (time.Time, error)
	UnpublishExam(ctx context.Context, examID uuid.UUID) error
	HasAccess(ctx context.Context, examID uuid.UUID, candidateID int) (bool, error)
}

// MappingStore provides evaluator mappings.
type MappingStore interface {
	ListMappingsByExam(ctx context.Context, examID uuid.UUID) ([]model.EvaluatorMapping, error)
	CreateMapping(ctx context.Context, m *model.EvaluatorMapping) error
}
