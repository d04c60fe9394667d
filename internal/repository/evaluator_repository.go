package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// EvaluatorRepository handles evaluator accounts and their exam mappings.
type EvaluatorRepository struct {
	pool *pgxpool.Pool
}

// NewEvaluatorRepository creates a new EvaluatorRepository.
func NewEvaluatorRepository(pool *pgxpool.Pool) *EvaluatorRepository {
	return &EvaluatorRepository{pool: pool}
}

// ListMappingsByExam retrieves all evaluator mappings for an exam.
func (r *EvaluatorRepository) ListMappingsByExam(ctx context.Context, examID uuid.UUID) ([]model.EvaluatorMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, evaluator_id, candidate_emails
		 FROM evaluator_mappings
		 WHERE exam_id = $1
		 ORDER BY id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []model.EvaluatorMapping
	for rows.Next() {
		var m model.EvaluatorMapping
		if err := rows.Scan(&m.ID, &m.ExamID, &m.EvaluatorID, &m.CandidateEmails); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// CreateMapping inserts a new evaluator mapping.
func (r *EvaluatorRepository) CreateMapping(ctx context.Context, m *model.EvaluatorMapping) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO evaluator_mappings (exam_id, evaluator_id, candidate_emails)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		m.ExamID, m.EvaluatorID, m.CandidateEmails,
	).Scan(&m.ID)
}

// CreateEvaluator inserts a new evaluator account.
func (r *EvaluatorRepository) CreateEvaluator(ctx context.Context, e *model.Evaluator) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO evaluators (org_id, name, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.OrgID, e.Name, e.Email, e.PasswordHash,
	).Scan(&e.ID, &e.CreatedAt)
}
