package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, org_id, title, type, duration_minutes, status,
	        candidate_count, published_at, created_at, updated_at`

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.OrgID, &e.Title, &e.Type, &e.DurationMinutes, &e.Status,
		&e.CandidateCount, &e.PublishedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new exam as DRAFT.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (org_id, title, type, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		e.OrgID, e.Title, e.Type, e.DurationMinutes, model.ExamStatusDraft,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// ListByOrg retrieves an organization's exams with pagination.
func (r *ExamRepository) ListByOrg(ctx context.Context, orgID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE org_id = $1`, orgID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams WHERE org_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, orgID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Title, &e.Type, &e.DurationMinutes, &e.Status,
			&e.CandidateCount, &e.PublishedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// Delete removes an exam; dependent rows cascade at the schema level.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}

// ListVisibleToCandidate returns published exams the candidate holds a grant
// for, restricted to exams published after the candidate's account creation.
// The cutoff prevents retroactively surfacing exams to accounts created after
// publication.
func (r *ExamRepository) ListVisibleToCandidate(ctx context.Context, candidateID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.org_id, e.title, e.type, e.duration_minutes, e.status,
		        e.candidate_count, e.published_at, e.created_at, e.updated_at
		 FROM exams e
		 JOIN exam_access_grants g ON g.exam_id = e.id
		 JOIN candidates c ON c.id = g.candidate_id
		 WHERE g.candidate_id = $1
		   AND g.has_access
		   AND e.status = $2
		   AND e.published_at > c.created_at
		 ORDER BY e.published_at DESC`,
		candidateID, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Title, &e.Type, &e.DurationMinutes, &e.Status,
			&e.CandidateCount, &e.PublishedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
