package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// CandidateRepository handles candidate profile data access.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

// buildFilterClause appends one AND clause per non-empty filter dimension,
// each evaluated as an IN over the provided values.
func buildFilterClause(base string, args []any, filter model.CandidateFilter) (string, []any) {
	if len(filter.Schools) > 0 {
		args = append(args, filter.Schools)
		base += fmt.Sprintf(" AND school = ANY($%d)", len(args))
	}
	if len(filter.Departments) > 0 {
		args = append(args, filter.Departments)
		base += fmt.Sprintf(" AND department = ANY($%d)", len(args))
	}
	if len(filter.Batches) > 0 {
		args = append(args, filter.Batches)
		base += fmt.Sprintf(" AND batch = ANY($%d)", len(args))
	}
	if len(filter.Semesters) > 0 {
		args = append(args, filter.Semesters)
		base += fmt.Sprintf(" AND semester = ANY($%d)", len(args))
	}
	return base, args
}

// CountByFilter counts the organization's candidates matching the filter.
// No side effects.
func (r *CandidateRepository) CountByFilter(ctx context.Context, orgID int, filter model.CandidateFilter) (int, error) {
	where, args := buildFilterClause(`WHERE org_id = $1`, []any{orgID}, filter)

	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM candidates `+where, args...).Scan(&count)
	return count, err
}

// ListIDsByFilter returns the ids of the organization's candidates matching
// the filter. An empty filter matches every candidate in the organization.
func (r *CandidateRepository) ListIDsByFilter(ctx context.Context, orgID int, filter model.CandidateFilter) ([]int, error) {
	where, args := buildFilterClause(`WHERE org_id = $1`, []any{orgID}, filter)

	rows, err := r.pool.Query(ctx, `SELECT id FROM candidates `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByID retrieves a candidate profile.
func (r *CandidateRepository) GetByID(ctx context.Context, id int) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, org_id, name, email, school, department, batch, semester, created_at
		 FROM candidates WHERE id = $1`, id,
	).Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.School, &c.Department, &c.Batch, &c.Semester, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new candidate account.
func (r *CandidateRepository) Create(ctx context.Context, c *model.Candidate) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO candidates (org_id, name, email, school, department, batch, semester, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		c.OrgID, c.Name, c.Email, c.School, c.Department, c.Batch, c.Semester, c.PasswordHash,
	).Scan(&c.ID, &c.CreatedAt)
}
