package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// GrantRepository handles exam access grants. Publish and unpublish run as
// single transactions so the exam's status transition and its grant set can
// never diverge.
type GrantRepository struct {
	pool *pgxpool.Pool
}

// NewGrantRepository creates a new GrantRepository.
func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{pool: pool}
}

// PublishExam creates one grant per candidate id and flips the exam to
// PUBLISHED with a frozen candidate-count snapshot and publish timestamp.
// Everything happens in one transaction: if grant creation fails, the exam
// stays DRAFT.
func (r *GrantRepository) PublishExam(ctx context.Context, examID uuid.UUID, candidateIDs []int, criteria model.CandidateFilter) (time.Time, error) {
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal criteria: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, cid := range candidateIDs {
		batch.Queue(
			`INSERT INTO exam_access_grants (exam_id, candidate_id, criteria, has_access)
			 VALUES ($1, $2, $3, TRUE)`,
			examID, cid, criteriaJSON,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return time.Time{}, fmt.Errorf("insert grants: %w", err)
	}

	var publishedAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE exams
		 SET status = $1, candidate_count = $2, published_at = NOW(), updated_at = NOW()
		 WHERE id = $3 AND status = $4
		 RETURNING published_at`,
		model.ExamStatusPublished, len(candidateIDs), examID, model.ExamStatusDraft,
	).Scan(&publishedAt)
	if err != nil {
		// pgx.ErrNoRows here means a concurrent publish won the race.
		return time.Time{}, fmt.Errorf("flip exam status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("commit: %w", err)
	}
	return publishedAt, nil
}

// UnpublishExam deletes all grants for the exam and reverts it to DRAFT,
// clearing the snapshot and publish timestamp, in one transaction.
func (r *GrantRepository) UnpublishExam(ctx context.Context, examID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM exam_access_grants WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE exams
		 SET status = $1, candidate_count = NULL, published_at = NULL, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.ExamStatusDraft, examID, model.ExamStatusPublished,
	)
	if err != nil {
		return fmt.Errorf("revert exam status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

// HasAccess reports whether the candidate holds an access grant for the exam.
func (r *GrantRepository) HasAccess(ctx context.Context, examID uuid.UUID, candidateID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM exam_access_grants
		   WHERE exam_id = $1 AND candidate_id = $2 AND has_access
		 )`, examID, candidateID,
	).Scan(&ok)
	return ok, err
}
