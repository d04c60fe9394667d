package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// AttemptRepository handles exam attempt data access. The UNIQUE
// (exam_id, candidate_id) constraint is the authoritative at-most-once guard:
// Create signals a duplicate via pgx.ErrNoRows instead of relying on a
// check-then-act existence probe.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, candidate_id, answers, evaluator_id, randomly_assigned,
	        is_live, status, total_marks, score, comments, started_at, submitted_at, evaluated_at`

func scanAttempt(row pgx.Row) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.CandidateID, &a.Answers, &a.EvaluatorID, &a.RandomlyAssigned,
		&a.IsLive, &a.Status, &a.TotalMarks, &a.Score, &a.Comments, &a.StartedAt, &a.SubmittedAt, &a.EvaluatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByExamAndCandidate retrieves the attempt for an exam-candidate pair.
func (r *AttemptRepository) GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE exam_id = $1 AND candidate_id = $2`, examID, candidateID,
	))
}

// Create inserts a LIVE attempt with empty answers. Returns pgx.ErrNoRows
// when an attempt already exists for the pair (concurrent or repeated start).
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts
		   (exam_id, candidate_id, answers, evaluator_id, randomly_assigned, is_live, status, total_marks)
		 VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7)
		 ON CONFLICT (exam_id, candidate_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.CandidateID, a.Answers, a.EvaluatorID, a.RandomlyAssigned,
		model.AttemptStatusLive, a.TotalMarks,
	).Scan(&a.ID, &a.StartedAt)
}

// UpdateAnswers replaces the answer map of a LIVE attempt (autosave).
// Returns pgx.ErrNoRows if no live attempt exists for the pair.
func (r *AttemptRepository) UpdateAnswers(ctx context.Context, examID uuid.UUID, candidateID int, answers model.AnswerMap) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET answers = $1
		 WHERE exam_id = $2 AND candidate_id = $3 AND is_live`,
		answers, examID, candidateID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Submit upserts the attempt into SUBMITTED state. When no row exists (the
// client skipped "start") a new one is created directly in SUBMITTED; when a
// row exists the conflict path updates it in place, leaving the original
// evaluator assignment untouched. A repeated submit therefore updates the
// same record instead of creating a duplicate.
func (r *AttemptRepository) Submit(ctx context.Context, a *model.ExamAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts
		   (exam_id, candidate_id, answers, evaluator_id, randomly_assigned, is_live, status, total_marks, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, NOW())
		 ON CONFLICT (exam_id, candidate_id) DO UPDATE
		 SET answers = EXCLUDED.answers,
		     is_live = FALSE,
		     status = $6,
		     total_marks = EXCLUDED.total_marks,
		     submitted_at = NOW()
		 RETURNING id, started_at, submitted_at`,
		a.ExamID, a.CandidateID, a.Answers, a.EvaluatorID, a.RandomlyAssigned,
		model.AttemptStatusSubmitted, a.TotalMarks,
	).Scan(&a.ID, &a.StartedAt, &a.SubmittedAt)
}

// SetScore stores an automatically computed score.
func (r *AttemptRepository) SetScore(ctx context.Context, examID uuid.UUID, candidateID, score int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts SET score = $1
		 WHERE exam_id = $2 AND candidate_id = $3`,
		score, examID, candidateID,
	)
	return err
}

// RecordEvaluation stores an evaluator's score and comments and flips the
// attempt to EVALUATED. Only SUBMITTED attempts are eligible.
func (r *AttemptRepository) RecordEvaluation(ctx context.Context, examID uuid.UUID, candidateID, score int, comments string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = $1, score = $2, comments = $3, evaluated_at = NOW()
		 WHERE exam_id = $4 AND candidate_id = $5 AND status = $6`,
		model.AttemptStatusEvaluated, score, comments,
		examID, candidateID, model.AttemptStatusSubmitted,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListLiveByExam retrieves all attempts still flagged live for an exam.
// Callers apply the read-time freshness checks on top of this.
func (r *AttemptRepository) ListLiveByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE exam_id = $1 AND is_live
		 ORDER BY started_at ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// MarkNotLive flips is_live off for a batch of attempt ids. Used by the
// live sweep worker for attempts the live listing excluded.
func (r *AttemptRepository) MarkNotLive(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts SET is_live = FALSE WHERE id = ANY($1)`, ids)
	return err
}
