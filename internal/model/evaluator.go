package model

import (
	"time"

	"github.com/google/uuid"
)

// Evaluator represents a grading evaluator account.
type Evaluator struct {
	ID           int       `json:"id"`
	OrgID        int       `json:"org_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// EvaluatorMapping assigns one evaluator to a list of candidate emails for
// one exam. A candidate whose email appears in a mapping's list is assigned
// that evaluator deterministically.
type EvaluatorMapping struct {
	ID              int       `json:"id"`
	ExamID          uuid.UUID `json:"exam_id"`
	EvaluatorID     int       `json:"evaluator_id"`
	CandidateEmails []string  `json:"candidate_emails"`
}

// CreateEvaluatorMappingRequest is the payload for adding a mapping.
type CreateEvaluatorMappingRequest struct {
	EvaluatorID     int      `json:"evaluator_id" binding:"required,min=1"`
	CandidateEmails []string `json:"candidate_emails" binding:"required,min=1,dive,email"`
}
