package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the publication states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
)

// ExamType determines how submissions are graded.
type ExamType string

const (
	// ExamTypeMCQ exams are graded synchronously at submit time.
	ExamTypeMCQ ExamType = "MCQ"
	// ExamTypeFreeResponse and ExamTypeProgramming exams are graded by an evaluator.
	ExamTypeFreeResponse ExamType = "FREE_RESPONSE"
	ExamTypeProgramming  ExamType = "PROGRAMMING"
)

// AutoGraded reports whether submissions of this type are scored automatically.
func (t ExamType) AutoGraded() bool { return t == ExamTypeMCQ }

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	OrgID           int        `json:"org_id"`
	Title           string     `json:"title"`
	Type            ExamType   `json:"type"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          ExamStatus `json:"status"`
	// CandidateCount is the grant-count snapshot frozen at publish time.
	CandidateCount *int       `json:"candidate_count,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Type            string `json:"type" binding:"required,oneof=MCQ FREE_RESPONSE PROGRAMMING"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// PublishExamRequest is the payload for publishing an exam. All filter
// dimensions are optional; an empty filter grants every candidate in the org.
type PublishExamRequest struct {
	Filter CandidateFilter `json:"filter"`
}
