package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamAccessGrant gives one candidate visibility into one published exam.
// Grants are created in bulk inside the publish transaction and deleted en
// masse on unpublish.
type ExamAccessGrant struct {
	ID          int             `json:"id"`
	ExamID      uuid.UUID       `json:"exam_id"`
	CandidateID int             `json:"candidate_id"`
	Criteria    json.RawMessage `json:"criteria"`
	HasAccess   bool            `json:"has_access"`
	CreatedAt   time.Time       `json:"created_at"`
}
