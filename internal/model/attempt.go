package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the lifecycle states of an exam attempt.
// The absence of a record is the implicit "not started" state.
type AttemptStatus string

const (
	AttemptStatusLive      AttemptStatus = "LIVE"
	AttemptStatusSubmitted AttemptStatus = "SUBMITTED"
	AttemptStatusEvaluated AttemptStatus = "EVALUATED"
)

// AnswerValue is a candidate's answer to one question. Single-choice clients
// send a bare JSON string, multi-select clients send an array; both decode
// into a slice.
type AnswerValue []string

// UnmarshalJSON accepts either "A" or ["A","B"].
func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AnswerValue{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = AnswerValue(list)
	return nil
}

// AnswerMap maps question id → submitted answer(s).
type AnswerMap map[string]AnswerValue

// ExamAttempt is one candidate's single attempt at one exam.
// At most one row exists per (exam_id, candidate_id).
type ExamAttempt struct {
	ID               uuid.UUID     `json:"id"`
	ExamID           uuid.UUID     `json:"exam_id"`
	CandidateID      int           `json:"candidate_id"`
	Answers          AnswerMap     `json:"answers"`
	EvaluatorID      *int          `json:"evaluator_id,omitempty"`
	RandomlyAssigned bool          `json:"randomly_assigned"`
	IsLive           bool          `json:"is_live"`
	Status           AttemptStatus `json:"status"`
	TotalMarks       int           `json:"total_marks"`
	Score            *int          `json:"score,omitempty"`
	Comments         *string       `json:"comments,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	EvaluatedAt      *time.Time    `json:"evaluated_at,omitempty"`
}

// AttemptState is the reconnect payload for a live attempt: the autosaved
// answers plus the remaining wall-clock seconds.
type AttemptState struct {
	ExamID           uuid.UUID         `json:"exam_id"`
	CandidateID      int               `json:"candidate_id"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingTime    float64           `json:"remaining_time"`
}

// AutosaveRequest replaces the attempt's answer map while LIVE.
type AutosaveRequest struct {
	Answers AnswerMap `json:"answers" binding:"required"`
}

// SubmitRequest finalizes the attempt with its answer map.
type SubmitRequest struct {
	Answers AnswerMap `json:"answers" binding:"required"`
}

// RecordEvaluationRequest is the evaluator's manual score + comments.
type RecordEvaluationRequest struct {
	Score    int    `json:"score" binding:"min=0,max=100"`
	Comments string `json:"comments" binding:"max=4000"`
}
