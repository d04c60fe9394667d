package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single exam question. A question with more than one
// correct answer is a multi-select and is graded by set equality.
type Question struct {
	ID             uuid.UUID       `json:"id"`
	ExamID         uuid.UUID       `json:"exam_id"`
	Text           string          `json:"text"`
	Options        json.RawMessage `json:"options"`
	CorrectAnswers []string        `json:"correct_answers"`
	Marks          int             `json:"marks"`
	OrderNum       int             `json:"order_num"`
}

// QuestionForCandidate is a question without the correct answers.
type QuestionForCandidate struct {
	ID       uuid.UUID       `json:"id"`
	Text     string          `json:"text"`
	Options  json.RawMessage `json:"options"`
	Marks    int             `json:"marks"`
	OrderNum int             `json:"order_num"`
}

// AddQuestionRequest is the payload for adding a question to a draft exam.
type AddQuestionRequest struct {
	Text           string          `json:"text" binding:"required,min=1,max=2000"`
	Options        json.RawMessage `json:"options" binding:"required"`
	CorrectAnswers []string        `json:"correct_answers" binding:"required,min=1,dive,max=255"`
	Marks          int             `json:"marks" binding:"required,min=1,max=100"`
	OrderNum       int             `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
