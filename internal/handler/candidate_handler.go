package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/middleware"
	"github.com/vigilo/vigilo-backend/internal/response"
	"github.com/vigilo/vigilo-backend/internal/service"
)

// CandidateHandler exposes the candidate portal: the visible exam list and
// the answer-stripped question set.
type CandidateHandler struct {
	exams       *service.ExamService
	publication *service.PublicationService
	log         zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(exams *service.ExamService, publication *service.PublicationService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		exams:       exams,
		publication: publication,
		log:         log.With().Str("component", "candidate_handler").Logger(),
	}
}

// ListExams handles GET /exams: the published exams this candidate may take.
func (h *CandidateHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)

	exams, err := h.publication.VisibleExams(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exams)
}

// Questions handles GET /exams/:examId/questions. Correct answers never
// leave the server on this path.
func (h *CandidateHandler) Questions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	questions, err := h.exams.QuestionsForCandidate(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}
