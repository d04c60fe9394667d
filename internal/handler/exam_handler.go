package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/apperr"
	"github.com/vigilo/vigilo-backend/internal/middleware"
	"github.com/vigilo/vigilo-backend/internal/model"
	"github.com/vigilo/vigilo-backend/internal/response"
	"github.com/vigilo/vigilo-backend/internal/service"
	"github.com/vigilo/vigilo-backend/internal/validator"
)

// ExamHandler exposes the admin-facing exam authoring and publication API.
type ExamHandler struct {
	exams       *service.ExamService
	publication *service.PublicationService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams *service.ExamService, publication *service.PublicationService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams:       exams,
		publication: publication,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// Create handles POST /admin/exams.
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), claims.OrgID, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// List handles GET /admin/exams with page/per_page query params.
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	exams, total, err := h.exams.List(c.Request.Context(), claims.OrgID, perPage, (page-1)*perPage)
	if err != nil {
		failFromError(c, err)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	response.SuccessWithPagination(c, http.StatusOK, exams, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// Get handles GET /admin/exams/:examId.
func (h *ExamHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.exams.Get(c.Request.Context(), examID, claims.OrgID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Delete handles DELETE /admin/exams/:examId.
func (h *ExamHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if err := h.exams.Delete(c.Request.Context(), examID, claims.OrgID); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ReplaceQuestions handles PUT /admin/exams/:examId/questions.
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.exams.ReplaceQuestions(c.Request.Context(), examID, claims.OrgID, req); err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrExamNotDraft)
			return
		}
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": len(req.Questions)})
}

// Questions handles GET /admin/exams/:examId/questions.
func (h *ExamHandler) Questions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	questions, err := h.exams.Questions(c.Request.Context(), examID, claims.OrgID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// CountCandidates handles POST /admin/exams/candidate-count: a dry run of a
// publish filter.
func (h *ExamHandler) CountCandidates(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var filter model.CandidateFilter
	if fields := validator.Bind(c, &filter); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	count, err := h.publication.CountCandidates(c.Request.Context(), claims.OrgID, filter)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// Publish handles POST /admin/exams/:examId/publish.
func (h *ExamHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.PublishExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.publication.Publish(c.Request.Context(), examID, claims.OrgID, req.Filter)
	if err != nil {
		switch {
		case apperr.Is(err, apperr.KindInvalidState):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
		default:
			failFromError(c, err)
		}
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// Unpublish handles POST /admin/exams/:examId/unpublish.
func (h *ExamHandler) Unpublish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	if err := h.publication.Unpublish(c.Request.Context(), examID, claims.OrgID); err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrExamNotPublished)
			return
		}
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unpublished": true})
}

// AddMapping handles POST /admin/exams/:examId/evaluator-mappings.
func (h *ExamHandler) AddMapping(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.CreateEvaluatorMappingRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	mapping, err := h.exams.AddMapping(c.Request.Context(), examID, claims.OrgID, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, mapping)
}

// ListMappings handles GET /admin/exams/:examId/evaluator-mappings.
func (h *ExamHandler) ListMappings(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	mappings, err := h.exams.ListMappings(c.Request.Context(), examID, claims.OrgID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, mappings)
}
