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

// AttemptHandler exposes the attempt lifecycle API: the candidate side
// (start, autosave, submit, reconnect state) and the supervision side
// (live listing, evaluation).
type AttemptHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// Start handles POST /exams/:examId/attempt.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	attempt, err := h.attempts.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case apperr.Is(err, apperr.KindConflict):
			response.Fail(c, http.StatusConflict, response.ErrAttemptExists)
		case apperr.Is(err, apperr.KindInvalidState):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrExamNotPublished)
		default:
			failFromError(c, err)
		}
		return
	}
	response.Success(c, http.StatusCreated, attempt)
}

// Autosave handles PUT /exams/:examId/attempt/answers.
func (h *AttemptHandler) Autosave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.Autosave(c.Request.Context(), examID, claims.UserID, req.Answers); err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrAttemptNotLive)
			return
		}
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit handles POST /exams/:examId/attempt/submit.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attempts.Submit(c.Request.Context(), examID, claims.UserID, req.Answers)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrExamNotPublished)
			return
		}
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// State handles GET /exams/:examId/attempt/state, the reconnect payload.
func (h *AttemptHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	state, err := h.attempts.State(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		case apperr.Is(err, apperr.KindInvalidState):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrAttemptNotLive)
		default:
			failFromError(c, err)
		}
		return
	}
	response.Success(c, http.StatusOK, state)
}

// ListLive handles GET /admin/exams/:examId/attempts/live, the proctoring
// dashboard listing.
func (h *AttemptHandler) ListLive(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	attempts, err := h.attempts.ListLive(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, attempts)
}

// RecordEvaluation handles POST /admin/exams/:examId/attempts/:candidateId/evaluation.
func (h *AttemptHandler) RecordEvaluation(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	candidateID, err := strconv.Atoi(c.Param("candidateId"))
	if err != nil || candidateID < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordEvaluationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.RecordEvaluation(c.Request.Context(), examID, candidateID, req); err != nil {
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		case apperr.Is(err, apperr.KindInvalidState):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrAttemptNotGradable)
		default:
			failFromError(c, err)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"evaluated": true})
}
