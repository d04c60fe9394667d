package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vigilo/vigilo-backend/internal/apperr"
	"github.com/vigilo/vigilo-backend/internal/response"
)

// failFromError translates a domain error into the response envelope.
// Handlers with a more specific code for a kind map it before calling this.
func failFromError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case apperr.KindConflict:
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case apperr.KindInvalidState:
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidState)
	case apperr.KindForbidden:
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case apperr.KindValidation:
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// examIDParam parses the :examId path parameter. On failure it writes the
// error response and reports false.
func examIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("examId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
