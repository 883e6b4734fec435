package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// respondStoreError maps repository sentinels onto HTTP statuses
func respondStoreError(c *gin.Context, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", notFoundMessage)
	case errors.Is(err, repository.ErrDuplicate):
		respondError(c, http.StatusConflict, "DUPLICATE", "A record with the same key already exists")
	case repository.IsUnavailable(err):
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is temporarily unavailable")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// parseIDParam reads a UUID path parameter, writing a 400 when malformed
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
