package handler

import (
	"errors"
	"net/http"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func handleServiceError(c *gin.Context, err error, logger *zap.Logger) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, models.ErrEmptySource):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeEmptySource, Message: "Source contains no usable data rows"}
	case errors.Is(err, models.ErrIngestRunning):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeIngestRunning, Message: "An ingestion for this story is already in progress"}
	case errors.Is(err, models.ErrStoryNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeStoryNotFound, Message: "Story not found"}
	case errors.Is(err, models.ErrStoryUnpublished):
		statusCode = http.StatusNotFound
		// Unpublished stories look identical to missing ones from outside.
		errResp = models.ErrorResponse{Code: models.ErrCodeStoryNotFound, Message: "Story not found"}
	case errors.Is(err, models.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeSessionNotFound, Message: "Reading session not found or expired"}
	case errors.Is(err, models.ErrSessionTerminal):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeSessionTerminal, Message: "The story has already ended for this session"}
	case errors.Is(err, models.ErrInvalidChoice):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeInvalidChoice, Message: "Choice does not exist on the current node"}
	case errors.Is(err, models.ErrNoCheckOnNode), errors.Is(err, models.ErrUnknownStat):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeNoCheck, Message: err.Error()}
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrTokenMalformed):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Token is invalid or malformed"}
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenExpired, Message: "Token has expired"}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeStoryNotFound, Message: "Resource not found"}
	default:
		logger.Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
