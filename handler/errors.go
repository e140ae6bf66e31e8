package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractwatch/breach"
	"github.com/AnTengye/contractwatch/penalty"
	"github.com/AnTengye/contractwatch/pipeline"
	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/prompt"
	"github.com/AnTengye/contractwatch/service"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidUpload),
		errors.Is(err, prompt.ErrInvalidInput),
		errors.Is(err, breach.ErrInvalidRule),
		errors.Is(err, penalty.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, breach.ErrNoExtraction), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrModel), errors.Is(err, prompt.ErrInvalidOutput):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if stage := prompt.StageOf(err); stage != "" {
		body["stage"] = stage
	}
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "status", status, "error", err)
	}
	c.JSON(status, body)
}
