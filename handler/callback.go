package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/service"
)

type CallbackHandler struct {
	mineruService *service.MineruService
}

func NewCallbackHandler(mineruSvc *service.MineruService) *CallbackHandler {
	return &CallbackHandler{mineruService: mineruSvc}
}

// HandleCallback receives task completion callbacks from MinerU and wakes the waiting OCR job
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	if h.mineruService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "MinerU OCR is not enabled"})
		return
	}

	var req service.MineruCallbackPayload
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	content, err := h.mineruService.HandleCallback(req)
	switch {
	case errors.Is(err, service.ErrInvalidChecksum):
		logger.Warn(c.Request.Context(), "mineru callback rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid checksum"})
		return
	case errors.Is(err, service.ErrUnknownTask):
		c.JSON(http.StatusNotFound, gin.H{"error": "No OCR job is waiting for this task"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	logger.Info(logger.WithContract(c.Request.Context(), content.DataID), "mineru callback received",
		"task_id", content.TaskID, "state", content.State)
	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}
