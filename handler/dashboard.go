package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractwatch/llm"
	"github.com/AnTengye/contractwatch/model"
	"github.com/AnTengye/contractwatch/service"
)

const recentContracts = 3

type DashboardHandler struct {
	store   *service.SessionStore
	model   llm.Model
	started time.Time
}

func NewDashboardHandler(store *service.SessionStore, m llm.Model) *DashboardHandler {
	return &DashboardHandler{store: store, model: m, started: time.Now()}
}

// Dashboard returns contract counts, open alerts and the most recent uploads
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	counts := h.store.CountByStatus()
	contracts := h.store.List(service.ListFilter{})

	recent := make([]gin.H, 0, recentContracts)
	for _, contract := range contracts {
		if len(recent) == recentContracts {
			break
		}
		recent = append(recent, summary(contract))
	}

	unacknowledged := false
	open := h.store.AlertFeed(service.AlertFilter{Acknowledged: &unacknowledged})

	c.JSON(http.StatusOK, gin.H{
		"total":      len(contracts),
		"new":        counts[model.StatusNew],
		"processing": counts[model.StatusProcessing],
		"analyzed":   counts[model.StatusAnalyzed],
		"error":      counts[model.StatusError],
		"openAlerts": len(open),
		"recent":     recent,
	})
}

// Health reports liveness along with the configured model
func (h *DashboardHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"contracts": h.store.Count(),
	}
	if h.model != nil {
		body["model"] = h.model.Name()
	}
	c.JSON(http.StatusOK, body)
}
